package types

import "github.com/DoyleJ11/quiz-match-backend/internal/engine"

// MatchInfo is the header of every catch-up snapshot.
type MatchInfo struct {
	MatchID              string               `json:"matchId"`
	Slug                 string               `json:"slug"`
	Name                 string               `json:"name"`
	Status               engine.MatchStatus   `json:"status"`
	CurrentQuestionOrder int                  `json:"currentQuestionOrder"`
	TotalQuestions       int                  `json:"totalQuestions"`
	RemainingTimeSeconds int                  `json:"remainingTimeSeconds"`
	ScreenControl        engine.ScreenControl `json:"screenControl"`
}

func MatchInfoOf(s engine.MatchState) MatchInfo {
	return MatchInfo{
		MatchID:              s.MatchID,
		Slug:                 s.Slug,
		Name:                 s.Name,
		Status:               s.Status,
		CurrentQuestionOrder: s.CurrentQuestionOrder,
		TotalQuestions:       s.TotalQuestions,
		RemainingTimeSeconds: s.RemainingTimeSeconds,
		ScreenControl:        s.ScreenControl,
	}
}
