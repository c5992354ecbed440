// Package matchdata loads match bootstrap data from the system of record and
// writes final results back to it.
package matchdata

import (
	"context"
	"sort"

	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
	"github.com/DoyleJ11/quiz-match-backend/internal/rescue"
)

// MatchRef identifies a match by id, slug or both.
type MatchRef struct {
	MatchID string
	Slug    string
}

// Key is what the data API routes on.
func (r MatchRef) Key() string {
	if r.Slug != "" {
		return r.Slug
	}
	return r.MatchID
}

type Match struct {
	ID              string `json:"id"`
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	CurrentQuestion int    `json:"currentQuestion"`
	RemainingTime   int    `json:"remainingTime"`
}

type Contestant struct {
	ID                 string `json:"id"`
	FullName           string `json:"fullName"`
	RegistrationNumber string `json:"registrationNumber"`
	Status             string `json:"status"`
}

type Rescue struct {
	ID            string `json:"id"`
	RescueType    string `json:"rescueType"`
	Status        string `json:"status"`
	QuestionOrder *int   `json:"questionOrder"`
}

// Bootstrap is everything a room needs to go live.
type Bootstrap struct {
	Match       Match
	Questions   []engine.Question
	Contestants []Contestant
	Rescues     []Rescue
}

type ContestantResult struct {
	ContestantID string                  `json:"contestantId"`
	Status       engine.ContestantStatus `json:"status"`
	Rank         int                     `json:"rank"`
}

// Source is the Match Data API as seen by the hub.
type Source interface {
	LoadMatch(ctx context.Context, ref MatchRef) (*Bootstrap, error)
	SaveResults(ctx context.Context, matchID string, results []ContestantResult) error
	Close() error
}

// State builds the initial MatchState. Persisted status, question pointer and
// contestant statuses are validated like any other mutation.
func (b *Bootstrap) State() (engine.MatchState, error) {
	if b.Match.ID == "" {
		return engine.MatchState{}, matcherr.Validation("bootstrap: match id is required")
	}

	profiles := make([]engine.ContestantProfile, 0, len(b.Contestants))
	statuses := make(map[string]engine.ContestantStatus, len(b.Contestants))
	for _, c := range b.Contestants {
		profiles = append(profiles, engine.ContestantProfile{
			ID:                 c.ID,
			FullName:           c.FullName,
			RegistrationNumber: c.RegistrationNumber,
		})
		if c.Status != "" {
			statuses[c.ID] = engine.ContestantStatus(c.Status)
		}
	}

	questions := append([]engine.Question(nil), b.Questions...)
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].Order < questions[j].Order })

	s := engine.NewMatchState(b.Match.ID, b.Match.Slug, profiles, questions)
	s.Name = b.Match.Name

	m := engine.Mutation{
		CurrentQuestionOrder: &b.Match.CurrentQuestion,
		RemainingTimeSeconds: &b.Match.RemainingTime,
		Contestants:          statuses,
	}
	if b.Match.Status != "" {
		st := engine.MatchStatus(b.Match.Status)
		m.Status = &st
	}
	next, _, err := engine.ApplyMutation(s, m)
	if err != nil {
		return engine.MatchState{}, err
	}
	return next, nil
}

// RescueManager hydrates the rescue sessions for the room.
func (b *Bootstrap) RescueManager() (*rescue.Manager, error) {
	mgr := rescue.NewManager()
	for _, r := range b.Rescues {
		if err := mgr.Add(r.ID, r.RescueType, rescue.Status(r.Status), r.QuestionOrder); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}
