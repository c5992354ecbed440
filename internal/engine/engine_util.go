package engine

import "slices"

// NewMatchState builds the initial state for a freshly bootstrapped room.
// Contestants without a known status start as not_started.
func NewMatchState(matchID, slug string, roster []ContestantProfile, questions []Question) MatchState {
	s := MatchState{
		MatchID:        matchID,
		Slug:           slug,
		Status:         MatchUpcoming,
		TotalQuestions: len(questions),
		ScreenControl:  ScreenControl{ControlKey: ControlBackground},
		Contestants:    make(map[string]ContestantStatus, len(roster)),
		Roster:         slices.Clone(roster),
		Questions:      slices.Clone(questions),
	}
	for _, c := range roster {
		s.Contestants[c.ID] = StatusNotStarted
	}
	return s
}

func (s MatchState) Clone() MatchState {
	out := s
	out.Contestants = make(map[string]ContestantStatus, len(s.Contestants))
	for id, status := range s.Contestants {
		out.Contestants[id] = status
	}
	out.Roster = slices.Clone(s.Roster)
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.Options = slices.Clone(q.Options)
		out.Questions[i] = q
	}
	return out
}

func (s MatchState) QuestionByOrder(order int) (Question, bool) {
	for _, q := range s.Questions {
		if q.Order == order {
			return q, true
		}
	}
	return Question{}, false
}

// CurrentQuestion returns the question the match is on, if any.
func (s MatchState) CurrentQuestion() (Question, bool) {
	if s.CurrentQuestionOrder == 0 {
		return Question{}, false
	}
	return s.QuestionByOrder(s.CurrentQuestionOrder)
}

// DefaultTimeFor returns the countdown length configured for a question.
func (s MatchState) DefaultTimeFor(order int) int {
	if q, ok := s.QuestionByOrder(order); ok {
		return q.DefaultTimeSeconds
	}
	return 0
}

func (s MatchState) HasContestant(id string) bool {
	_, ok := s.Contestants[id]
	return ok
}
