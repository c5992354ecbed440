package engine

import (
	"net/url"
	"strings"

	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
)

type MatchStatus string

const (
	MatchUpcoming MatchStatus = "upcoming"
	MatchOngoing  MatchStatus = "ongoing"
	MatchFinished MatchStatus = "finished"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchUpcoming, MatchOngoing, MatchFinished:
		return true
	}
	return false
}

type ContestantStatus string

const (
	StatusNotStarted ContestantStatus = "not_started"
	StatusInProgress ContestantStatus = "in_progress"
	StatusConfirmed1 ContestantStatus = "confirmed1"
	StatusConfirmed2 ContestantStatus = "confirmed2"
	StatusEliminated ContestantStatus = "eliminated"
	StatusRescued    ContestantStatus = "rescued"
	StatusBanned     ContestantStatus = "banned"
	StatusCompleted  ContestantStatus = "completed"
)

// ContestantStatuses lists every defined status in display order.
var ContestantStatuses = []ContestantStatus{
	StatusNotStarted,
	StatusInProgress,
	StatusConfirmed1,
	StatusConfirmed2,
	StatusEliminated,
	StatusRescued,
	StatusBanned,
	StatusCompleted,
}

func (s ContestantStatus) Valid() bool {
	for _, known := range ContestantStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Question struct {
	ID                 string   `json:"id"`
	Order              int      `json:"questionOrder"`
	Content            string   `json:"content"`
	Type               string   `json:"type,omitempty"`
	Options            []string `json:"options,omitempty"`
	Media              string   `json:"media,omitempty"`
	DefaultTimeSeconds int      `json:"defaultTime"`
}

type ContestantProfile struct {
	ID                 string `json:"id"`
	FullName           string `json:"fullName"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
}

type MatchState struct {
	MatchID              string                      `json:"matchId"`
	Slug                 string                      `json:"slug"`
	Name                 string                      `json:"name"`
	Status               MatchStatus                 `json:"status"`
	CurrentQuestionOrder int                         `json:"currentQuestionOrder"`
	TotalQuestions       int                         `json:"totalQuestions"`
	RemainingTimeSeconds int                         `json:"remainingTimeSeconds"`
	ScreenControl        ScreenControl               `json:"screenControl"`
	Contestants          map[string]ContestantStatus `json:"contestants"`

	// Bootstrap data, read-only once the room is live.
	Roster    []ContestantProfile `json:"roster"`
	Questions []Question          `json:"questions"`
}

// Mutation names the fields an operator wants to change. Nil fields are left
// untouched.
type Mutation struct {
	Status               *MatchStatus                `json:"status,omitempty"`
	CurrentQuestionOrder *int                        `json:"currentQuestionOrder,omitempty"`
	RemainingTimeSeconds *int                        `json:"remainingTimeSeconds,omitempty"`
	ScreenControl        *ScreenControl              `json:"screenControl,omitempty"`
	Contestants          map[string]ContestantStatus `json:"contestants,omitempty"`
}

// Delta holds only the fields a mutation actually changed.
type Delta Mutation

func (d Delta) IsEmpty() bool {
	return d.Status == nil && d.CurrentQuestionOrder == nil && d.RemainingTimeSeconds == nil &&
		d.ScreenControl == nil && len(d.Contestants) == 0
}

// Validate checks m against s without applying it.
func Validate(s MatchState, m Mutation) error {
	if m.Status != nil && !m.Status.Valid() {
		return matcherr.Validation("unknown match status %q", *m.Status)
	}
	if m.CurrentQuestionOrder != nil {
		order := *m.CurrentQuestionOrder
		if order < 0 {
			return matcherr.Validation("currentQuestionOrder must be >= 0, got %d", order)
		}
		if s.TotalQuestions > 0 && order > s.TotalQuestions {
			return matcherr.Validation("currentQuestionOrder %d exceeds totalQuestions %d", order, s.TotalQuestions)
		}
	}
	if m.RemainingTimeSeconds != nil && *m.RemainingTimeSeconds < 0 {
		return matcherr.Validation("remainingTimeSeconds must be >= 0, got %d", *m.RemainingTimeSeconds)
	}
	if m.ScreenControl != nil {
		if err := m.ScreenControl.Validate(); err != nil {
			return err
		}
	}
	for id, status := range m.Contestants {
		if _, ok := s.Contestants[id]; !ok {
			return matcherr.Validation("contestant %q is not in the match roster", id)
		}
		if !status.Valid() {
			return matcherr.Validation("unknown contestant status %q", status)
		}
	}
	return nil
}

// ApplyMutation validates m and returns the resulting state together with the
// minimal delta. s is never modified.
func ApplyMutation(s MatchState, m Mutation) (MatchState, Delta, error) {
	if err := Validate(s, m); err != nil {
		return s, Delta{}, err
	}

	next := s.Clone()
	var delta Delta

	if m.Status != nil && *m.Status != s.Status {
		next.Status = *m.Status
		delta.Status = ptr(next.Status)
	}
	if m.CurrentQuestionOrder != nil && *m.CurrentQuestionOrder != s.CurrentQuestionOrder {
		next.CurrentQuestionOrder = *m.CurrentQuestionOrder
		delta.CurrentQuestionOrder = ptr(next.CurrentQuestionOrder)
	}
	if m.RemainingTimeSeconds != nil && *m.RemainingTimeSeconds != s.RemainingTimeSeconds {
		next.RemainingTimeSeconds = *m.RemainingTimeSeconds
		delta.RemainingTimeSeconds = ptr(next.RemainingTimeSeconds)
	}
	if m.ScreenControl != nil && *m.ScreenControl != s.ScreenControl {
		next.ScreenControl = *m.ScreenControl
		delta.ScreenControl = ptr(next.ScreenControl)
	}
	for id, status := range m.Contestants {
		if s.Contestants[id] == status {
			continue
		}
		next.Contestants[id] = status
		if delta.Contestants == nil {
			delta.Contestants = make(map[string]ContestantStatus)
		}
		delta.Contestants[id] = status
	}

	return next, delta, nil
}

// Replay folds accepted mutations over initial. It stops at the first
// mutation that would be rejected.
func Replay(initial MatchState, mutations []Mutation) (MatchState, error) {
	s := initial.Clone()
	for _, m := range mutations {
		next, _, err := ApplyMutation(s, m)
		if err != nil {
			return s, err
		}
		s = next
	}
	return s, nil
}

func validMediaURL(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.IsAbs() {
		return u.Scheme == "http" || u.Scheme == "https"
	}
	return strings.HasPrefix(u.Path, "/")
}

func ptr[T any](v T) *T { return &v }
