// Package rescue governs audience lifelines: the notUsed -> used -> passed
// lifecycle and the vote tally collected while a rescue is in use.
//
// Votes are not deduplicated per viewer. Audience members are anonymous, so
// repeated submissions from one phone all count.
package rescue

import (
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
)

type Status string

const (
	StatusNotUsed Status = "notUsed"
	StatusUsed    Status = "used"
	StatusPassed  Status = "passed"
)

func (s Status) Valid() bool {
	return s == StatusNotUsed || s == StatusUsed || s == StatusPassed
}

const maxOptionLen = 64

type OptionCount struct {
	Option string `json:"option"`
	Count  int    `json:"count"`
}

type Session struct {
	ID            string
	Type          string
	Status        Status
	QuestionOrder *int
	Candidates    []string

	votes   map[string]int
	options []string // first-seen order, used for tie-breaks
}

// View is a read-only copy of a session.
type View struct {
	RescueID               string        `json:"rescueId"`
	RescueType             string        `json:"rescueType"`
	Status                 Status        `json:"status"`
	QuestionOrder          *int          `json:"questionOrder"`
	CandidateContestantIDs []string      `json:"candidateContestantIds"`
	Tally                  []OptionCount `json:"tally"`
}

type Manager struct {
	sessions map[string]*Session
	order    []string
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Add registers a rescue known to the Match Data API. Hydrated sessions keep
// their persisted status; votes always start empty.
func (m *Manager) Add(id, rescueType string, status Status, questionOrder *int) error {
	if strings.TrimSpace(id) == "" {
		return matcherr.Validation("rescueId is required")
	}
	if status == "" {
		status = StatusNotUsed
	}
	if !status.Valid() {
		return matcherr.Validation("unknown rescue status %q", status)
	}
	if _, exists := m.sessions[id]; exists {
		return matcherr.Validation("rescue %q already registered", id)
	}
	var bound *int
	if questionOrder != nil {
		bound = ptr(*questionOrder)
	}
	m.sessions[id] = &Session{
		ID:            id,
		Type:          rescueType,
		Status:        status,
		QuestionOrder: bound,
		votes:         make(map[string]int),
	}
	m.order = append(m.order, id)
	return nil
}

// SelectCandidate binds the rescue to a question and records the contestants
// it may save. Only allowed before the rescue is used; rebinding is allowed
// until then.
func (m *Manager) SelectCandidate(id string, questionOrder int, candidates []string) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}
	if s.Status != StatusNotUsed {
		return View{}, matcherr.InvalidTransition("rescue %q is %s, its question binding is frozen", id, s.Status)
	}
	if questionOrder < 0 {
		return View{}, matcherr.Validation("questionOrder must be >= 0, got %d", questionOrder)
	}
	s.QuestionOrder = ptr(questionOrder)
	s.Candidates = orderedSet(candidates)
	return s.view(), nil
}

// Activate opens voting: notUsed -> used.
func (m *Manager) Activate(id string) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}
	if s.Status != StatusNotUsed {
		return View{}, matcherr.InvalidTransition("cannot activate rescue %q: status is %s", id, s.Status)
	}
	s.Status = StatusUsed
	return s.view(), nil
}

// RecordVote counts one vote for option and returns the updated tally.
func (m *Manager) RecordVote(id, option string) ([]OptionCount, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusUsed {
		return nil, matcherr.InvalidTransition("rescue %q is not accepting votes: status is %s", id, s.Status)
	}
	option = strings.TrimSpace(option)
	if option == "" {
		return nil, matcherr.Validation("vote option is required")
	}
	if utf8.RuneCountInString(option) > maxOptionLen {
		return nil, matcherr.Validation("vote option exceeds %d characters", maxOptionLen)
	}
	if _, seen := s.votes[option]; !seen {
		s.options = append(s.options, option)
	}
	s.votes[option]++
	return s.tally(), nil
}

// Close freezes the votes: used -> passed.
func (m *Manager) Close(id string) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}
	if s.Status != StatusUsed {
		return View{}, matcherr.InvalidTransition("cannot close rescue %q: status is %s", id, s.Status)
	}
	s.Status = StatusPassed
	return s.view(), nil
}

// Tally is readable in any status.
func (m *Manager) Tally(id string) ([]OptionCount, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}
	return s.tally(), nil
}

func (m *Manager) Get(id string) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}
	return s.view(), nil
}

// List returns every session in registration order.
func (m *Manager) List() []View {
	out := make([]View, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id].view())
	}
	return out
}

func (m *Manager) session(id string) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, matcherr.NotFound("rescue %q", id)
	}
	return s, nil
}

// tally sorts by count descending, then by first-seen order.
func (s *Session) tally() []OptionCount {
	out := make([]OptionCount, 0, len(s.options))
	for _, opt := range s.options {
		out = append(out, OptionCount{Option: opt, Count: s.votes[opt]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

func (s *Session) view() View {
	v := View{
		RescueID:               s.ID,
		RescueType:             s.Type,
		Status:                 s.Status,
		CandidateContestantIDs: slices.Clone(s.Candidates),
		Tally:                  s.tally(),
	}
	if s.QuestionOrder != nil {
		v.QuestionOrder = ptr(*s.QuestionOrder)
	}
	return v
}

func orderedSet(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
