// Package store keeps the live MatchState of every active match.
//
// The store is pure in-memory data. Each match has a single writer (its room
// goroutine), so the lock here only protects the cross-match map.
package store

import (
	"sync"

	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
)

type Store struct {
	mu     sync.RWMutex
	states map[string]*engine.MatchState
}

func New() *Store {
	return &Store{states: make(map[string]*engine.MatchState)}
}

// Get returns a copy of the match state.
func (s *Store) Get(matchID string) (engine.MatchState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[matchID]
	if !ok {
		return engine.MatchState{}, matcherr.NotFound("match %q is not live", matchID)
	}
	return st.Clone(), nil
}

// Put hydrates (or replaces) the state for a match.
func (s *Store) Put(state engine.MatchState) {
	c := state.Clone()
	s.mu.Lock()
	s.states[state.MatchID] = &c
	s.mu.Unlock()
}

// Mutate applies m to the match and returns the new state and the fields that
// changed. Rejected mutations leave the stored state untouched.
func (s *Store) Mutate(matchID string, m engine.Mutation) (engine.MatchState, engine.Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[matchID]
	if !ok {
		return engine.MatchState{}, engine.Delta{}, matcherr.NotFound("match %q is not live", matchID)
	}

	next, delta, err := engine.ApplyMutation(*st, m)
	if err != nil {
		return st.Clone(), engine.Delta{}, err
	}
	s.states[matchID] = &next
	return next.Clone(), delta, nil
}

func (s *Store) Evict(matchID string) {
	s.mu.Lock()
	delete(s.states, matchID)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
