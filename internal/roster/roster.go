// Package roster applies operator-issued contestant status batches.
//
// There is no transition table: the operator may move any
// contestant from any status to any other status.
package roster

import (
	"sort"
	"strings"

	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
)

type Result struct {
	UpdatedCount int      `json:"updatedCount"`
	Unaffected   []string `json:"unaffectedIds"`
}

// ApplyBatch plans a batch status change. The returned mutation only names
// ids present in the roster; the rest are reported in Result.Unaffected. Every
// occurrence in ids is counted once, so UpdatedCount+len(Unaffected) ==
// len(ids).
func ApplyBatch(s engine.MatchState, ids []string, target engine.ContestantStatus) (engine.Mutation, Result, error) {
	if !target.Valid() {
		return engine.Mutation{}, Result{}, matcherr.Validation("unknown contestant status %q", target)
	}
	if len(ids) == 0 {
		return engine.Mutation{}, Result{}, matcherr.Validation("ids must not be empty")
	}

	m := engine.Mutation{Contestants: make(map[string]engine.ContestantStatus, len(ids))}
	res := Result{Unaffected: []string{}}
	for _, id := range ids {
		if !s.HasContestant(strings.TrimSpace(id)) {
			res.Unaffected = append(res.Unaffected, id)
			continue
		}
		m.Contestants[strings.TrimSpace(id)] = target
		res.UpdatedCount++
	}
	return m, res, nil
}

// Entry is one row of the ListContestant payload.
type Entry struct {
	ID                 string                  `json:"id"`
	FullName           string                  `json:"fullName"`
	RegistrationNumber string                  `json:"registrationNumber,omitempty"`
	Status             engine.ContestantStatus `json:"status"`
}

// List renders the roster in bootstrap order with live statuses.
func List(s engine.MatchState) []Entry {
	out := make([]Entry, 0, len(s.Roster))
	for _, c := range s.Roster {
		out = append(out, Entry{
			ID:                 c.ID,
			FullName:           c.FullName,
			RegistrationNumber: c.RegistrationNumber,
			Status:             s.Contestants[c.ID],
		})
	}
	return out
}

// Filter returns the entries whose status is one of statuses.
func Filter(entries []Entry, statuses ...engine.ContestantStatus) []Entry {
	out := []Entry{}
	for _, e := range entries {
		for _, st := range statuses {
			if e.Status == st {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Counts tallies contestants per status; every defined status is present.
func Counts(s engine.MatchState) map[engine.ContestantStatus]int {
	out := make(map[engine.ContestantStatus]int, len(engine.ContestantStatuses))
	for _, st := range engine.ContestantStatuses {
		out[st] = 0
	}
	for _, st := range s.Contestants {
		out[st]++
	}
	return out
}

var resultRank = map[engine.ContestantStatus]int{
	engine.StatusCompleted:  0,
	engine.StatusConfirmed2: 1,
	engine.StatusConfirmed1: 2,
	engine.StatusRescued:    3,
	engine.StatusInProgress: 4,
	engine.StatusNotStarted: 5,
	engine.StatusEliminated: 6,
	engine.StatusBanned:     7,
}

// Results orders the roster for the final standings screen. Ties keep roster
// order.
func Results(s engine.MatchState) []Entry {
	out := List(s)
	sort.SliceStable(out, func(i, j int) bool {
		return resultRank[out[i].Status] < resultRank[out[j].Status]
	})
	return out
}
