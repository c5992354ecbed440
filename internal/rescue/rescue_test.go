package rescue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
)

func newManager(t *testing.T, ids ...string) *Manager {
	t.Helper()
	m := NewManager()
	for _, id := range ids {
		require.NoError(t, m.Add(id, "audience", StatusNotUsed, nil))
	}
	return m
}

func TestRescue_VoteScenario(t *testing.T) {
	m := newManager(t, "r1")

	v, err := m.Activate("r1")
	require.NoError(t, err)
	assert.Equal(t, StatusUsed, v.Status)

	for _, opt := range []string{"A", "A", "B"} {
		_, err := m.RecordVote("r1", opt)
		require.NoError(t, err)
	}
	tally, err := m.Tally("r1")
	require.NoError(t, err)
	assert.Equal(t, []OptionCount{{"A", 2}, {"B", 1}}, tally)

	v, err = m.Close("r1")
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, v.Status)

	_, err = m.RecordVote("r1", "A")
	assert.ErrorIs(t, err, matcherr.ErrInvalidTransition)

	tally, err = m.Tally("r1")
	require.NoError(t, err)
	assert.Equal(t, []OptionCount{{"A", 2}, {"B", 1}}, tally, "votes are frozen after close")
}

func TestRescue_TallyTieBreaksByFirstSeen(t *testing.T) {
	m := newManager(t, "r1")
	_, err := m.Activate("r1")
	require.NoError(t, err)

	for _, opt := range []string{"C", "A", "B", "A", "C", "B"} {
		_, err := m.RecordVote("r1", opt)
		require.NoError(t, err)
	}
	tally, _ := m.Tally("r1")
	assert.Equal(t, []OptionCount{{"C", 2}, {"A", 2}, {"B", 2}}, tally)

	_, _ = m.RecordVote("r1", "B")
	tally, _ = m.Tally("r1")
	assert.Equal(t, []OptionCount{{"B", 3}, {"C", 2}, {"A", 2}}, tally)
}

func TestRescue_StatusIsMonotonic(t *testing.T) {
	// Drive every operation from every status; nothing may move backwards.
	rank := map[Status]int{StatusNotUsed: 0, StatusUsed: 1, StatusPassed: 2}
	ops := []func(m *Manager) error{
		func(m *Manager) error { _, err := m.Activate("r1"); return err },
		func(m *Manager) error { _, err := m.Close("r1"); return err },
		func(m *Manager) error { _, err := m.SelectCandidate("r1", 2, nil); return err },
		func(m *Manager) error { _, err := m.RecordVote("r1", "A"); return err },
	}

	for _, start := range []Status{StatusNotUsed, StatusUsed, StatusPassed} {
		for i, op := range ops {
			m := NewManager()
			require.NoError(t, m.Add("r1", "audience", start, nil))
			_ = op(m)
			v, err := m.Get("r1")
			require.NoError(t, err)
			assert.GreaterOrEqual(t, rank[v.Status], rank[start], "op %d from %s moved to %s", i, start, v.Status)
		}
	}
}

func TestRescue_InvalidTransitions(t *testing.T) {
	m := newManager(t, "r1")

	_, err := m.Close("r1")
	assert.ErrorIs(t, err, matcherr.ErrInvalidTransition, "close requires used")

	_, err = m.RecordVote("r1", "A")
	assert.ErrorIs(t, err, matcherr.ErrInvalidTransition, "votes require used")

	_, err = m.Activate("r1")
	require.NoError(t, err)
	_, err = m.Activate("r1")
	assert.ErrorIs(t, err, matcherr.ErrInvalidTransition, "activate requires notUsed")
}

func TestRescue_QuestionBindingFrozenOnceUsed(t *testing.T) {
	m := newManager(t, "r1")

	v, err := m.SelectCandidate("r1", 3, []string{"c2", "c1", "c2", " "})
	require.NoError(t, err)
	require.NotNil(t, v.QuestionOrder)
	assert.Equal(t, 3, *v.QuestionOrder)
	assert.Equal(t, []string{"c2", "c1"}, v.CandidateContestantIDs)
	assert.Equal(t, StatusNotUsed, v.Status, "selecting does not change status")

	v, err = m.SelectCandidate("r1", 4, []string{"c1"})
	require.NoError(t, err)
	assert.Equal(t, 4, *v.QuestionOrder, "rebinding allowed while notUsed")

	_, err = m.Activate("r1")
	require.NoError(t, err)
	_, err = m.SelectCandidate("r1", 5, nil)
	assert.ErrorIs(t, err, matcherr.ErrInvalidTransition)

	v, _ = m.Get("r1")
	assert.Equal(t, 4, *v.QuestionOrder)
}

func TestRescue_ViewDoesNotAliasSession(t *testing.T) {
	m := newManager(t, "r1")
	v, err := m.SelectCandidate("r1", 1, []string{"c1"})
	require.NoError(t, err)
	*v.QuestionOrder = 99
	v.CandidateContestantIDs[0] = "zzz"

	again, _ := m.Get("r1")
	assert.Equal(t, 1, *again.QuestionOrder)
	assert.Equal(t, []string{"c1"}, again.CandidateContestantIDs)
}

func TestRescue_Errors(t *testing.T) {
	m := newManager(t, "r1")

	_, err := m.Activate("missing")
	assert.ErrorIs(t, err, matcherr.ErrNotFound)
	_, err = m.Tally("missing")
	assert.ErrorIs(t, err, matcherr.ErrNotFound)

	_, err = m.SelectCandidate("r1", -1, nil)
	assert.ErrorIs(t, err, matcherr.ErrValidation)

	_, _ = m.Activate("r1")
	_, err = m.RecordVote("r1", "   ")
	assert.ErrorIs(t, err, matcherr.ErrValidation)

	assert.ErrorIs(t, m.Add("r1", "audience", StatusNotUsed, nil), matcherr.ErrValidation)
	assert.ErrorIs(t, m.Add("r2", "audience", "gone", nil), matcherr.ErrValidation)
}

func TestRescue_ListKeepsRegistrationOrder(t *testing.T) {
	m := newManager(t, "r2", "r1", "r3")
	var ids []string
	for _, v := range m.List() {
		ids = append(ids, v.RescueID)
	}
	assert.Equal(t, []string{"r2", "r1", "r3"}, ids)
}
