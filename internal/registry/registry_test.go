package registry

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
	"github.com/DoyleJ11/quiz-match-backend/internal/store"
	"github.com/DoyleJ11/quiz-match-backend/internal/testsupport"
)

const grace = time.Minute

func newTestRegistry(t *testing.T) (*Registry, *store.Store, *clockwork.FakeClock, chan string) {
	t.Helper()
	st := store.New()
	fc := clockwork.NewFakeClock()
	r := New(Config{States: st, Clock: fc, Grace: grace})

	evicted := make(chan string, 4)
	r.OnEvict(func(matchID string) {
		st.Evict(matchID)
		evicted <- matchID
	})
	return r, st, fc, evicted
}

func putMatch(st *store.Store, id string) {
	st.Put(engine.NewMatchState(id, id, []engine.ContestantProfile{{ID: "c1"}}, nil))
}

func recvEvicted(t *testing.T, ch <-chan string, within time.Duration) string {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(within):
		t.Fatalf("timed out waiting for eviction")
		return ""
	}
}

func TestRegistry_JoinReturnsSnapshot(t *testing.T) {
	r, st, _, _ := newTestRegistry(t)
	putMatch(st, "m1")
	sec := 42
	_, _, err := st.Mutate("m1", engine.Mutation{RemainingTimeSeconds: &sec})
	require.NoError(t, err)

	mem, err := r.Join("m1", RoleScreen, testsupport.NewConn("s1", 1))
	require.NoError(t, err)
	assert.Equal(t, 42, mem.Snapshot.RemainingTimeSeconds)
	assert.Equal(t, RoleScreen, mem.Connection.Role)
	assert.Equal(t, "m1", mem.Connection.MatchID)
}

func TestRegistry_JoinRejectsUnknownMatchAndRole(t *testing.T) {
	r, st, _, _ := newTestRegistry(t)
	_, err := r.Join("missing", RoleAdmin, testsupport.NewConn("a", 1))
	assert.ErrorIs(t, err, matcherr.ErrNotFound)

	putMatch(st, "m1")
	_, err = r.Join("m1", "judge", testsupport.NewConn("a", 1))
	assert.ErrorIs(t, err, matcherr.ErrValidation)
}

func TestRegistry_BroadcastTargetsFilterByRole(t *testing.T) {
	r, st, _, _ := newTestRegistry(t)
	putMatch(st, "m1")
	putMatch(st, "m2")

	for _, j := range []struct {
		match string
		role  Role
		id    string
	}{
		{"m1", RoleAdmin, "a1"},
		{"m1", RoleScreen, "s1"},
		{"m1", RoleAudience, "p1"},
		{"m1", RoleAudience, "p2"},
		{"m2", RoleAudience, "p3"},
	} {
		_, err := r.Join(j.match, j.role, testsupport.NewConn(j.id, 1))
		require.NoError(t, err)
	}

	ids := func(conns []Conn) []string {
		var out []string
		for _, c := range conns {
			out = append(out, c.ID())
		}
		return out
	}
	assert.ElementsMatch(t, []string{"a1", "s1", "p1", "p2"}, ids(r.BroadcastTargets("m1")))
	assert.ElementsMatch(t, []string{"s1", "p1", "p2"}, ids(r.BroadcastTargets("m1", RoleScreen, RoleAudience)))
	assert.ElementsMatch(t, []string{"p3"}, ids(r.BroadcastTargets("m2")))
	assert.Empty(t, r.BroadcastTargets("m3"))

	stats := r.Stats()
	assert.Equal(t, 2, stats.Rooms)
	assert.Equal(t, 5, stats.Connections)
	assert.Equal(t, 3, stats.ByRole[RoleAudience])
}

func TestRegistry_JoinAnotherRoomMovesConnection(t *testing.T) {
	r, st, _, _ := newTestRegistry(t)
	putMatch(st, "m1")
	putMatch(st, "m2")
	c := testsupport.NewConn("c", 1)

	_, err := r.Join("m1", RoleAudience, c)
	require.NoError(t, err)
	_, err = r.Join("m2", RoleAudience, c)
	require.NoError(t, err)

	assert.Empty(t, r.Members("m1"))
	assert.Len(t, r.Members("m2"), 1)
	info, ok := r.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, "m2", info.MatchID)
}

func TestRegistry_EvictsAfterGrace(t *testing.T) {
	r, st, fc, evicted := newTestRegistry(t)
	putMatch(st, "m2")

	_, err := r.Join("m2", RoleAdmin, testsupport.NewConn("a1", 1))
	require.NoError(t, err)
	_, ok := r.Leave("a1")
	require.True(t, ok)
	assert.Equal(t, 1, r.Stats().PendingEvictions)

	fc.Advance(grace)
	assert.Equal(t, "m2", recvEvicted(t, evicted, time.Second))

	_, err = st.Get("m2")
	assert.ErrorIs(t, err, matcherr.ErrNotFound)
	assert.Equal(t, 0, r.Stats().Rooms)
}

func TestRegistry_RejoinBeforeGraceKeepsState(t *testing.T) {
	r, st, fc, evicted := newTestRegistry(t)
	putMatch(st, "m2")
	sec := 17
	_, _, err := st.Mutate("m2", engine.Mutation{RemainingTimeSeconds: &sec})
	require.NoError(t, err)

	_, err = r.Join("m2", RoleAdmin, testsupport.NewConn("a1", 1))
	require.NoError(t, err)
	r.Leave("a1")

	fc.Advance(grace - time.Second)
	mem, err := r.Join("m2", RoleAdmin, testsupport.NewConn("a2", 1))
	require.NoError(t, err)
	assert.Equal(t, 17, mem.Snapshot.RemainingTimeSeconds, "rejoin sees the pre-existing state")

	fc.Advance(2 * grace)
	select {
	case id := <-evicted:
		t.Fatalf("room %s evicted while occupied", id)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 0, r.Stats().PendingEvictions)
}

func TestRegistry_ArmIfEmptyAndForget(t *testing.T) {
	r, st, fc, evicted := newTestRegistry(t)
	putMatch(st, "m1")
	putMatch(st, "m2")

	r.ArmIfEmpty("m1")
	r.ArmIfEmpty("m2")
	r.Forget("m2")

	fc.Advance(grace)
	assert.Equal(t, "m1", recvEvicted(t, evicted, time.Second))
	select {
	case id := <-evicted:
		t.Fatalf("forgotten room %s was evicted", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleAudience, role)

	role, err = ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseRole("judge")
	assert.ErrorIs(t, err, matcherr.ErrValidation)
}
