package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/quiz-match-backend/internal/dispatch"
	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/hub"
	"github.com/DoyleJ11/quiz-match-backend/internal/matchdata"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
	"github.com/DoyleJ11/quiz-match-backend/internal/registry"
	"github.com/DoyleJ11/quiz-match-backend/internal/room"
	"github.com/DoyleJ11/quiz-match-backend/internal/store"
	"github.com/DoyleJ11/quiz-match-backend/pkg/types"
)

type staticSource struct{}

func (staticSource) LoadMatch(_ context.Context, ref matchdata.MatchRef) (*matchdata.Bootstrap, error) {
	if ref.Key() != "final" && ref.Key() != "m1" {
		return nil, matcherr.NotFound("match %q", ref.Key())
	}
	return &matchdata.Bootstrap{
		Match:       matchdata.Match{ID: "m1", Slug: "final", Name: "Final"},
		Questions:   []engine.Question{{ID: "q1", Order: 1, DefaultTimeSeconds: 20}},
		Contestants: []matchdata.Contestant{{ID: "c1", FullName: "Ana"}},
		Rescues:     []matchdata.Rescue{{ID: "r1", RescueType: "audience"}},
	}, nil
}

func (staticSource) SaveResults(context.Context, string, []matchdata.ContestantResult) error {
	return nil
}

func (staticSource) Close() error { return nil }

type env struct {
	srv *httptest.Server
	hub *hub.Hub
}

func newEnv(t *testing.T) env {
	t.Helper()
	st := store.New()
	reg := registry.New(registry.Config{States: st})
	h := hub.NewHub(context.Background(), hub.Deps{
		Store:      st,
		Registry:   reg,
		Dispatcher: dispatch.New(reg, nil),
		Source:     staticSource{},
	})
	t.Cleanup(h.Shutdown)

	srv := httptest.NewServer(SetupRoutes(Deps{
		Rooms:          h,
		Members:        reg,
		Socket:         func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) },
		AllowedOrigins: []string{"https://screen.example.com"},
	}))
	t.Cleanup(srv.Close)
	return env{srv: srv, hub: h}
}

// live bootstraps the test match and returns its room.
func (e env) live(t *testing.T) *room.Room {
	t.Helper()
	rm, err := e.hub.Resolve(context.Background(), matchdata.MatchRef{Slug: "final"})
	require.NoError(t, err)
	return rm
}

func (e env) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e env) vote(t *testing.T, path, body string) (*http.Response, types.Ack) {
	t.Helper()
	resp, err := http.Post(e.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var ack types.Ack
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	return resp, ack
}

func TestHealthzAndSocketRoute(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusOK, e.get(t, "/healthz").StatusCode)
	assert.Equal(t, http.StatusTeapot, e.get(t, "/ws").StatusCode)
}

func TestMatchState(t *testing.T) {
	e := newEnv(t)

	resp := e.get(t, "/matches/m1/state")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	e.live(t)
	resp = e.get(t, "/matches/m1/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view room.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "m1", view.State.MatchID)
	assert.Equal(t, 1, view.State.TotalQuestions)
	require.Len(t, view.Rescues, 1)
	assert.Equal(t, "r1", view.Rescues[0].RescueID)
	assert.Equal(t, 1, view.StatusCounts[engine.StatusNotStarted])
}

func TestRoomStats(t *testing.T) {
	e := newEnv(t)
	e.live(t)

	resp := e.get(t, "/rooms/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st roomStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 1, st.Rooms)
	require.Len(t, st.Matches, 1)
	assert.Equal(t, "final", st.Matches[0].Slug)
	assert.Equal(t, 0, st.Registry.Connections)
}

func TestCastVote(t *testing.T) {
	e := newEnv(t)

	resp, ack := e.vote(t, "/matches/final/rescues/r1/votes", `{"option":"B"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, ack.Success)

	rm := e.live(t)
	resp, _ = e.vote(t, "/matches/final/rescues/r1/votes", `{"option":"B"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "rescue is not open yet")

	_, err := rm.Submit(context.Background(), registry.RoleAdmin, room.ActivateRescue{RescueID: "r1"})
	require.NoError(t, err)

	resp, ack = e.vote(t, "/matches/final/rescues/r1/votes", `{"option":"B"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ack.Success)
	assert.Equal(t, []any{map[string]any{"option": "B", "count": float64(1)}}, ack.Data)

	resp, _ = e.vote(t, "/matches/final/rescues/r1/votes", `{"option":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.vote(t, "/matches/final/rescues/r1/votes", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.vote(t, "/matches/final/rescues/ghost/votes", `{"option":"B"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	e := newEnv(t)

	req, err := http.NewRequest(http.MethodOptions, e.srv.URL+"/matches/final/rescues/r1/votes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://screen.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://screen.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(matcherr.Validation("x")))
	assert.Equal(t, http.StatusNotFound, statusFor(matcherr.NotFound("x")))
	assert.Equal(t, http.StatusConflict, statusFor(matcherr.InvalidTransition("x")))
	assert.Equal(t, http.StatusBadGateway, statusFor(matcherr.Transport("x")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
