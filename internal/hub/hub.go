// Package hub owns the set of live match rooms. Like each room, it is an actor:
// its map is only touched from its own goroutine.
package hub

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quiz-match-backend/internal/dispatch"
	"github.com/DoyleJ11/quiz-match-backend/internal/matchdata"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
	"github.com/DoyleJ11/quiz-match-backend/internal/registry"
	"github.com/DoyleJ11/quiz-match-backend/internal/room"
	"github.com/DoyleJ11/quiz-match-backend/internal/store"
)

type HubMsg interface{ isHubMsg() }

// GetRoom looks a room up by match id, or by slug when MatchID is empty.
type GetRoom struct {
	MatchID string
	Slug    string
	Reply   chan *room.Room
}

// EnsureRoom creates the room for a bootstrapped match unless one exists.
type EnsureRoom struct {
	Bootstrap *matchdata.Bootstrap
	Reply     chan EnsureResult
}

type EnsureResult struct {
	Room    *room.Room
	Created bool
	Err     error
}

// RemoveRoom stops a room and drops its state. Evicted removals are skipped
// when someone rejoined in the meantime.
type RemoveRoom struct {
	MatchID string
	Evicted bool
}

type GetStats struct {
	Reply chan Stats
}

type ShutdownHub struct {
	Done chan struct{}
}

func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (RemoveRoom) isHubMsg()  {}
func (GetStats) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}

type RoomInfo struct {
	MatchID string `json:"matchId"`
	Slug    string `json:"slug"`
}

type Stats struct {
	Rooms   int        `json:"rooms"`
	Matches []RoomInfo `json:"matches"`
}

type Deps struct {
	Store      *store.Store
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher
	Source     matchdata.Source
	Clock      clockwork.Clock
	Logger     *zap.Logger
}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	slugs  map[string]string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	deps   Deps
	logger *zap.Logger
}

func NewHub(parent context.Context, deps Deps) *Hub {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		slugs:  make(map[string]string),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		deps:   deps,
		logger: deps.Logger.Named("hub"),
	}
	deps.Registry.OnEvict(h.evicted)
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Lookup returns the live room for ref without contacting the data API.
func (h *Hub) Lookup(ctx context.Context, ref matchdata.MatchRef) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	if err := h.send(ctx, GetRoom{MatchID: ref.MatchID, Slug: ref.Slug, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case rm := <-reply:
		if rm == nil {
			return nil, matcherr.NotFound("match %q is not live", ref.Key())
		}
		return rm, nil
	case <-h.done:
		return nil, errShutdown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve returns the room for ref, bootstrapping it from the Match Data API
// on first reference. The API call runs on the caller's goroutine; if two
// callers race, the first room created wins.
func (h *Hub) Resolve(ctx context.Context, ref matchdata.MatchRef) (*room.Room, error) {
	rm, err := h.Lookup(ctx, ref)
	if err == nil {
		return rm, nil
	}
	if !errors.Is(err, matcherr.ErrNotFound) || errors.Is(err, errShutdown) {
		return nil, err
	}
	if h.deps.Source == nil {
		return nil, err
	}

	b, err := h.deps.Source.LoadMatch(ctx, ref)
	if err != nil {
		return nil, err
	}
	reply := make(chan EnsureResult, 1)
	if err := h.send(ctx, EnsureRoom{Bootstrap: b, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.Room, res.Err
	case <-h.done:
		return nil, errShutdown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := h.send(ctx, GetStats{Reply: reply}); err != nil {
		return Stats{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-h.done:
		return Stats{}, errShutdown
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Shutdown stops every room and the hub itself.
func (h *Hub) Shutdown() {
	done := make(chan struct{})
	if err := h.send(context.Background(), ShutdownHub{Done: done}); err != nil {
		return
	}
	select {
	case <-done:
	case <-h.done:
	}
}

var errShutdown = matcherr.NotFound("hub is shut down")

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case <-h.done:
		return errShutdown
	default:
	}
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return errShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// evicted runs on the registry's timer goroutine.
func (h *Hub) evicted(matchID string) {
	select {
	case h.inbox <- RemoveRoom{MatchID: matchID, Evicted: true}:
	case <-h.done:
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.stopAll()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetRoom:
				id := msg.MatchID
				if id == "" {
					id = h.slugs[msg.Slug]
				}
				msg.Reply <- h.rooms[id] // may be nil

			case EnsureRoom:
				msg.Reply <- h.ensure(msg.Bootstrap)

			case RemoveRoom:
				h.remove(msg.MatchID, msg.Evicted)

			case GetStats:
				st := Stats{Rooms: len(h.rooms), Matches: make([]RoomInfo, 0, len(h.rooms))}
				for id, rm := range h.rooms {
					st.Matches = append(st.Matches, RoomInfo{MatchID: id, Slug: rm.Slug()})
				}
				msg.Reply <- st

			case ShutdownHub:
				h.stopAll()
				h.cancel()
				close(msg.Done)
				return
			}
		}
	}
}

func (h *Hub) ensure(b *matchdata.Bootstrap) EnsureResult {
	if rm := h.rooms[b.Match.ID]; rm != nil {
		return EnsureResult{Room: rm}
	}

	state, err := b.State()
	if err != nil {
		return EnsureResult{Err: err}
	}
	rescues, err := b.RescueManager()
	if err != nil {
		return EnsureResult{Err: err}
	}
	h.deps.Store.Put(state)

	rm, err := room.New(h.ctx, room.Deps{
		States:     h.deps.Store,
		Members:    h.deps.Registry,
		Dispatcher: h.deps.Dispatcher,
		Persister:  h.deps.Source,
		Clock:      h.deps.Clock,
		Logger:     h.deps.Logger,
	}, room.Config{MatchID: state.MatchID, Slug: state.Slug, Rescues: rescues})
	if err != nil {
		h.deps.Store.Evict(state.MatchID)
		return EnsureResult{Err: err}
	}

	h.rooms[state.MatchID] = rm
	if state.Slug != "" {
		h.slugs[state.Slug] = state.MatchID
	}
	// A room nobody ends up joining is still evicted.
	h.deps.Registry.ArmIfEmpty(state.MatchID)

	h.logger.Info("room created",
		zap.String("match_id", state.MatchID),
		zap.String("slug", state.Slug),
		zap.Int("rooms", len(h.rooms)))
	return EnsureResult{Room: rm, Created: true}
}

func (h *Hub) remove(matchID string, evicted bool) {
	rm := h.rooms[matchID]
	if rm == nil {
		return
	}
	if evicted {
		if !rm.Retire() {
			h.logger.Info("eviction skipped, room was rejoined", zap.String("match_id", matchID))
			return
		}
	} else {
		rm.Shutdown()
	}
	delete(h.rooms, matchID)
	if h.slugs[rm.Slug()] == matchID {
		delete(h.slugs, rm.Slug())
	}
	h.deps.Registry.Forget(matchID)
	h.deps.Store.Evict(matchID)

	h.logger.Info("room removed",
		zap.String("match_id", matchID),
		zap.Bool("evicted", evicted),
		zap.Int("rooms", len(h.rooms)))
}

func (h *Hub) stopAll() {
	for id, rm := range h.rooms {
		rm.Shutdown()
		h.deps.Store.Evict(id)
	}
	clear(h.rooms)
	clear(h.slugs)
}
