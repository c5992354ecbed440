// Package room runs one actor per live match. The actor goroutine is the only
// writer of its match: operator commands, timer ticks and joins all pass
// through its inbox and are applied in arrival order.
package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quiz-match-backend/internal/dispatch"
	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/matchdata"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
	"github.com/DoyleJ11/quiz-match-backend/internal/registry"
	"github.com/DoyleJ11/quiz-match-backend/internal/rescue"
	"github.com/DoyleJ11/quiz-match-backend/internal/roster"
	"github.com/DoyleJ11/quiz-match-backend/internal/timer"
)

// ErrClosed is returned to callers that reach a room after it shut down.
var ErrClosed = fmt.Errorf("%w: match room closed", matcherr.ErrNotFound)

const persistTimeout = 15 * time.Second

type Msg interface{ isRoomMsg() }

type Join struct {
	Conn  registry.Conn
	Role  registry.Role
	AckID string
	Reply chan JoinResult
}

type JoinResult struct {
	Membership registry.Membership
	Err        error
}

// Do carries one operator or audience command.
type Do struct {
	Role  registry.Role
	Cmd   Command
	Reply chan Result
}

type Result struct {
	Data any
	Err  error
}

type TimerFired struct{ Gen uint64 }

type RescueWindowClosed struct {
	RescueID string
	Gen      uint64
}

type Inspect struct {
	Reply chan View
}

type Shutdown struct{}

// Retire shuts the room down only if nobody is in it. Reply carries whether
// it did.
type Retire struct {
	Reply chan bool
}

func (Join) isRoomMsg()               {}
func (Do) isRoomMsg()                 {}
func (TimerFired) isRoomMsg()         {}
func (RescueWindowClosed) isRoomMsg() {}
func (Inspect) isRoomMsg()            {}
func (Shutdown) isRoomMsg()           {}
func (Retire) isRoomMsg()             {}

// View is a consistent read of everything the room owns.
type View struct {
	State   engine.MatchState `json:"state"`
	Timer   TimerView         `json:"timer"`
	Rescues []rescue.View     `json:"rescues"`
	Members int               `json:"members"`

	StatusCounts map[engine.ContestantStatus]int `json:"statusCounts"`
}

type TimerView struct {
	State         timer.State `json:"state"`
	TimeRemaining int         `json:"timeRemaining"`
}

// States is the slice of the store a room writes through.
type States interface {
	Get(matchID string) (engine.MatchState, error)
	Mutate(matchID string, m engine.Mutation) (engine.MatchState, engine.Delta, error)
}

// Members is the slice of the registry a room needs.
type Members interface {
	Join(matchID string, role registry.Role, conn registry.Conn) (registry.Membership, error)
	Members(matchID string) []registry.Connection
}

// Persister writes final results to the Match Data API.
type Persister interface {
	SaveResults(ctx context.Context, matchID string, results []matchdata.ContestantResult) error
}

type Deps struct {
	States     States
	Members    Members
	Dispatcher *dispatch.Dispatcher
	Persister  Persister
	Clock      clockwork.Clock
	Logger     *zap.Logger
}

type Config struct {
	MatchID string
	Slug    string
	Rescues *rescue.Manager
}

type window struct {
	timer clockwork.Timer
	gen   uint64
}

type Room struct {
	matchID string
	slug    string

	inbox  chan Msg
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	states  States
	members Members
	out     *dispatch.Dispatcher
	persist Persister
	clock   clockwork.Clock
	logger  *zap.Logger

	timer     *timer.Coordinator
	rescues   *rescue.Manager
	windows   map[string]window
	windowGen uint64

	saves sync.WaitGroup
}

// New starts the actor for a match whose state is already in the store.
func New(parent context.Context, deps Deps, cfg Config) (*Room, error) {
	s, err := deps.States.Get(cfg.MatchID)
	if err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Rescues == nil {
		cfg.Rescues = rescue.NewManager()
	}
	if cfg.Slug == "" {
		cfg.Slug = s.Slug
	}

	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		matchID: cfg.MatchID,
		slug:    cfg.Slug,
		inbox:   make(chan Msg, 64),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		states:  deps.States,
		members: deps.Members,
		out:     deps.Dispatcher,
		persist: deps.Persister,
		clock:   deps.Clock,
		logger:  deps.Logger.Named("room").With(zap.String("match_id", cfg.MatchID)),
		rescues: cfg.Rescues,
		windows: make(map[string]window),
	}
	r.timer = timer.NewCoordinator(ctx, deps.Clock, s.RemainingTimeSeconds, r.notifyTick)

	go r.loop()
	return r, nil
}

func (r *Room) MatchID() string { return r.matchID }
func (r *Room) Slug() string    { return r.slug }

// Name is the room name handed to clients on join.
func (r *Room) Name() string { return "match:" + r.matchID }

// Done is closed once the actor has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

// Inbox exposes the actor's queue.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Join registers conn with the room. The ack and the catch-up snapshot are
// sent from inside the actor so no broadcast can slip in between.
func (r *Room) Join(ctx context.Context, conn registry.Conn, role registry.Role, ackID string) (registry.Membership, error) {
	reply := make(chan JoinResult, 1)
	if err := r.send(ctx, Join{Conn: conn, Role: role, AckID: ackID, Reply: reply}); err != nil {
		return registry.Membership{}, err
	}
	select {
	case res := <-reply:
		return res.Membership, res.Err
	case <-r.done:
		return registry.Membership{}, ErrClosed
	case <-ctx.Done():
		return registry.Membership{}, ctx.Err()
	}
}

// Submit runs cmd on behalf of a client with the given role and returns the
// ack payload.
func (r *Room) Submit(ctx context.Context, role registry.Role, cmd Command) (any, error) {
	reply := make(chan Result, 1)
	if err := r.send(ctx, Do{Role: role, Cmd: cmd, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.Data, res.Err
	case <-r.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Room) Inspect(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := r.send(ctx, Inspect{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Shutdown stops the actor and its timers and waits for it to exit.
func (r *Room) Shutdown() {
	select {
	case r.inbox <- Shutdown{}:
	case <-r.done:
	}
	<-r.done
	r.saves.Wait()
}

// Retire stops the room unless it has members. The membership check runs in
// the actor, so a join queued ahead of it keeps the room alive and a join
// queued behind it sees ErrClosed.
func (r *Room) Retire() bool {
	reply := make(chan bool, 1)
	select {
	case r.inbox <- Retire{Reply: reply}:
	case <-r.done:
		r.saves.Wait()
		return true
	}
	select {
	case ok := <-reply:
		if !ok {
			return false
		}
	case <-r.done:
	}
	<-r.done
	r.saves.Wait()
	return true
}

func (r *Room) send(ctx context.Context, m Msg) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	select {
	case r.inbox <- m:
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- r.join(msg)

			case Do:
				r.handle(msg)

			case TimerFired:
				r.onTick(msg.Gen)

			case RescueWindowClosed:
				r.onWindowClosed(msg)

			case Inspect:
				msg.Reply <- r.view()

			case Shutdown:
				r.shutdown()
				return

			case Retire:
				if n := len(r.members.Members(r.matchID)); n > 0 {
					r.logger.Info("retire refused", zap.Int("members", n))
					msg.Reply <- false
					continue
				}
				r.shutdown()
				msg.Reply <- true
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	r.timer.Stop()
	for id, w := range r.windows {
		w.timer.Stop()
		delete(r.windows, id)
	}
	r.cancel()
	r.logger.Info("room stopped")
}

func (r *Room) join(msg Join) JoinResult {
	mem, err := r.members.Join(r.matchID, msg.Role, msg.Conn)
	if err != nil {
		return JoinResult{Err: err}
	}
	r.out.Ack(msg.Conn, msg.AckID, ackOK(joinReply(r, mem)))
	if err := r.out.SendTo(msg.Conn, dispatch.SnapshotOf(mem.Snapshot)); err != nil {
		r.logger.Error("snapshot rejected", zap.Error(err))
	}
	return JoinResult{Membership: mem}
}

func (r *Room) view() View {
	s, _ := r.states.Get(r.matchID)
	return View{
		State:   s,
		Timer:   r.timerView(),
		Rescues: r.rescues.List(),
		Members: len(r.members.Members(r.matchID)),

		StatusCounts: roster.Counts(s),
	}
}

func (r *Room) timerView() TimerView {
	return TimerView{State: r.timer.State(), TimeRemaining: r.timer.Remaining()}
}

// notifyTick runs on the ticker goroutine.
func (r *Room) notifyTick(gen uint64) {
	select {
	case r.inbox <- TimerFired{Gen: gen}:
	case <-r.ctx.Done():
	}
}

func (r *Room) onTick(gen uint64) {
	tick, ok := r.timer.Fire(gen)
	if !ok {
		return
	}
	if _, _, err := r.states.Mutate(r.matchID, engine.Mutation{RemainingTimeSeconds: &tick.Remaining}); err != nil {
		r.logger.Error("tick not applied", zap.Error(err))
		return
	}
	r.publish(dispatch.TimerUpdate{TimeRemaining: tick.Remaining})
	if tick.Ended {
		r.publish(dispatch.TimerEnded{})
	}
}

func (r *Room) armWindow(rescueID string, seconds int) {
	r.stopWindow(rescueID)
	r.windowGen++
	gen := r.windowGen
	t := r.clock.AfterFunc(time.Duration(seconds)*time.Second, func() {
		select {
		case r.inbox <- RescueWindowClosed{RescueID: rescueID, Gen: gen}:
		case <-r.ctx.Done():
		}
	})
	r.windows[rescueID] = window{timer: t, gen: gen}
}

// stopWindow reports whether a voting window was open.
func (r *Room) stopWindow(rescueID string) bool {
	w, ok := r.windows[rescueID]
	if !ok {
		return false
	}
	w.timer.Stop()
	delete(r.windows, rescueID)
	return true
}

func (r *Room) onWindowClosed(msg RescueWindowClosed) {
	w, ok := r.windows[msg.RescueID]
	if !ok || w.gen != msg.Gen {
		return
	}
	if _, err := r.closeRescue(msg.RescueID); err != nil {
		r.logger.Warn("voting window expired on a closed rescue",
			zap.String("rescue_id", msg.RescueID),
			zap.Error(err))
	}
}

func (r *Room) publish(ev dispatch.Event) {
	if _, err := r.out.Publish(r.matchID, ev); err != nil {
		r.logger.Error("broadcast dropped", zap.String("event", ev.Name()), zap.Error(err))
	}
}
