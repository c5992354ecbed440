// Package registry tracks which connections are in which match room and
// evicts rooms that stay empty past a grace period.
package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quiz-match-backend/internal/engine"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
)

const DefaultEvictionGrace = 3 * time.Minute

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleScreen   Role = "screen"
	RoleAudience Role = "audience"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleScreen || r == RoleAudience
}

// ParseRole maps a handshake role to a Role. Clients that send none are
// audience members.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return RoleAudience, nil
	}
	if !r.Valid() {
		return "", matcherr.Validation("unknown role %q", s)
	}
	return r, nil
}

// Conn is the transport handle of one client. Send must never block.
type Conn interface {
	ID() string
	Send(frame []byte) bool
	Close(reason string)
}

// Connection describes a member of a room.
type Connection struct {
	ConnectionID string    `json:"connectionId"`
	Role         Role      `json:"role"`
	MatchID      string    `json:"matchId"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Membership is returned on join: the caller's entry plus the state it needs
// to catch up.
type Membership struct {
	Connection Connection
	Snapshot   engine.MatchState
}

// Snapshotter is the read side of the state store.
type Snapshotter interface {
	Get(matchID string) (engine.MatchState, error)
}

type Config struct {
	States Snapshotter
	Clock  clockwork.Clock
	Grace  time.Duration
	Logger *zap.Logger
}

type member struct {
	info Connection
	conn Conn
}

type eviction struct {
	timer clockwork.Timer
	gen   uint64
}

type Registry struct {
	states Snapshotter
	clock  clockwork.Clock
	grace  time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	rooms     map[string]map[string]*member
	byConn    map[string]string
	evictions map[string]eviction
	evictGen  uint64
	onEvict   func(matchID string)
}

func New(cfg Config) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultEvictionGrace
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Registry{
		states:    cfg.States,
		clock:     cfg.Clock,
		grace:     cfg.Grace,
		logger:    cfg.Logger,
		rooms:     make(map[string]map[string]*member),
		byConn:    make(map[string]string),
		evictions: make(map[string]eviction),
	}
}

// OnEvict sets the callback run when an empty room's grace period expires.
func (r *Registry) OnEvict(fn func(matchID string)) {
	r.mu.Lock()
	r.onEvict = fn
	r.mu.Unlock()
}

// Join adds conn to the match room and returns the snapshot the client needs
// to catch up. A connection already in another room is moved.
func (r *Registry) Join(matchID string, role Role, conn Conn) (Membership, error) {
	if !role.Valid() {
		return Membership{}, matcherr.Validation("unknown role %q", role)
	}
	snapshot, err := r.states.Get(matchID)
	if err != nil {
		return Membership{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[conn.ID()]; ok && prev != matchID {
		r.removeLocked(conn.ID())
	}
	room := r.rooms[matchID]
	if room == nil {
		room = make(map[string]*member)
		r.rooms[matchID] = room
	}
	info := Connection{
		ConnectionID: conn.ID(),
		Role:         role,
		MatchID:      matchID,
		JoinedAt:     r.clock.Now(),
	}
	room[conn.ID()] = &member{info: info, conn: conn}
	r.byConn[conn.ID()] = matchID
	r.cancelEvictionLocked(matchID)

	r.logger.Debug("joined room",
		zap.String("match_id", matchID),
		zap.String("connection_id", conn.ID()),
		zap.String("role", string(role)),
		zap.Int("members", len(room)))

	return Membership{Connection: info, Snapshot: snapshot}, nil
}

// Leave removes the connection from whatever room it is in.
func (r *Registry) Leave(connectionID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(connectionID)
}

// ArmIfEmpty starts the eviction countdown for a room nobody has joined yet.
func (r *Registry) ArmIfEmpty(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rooms[matchID]) == 0 {
		r.armEvictionLocked(matchID)
	}
}

// Forget drops a room and any pending eviction without firing the callback.
func (r *Registry) Forget(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelEvictionLocked(matchID)
	for id := range r.rooms[matchID] {
		delete(r.byConn, id)
	}
	delete(r.rooms, matchID)
}

// BroadcastTargets returns the connections in a room, optionally limited to
// the given roles.
func (r *Registry) BroadcastTargets(matchID string, roles ...Role) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[matchID]
	out := make([]Conn, 0, len(room))
	for _, m := range room {
		if len(roles) > 0 && !hasRole(roles, m.info.Role) {
			continue
		}
		out = append(out, m.conn)
	}
	return out
}

func (r *Registry) Members(matchID string) []Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[matchID]
	out := make([]Connection, 0, len(room))
	for _, m := range room {
		out = append(out, m.info)
	}
	return out
}

// Lookup returns the membership entry for a connection.
func (r *Registry) Lookup(connectionID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matchID, ok := r.byConn[connectionID]
	if !ok {
		return Connection{}, false
	}
	return r.rooms[matchID][connectionID].info, true
}

type Stats struct {
	Rooms            int          `json:"rooms"`
	Connections      int          `json:"connections"`
	ByRole           map[Role]int `json:"byRole"`
	PendingEvictions int          `json:"pendingEvictions"`
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{
		Rooms:            len(r.rooms),
		ByRole:           map[Role]int{RoleAdmin: 0, RoleScreen: 0, RoleAudience: 0},
		PendingEvictions: len(r.evictions),
	}
	for _, room := range r.rooms {
		for _, m := range room {
			st.Connections++
			st.ByRole[m.info.Role]++
		}
	}
	return st
}

func (r *Registry) removeLocked(connectionID string) (Connection, bool) {
	matchID, ok := r.byConn[connectionID]
	if !ok {
		return Connection{}, false
	}
	delete(r.byConn, connectionID)

	room := r.rooms[matchID]
	m := room[connectionID]
	delete(room, connectionID)
	if len(room) == 0 {
		r.armEvictionLocked(matchID)
	}

	r.logger.Debug("left room",
		zap.String("match_id", matchID),
		zap.String("connection_id", connectionID),
		zap.Int("members", len(room)))
	return m.info, true
}

func (r *Registry) armEvictionLocked(matchID string) {
	r.cancelEvictionLocked(matchID)
	r.evictGen++
	gen := r.evictGen
	t := r.clock.AfterFunc(r.grace, func() { r.expire(matchID, gen) })
	r.evictions[matchID] = eviction{timer: t, gen: gen}
}

func (r *Registry) cancelEvictionLocked(matchID string) {
	if ev, ok := r.evictions[matchID]; ok {
		ev.timer.Stop()
		delete(r.evictions, matchID)
	}
}

func (r *Registry) expire(matchID string, gen uint64) {
	r.mu.Lock()
	ev, ok := r.evictions[matchID]
	if !ok || ev.gen != gen || len(r.rooms[matchID]) > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.evictions, matchID)
	delete(r.rooms, matchID)
	fn := r.onEvict
	r.mu.Unlock()

	r.logger.Info("evicting idle room", zap.String("match_id", matchID), zap.Duration("grace", r.grace))
	if fn != nil {
		fn(matchID)
	}
}

func hasRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
