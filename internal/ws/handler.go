// Package ws is the socket gateway: it upgrades connections, performs the
// join handshake and routes every later frame to the client's room.
package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quiz-match-backend/internal/dispatch"
	"github.com/DoyleJ11/quiz-match-backend/internal/matchdata"
	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
	"github.com/DoyleJ11/quiz-match-backend/internal/registry"
	"github.com/DoyleJ11/quiz-match-backend/internal/room"
	"github.com/DoyleJ11/quiz-match-backend/pkg/types"
)

const (
	DefaultWriteTimeout = 3 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
	DefaultPingInterval = 20 * time.Second
	DefaultSendBuffer   = 32

	readLimit = 64 << 10
)

// Rooms resolves a match to its live room.
type Rooms interface {
	Resolve(ctx context.Context, ref matchdata.MatchRef) (*room.Room, error)
}

// Leaver drops a connection from its room.
type Leaver interface {
	Leave(connectionID string) (registry.Connection, bool)
}

type Config struct {
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration // how long a ping waits for its pong
	PingInterval   time.Duration
	SendBuffer     int
	OperatorToken  string
	OriginPatterns []string
}

type Deps struct {
	Rooms      Rooms
	Members    Leaver
	Dispatcher *dispatch.Dispatcher
	Logger     *zap.Logger
}

// session is the gateway's view of one connection.
type session struct {
	client *client
	room   *room.Room
	role   registry.Role
}

type gateway struct {
	Deps
	cfg    Config
	logger *zap.Logger
}

func Handler(deps Deps, cfg Config) http.HandlerFunc {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	g := &gateway{Deps: deps, cfg: cfg, logger: deps.Logger.Named("ws")}
	return g.serve
}

func (g *gateway) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.cfg.OriginPatterns,
	})
	if err != nil {
		g.logger.Debug("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")
	conn.SetReadLimit(readLimit)

	c := newClient(uuid.NewString(), conn, g.cfg.SendBuffer)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go c.writeLoop(ctx, g.cfg.WriteTimeout, g.logger)
	go c.pingLoop(ctx, g.cfg.PingInterval, g.cfg.IdleTimeout, g.logger)

	s := &session{client: c}
	defer func() {
		g.Members.Leave(c.id)
		c.Close("disconnected")
	}()
	g.logger.Debug("client connected", zap.String("connection_id", c.id), zap.String("remote", r.RemoteAddr))

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				g.logger.Debug("read ended", zap.String("connection_id", c.id), zap.Error(err))
			}
			return
		}

		var msg types.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.reply(s, "", nil, matcherr.Validation("bad json"))
			continue
		}
		g.route(ctx, s, msg)
	}
}

func (g *gateway) route(ctx context.Context, s *session, msg types.ClientMessage) {
	switch msg.Event {
	case EventJoin, EventJoinAlias:
		g.join(ctx, s, msg)
		return
	}
	if s.room == nil {
		g.reply(s, msg.Ack, nil, matcherr.Validation("%s: join a match first", msg.Event))
		return
	}
	if err := addressedTo(s.room, msg); err != nil {
		g.reply(s, msg.Ack, nil, err)
		return
	}
	cmd, err := toRoomCommand(msg.Event, msg.Data)
	if err != nil {
		g.reply(s, msg.Ack, nil, err)
		return
	}
	data, err := s.room.Submit(ctx, s.role, cmd)
	g.reply(s, msg.Ack, data, err)
}

// join resolves the match and enters its room. On success the room itself
// sends the ack followed by the catch-up snapshot.
func (g *gateway) join(ctx context.Context, s *session, msg types.ClientMessage) {
	var req types.JoinRequest
	if err := decode(msg.Event, msg.Data, &req); err != nil {
		g.reply(s, msg.Ack, nil, err)
		return
	}
	if req.MatchID == "" && req.MatchSlug == "" {
		g.reply(s, msg.Ack, nil, matcherr.Validation("%s: matchSlug or matchId is required", msg.Event))
		return
	}
	role, err := registry.ParseRole(req.Role)
	if err != nil {
		g.reply(s, msg.Ack, nil, err)
		return
	}
	if role == registry.RoleAdmin && !g.operatorTokenOK(req.Token) {
		g.reply(s, msg.Ack, nil, matcherr.Validation("operator token rejected"))
		return
	}

	ref := matchdata.MatchRef{MatchID: req.MatchID, Slug: req.MatchSlug}
	// A room can be evicted between Resolve and Join; one retry bootstraps a
	// fresh one.
	for attempt := 0; attempt < 2; attempt++ {
		rm, err := g.Rooms.Resolve(ctx, ref)
		if err != nil {
			g.reply(s, msg.Ack, nil, err)
			return
		}
		_, err = rm.Join(ctx, s.client, role, msg.Ack)
		if errors.Is(err, room.ErrClosed) {
			continue
		}
		if err != nil {
			g.reply(s, msg.Ack, nil, err)
			return
		}
		s.room, s.role = rm, role
		g.logger.Info("client joined",
			zap.String("connection_id", s.client.id),
			zap.String("match_id", rm.MatchID()),
			zap.String("role", string(role)))
		return
	}
	g.reply(s, msg.Ack, nil, room.ErrClosed)
}

// addressedTo rejects commands that name a match other than the joined one.
// Commands that name none run against the joined match.
func addressedTo(rm *room.Room, msg types.ClientMessage) error {
	if len(msg.Data) == 0 {
		return nil
	}
	var ref types.MatchRequest
	if err := json.Unmarshal(msg.Data, &ref); err != nil {
		return nil // toRoomCommand reports malformed data
	}
	for _, named := range []string{ref.Match, ref.MatchID} {
		if named != "" && named != rm.MatchID() && named != rm.Slug() {
			return matcherr.Validation("%s: connection joined %s, not %q", msg.Event, rm.Slug(), named)
		}
	}
	return nil
}

func (g *gateway) operatorTokenOK(token string) bool {
	if g.cfg.OperatorToken == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(g.cfg.OperatorToken)) == 1
}

func (g *gateway) reply(s *session, ackID string, data any, err error) {
	if err != nil {
		g.logger.Debug("command failed",
			zap.String("connection_id", s.client.id),
			zap.String("kind", matcherr.Kind(err)),
			zap.Error(err))
		g.Dispatcher.Ack(s.client, ackID, types.Ack{Success: false, Message: err.Error()})
		return
	}
	g.Dispatcher.Ack(s.client, ackID, types.Ack{Success: true, Data: data})
}
