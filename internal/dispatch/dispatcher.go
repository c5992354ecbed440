// Package dispatch fans room events out to connected clients.
package dispatch

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quiz-match-backend/internal/registry"
	"github.com/DoyleJ11/quiz-match-backend/pkg/types"
)

// Targets resolves the connections of a room.
type Targets interface {
	BroadcastTargets(matchID string, roles ...registry.Role) []registry.Conn
}

type Dispatcher struct {
	targets Targets
	logger  *zap.Logger
}

func New(targets Targets, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{targets: targets, logger: logger}
}

// Encode validates ev and renders its wire frame.
func Encode(ev Event) ([]byte, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	frame, err := json.Marshal(types.ServerMessage{Event: ev.Name(), Data: ev})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Name(), err)
	}
	return frame, nil
}

// Publish sends ev to every member of the room whose role is in roles, or to
// the event's default audience when roles is empty. The frame is encoded once.
// A client whose queue is full is dropped; Publish never waits on a socket.
// It returns the number of clients that accepted the frame.
func (d *Dispatcher) Publish(matchID string, ev Event, roles ...registry.Role) (int, error) {
	frame, err := Encode(ev)
	if err != nil {
		d.logger.Error("refusing malformed event",
			zap.String("match_id", matchID),
			zap.String("event", ev.Name()),
			zap.Error(err))
		return 0, err
	}
	if len(roles) == 0 {
		roles = Roles(ev)
	}

	delivered := 0
	for _, c := range d.targets.BroadcastTargets(matchID, roles...) {
		if d.deliver(c, frame, ev.Name()) {
			delivered++
		}
	}
	return delivered, nil
}

// SendTo delivers ev to a single client.
func (d *Dispatcher) SendTo(c registry.Conn, ev Event) error {
	frame, err := Encode(ev)
	if err != nil {
		return err
	}
	d.deliver(c, frame, ev.Name())
	return nil
}

// Ack answers the command identified by ackID.
func (d *Dispatcher) Ack(c registry.Conn, ackID string, ack types.Ack) bool {
	frame, err := json.Marshal(types.ServerMessage{Event: types.EventAck, Ack: ackID, Data: ack})
	if err != nil {
		d.logger.Error("encode ack", zap.String("connection_id", c.ID()), zap.Error(err))
		return false
	}
	return d.deliver(c, frame, types.EventAck)
}

func (d *Dispatcher) deliver(c registry.Conn, frame []byte, event string) bool {
	if c.Send(frame) {
		return true
	}
	d.logger.Warn("dropping slow client",
		zap.String("connection_id", c.ID()),
		zap.String("event", event))
	c.Close("send queue full")
	return false
}
