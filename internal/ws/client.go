package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// client is one socket. The room side only ever calls Send and Close; the
// socket is written from writeLoop alone.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
	reason    string
}

func newClient(id string, conn *websocket.Conn, buffer int) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

// Send queues a frame. It never blocks; false means the queue is full or the
// client is gone.
func (c *client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

func (c *client) writeLoop(ctx context.Context, timeout time.Duration, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			_ = c.conn.Close(websocket.StatusPolicyViolation, c.reason)
			return
		case frame := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, timeout)
			err := c.conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				logger.Debug("write failed", zap.String("connection_id", c.id), zap.Error(err))
				c.Close("write failed")
			}
		}
	}
}

// pingLoop is the liveness check. A ping that gets no pong within timeout
// closes the client.
func (c *client) pingLoop(ctx context.Context, interval, timeout time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, timeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				logger.Debug("ping failed", zap.String("connection_id", c.id), zap.Error(err))
				c.Close("ping timeout")
				return
			}
		}
	}
}
