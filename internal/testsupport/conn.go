// Package testsupport provides in-memory fakes shared by package tests.
package testsupport

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// Frame is a decoded server frame.
type Frame struct {
	Event string          `json:"event"`
	Ack   string          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// Conn is a registry.Conn that records frames on a buffered channel. A full
// buffer makes Send fail, like a slow socket.
type Conn struct {
	id     string
	frames chan []byte

	mu     sync.Mutex
	closed bool
	reason string
}

func NewConn(id string, buffer int) *Conn {
	return &Conn{id: id, frames: make(chan []byte, buffer)}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.frames <- frame:
		return true
	default:
		return false
	}
}

func (c *Conn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.reason = reason
}

func (c *Conn) Closed() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.reason
}

// Recv waits for the next frame.
func (c *Conn) Recv(t *testing.T, within time.Duration) Frame {
	t.Helper()
	select {
	case raw := <-c.frames:
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("decode frame %s: %v", raw, err)
		}
		return f
	case <-time.After(within):
		t.Fatalf("conn %s: timed out waiting for frame", c.id)
		return Frame{}
	}
}

// RecvEvent skips frames until one named event arrives.
func (c *Conn) RecvEvent(t *testing.T, event string, within time.Duration) Frame {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			t.Fatalf("conn %s: timed out waiting for %q", c.id, event)
		}
		f := c.Recv(t, left)
		if f.Event == event {
			return f
		}
	}
}

// RecvNone asserts no frame arrives within the window.
func (c *Conn) RecvNone(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case raw := <-c.frames:
		t.Fatalf("conn %s: expected no frame, got %s", c.id, raw)
	case <-time.After(within):
	}
}

// Decode unmarshals a frame's data into v.
func Decode(t *testing.T, f Frame, v any) {
	t.Helper()
	if err := json.Unmarshal(f.Data, v); err != nil {
		t.Fatalf("decode %s payload: %v", f.Event, err)
	}
}
