// Package timer drives the single countdown each match owns.
package timer

import "github.com/DoyleJ11/quiz-match-backend/internal/matcherr"

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
)

// Countdown is the clock-free state machine behind a Coordinator.
type Countdown struct {
	state     State
	remaining int
}

func NewCountdown(seconds int) Countdown {
	if seconds < 0 {
		seconds = 0
	}
	return Countdown{state: StateIdle, remaining: seconds}
}

func (c *Countdown) State() State    { return c.state }
func (c *Countdown) Remaining() int { return c.remaining }

// Start moves idle or paused to running. Starting a running countdown is a
// no-op and reports false.
func (c *Countdown) Start() (bool, error) {
	switch c.state {
	case StateRunning:
		return false, nil
	case StateEnded:
		return false, matcherr.InvalidTransition("timer has ended, reset it first")
	}
	if c.remaining == 0 {
		return false, matcherr.InvalidTransition("timer has no time remaining")
	}
	c.state = StateRunning
	return true, nil
}

// Pause stops a running countdown. Any other state is left alone.
func (c *Countdown) Pause() bool {
	if c.state != StateRunning {
		return false
	}
	c.state = StatePaused
	return true
}

func (c *Countdown) Reset(seconds int) error {
	if seconds < 0 {
		return matcherr.Validation("timer seconds must be >= 0, got %d", seconds)
	}
	c.state = StateIdle
	c.remaining = seconds
	return nil
}

// Tick consumes one second. ended is true exactly once, on the tick that
// reaches zero. ok is false when the countdown is not running.
func (c *Countdown) Tick() (remaining int, ended bool, ok bool) {
	if c.state != StateRunning {
		return c.remaining, false, false
	}
	c.remaining--
	if c.remaining <= 0 {
		c.remaining = 0
		c.state = StateEnded
		return 0, true, true
	}
	return c.remaining, false, true
}
