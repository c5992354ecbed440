package timer

import (
	"errors"
	"testing"

	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
)

func TestCountdown_StateMachine(t *testing.T) {
	c := NewCountdown(2)
	if c.State() != StateIdle {
		t.Fatalf("new countdown should be idle, got %s", c.State())
	}
	if _, _, ok := c.Tick(); ok {
		t.Fatalf("idle countdown must not tick")
	}

	if started, err := c.Start(); err != nil || !started {
		t.Fatalf("start: %v %v", started, err)
	}
	if rem, ended, ok := c.Tick(); !ok || ended || rem != 1 {
		t.Fatalf("first tick: rem=%d ended=%v ok=%v", rem, ended, ok)
	}
	c.Pause()
	if _, _, ok := c.Tick(); ok {
		t.Fatalf("paused countdown must not tick")
	}
	c.Start()
	if rem, ended, ok := c.Tick(); !ok || !ended || rem != 0 {
		t.Fatalf("final tick: rem=%d ended=%v ok=%v", rem, ended, ok)
	}
	if _, ended, ok := c.Tick(); ok || ended {
		t.Fatalf("ended countdown reported a second terminal tick")
	}
}

func TestCountdown_ResetRejectsNegative(t *testing.T) {
	c := NewCountdown(5)
	if err := c.Reset(-1); !errors.Is(err, matcherr.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	if c.Remaining() != 5 {
		t.Fatalf("rejected reset changed remaining to %d", c.Remaining())
	}
}
