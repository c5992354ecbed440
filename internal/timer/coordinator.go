package timer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// TickInterval is the countdown resolution.
const TickInterval = time.Second

// Tick is what a running countdown reports each second.
type Tick struct {
	Remaining int
	Ended     bool
}

// Coordinator is the one authority for a match's clock. It is not safe for
// concurrent use: the owning room calls it from its own goroutine and gets
// woken through notify, which carries the generation the tick was armed with.
type Coordinator struct {
	ctx    context.Context
	clock  clockwork.Clock
	notify func(gen uint64)

	cd     Countdown
	gen    uint64
	ticker clockwork.Ticker
	cancel context.CancelFunc
}

func NewCoordinator(ctx context.Context, clock clockwork.Clock, seconds int, notify func(gen uint64)) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Coordinator{
		ctx:    ctx,
		clock:  clock,
		notify: notify,
		cd:     NewCountdown(seconds),
	}
}

func (c *Coordinator) State() State    { return c.cd.State() }
func (c *Coordinator) Remaining() int { return c.cd.Remaining() }

// Start begins ticking. It reports false when the timer was already running.
func (c *Coordinator) Start() (bool, error) {
	started, err := c.cd.Start()
	if err != nil || !started {
		return started, err
	}
	c.arm()
	return true, nil
}

// Pause is idempotent.
func (c *Coordinator) Pause() bool {
	if !c.cd.Pause() {
		return false
	}
	c.disarm()
	return true
}

// Reset cancels any pending tick and re-arms the countdown at seconds.
func (c *Coordinator) Reset(seconds int) error {
	if err := c.cd.Reset(seconds); err != nil {
		return err
	}
	c.disarm()
	return nil
}

// Fire handles a notification. Ticks from an older generation are dropped.
func (c *Coordinator) Fire(gen uint64) (Tick, bool) {
	if gen != c.gen || c.cancel == nil {
		return Tick{}, false
	}
	remaining, ended, ok := c.cd.Tick()
	if !ok {
		return Tick{}, false
	}
	if ended {
		c.disarm()
	}
	return Tick{Remaining: remaining, Ended: ended}, true
}

// Stop cancels the ticker for good; used when the room shuts down.
func (c *Coordinator) Stop() {
	c.disarm()
}

func (c *Coordinator) arm() {
	c.disarm()
	c.gen++
	gen := c.gen

	ctx, cancel := context.WithCancel(c.ctx)
	ticker := c.clock.NewTicker(TickInterval)
	c.ticker = ticker
	c.cancel = cancel

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				c.notify(gen)
			}
		}
	}()
}

func (c *Coordinator) disarm() {
	if c.cancel == nil {
		return
	}
	c.ticker.Stop()
	c.cancel()
	c.ticker = nil
	c.cancel = nil
	c.gen++
}
