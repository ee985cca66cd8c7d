// Package timer implements the attempt countdown shown next to every
// question. The countdown is seeded from the server's remaining time and only
// extrapolates it for display: the server decides when an attempt is late.
package timer

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Step is how much time a single tick removes.
const Step = time.Second

// State of a Countdown.
type State int

const (
	Idle State = iota
	Running
	Expired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Expired:
		return "expired"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Countdown counts an attempt's remaining time down to zero and calls the
// timeout callback exactly once when it gets there.
type Countdown struct {
	mu        sync.Mutex
	state     State
	remaining time.Duration
	interval  time.Duration
	onTimeout func()
	done      chan struct{}
}

// Option customizes a Countdown.
type Option func(*Countdown)

// WithInterval sets the wall-clock time between ticks in Run. Each tick
// still removes one Step.
func WithInterval(d time.Duration) Option {
	return func(c *Countdown) {
		if d > 0 {
			c.interval = d
		}
	}
}

// New creates an idle countdown. onTimeout may be nil.
func New(onTimeout func(), opts ...Option) *Countdown {
	c := &Countdown{
		interval:  Step,
		onTimeout: onTimeout,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start seeds the countdown with the server's remaining time. Calling it
// again while running re-syncs to the new value. Once expired or stopped it
// has no effect.
func (c *Countdown) Start(remaining time.Duration) {
	if remaining < 0 {
		remaining = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Expired {
		return
	}
	c.state = Running
	c.remaining = remaining
}

// Tick advances the countdown by one Step. It reports whether this tick
// expired the countdown, in which case the timeout callback has run.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return false
	}
	if c.remaining > Step {
		c.remaining -= Step
		c.mu.Unlock()
		return false
	}
	c.remaining = 0
	c.state = Expired
	close(c.done)
	fn := c.onTimeout
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Run ticks once per interval until the countdown expires, is stopped or
// ctx is cancelled.
func (c *Countdown) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case <-ticker.C:
			if c.Tick() {
				return nil
			}
		}
	}
}

// Stop halts the countdown for good without calling the timeout callback.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Expired {
		return
	}
	c.state = Expired
	close(c.done)
}

// Remaining returns the time left.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// State returns the current state.
func (c *Countdown) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the countdown expires or is stopped.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

// Format renders d as HH:MM:SS, truncating to whole seconds.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
