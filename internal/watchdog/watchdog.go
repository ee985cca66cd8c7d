package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Platform is the kiosk the watchdog observes.
type Platform interface {
	// Subscribe attaches a listener. The returned func detaches it.
	Subscribe() (<-chan Signal, func())
	// RequestFullscreen asks the kiosk to enter fullscreen.
	RequestFullscreen(ctx context.Context) error
}

// Reporter receives violation reasons. Errors are the reporter's business;
// the watchdog only logs them.
type Reporter interface {
	ReportViolation(ctx context.Context, reason string) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, reason string) error

func (f ReporterFunc) ReportViolation(ctx context.Context, reason string) error {
	return f(ctx, reason)
}

// Watchdog drives a Machine from a Platform.
type Watchdog struct {
	platform Platform
	reporter Reporter
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	machine *Machine
}

// Option customizes a Watchdog.
type Option func(*Watchdog)

// WithRetryInterval sets how often fullscreen is re-requested while
// reasserting.
func WithRetryInterval(d time.Duration) Option {
	return func(w *Watchdog) {
		if d > 0 {
			w.interval = d
		}
	}
}

// New creates a watchdog awaiting fullscreen.
func New(platform Platform, reporter Reporter, log zerolog.Logger, opts ...Option) *Watchdog {
	w := &Watchdog{
		platform: platform,
		reporter: reporter,
		interval: time.Second,
		log:      log.With().Str("component", "watchdog").Logger(),
		machine:  NewMachine(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.State()
}

// Suppressed returns how many context-menu signals were swallowed.
func (w *Watchdog) Suppressed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.Suppressed()
}

// Run listens until ctx is cancelled or the platform closes the
// subscription. The listener is detached on return.
func (w *Watchdog) Run(ctx context.Context) error {
	signals, detach := w.platform.Subscribe()
	defer detach()

	w.log.Debug().Msg("Watchdog attached")
	defer w.log.Debug().Msg("Watchdog detached")

	w.requestFullscreen(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			w.handle(ctx, sig)

		case <-ticker.C:
			if w.State() == Reasserting {
				w.requestFullscreen(ctx)
			}
		}
	}
}

func (w *Watchdog) handle(ctx context.Context, sig Signal) {
	w.mu.Lock()
	from := w.machine.State()
	eff := w.machine.Handle(sig)
	to := w.machine.State()
	w.mu.Unlock()

	if from != to {
		w.log.Debug().Str("signal", string(sig)).Stringer("from", from).Stringer("to", to).Msg("State changed")
	}

	if eff.Reason != "" {
		w.log.Info().Str("reason", eff.Reason).Msg("Violation detected")
		if err := w.reporter.ReportViolation(ctx, eff.Reason); err != nil {
			w.log.Warn().Err(err).Str("reason", eff.Reason).Msg("Violation report failed")
		}
	}
	if eff.Reassert {
		w.requestFullscreen(ctx)
	}
}

func (w *Watchdog) requestFullscreen(ctx context.Context) {
	if err := w.platform.RequestFullscreen(ctx); err != nil {
		w.log.Debug().Err(err).Msg("Fullscreen request failed, will retry")
	}
}
