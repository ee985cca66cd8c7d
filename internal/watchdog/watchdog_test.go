package watchdog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	mu        sync.Mutex
	signals   chan Signal
	attached  int
	detached  int
	requests  int
	failUntil int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{signals: make(chan Signal)}
}

func (p *fakePlatform) Subscribe() (<-chan Signal, func()) {
	p.mu.Lock()
	p.attached++
	p.mu.Unlock()
	return p.signals, func() {
		p.mu.Lock()
		p.detached++
		p.mu.Unlock()
	}
}

func (p *fakePlatform) RequestFullscreen(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++
	if p.requests <= p.failUntil {
		return errors.New("blocked without user gesture")
	}
	return nil
}

func (p *fakePlatform) count(f *int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *f
}

type recorder struct {
	mu      sync.Mutex
	reasons []string
	onCall  func(n int)
}

func (r *recorder) ReportViolation(ctx context.Context, reason string) error {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	n := len(r.reasons)
	r.mu.Unlock()
	if r.onCall != nil {
		r.onCall(n)
	}
	return nil
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

func start(t *testing.T, w *Watchdog) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	return cancel, errc
}

func TestThreeViolationScenario(t *testing.T) {
	p := newFakePlatform()
	var cancel context.CancelFunc
	rec := &recorder{}
	rec.onCall = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	w := New(p, rec, zerolog.Nop(), WithRetryInterval(time.Hour))
	cancel, errc := start(t, w)

	p.signals <- FullscreenEntered
	p.signals <- FullscreenExited
	p.signals <- FullscreenEntered
	p.signals <- VisibilityHidden
	p.signals <- FullscreenExited

	require.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, []string{ReasonFullscreenExited, ReasonTabSwitched, ReasonFullscreenExited}, rec.get())
	assert.Equal(t, 1, p.count(&p.attached))
	assert.Equal(t, 1, p.count(&p.detached))
}

func TestReassertRetriesUntilFullscreen(t *testing.T) {
	p := newFakePlatform()
	p.failUntil = 4
	w := New(p, &recorder{}, zerolog.Nop(), WithRetryInterval(5*time.Millisecond))
	cancel, errc := start(t, w)
	defer cancel()

	p.signals <- FullscreenEntered
	p.signals <- FullscreenExited

	require.Eventually(t, func() bool { return p.count(&p.requests) >= 6 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Reasserting, w.State())

	p.signals <- FullscreenEntered
	require.Eventually(t, func() bool { return w.State() == Active }, time.Second, time.Millisecond)
	settled := p.count(&p.requests)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, p.count(&p.requests))

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, 1, p.count(&p.detached))
}

func TestReporterErrorIsSwallowed(t *testing.T) {
	p := newFakePlatform()
	calls := 0
	rep := ReporterFunc(func(ctx context.Context, reason string) error {
		calls++
		return errors.New("network down")
	})
	w := New(p, rep, zerolog.Nop(), WithRetryInterval(time.Hour))
	cancel, errc := start(t, w)

	p.signals <- FullscreenEntered
	p.signals <- VisibilityHidden
	p.signals <- VisibilityHidden
	cancel()

	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestRunReturnsWhenPlatformCloses(t *testing.T) {
	p := newFakePlatform()
	w := New(p, &recorder{}, zerolog.Nop())
	_, errc := start(t, w)

	close(p.signals)
	assert.NoError(t, <-errc)
	assert.Equal(t, 1, p.count(&p.detached))
}
