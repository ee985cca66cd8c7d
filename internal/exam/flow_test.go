package exam

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/apitest"
	"github.com/stemsi/exstem-client/internal/client"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/session"
	"github.com/stemsi/exstem-client/internal/watchdog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type portalFixture struct {
	srv   *apitest.Server
	store *session.Store
	api   *client.Client
}

func newPortal(t *testing.T, questions int) *portalFixture {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	id := srv.AddStudent(7, "Ayu", "ayu@example.com", "secret123")
	srv.SeedExam(1, questions)

	store := session.NewStore(session.NewMemoryStorage(), zerolog.Nop())
	require.NoError(t, store.SetIdentity(context.Background(), id))

	cfg := &config.Config{APIBaseURL: srv.URL, RequestTimeout: 5 * time.Second}
	return &portalFixture{srv: srv, store: store, api: client.New(cfg, store, zerolog.Nop())}
}

func TestBeginRequiresStudent(t *testing.T) {
	p := newPortal(t, 1)
	require.NoError(t, p.store.Clear(context.Background()))

	_, _, err := Begin(context.Background(), p.api, p.store, 1)
	assert.ErrorIs(t, err, client.ErrAuthRequired)
	assert.Equal(t, 0, p.srv.Calls(apitest.EPStart))
}

func TestBeginStartsThenResumes(t *testing.T) {
	p := newPortal(t, 1)
	ctx := context.Background()

	ref, resumed, err := Begin(ctx, p.api, p.store, 1)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.True(t, ref.Valid())

	again, resumed, err := Begin(ctx, p.api, p.store, 1)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, ref, again)
	assert.Equal(t, 1, p.srv.Calls(apitest.EPStart))
}

func TestBeginUnknownExam(t *testing.T) {
	p := newPortal(t, 1)
	_, _, err := Begin(context.Background(), p.api, p.store, 42)
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestFullAttemptAgainstPortal(t *testing.T) {
	p := newPortal(t, 3)
	ctx := context.Background()

	ref, _, err := Begin(ctx, p.api, p.store, 1)
	require.NoError(t, err)
	c := NewController(p.api, ref, zerolog.Nop())
	defer c.Close()
	require.NoError(t, c.Load(ctx))

	require.NoError(t, c.Select(model.OptionA))
	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.Skip())
	require.NoError(t, c.Select(model.OptionC))

	p.srv.FailNext(apitest.EPResponses, http.StatusBadGateway)
	err = c.Next(ctx)
	require.Error(t, err)
	assert.Contains(t, UserMessage(err), "try again")

	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.Submit(ctx, TriggerManual))
	require.NoError(t, c.Submit(ctx, TriggerManual))

	state, ok := p.srv.Attempt(ref.AttemptID)
	require.True(t, ok)
	assert.Equal(t, model.AttemptStatusSubmitted, state.Status)
	assert.Equal(t, map[int]model.Option{101: model.OptionA, 103: model.OptionC}, state.Responses)
	assert.Equal(t, 1, p.srv.Calls(apitest.EPSubmit))
}

// kiosk is a scripted watchdog platform.
type kiosk struct {
	signals chan watchdog.Signal
}

func (k *kiosk) Subscribe() (<-chan watchdog.Signal, func()) { return k.signals, func() {} }

func (k *kiosk) RequestFullscreen(ctx context.Context) error { return nil }

func TestWatchdogDisqualifiesAgainstPortal(t *testing.T) {
	p := newPortal(t, 2)
	ctx := context.Background()

	ref, _, err := Begin(ctx, p.api, p.store, 1)
	require.NoError(t, err)
	c := NewController(p.api, ref, zerolog.Nop(), WithTickInterval(time.Hour))
	defer c.Close()
	require.NoError(t, c.Load(ctx))

	k := &kiosk{signals: make(chan watchdog.Signal)}
	w := watchdog.New(k, c, zerolog.Nop(), watchdog.WithRetryInterval(time.Hour))

	wctx, stop := context.WithCancel(ctx)
	defer stop()
	go w.Run(wctx)

	res := make(chan Outcome, 1)
	go func() {
		o, _ := c.Run(ctx)
		res <- o
	}()

	for _, sig := range []watchdog.Signal{
		watchdog.FullscreenEntered,
		watchdog.FullscreenExited,
		watchdog.FullscreenEntered,
		watchdog.VisibilityHidden,
		watchdog.FullscreenEntered,
		watchdog.FullscreenExited,
	} {
		k.signals <- sig
	}

	select {
	case o := <-res:
		assert.Equal(t, OutcomeDisqualified, o.Kind)
		assert.Equal(t, 3, o.Flags)
	case <-time.After(5 * time.Second):
		t.Fatal("attempt was not disqualified")
	}

	// Later violations never reach the portal.
	k.signals <- watchdog.FullscreenEntered
	k.signals <- watchdog.VisibilityHidden
	k.signals <- watchdog.FullscreenExited
	stop()

	state, _ := p.srv.Attempt(ref.AttemptID)
	assert.Equal(t, []string{"Fullscreen exited", "Tab switched", "Fullscreen exited"}, state.Reasons)
	assert.Equal(t, model.AttemptStatusDisqualified, state.Status)
	assert.Equal(t, 3, p.srv.Calls(apitest.EPFlags))
	assert.Equal(t, 0, p.srv.Calls(apitest.EPSubmit))
}
