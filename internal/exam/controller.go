// Package exam orchestrates one exam attempt: loading it, moving through the
// question queue, committing answers, reporting violations and submitting.
package exam

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/client"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/timer"
	"golang.org/x/sync/errgroup"
)

// API is the part of the portal client the controller uses.
// *client.Client satisfies it.
type API interface {
	GetQuestions(ctx context.Context, ref model.AttemptRef) ([]model.Question, error)
	GetProgress(ctx context.Context, ref model.AttemptRef) (*model.Progress, error)
	GetRemainingTime(ctx context.Context, ref model.AttemptRef) (*model.RemainingTime, error)
	SubmitResponse(ctx context.Context, ref model.AttemptRef, req model.ResponseRequest) error
	FlagViolation(ctx context.Context, ref model.AttemptRef, req model.FlagRequest) (*model.FlagResult, error)
	SubmitAttempt(ctx context.Context, ref model.AttemptRef) error
}

// Trigger records what caused a submission.
type Trigger string

const (
	TriggerManual  Trigger = "manual"
	TriggerTimeout Trigger = "timeout"
)

// OutcomeKind is how an attempt ended.
type OutcomeKind string

const (
	OutcomeCompleted    OutcomeKind = "completed"
	OutcomeDisqualified OutcomeKind = "disqualified"
)

// Outcome is the terminal result of an attempt.
type Outcome struct {
	Kind    OutcomeKind
	Trigger Trigger // empty when disqualified
	Flags   int
}

// View is a consistent snapshot of the attempt for rendering.
type View struct {
	Loaded       bool
	Question     *model.Question
	Position     int // 0-based
	Total        int
	Pending      model.Option
	Answer       model.Option // committed answer of the current question
	Answered     int
	Flags        int
	MaxFlags     int
	Remaining    time.Duration
	Submitted    bool
	Disqualified bool
	Err          error
}

// Locked reports whether the current question can no longer be answered.
func (v *View) Locked() bool {
	return v.Answer != "" || v.Submitted
}

// Controller runs one attempt. Operations are serialized: each runs to
// completion, network calls included, before the next starts. View may be
// called at any time.
type Controller struct {
	api      API
	ref      model.AttemptRef
	log      zerolog.Logger
	maxFlags int
	interval time.Duration

	life   context.Context
	cancel context.CancelFunc

	op sync.Mutex

	mu           sync.RWMutex
	loaded       bool
	questions    map[int]model.Question
	queue        []int
	cursor       int
	responses    map[int]model.Option
	pending      model.Option
	flags        int
	submitted    bool
	disqualified bool
	lastErr      error

	countdown *timer.Countdown
	timeout   chan struct{}

	finishOnce sync.Once
	done       chan struct{}
	outcome    Outcome
}

// Option customizes a Controller.
type Option func(*Controller)

// WithMaxFlags sets the violation threshold shown to the student.
func WithMaxFlags(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxFlags = n
		}
	}
}

// WithTickInterval sets the countdown tick interval.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// NewController creates a controller for the attempt ref. Call Load before
// anything else and Close when done.
func NewController(api API, ref model.AttemptRef, log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		api:       api,
		ref:       ref,
		maxFlags:  3,
		interval:  timer.Step,
		responses: make(map[int]model.Option),
		questions: make(map[int]model.Question),
		timeout:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = log.With().
		Str("component", "exam_controller").
		Int("exam_id", ref.ExamID).
		Int("attempt_id", ref.AttemptID).
		Logger()
	c.life, c.cancel = context.WithCancel(context.Background())
	c.countdown = timer.New(func() {
		select {
		case c.timeout <- struct{}{}:
		default:
		}
	}, timer.WithInterval(c.interval))
	return c
}

// Ref returns the attempt the controller drives.
func (c *Controller) Ref() model.AttemptRef { return c.ref }

// bind derives a context that is also cancelled by Close.
func (c *Controller) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) closed() bool { return c.life.Err() != nil }

func (c *Controller) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Load fetches the questions, violation count and remaining time
// concurrently, then rebuilds the queue and re-syncs the countdown. On
// failure the previous state is kept.
func (c *Controller) Load(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	if c.closed() {
		return ErrClosed
	}
	if !c.ref.Valid() {
		err := &client.Error{Kind: client.KindValidationFailed, Op: "load attempt", Message: "missing attempt id"}
		c.setErr(err)
		return err
	}

	ctx, cancel := c.bind(ctx)
	defer cancel()

	var (
		qs   []model.Question
		prog *model.Progress
		rt   *model.RemainingTime
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		qs, err = c.api.GetQuestions(gctx, c.ref)
		return err
	})
	g.Go(func() error {
		var err error
		prog, err = c.api.GetProgress(gctx, c.ref)
		return err
	})
	g.Go(func() error {
		var err error
		rt, err = c.api.GetRemainingTime(gctx, c.ref)
		return err
	})
	err := g.Wait()
	if c.closed() {
		return ErrClosed
	}
	if err != nil {
		err = &ActionError{Action: ActionLoad, Err: err}
		c.log.Warn().Err(err).Msg("Load failed")
		c.setErr(err)
		return err
	}

	if prog == nil {
		prog = &model.Progress{}
	}
	if rt == nil {
		rt = &model.RemainingTime{}
	}

	byID := make(map[int]model.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}

	c.mu.Lock()
	c.questions = byID
	c.queue = buildQueue(qs, c.responses)
	c.cursor = 0
	c.pending = ""
	c.flags = prog.FlagsCount
	c.loaded = true
	c.lastErr = nil
	c.mu.Unlock()

	remaining := time.Duration(rt.RemainingMS) * time.Millisecond
	c.countdown.Start(remaining)

	c.log.Info().
		Int("questions", len(qs)).
		Int("flags", prog.FlagsCount).
		Dur("remaining", remaining).
		Msg("Attempt loaded")
	return nil
}

// currentID returns the question id under the cursor. Callers hold op.
func (c *Controller) currentID() (int, bool) {
	if c.cursor < 0 || c.cursor >= len(c.queue) {
		return 0, false
	}
	return c.queue[c.cursor], true
}

// ready checks the attempt can still be worked on. Callers hold op.
func (c *Controller) ready() error {
	if c.closed() {
		return ErrClosed
	}
	if !c.loaded {
		return ErrNotLoaded
	}
	if c.submitted {
		return ErrAttemptClosed
	}
	return nil
}

// Select stores option as the pending choice for the current question.
func (c *Controller) Select(option model.Option) error {
	c.op.Lock()
	defer c.op.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	option, err := model.ParseOption(string(option))
	if err != nil {
		return ErrInvalidOption
	}
	id, ok := c.currentID()
	if !ok {
		return ErrNoQuestion
	}
	if _, done := c.responses[id]; done {
		return ErrAnswerLocked
	}

	c.mu.Lock()
	c.pending = option
	c.mu.Unlock()
	return nil
}

// commitPending saves the pending choice for the current question and
// records it once the portal accepts it. Callers hold op.
func (c *Controller) commitPending(ctx context.Context) error {
	if c.pending == "" {
		return nil
	}
	id, ok := c.currentID()
	if !ok {
		return ErrNoQuestion
	}
	if _, done := c.responses[id]; done {
		c.mu.Lock()
		c.pending = ""
		c.mu.Unlock()
		return nil
	}

	option := c.pending
	err := c.api.SubmitResponse(ctx, c.ref, model.ResponseRequest{QuestionID: id, SelectedOption: option})
	if c.closed() {
		return ErrClosed
	}
	if err != nil {
		err = &ActionError{Action: ActionSave, Err: err}
		c.log.Warn().Err(err).Int("question_id", id).Msg("Answer not saved")
		c.setErr(err)
		return err
	}

	c.mu.Lock()
	c.responses[id] = option
	c.pending = ""
	c.lastErr = nil
	c.mu.Unlock()

	c.log.Debug().Int("question_id", id).Str("option", string(option)).Msg("Answer saved")
	return nil
}

// Next commits the pending choice, then moves to the nearest later
// unanswered question. The cursor stays put if the commit fails.
func (c *Controller) Next(ctx context.Context) error {
	return c.move(ctx, func() int { return nextIndex(c.queue, c.cursor, c.responses) })
}

// Previous commits the pending choice, then moves back one position.
func (c *Controller) Previous(ctx context.Context) error {
	return c.move(ctx, func() int { return prevIndex(c.cursor) })
}

func (c *Controller) move(ctx context.Context, target func() int) error {
	c.op.Lock()
	defer c.op.Unlock()

	if err := c.ready(); err != nil {
		return err
	}

	ctx, cancel := c.bind(ctx)
	defer cancel()

	if err := c.commitPending(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.cursor = target()
	c.pending = ""
	c.mu.Unlock()
	return nil
}

// Skip sends the current question to the back of the queue and moves to the
// first unanswered question. The pending choice is dropped.
func (c *Controller) Skip() error {
	c.op.Lock()
	defer c.op.Unlock()

	if err := c.ready(); err != nil {
		return err
	}

	c.mu.Lock()
	c.queue, c.cursor = skipAt(c.queue, c.cursor, c.responses)
	c.pending = ""
	c.mu.Unlock()
	return nil
}

// ReportViolation flags the attempt with reason and adopts the portal's
// count. A disqualification verdict ends the attempt. Nothing is sent once
// the attempt is closed.
func (c *Controller) ReportViolation(ctx context.Context, reason string) error {
	c.op.Lock()
	defer c.op.Unlock()

	if c.closed() {
		return ErrClosed
	}
	if c.submitted {
		return nil
	}

	ctx, cancel := c.bind(ctx)
	defer cancel()

	res, err := c.api.FlagViolation(ctx, c.ref, model.FlagRequest{Reason: truncate(reason, model.MaxFlagReason)})
	if c.closed() {
		return ErrClosed
	}
	if err != nil {
		err = &ActionError{Action: ActionFlag, Err: err}
		c.log.Warn().Err(err).Str("reason", reason).Msg("Violation not recorded")
		c.setErr(err)
		return err
	}

	c.mu.Lock()
	c.flags = res.Flags
	c.mu.Unlock()

	c.log.Warn().Str("reason", reason).Int("flags", res.Flags).Msg("Violation recorded")

	if res.Disqualified() {
		c.mu.Lock()
		c.submitted = true
		c.disqualified = true
		c.pending = ""
		c.mu.Unlock()
		c.countdown.Stop()
		c.log.Warn().Int("flags", res.Flags).Msg("Attempt disqualified")
		c.finish(Outcome{Kind: OutcomeDisqualified, Flags: res.Flags})
	}
	return nil
}

// Submit finalizes the attempt, saving the pending choice first. It is a
// no-op once the attempt is submitted. On failure the attempt stays open.
func (c *Controller) Submit(ctx context.Context, trigger Trigger) error {
	c.op.Lock()
	defer c.op.Unlock()

	if c.closed() {
		return ErrClosed
	}
	if c.submitted {
		return nil
	}

	ctx, cancel := c.bind(ctx)
	defer cancel()

	if err := c.commitPending(ctx); err != nil {
		if errors.Is(err, ErrClosed) || !choiceRejected(err) {
			return err
		}
		// The server refused the choice itself: submit without it.
		c.mu.Lock()
		c.pending = ""
		c.mu.Unlock()
	}

	err := c.api.SubmitAttempt(ctx, c.ref)
	if c.closed() {
		return ErrClosed
	}
	if err != nil {
		err = &ActionError{Action: ActionSubmit, Err: err}
		c.log.Warn().Err(err).Str("trigger", string(trigger)).Msg("Submit failed")
		c.setErr(err)
		return err
	}

	c.mu.Lock()
	c.submitted = true
	c.lastErr = nil
	flags := c.flags
	c.mu.Unlock()
	c.countdown.Stop()

	c.log.Info().Str("trigger", string(trigger)).Msg("Attempt submitted")
	c.finish(Outcome{Kind: OutcomeCompleted, Trigger: trigger, Flags: flags})
	return nil
}

func (c *Controller) finish(o Outcome) {
	c.finishOnce.Do(func() {
		c.outcome = o
		close(c.done)
	})
}

// Run ticks the countdown until the attempt ends or ctx is cancelled. When
// time runs out the attempt is submitted, retrying each interval while the
// failure is retryable. Any other submit failure ends Run with that error.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	ctx, cancel := c.bind(ctx)
	defer cancel()

	go c.countdown.Run(ctx)

	var retry <-chan time.Time
	for {
		select {
		case <-c.done:
			return c.outcome, nil
		case <-ctx.Done():
			if c.closed() {
				return Outcome{}, ErrClosed
			}
			return Outcome{}, ctx.Err()
		case <-c.timeout:
		case <-retry:
		}

		var err error
		if retry, err = c.submitOnTimeout(ctx); err != nil {
			return Outcome{}, err
		}
	}
}

// submitOnTimeout submits after the clock ran out. A retryable failure
// schedules another attempt; any other failure is returned.
func (c *Controller) submitOnTimeout(ctx context.Context) (<-chan time.Time, error) {
	c.log.Info().Msg("Time is up")
	err := c.Submit(ctx, TriggerTimeout)
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, ErrClosed):
		return nil, ErrClosed
	case !retryable(err):
		c.log.Error().Err(err).Msg("Timeout submit failed for good")
		return nil, err
	}
	return time.After(c.interval), nil
}

func retryable(err error) bool {
	var ce *client.Error
	return errors.As(err, &ce) && ce.Retryable()
}

// choiceRejected reports whether a save failed because the server refused
// the choice itself (bad request or unprocessable). A conflict means the
// attempt or question moved on and must not be papered over.
func choiceRejected(err error) bool {
	var ce *client.Error
	if !errors.As(err, &ce) || ce.Kind != client.KindValidationFailed {
		return false
	}
	switch ce.Status {
	case 0, http.StatusBadRequest, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// Close ends the controller. In-flight requests are aborted and their
// results discarded. Safe to call more than once.
func (c *Controller) Close() {
	c.cancel()
	c.countdown.Stop()
}

// Done is closed when the attempt reaches an outcome.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Outcome returns the attempt's outcome once Done is closed.
func (c *Controller) Outcome() (Outcome, bool) {
	select {
	case <-c.done:
		return c.outcome, true
	default:
		return Outcome{}, false
	}
}

// View returns a snapshot for rendering.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v := View{
		Loaded:       c.loaded,
		Position:     c.cursor,
		Total:        len(c.queue),
		Pending:      c.pending,
		Answered:     len(c.responses),
		Flags:        c.flags,
		MaxFlags:     c.maxFlags,
		Remaining:    c.countdown.Remaining(),
		Submitted:    c.submitted,
		Disqualified: c.disqualified,
		Err:          c.lastErr,
	}
	if c.cursor >= 0 && c.cursor < len(c.queue) {
		id := c.queue[c.cursor]
		if q, ok := c.questions[id]; ok {
			v.Question = &q
		}
		v.Answer = c.responses[id]
	}
	return v
}

// Queue returns a copy of the presentation order.
func (c *Controller) Queue() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]int(nil), c.queue...)
}

// Responses returns a copy of the committed answers.
func (c *Controller) Responses() map[int]model.Option {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int]model.Option, len(c.responses))
	for k, v := range c.responses {
		out[k] = v
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
