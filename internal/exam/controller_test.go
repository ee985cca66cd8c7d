package exam

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/client"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRef = model.AttemptRef{ExamID: 1, AttemptID: 101, StudentID: 7}

func loaded(t *testing.T, api *fakeAPI, opts ...Option) *Controller {
	t.Helper()
	c := NewController(api, testRef, zerolog.Nop(), opts...)
	t.Cleanup(c.Close)
	require.NoError(t, c.Load(context.Background()))
	return c
}

func answer(t *testing.T, c *Controller, o model.Option) {
	t.Helper()
	require.NoError(t, c.Select(o))
	require.NoError(t, c.Next(context.Background()))
}

func netErr() error {
	return &client.Error{Kind: client.KindNetworkUnreachable, Op: "test", Err: errors.New("connection refused")}
}

func TestLoadBuildsView(t *testing.T) {
	api := newFakeAPI(3, 60000)
	api.flags = 1
	c := loaded(t, api)

	v := c.View()
	assert.True(t, v.Loaded)
	require.NotNil(t, v.Question)
	assert.Equal(t, 1, v.Question.ID)
	assert.Equal(t, 0, v.Position)
	assert.Equal(t, 3, v.Total)
	assert.Equal(t, 1, v.Flags)
	assert.Equal(t, 3, v.MaxFlags)
	assert.Equal(t, time.Minute, v.Remaining)
	assert.False(t, v.Locked())
	assert.Equal(t, 1, api.count(opQuestions))
	assert.Equal(t, 1, api.count(opProgress))
	assert.Equal(t, 1, api.count(opTime))
}

func TestLoadFailureKeepsState(t *testing.T) {
	api := newFakeAPI(3, 60000)
	c := loaded(t, api)
	answer(t, c, model.OptionA)
	before := c.View()

	api.failNext(opProgress, netErr())
	err := c.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrNetworkUnreachable)

	after := c.View()
	assert.Equal(t, before.Position, after.Position)
	assert.Equal(t, before.Question.ID, after.Question.ID)
	assert.Equal(t, []int{1, 2, 3}, c.Queue())
	assert.Equal(t, err, after.Err)
}

func TestReloadPutsAnsweredLast(t *testing.T) {
	api := newFakeAPI(3, 60000)
	c := loaded(t, api)
	answer(t, c, model.OptionA)

	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, []int{2, 3, 1}, c.Queue())
	assert.Equal(t, 0, c.View().Position)
}

func TestLoadRequiresAttemptID(t *testing.T) {
	api := newFakeAPI(1, 1000)
	c := NewController(api, model.AttemptRef{ExamID: 1, StudentID: 7}, zerolog.Nop())
	defer c.Close()

	err := c.Load(context.Background())
	assert.ErrorIs(t, err, client.ErrValidationFailed)
	assert.Equal(t, 0, api.total())
}

func TestOperationsBeforeLoad(t *testing.T) {
	c := NewController(newFakeAPI(1, 1000), testRef, zerolog.Nop())
	defer c.Close()

	assert.ErrorIs(t, c.Select(model.OptionA), ErrNotLoaded)
	assert.ErrorIs(t, c.Next(context.Background()), ErrNotLoaded)
	assert.ErrorIs(t, c.Skip(), ErrNotLoaded)
}

func TestFiveQuestionSkipScenario(t *testing.T) {
	api := newFakeAPI(5, 600000)
	c := loaded(t, api)

	answer(t, c, model.OptionA)
	answer(t, c, model.OptionB)
	answer(t, c, model.OptionC)
	require.Equal(t, 4, c.View().Question.ID)

	require.NoError(t, c.Skip())
	assert.Equal(t, []int{1, 2, 3, 5, 4}, c.Queue())
	v := c.View()
	assert.Equal(t, 3, v.Position)
	assert.Equal(t, 5, v.Question.ID)
	assert.Len(t, c.Responses(), 3)
}

func TestSkipDropsPendingAndKeepsResponses(t *testing.T) {
	api := newFakeAPI(3, 600000)
	c := loaded(t, api)

	require.NoError(t, c.Select(model.OptionD))
	require.NoError(t, c.Skip())

	v := c.View()
	assert.Empty(t, v.Pending)
	assert.Equal(t, 2, v.Question.ID)
	assert.Empty(t, c.Responses())
	assert.Equal(t, 0, api.count(opSave))
}

func TestNextSeeksUnanswered(t *testing.T) {
	api := newFakeAPI(4, 600000)
	c := loaded(t, api)
	ctx := context.Background()

	answer(t, c, model.OptionA) // q1, now on q2
	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.Next(ctx))
	require.Equal(t, 4, c.View().Question.ID)
	answer(t, c, model.OptionB) // q4, nothing ahead: stays on last

	v := c.View()
	assert.Equal(t, 3, v.Position)
	assert.Equal(t, model.OptionB, v.Answer)

	require.NoError(t, c.Previous(ctx))
	require.NoError(t, c.Previous(ctx))
	require.NoError(t, c.Previous(ctx))
	require.NoError(t, c.Previous(ctx))
	assert.Equal(t, 0, c.View().Position)

	// From q1 (answered) the nearest unanswered ahead is q2.
	require.NoError(t, c.Next(ctx))
	assert.Equal(t, 2, c.View().Question.ID)
}

func TestAnswersAreFinal(t *testing.T) {
	api := newFakeAPI(2, 600000)
	c := loaded(t, api)
	ctx := context.Background()

	answer(t, c, model.OptionC)
	require.NoError(t, c.Previous(ctx))

	v := c.View()
	assert.True(t, v.Locked())
	assert.ErrorIs(t, c.Select(model.OptionA), ErrAnswerLocked)

	require.NoError(t, c.Skip())
	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.Previous(ctx))

	assert.Equal(t, map[int]model.Option{1: model.OptionC}, c.Responses())
	assert.Equal(t, 1, api.count(opSave))
}

func TestSelectNormalizesAndRejects(t *testing.T) {
	c := loaded(t, newFakeAPI(1, 600000))

	require.NoError(t, c.Select("B"))
	assert.Equal(t, model.OptionB, c.View().Pending)
	assert.ErrorIs(t, c.Select("e"), ErrInvalidOption)
}

func TestFailedSaveOnNext(t *testing.T) {
	api := newFakeAPI(3, 600000)
	c := loaded(t, api)

	require.NoError(t, c.Select(model.OptionB))
	api.failNext(opSave, netErr())

	err := c.Next(context.Background())
	require.Error(t, err)

	v := c.View()
	assert.Equal(t, 0, v.Position)
	assert.Equal(t, model.OptionB, v.Pending)
	assert.Empty(t, c.Responses())
	assert.Equal(t, err, v.Err)

	msg := UserMessage(err)
	assert.Contains(t, msg, "not saved")
	assert.Contains(t, msg, "try again")

	// Retrying succeeds and clears the error.
	require.NoError(t, c.Next(context.Background()))
	assert.Equal(t, map[int]model.Option{1: model.OptionB}, c.Responses())
	assert.Nil(t, c.View().Err)
}

func TestSubmitIsIdempotent(t *testing.T) {
	api := newFakeAPI(2, 600000)
	c := loaded(t, api)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, TriggerManual))
	require.NoError(t, c.Submit(ctx, TriggerTimeout))

	assert.Equal(t, 1, api.count(opSubmit))
	o, ok := c.Outcome()
	require.True(t, ok)
	assert.Equal(t, OutcomeCompleted, o.Kind)
	assert.Equal(t, TriggerManual, o.Trigger)
	assert.True(t, c.View().Submitted)
	assert.ErrorIs(t, c.Select(model.OptionA), ErrAttemptClosed)
}

func TestSubmitFlushesPending(t *testing.T) {
	api := newFakeAPI(2, 600000)
	c := loaded(t, api)

	require.NoError(t, c.Select(model.OptionD))
	require.NoError(t, c.Submit(context.Background(), TriggerManual))

	require.Len(t, api.saved, 1)
	assert.Equal(t, model.ResponseRequest{QuestionID: 1, SelectedOption: model.OptionD}, api.saved[0])
	assert.Equal(t, 1, api.count(opSubmit))
}

func TestSubmitFailureAllowsRetry(t *testing.T) {
	api := newFakeAPI(2, 600000)
	c := loaded(t, api)
	ctx := context.Background()

	api.failNext(opSubmit, &client.Error{Kind: client.KindServerError, Op: "submit attempt", Status: 502})
	err := c.Submit(ctx, TriggerManual)
	require.Error(t, err)
	assert.Contains(t, UserMessage(err), "could not be submitted")
	assert.False(t, c.View().Submitted)
	_, done := c.Outcome()
	assert.False(t, done)

	require.NoError(t, c.Submit(ctx, TriggerManual))
	assert.Equal(t, 2, api.count(opSubmit))
	assert.True(t, c.View().Submitted)
}

func TestSubmitAbortsWhenFlushFails(t *testing.T) {
	api := newFakeAPI(2, 600000)
	c := loaded(t, api)

	require.NoError(t, c.Select(model.OptionA))
	api.failNext(opSave, netErr())

	require.Error(t, c.Submit(context.Background(), TriggerManual))
	assert.Equal(t, 0, api.count(opSubmit))
	assert.False(t, c.View().Submitted)
}

func TestSubmitDropsRejectedPending(t *testing.T) {
	api := newFakeAPI(2, 600000)
	c := loaded(t, api)

	require.NoError(t, c.Select(model.OptionA))
	api.failNext(opSave, &client.Error{Kind: client.KindValidationFailed, Op: "submit response", Status: 400, Message: "Invalid option"})

	require.NoError(t, c.Submit(context.Background(), TriggerManual))
	assert.Equal(t, 1, api.count(opSubmit))
	assert.Empty(t, c.Responses())
}

func TestSubmitAbortsOnPendingConflict(t *testing.T) {
	api := newFakeAPI(2, 600000)
	c := loaded(t, api)

	require.NoError(t, c.Select(model.OptionA))
	api.failNext(opSave, &client.Error{Kind: client.KindValidationFailed, Op: "submit response", Status: 409, Message: "Attempt is closed"})

	err := c.Submit(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.Equal(t, client.KindValidationFailed, client.KindOf(err))
	assert.Equal(t, 0, api.count(opSubmit))
	assert.False(t, c.View().Submitted)
	assert.Equal(t, model.OptionA, c.View().Pending)
}

func TestDisqualificationStopsTraffic(t *testing.T) {
	api := newFakeAPI(3, 600000)
	c := loaded(t, api)
	ctx := context.Background()

	require.NoError(t, c.ReportViolation(ctx, "Fullscreen exited"))
	require.NoError(t, c.ReportViolation(ctx, "Tab switched"))
	assert.Equal(t, 2, c.View().Flags)
	_, done := c.Outcome()
	assert.False(t, done)

	require.NoError(t, c.ReportViolation(ctx, "Fullscreen exited"))
	o, ok := c.Outcome()
	require.True(t, ok)
	assert.Equal(t, OutcomeDisqualified, o.Kind)
	assert.Equal(t, 3, o.Flags)

	v := c.View()
	assert.True(t, v.Submitted)
	assert.True(t, v.Disqualified)

	calls := api.total()
	assert.NoError(t, c.ReportViolation(ctx, "Tab switched"))
	assert.NoError(t, c.Submit(ctx, TriggerTimeout))
	assert.ErrorIs(t, c.Select(model.OptionA), ErrAttemptClosed)
	assert.ErrorIs(t, c.Next(ctx), ErrAttemptClosed)
	assert.ErrorIs(t, c.Skip(), ErrAttemptClosed)
	assert.Equal(t, calls, api.total())
	assert.Equal(t, []string{"Fullscreen exited", "Tab switched", "Fullscreen exited"}, api.reasons)
	assert.Equal(t, 0, api.count(opSubmit))
}

func TestFlagFailureKeepsCount(t *testing.T) {
	api := newFakeAPI(1, 600000)
	c := loaded(t, api)

	api.failNext(opFlag, &client.Error{Kind: client.KindServerError, Op: "flag violation", Status: 500})
	err := c.ReportViolation(context.Background(), "Tab switched")
	require.Error(t, err)
	assert.Contains(t, UserMessage(err), "violation could not be recorded")
	assert.Equal(t, 0, c.View().Flags)
}

func TestViolationReasonTruncated(t *testing.T) {
	api := newFakeAPI(1, 600000)
	c := loaded(t, api)

	require.NoError(t, c.ReportViolation(context.Background(), strings.Repeat("é", 300)))
	require.Len(t, api.reasons, 1)
	assert.Equal(t, 200, len([]rune(api.reasons[0])))
}

func TestTimeoutSubmitsOnce(t *testing.T) {
	api := newFakeAPI(2, 3000)
	c := loaded(t, api, WithTickInterval(time.Millisecond))

	require.NoError(t, c.Select(model.OptionC))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o, err := c.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, o.Kind)
	assert.Equal(t, TriggerTimeout, o.Trigger)
	assert.Equal(t, 1, api.count(opSubmit))
	assert.Equal(t, 1, api.count(opSave))

	require.NoError(t, c.Submit(ctx, TriggerManual))
	assert.Equal(t, 1, api.count(opSubmit))
}

func TestTimeoutSubmitRetries(t *testing.T) {
	api := newFakeAPI(1, 1000)
	c := loaded(t, api, WithTickInterval(time.Millisecond))
	api.failNext(opSubmit, netErr())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o, err := c.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, TriggerTimeout, o.Trigger)
	assert.Equal(t, 2, api.count(opSubmit))
}

func TestTimeoutSubmitStopsOnAuthFailure(t *testing.T) {
	api := newFakeAPI(1, 1000)
	c := loaded(t, api, WithTickInterval(time.Millisecond))
	for i := 0; i < 10; i++ {
		api.failNext(opSubmit, &client.Error{Kind: client.KindAuthRequired, Op: "submit attempt", Status: 401})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Run(ctx)

	require.ErrorIs(t, err, client.ErrAuthRequired)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 1, api.count(opSubmit))
	_, done := c.Outcome()
	assert.False(t, done)
}

func TestTimeoutSubmitStopsOnClosedAttempt(t *testing.T) {
	api := newFakeAPI(1, 1000)
	c := loaded(t, api, WithTickInterval(time.Millisecond))
	api.failNext(opSubmit, &client.Error{Kind: client.KindValidationFailed, Op: "submit attempt", Status: 409})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Run(ctx)

	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, api.count(opSubmit))
}

func TestRunEndsOnDisqualification(t *testing.T) {
	api := newFakeAPI(1, 600000)
	api.flags = 2
	c := loaded(t, api, WithTickInterval(time.Hour))

	res := make(chan Outcome, 1)
	go func() {
		o, _ := c.Run(context.Background())
		res <- o
	}()
	require.NoError(t, c.ReportViolation(context.Background(), "Tab switched"))

	select {
	case o := <-res:
		assert.Equal(t, OutcomeDisqualified, o.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after disqualification")
	}
	assert.Equal(t, 0, api.count(opSubmit))
}

func TestCloseAbortsInFlightRequest(t *testing.T) {
	api := newFakeAPI(2, 600000)
	c := loaded(t, api)
	require.NoError(t, c.Select(model.OptionA))

	entered := make(chan struct{})
	api.mu.Lock()
	api.blockSave = entered
	api.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- c.Next(context.Background()) }()
	<-entered
	c.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}
	assert.Empty(t, c.Responses())
	assert.Equal(t, 0, c.View().Position)

	calls := api.total()
	assert.ErrorIs(t, c.Submit(context.Background(), TriggerManual), ErrClosed)
	assert.ErrorIs(t, c.ReportViolation(context.Background(), "Tab switched"), ErrClosed)
	assert.ErrorIs(t, c.Load(context.Background()), ErrClosed)
	assert.Equal(t, calls, api.total())

	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrAnswerLocked, "already answered"},
		{&ActionError{Action: ActionSave, Err: netErr()}, "Please try again."},
		{&ActionError{Action: ActionLoad, Err: &client.Error{Kind: client.KindNotFound, Op: "get exam"}}, "no longer exists"},
		{&ActionError{Action: ActionSubmit, Err: &client.Error{Kind: client.KindAuthRequired, Op: "submit attempt"}}, "sign in again"},
		{&ActionError{Action: ActionSave, Err: &client.Error{Kind: client.KindValidationFailed, Op: "submit response", Message: "Attempt is closed"}}, "Attempt is closed"},
		{errors.New("boom"), "Something went wrong."},
	}
	for _, tt := range tests {
		assert.Contains(t, UserMessage(tt.err), tt.want)
	}

	assert.True(t, IsFatal(&ActionError{Action: ActionLoad, Err: &client.Error{Kind: client.KindAuthRequired}}))
	assert.True(t, IsFatal(ErrClosed))
	assert.False(t, IsFatal(&ActionError{Action: ActionSave, Err: netErr()}))
}
