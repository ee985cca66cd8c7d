package exam

import (
	"context"
	"sync"

	"github.com/stemsi/exstem-client/internal/model"
)

const (
	opQuestions = "questions"
	opProgress  = "progress"
	opTime      = "time"
	opSave      = "save"
	opFlag      = "flag"
	opSubmit    = "submit"
	opActive    = "active"
	opStart     = "start"
)

// fakeAPI is an in-memory portal. Errors queued with failNext are returned
// by the next call of that operation.
type fakeAPI struct {
	mu          sync.Mutex
	questions   []model.Question
	flags       int
	remainingMS int64
	maxFlags    int
	calls       map[string]int
	errs        map[string][]error
	saved       []model.ResponseRequest
	reasons     []string

	active  *model.Attempt
	started *model.Attempt

	// blockSave makes SubmitResponse wait for ctx to end.
	blockSave chan struct{}
}

func newFakeAPI(n int, remainingMS int64) *fakeAPI {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{ID: i + 1, Text: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d"}
	}
	return &fakeAPI{
		questions:   qs,
		remainingMS: remainingMS,
		maxFlags:    3,
		calls:       make(map[string]int),
		errs:        make(map[string][]error),
	}
}

func (f *fakeAPI) failNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = append(f.errs[op], err)
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// enter records a call and pops a queued error. Callers hold mu.
func (f *fakeAPI) enter(op string) error {
	f.calls[op]++
	if q := f.errs[op]; len(q) > 0 {
		f.errs[op] = q[1:]
		return q[0]
	}
	return nil
}

func (f *fakeAPI) GetQuestions(ctx context.Context, ref model.AttemptRef) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(opQuestions); err != nil {
		return nil, err
	}
	return append([]model.Question(nil), f.questions...), nil
}

func (f *fakeAPI) GetProgress(ctx context.Context, ref model.AttemptRef) (*model.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(opProgress); err != nil {
		return nil, err
	}
	return &model.Progress{FlagsCount: f.flags}, nil
}

func (f *fakeAPI) GetRemainingTime(ctx context.Context, ref model.AttemptRef) (*model.RemainingTime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(opTime); err != nil {
		return nil, err
	}
	return &model.RemainingTime{RemainingMS: f.remainingMS}, nil
}

func (f *fakeAPI) SubmitResponse(ctx context.Context, ref model.AttemptRef, req model.ResponseRequest) error {
	f.mu.Lock()
	err := f.enter(opSave)
	block := f.blockSave
	f.mu.Unlock()

	if block != nil {
		close(block)
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.saved = append(f.saved, req)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) FlagViolation(ctx context.Context, ref model.AttemptRef, req model.FlagRequest) (*model.FlagResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(opFlag); err != nil {
		return nil, err
	}
	f.flags++
	f.reasons = append(f.reasons, req.Reason)
	res := &model.FlagResult{Flags: f.flags}
	if f.flags >= f.maxFlags {
		res.Status = model.AttemptStatusDisqualified
	}
	return res, nil
}

func (f *fakeAPI) SubmitAttempt(ctx context.Context, ref model.AttemptRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter(opSubmit)
}

func (f *fakeAPI) GetActiveAttempt(ctx context.Context, examID, studentID int) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(opActive); err != nil {
		return nil, err
	}
	return f.active, nil
}

func (f *fakeAPI) StartAttempt(ctx context.Context, examID, studentID int) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(opStart); err != nil {
		return nil, err
	}
	return f.started, nil
}
