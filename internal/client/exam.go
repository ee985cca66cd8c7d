package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stemsi/exstem-client/internal/model"
)

func attemptPath(ref model.AttemptRef, leaf string) string {
	return fmt.Sprintf("/student/exams/%d/attempts/%d/%s/%d", ref.ExamID, ref.AttemptID, leaf, ref.StudentID)
}

// GetExam fetches the exam descriptor.
func (c *Client) GetExam(ctx context.Context, examID int) (*model.Exam, error) {
	var exam model.Exam
	err := c.do(ctx, request{
		op:     "get exam",
		method: http.MethodGet,
		path:   fmt.Sprintf("/auth/student/exams/%d", examID),
	}, &exam)
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

// ListExams lists the student's exams in one schedule bucket.
func (c *Client) ListExams(ctx context.Context, studentID int, status model.ExamStatus) ([]model.Exam, error) {
	var exams []model.Exam
	err := c.do(ctx, request{
		op:     "list exams",
		method: http.MethodGet,
		path:   fmt.Sprintf("/auth/student/%d/exams", studentID),
		query:  url.Values{"status": {string(status)}},
	}, &exams)
	if err != nil {
		return nil, err
	}
	return exams, nil
}

// GetQuestions fetches the attempt's question set in server order.
func (c *Client) GetQuestions(ctx context.Context, ref model.AttemptRef) ([]model.Question, error) {
	var qs []model.Question
	if err := c.do(ctx, request{
		op:     "get questions",
		method: http.MethodGet,
		path:   attemptPath(ref, "questions"),
	}, &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// GetProgress fetches the attempt's violation count.
func (c *Client) GetProgress(ctx context.Context, ref model.AttemptRef) (*model.Progress, error) {
	var p model.Progress
	if err := c.do(ctx, request{
		op:     "get progress",
		method: http.MethodGet,
		path:   attemptPath(ref, "progress"),
	}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetRemainingTime fetches the server-authoritative remaining time.
func (c *Client) GetRemainingTime(ctx context.Context, ref model.AttemptRef) (*model.RemainingTime, error) {
	var rt model.RemainingTime
	if err := c.do(ctx, request{
		op:     "get remaining time",
		method: http.MethodGet,
		path:   attemptPath(ref, "time"),
	}, &rt); err != nil {
		return nil, err
	}
	return &rt, nil
}

// GetActiveAttempt returns the student's open attempt, or nil if there is none.
func (c *Client) GetActiveAttempt(ctx context.Context, examID, studentID int) (*model.Attempt, error) {
	var a model.Attempt
	err := c.do(ctx, request{
		op:     "get active attempt",
		method: http.MethodGet,
		path:   fmt.Sprintf("/student/exams/%d/attempts/active/%d", examID, studentID),
	}, &a)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, nil
	}
	return &a, nil
}

// StartAttempt begins a new attempt.
func (c *Client) StartAttempt(ctx context.Context, examID, studentID int) (*model.Attempt, error) {
	var a model.Attempt
	if err := c.do(ctx, request{
		op:     "start attempt",
		method: http.MethodPost,
		path:   fmt.Sprintf("/student/exams/%d/attempts/start/%d", examID, studentID),
	}, &a); err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, &Error{Kind: KindServerError, Op: "start attempt", Message: "response carries no attempt_id"}
	}
	return &a, nil
}

// SubmitResponse commits one answer.
func (c *Client) SubmitResponse(ctx context.Context, ref model.AttemptRef, req model.ResponseRequest) error {
	return c.do(ctx, request{
		op:     "submit response",
		method: http.MethodPost,
		path:   attemptPath(ref, "responses"),
		body:   req,
	}, nil)
}

// FlagViolation reports one violation and returns the server's verdict.
func (c *Client) FlagViolation(ctx context.Context, ref model.AttemptRef, req model.FlagRequest) (*model.FlagResult, error) {
	var res model.FlagResult
	if err := c.do(ctx, request{
		op:     "flag violation",
		method: http.MethodPost,
		path:   attemptPath(ref, "flags"),
		body:   req,
	}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitAttempt finalizes the attempt.
func (c *Client) SubmitAttempt(ctx context.Context, ref model.AttemptRef) error {
	return c.do(ctx, request{
		op:     "submit attempt",
		method: http.MethodPost,
		path:   attemptPath(ref, "submit"),
	}, nil)
}
