package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stemsi/exstem-client/internal/model"
)

// ListResults lists the student's graded exams.
func (c *Client) ListResults(ctx context.Context, studentID int) ([]model.ExamResult, error) {
	var rs []model.ExamResult
	if err := c.do(ctx, request{
		op:     "list results",
		method: http.MethodGet,
		path:   fmt.Sprintf("/auth/student/%d/results", studentID),
	}, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// GetResultDetails fetches the per-question review of one exam.
func (c *Client) GetResultDetails(ctx context.Context, studentID, examID int) (*model.ResultDetails, error) {
	var d model.ResultDetails
	if err := c.do(ctx, request{
		op:     "get result details",
		method: http.MethodGet,
		path:   fmt.Sprintf("/auth/student/%d/exams/%d/result-details", studentID, examID),
	}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
