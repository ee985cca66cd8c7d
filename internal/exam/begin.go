package exam

import (
	"context"

	"github.com/stemsi/exstem-client/internal/client"
	"github.com/stemsi/exstem-client/internal/model"
)

// Starter opens attempts. *client.Client satisfies it.
type Starter interface {
	GetActiveAttempt(ctx context.Context, examID, studentID int) (*model.Attempt, error)
	StartAttempt(ctx context.Context, examID, studentID int) (*model.Attempt, error)
}

// Identities exposes the signed-in student. *session.Store satisfies it.
type Identities interface {
	Student() *model.Identity
}

// Begin resumes the student's open attempt at examID or starts a new one.
// resumed reports which happened.
func Begin(ctx context.Context, api Starter, ids Identities, examID int) (ref model.AttemptRef, resumed bool, err error) {
	student := ids.Student()
	if student == nil {
		return ref, false, &client.Error{Kind: client.KindAuthRequired, Op: "begin attempt", Message: "sign in as a student first"}
	}

	active, err := api.GetActiveAttempt(ctx, examID, student.ID)
	if err != nil {
		return ref, false, &ActionError{Action: ActionLoad, Err: err}
	}
	if active != nil {
		return model.AttemptRef{ExamID: examID, AttemptID: active.ID, StudentID: student.ID}, true, nil
	}

	started, err := api.StartAttempt(ctx, examID, student.ID)
	if err != nil {
		return ref, false, &ActionError{Action: ActionLoad, Err: err}
	}
	return model.AttemptRef{ExamID: examID, AttemptID: started.ID, StudentID: student.ID}, false, nil
}
