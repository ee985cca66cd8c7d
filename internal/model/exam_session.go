package model

// AttemptStatus enumerates server-side attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress   AttemptStatus = "in_progress"
	AttemptStatusSubmitted    AttemptStatus = "submitted"
	AttemptStatusDisqualified AttemptStatus = "disqualified"
)

// Attempt is one student's instance of taking an exam.
type Attempt struct {
	ID        int           `json:"attempt_id"`
	ExamID    int           `json:"exam_id,omitempty"`
	StudentID int           `json:"student_id,omitempty"`
	Status    AttemptStatus `json:"status,omitempty"`
}

// AttemptRef addresses every per-attempt endpoint.
type AttemptRef struct {
	ExamID    int
	AttemptID int
	StudentID int
}

// Valid reports whether all three ids are set.
func (r AttemptRef) Valid() bool {
	return r.ExamID > 0 && r.AttemptID > 0 && r.StudentID > 0
}

// Progress mirrors the server's violation count for an attempt.
type Progress struct {
	FlagsCount int `json:"flags_count"`
}

// RemainingTime is the server-authoritative time left, in milliseconds.
type RemainingTime struct {
	RemainingMS int64 `json:"remaining_time"`
}

// ResponseRequest commits one answer.
type ResponseRequest struct {
	QuestionID     int    `json:"question_id" binding:"required,min=1"`
	SelectedOption Option `json:"selected_option" binding:"required,oneof=a b c d"`
}

// MaxFlagReason is the longest violation reason the server accepts.
const MaxFlagReason = 200

// FlagRequest reports one violation.
type FlagRequest struct {
	Reason string `json:"reason" binding:"required,max=200"`
}

// FlagResult is the server's verdict after a violation report.
type FlagResult struct {
	Flags  int           `json:"flags"`
	Status AttemptStatus `json:"status,omitempty"`
}

// Disqualified reports whether the server closed the attempt.
func (r *FlagResult) Disqualified() bool {
	return r.Status == AttemptStatusDisqualified
}
