package model

import (
	"fmt"
	"time"
)

// ExamStatus is the student-facing schedule bucket of an exam.
type ExamStatus string

const (
	ExamStatusUpcoming ExamStatus = "upcoming"
	ExamStatusOngoing  ExamStatus = "ongoing"
	ExamStatusPast     ExamStatus = "past"
)

// ParseExamStatus validates a status filter. An empty string means ongoing.
func ParseExamStatus(s string) (ExamStatus, error) {
	switch ExamStatus(s) {
	case "":
		return ExamStatusOngoing, nil
	case ExamStatusUpcoming, ExamStatusOngoing, ExamStatusPast:
		return ExamStatus(s), nil
	}
	return "", fmt.Errorf("unknown exam status %q", s)
}

// Exam is the descriptor of a scheduled exam. Immutable once fetched.
type Exam struct {
	ID              int        `json:"exam_id"`
	Name            string     `json:"name"`
	TotalMarks      int        `json:"total_marks"`
	DurationMinutes int        `json:"duration_minutes"`
	ScheduledTime   time.Time  `json:"scheduled_time"`
	SubjectID       int        `json:"subject_id,omitempty"`
	TeacherID       int        `json:"teacher_id,omitempty"`
	Subject         SubjectRef `json:"Subject"`
	Teacher         TeacherRef `json:"Teacher"`
}

// EndTime is the scheduled start plus the duration.
func (e *Exam) EndTime() time.Time {
	return e.ScheduledTime.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// StatusAt classifies the exam relative to now.
func (e *Exam) StatusAt(now time.Time) ExamStatus {
	if now.Before(e.ScheduledTime) {
		return ExamStatusUpcoming
	}
	if !now.After(e.EndTime()) {
		return ExamStatusOngoing
	}
	return ExamStatusPast
}

// FormatDuration renders minutes as "1h 30m".
func FormatDuration(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
