package model

import "time"

// ExamResult is one row of a student's results list.
type ExamResult struct {
	ExamID        int           `json:"exam_id"`
	ExamName      string        `json:"exam_name"`
	SubjectName   string        `json:"subject_name"`
	TotalMarks    int           `json:"total_marks"`
	Score         float64       `json:"score"`
	Status        AttemptStatus `json:"status"`
	ScheduledTime time.Time     `json:"scheduled_time"`
}

// AnswerReview is one question of a graded attempt.
type AnswerReview struct {
	QuestionID     int    `json:"question_id"`
	QuestionText   string `json:"question_text"`
	OptionA        string `json:"option_a"`
	OptionB        string `json:"option_b"`
	OptionC        string `json:"option_c"`
	OptionD        string `json:"option_d"`
	SelectedOption Option `json:"selected_option"`
	CorrectOption  Option `json:"correct_option"`
	IsCorrect      bool   `json:"is_correct"`
}

// ResultDetails is the per-question review of a submitted attempt.
type ResultDetails struct {
	Exam           Exam           `json:"exam"`
	CorrectCount   int            `json:"correct_answers"`
	IncorrectCount int            `json:"incorrect_answers"`
	Score          float64        `json:"score"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	SubmittedAt    *time.Time     `json:"submitted_at,omitempty"`
	Status         AttemptStatus  `json:"status"`
	Answers        []AnswerReview `json:"answers"`
}
