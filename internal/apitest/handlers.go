package apitest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/response"
	"github.com/stemsi/exstem-client/internal/validator"
)

const ctxKeyAttempt = "attempt"

func paramInt(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// self rejects requests whose :student_id is not the token's user.
func (s *Server) self() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := getClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		studentID, ok := paramInt(c, "student_id")
		if !ok {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		if claims.Role != model.RoleStudent || claims.UserID != studentID {
			response.AbortFail(c, http.StatusForbidden, response.ErrStudentAccessOnly)
			return
		}
		c.Next()
	}
}

// attempt resolves :attempt_id and checks it belongs to :exam_id and the caller.
func (s *Server) attempt() gin.HandlerFunc {
	return func(c *gin.Context) {
		examID, ok1 := paramInt(c, "exam_id")
		attemptID, ok2 := paramInt(c, "attempt_id")
		if !ok1 || !ok2 {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		s.mu.Lock()
		a, ok := s.attempts[attemptID]
		s.mu.Unlock()

		if !ok || a.ExamID != examID || a.StudentID != getClaims(c).UserID {
			response.AbortFail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		c.Set(ctxKeyAttempt, a)
		c.Next()
	}
}

func attemptFrom(c *gin.Context) *AttemptState {
	v, _ := c.Get(ctxKeyAttempt)
	return v.(*AttemptState)
}

func (s *Server) getExam(c *gin.Context) {
	examID, ok := paramInt(c, "exam_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	s.mu.Lock()
	e, ok := s.exams[examID]
	s.mu.Unlock()

	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, e.exam)
}

func (s *Server) listExams(c *gin.Context) {
	status, err := model.ParseExamStatus(c.Query("status"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	now := time.Now()
	out := []model.Exam{}

	s.mu.Lock()
	for _, e := range s.exams {
		if e.exam.StatusAt(now) == status {
			out = append(out, e.exam)
		}
	}
	s.mu.Unlock()

	response.Success(c, http.StatusOK, out)
}

func (s *Server) listResults(c *gin.Context) {
	studentID, _ := paramInt(c, "student_id")

	s.mu.Lock()
	rs := s.results[studentID]
	s.mu.Unlock()

	if rs == nil {
		rs = []model.ExamResult{}
	}
	response.Success(c, http.StatusOK, rs)
}

func (s *Server) resultDetails(c *gin.Context) {
	studentID, _ := paramInt(c, "student_id")
	examID, ok := paramInt(c, "exam_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	s.mu.Lock()
	d := s.details[[2]int{studentID, examID}]
	s.mu.Unlock()

	if d == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, d)
}

func (s *Server) activeAttempt(c *gin.Context) {
	examID, ok := paramInt(c, "exam_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	studentID := getClaims(c).UserID

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.ExamID == examID && a.StudentID == studentID && a.Status == model.AttemptStatusInProgress {
			response.Success(c, http.StatusOK, model.Attempt{ID: a.ID, ExamID: a.ExamID, StudentID: a.StudentID, Status: a.Status})
			return
		}
	}
	response.Fail(c, http.StatusNotFound, response.ErrAttemptNotStarted)
}

func (s *Server) startAttempt(c *gin.Context) {
	examID, ok := paramInt(c, "exam_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	studentID := getClaims(c).UserID

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.exams[examID]
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	for _, a := range s.attempts {
		if a.ExamID == examID && a.StudentID == studentID {
			if a.Status != model.AttemptStatusInProgress {
				response.Fail(c, http.StatusConflict, response.ErrAttemptClosed)
				return
			}
			response.Success(c, http.StatusOK, model.Attempt{ID: a.ID, ExamID: a.ExamID, StudentID: a.StudentID, Status: a.Status})
			return
		}
	}

	s.nextAttemptID++
	a := &AttemptState{
		ID:        s.nextAttemptID,
		ExamID:    examID,
		StudentID: studentID,
		Status:    model.AttemptStatusInProgress,
		Responses: make(map[int]model.Option),
		Deadline:  time.Now().Add(time.Duration(e.exam.DurationMinutes) * time.Minute),
	}
	s.attempts[a.ID] = a
	response.Success(c, http.StatusCreated, model.Attempt{ID: a.ID, ExamID: a.ExamID, StudentID: a.StudentID, Status: a.Status})
}

func (s *Server) questions(c *gin.Context) {
	a := attemptFrom(c)

	s.mu.Lock()
	e := s.exams[a.ExamID]
	out := make([]model.Question, 0, len(e.questions))
	for _, q := range e.questions {
		out = append(out, q.Question)
	}
	s.mu.Unlock()

	response.Success(c, http.StatusOK, out)
}

func (s *Server) progress(c *gin.Context) {
	a := attemptFrom(c)
	s.mu.Lock()
	flags := a.Flags
	s.mu.Unlock()
	response.Success(c, http.StatusOK, model.Progress{FlagsCount: flags})
}

func (s *Server) remaining(c *gin.Context) {
	a := attemptFrom(c)
	s.mu.Lock()
	left := time.Until(a.Deadline)
	s.mu.Unlock()
	if left < 0 {
		left = 0
	}
	response.Success(c, http.StatusOK, model.RemainingTime{RemainingMS: left.Milliseconds()})
}

func (s *Server) saveResponse(c *gin.Context) {
	a := attemptFrom(c)

	var req model.ResponseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Status != model.AttemptStatusInProgress {
		response.Fail(c, http.StatusConflict, response.ErrAttemptClosed)
		return
	}
	if !s.hasQuestion(a.ExamID, req.QuestionID) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if _, done := a.Responses[req.QuestionID]; done {
		response.Fail(c, http.StatusConflict, response.ErrAlreadyAnswered)
		return
	}
	a.Responses[req.QuestionID] = req.SelectedOption
	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

func (s *Server) hasQuestion(examID, questionID int) bool {
	for _, q := range s.exams[examID].questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

func (s *Server) flag(c *gin.Context) {
	a := attemptFrom(c)

	var req model.FlagRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Status != model.AttemptStatusInProgress {
		response.Fail(c, http.StatusConflict, response.ErrAttemptClosed)
		return
	}
	a.Flags++
	a.Reasons = append(a.Reasons, req.Reason)

	res := model.FlagResult{Flags: a.Flags}
	if a.Flags >= s.MaxFlags {
		a.Status = model.AttemptStatusDisqualified
		res.Status = model.AttemptStatusDisqualified
	}
	response.Success(c, http.StatusOK, res)
}

func (s *Server) submit(c *gin.Context) {
	a := attemptFrom(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch a.Status {
	case model.AttemptStatusDisqualified:
		response.Fail(c, http.StatusConflict, response.ErrAttemptClosed)
		return
	case model.AttemptStatusInProgress:
		a.Status = model.AttemptStatusSubmitted
	}
	response.Success(c, http.StatusOK, gin.H{"status": a.Status})
}
