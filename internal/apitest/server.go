// Package apitest is an in-memory fake of the portal API for tests. It speaks
// the same routes and envelopes as the real server, counts every call and
// can inject failures.
package apitest

import (
	"fmt"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/response"
	"github.com/stemsi/exstem-client/internal/validator"
	"golang.org/x/crypto/bcrypt"
)

// Endpoint names used by Calls and FailNext.
const (
	EPLogin         = "login"
	EPExam          = "exam"
	EPExams         = "exams"
	EPActive        = "active"
	EPStart         = "start"
	EPQuestions     = "questions"
	EPProgress      = "progress"
	EPTime          = "time"
	EPResponses     = "responses"
	EPFlags         = "flags"
	EPSubmit        = "submit"
	EPResults       = "results"
	EPResultDetails = "result_details"
)

// Question is a fixture question including its correct option.
type Question struct {
	model.Question
	Correct model.Option
}

// AttemptState is a snapshot of one attempt's server-side state.
type AttemptState struct {
	ID        int
	ExamID    int
	StudentID int
	Status    model.AttemptStatus
	Flags     int
	Reasons   []string
	Responses map[int]model.Option
	Deadline  time.Time
}

type account struct {
	account      model.Account
	passwordHash []byte
	profile      model.StudentProfile
}

type exam struct {
	exam      model.Exam
	questions []Question
}

// Server is the fake portal.
type Server struct {
	*httptest.Server

	// MaxFlags is the violation count at which an attempt is disqualified.
	MaxFlags int

	mu            sync.Mutex
	secret        []byte
	accounts      map[string]*account
	exams         map[int]*exam
	attempts      map[int]*AttemptState
	nextAttemptID int
	calls         map[string]int
	failures      map[string][]int
	results       map[int][]model.ExamResult
	details       map[[2]int]*model.ResultDetails
}

// New starts a fake portal. Close it when done.
func New() *Server {
	gin.SetMode(gin.TestMode)
	validator.Setup()

	s := &Server{
		MaxFlags:      3,
		secret:        []byte("apitest-secret"),
		accounts:      make(map[string]*account),
		exams:         make(map[int]*exam),
		attempts:      make(map[int]*AttemptState),
		nextAttemptID: 100,
		calls:         make(map[string]int),
		failures:      make(map[string][]int),
		results:       make(map[int][]model.ExamResult),
		details:       make(map[[2]int]*model.ResultDetails),
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(response.RequestIDMiddleware())

	r.POST("/auth/:role/login", s.track(EPLogin), s.login)

	authed := r.Group("/", s.requireJWT())
	{
		authed.GET("/auth/student/exams/:exam_id", s.track(EPExam), s.getExam)
		authed.GET("/auth/student/:student_id/exams", s.track(EPExams), s.self(), s.listExams)
		authed.GET("/auth/student/:student_id/results", s.track(EPResults), s.self(), s.listResults)
		authed.GET("/auth/student/:student_id/exams/:exam_id/result-details", s.track(EPResultDetails), s.self(), s.resultDetails)

		attempts := authed.Group("/student/exams/:exam_id/attempts")
		attempts.GET("/active/:student_id", s.track(EPActive), s.self(), s.activeAttempt)
		attempts.POST("/start/:student_id", s.track(EPStart), s.self(), s.startAttempt)
		attempts.GET("/:attempt_id/questions/:student_id", s.track(EPQuestions), s.self(), s.attempt(), s.questions)
		attempts.GET("/:attempt_id/progress/:student_id", s.track(EPProgress), s.self(), s.attempt(), s.progress)
		attempts.GET("/:attempt_id/time/:student_id", s.track(EPTime), s.self(), s.attempt(), s.remaining)
		attempts.POST("/:attempt_id/responses/:student_id", s.track(EPResponses), s.self(), s.attempt(), s.saveResponse)
		attempts.POST("/:attempt_id/flags/:student_id", s.track(EPFlags), s.self(), s.attempt(), s.flag)
		attempts.POST("/:attempt_id/submit/:student_id", s.track(EPSubmit), s.self(), s.attempt(), s.submit)
	}
	return r
}

// track counts the call and serves any failure queued for the endpoint.
func (s *Server) track(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.calls[endpoint]++
		var status int
		if q := s.failures[endpoint]; len(q) > 0 {
			status, s.failures[endpoint] = q[0], q[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			code := response.ErrInternal
			if status < 500 {
				code = response.ErrValidation
			}
			response.AbortFail(c, status, code)
			return
		}
		c.Next()
	}
}

// ─── Fixtures ──────────────────────────────────────────────────────────

// AddStudent registers a student account and returns its identity with a
// freshly minted token.
func (s *Server) AddStudent(id int, name, email, password string) *model.Identity {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	acc := model.Account{ID: id, Name: name, Email: email, Role: model.RoleStudent}
	profile := model.StudentProfile{RollNumber: "R-" + name, ActiveStatus: true}

	s.mu.Lock()
	s.accounts[accountKey(model.RoleStudent, email)] = &account{account: acc, passwordHash: hash, profile: profile}
	s.mu.Unlock()

	return &model.Identity{
		Role:    model.RoleStudent,
		ID:      id,
		Name:    name,
		Email:   email,
		Token:   s.TokenFor(model.RoleStudent, id, time.Hour),
		Student: &profile,
	}
}

// AddExam registers an exam with its questions.
func (s *Server) AddExam(e model.Exam, qs []Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exams[e.ID] = &exam{exam: e, questions: qs}
}

// SetResults sets the results list served for a student.
func (s *Server) SetResults(studentID int, rs []model.ExamResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[studentID] = rs
}

// SetResultDetails sets the review served for one student's exam.
func (s *Server) SetResultDetails(studentID, examID int, d *model.ResultDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details[[2]int{studentID, examID}] = d
}

// SetRemaining moves an attempt's deadline to now+d.
func (s *Server) SetRemaining(attemptID int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.attempts[attemptID]; ok {
		a.Deadline = time.Now().Add(d)
	}
}

// FailNext makes the next call to endpoint fail with status. Calls queue.
func (s *Server) FailNext(endpoint string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[endpoint] = append(s.failures[endpoint], status)
}

// Calls returns how many requests hit endpoint.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// Attempt returns a copy of an attempt's state.
func (s *Server) Attempt(id int) (AttemptState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return AttemptState{}, false
	}
	cp := *a
	cp.Reasons = append([]string(nil), a.Reasons...)
	cp.Responses = make(map[int]model.Option, len(a.Responses))
	for k, v := range a.Responses {
		cp.Responses[k] = v
	}
	return cp, true
}

// SeedExam registers an ongoing exam with n questions whose correct option
// is always "a", and returns it.
func (s *Server) SeedExam(id, n int) model.Exam {
	e := model.Exam{
		ID:              id,
		Name:            fmt.Sprintf("Exam %d", id),
		TotalMarks:      n,
		DurationMinutes: 60,
		ScheduledTime:   time.Now().Add(-time.Minute).UTC().Truncate(time.Second),
		Subject:         model.SubjectRef{Name: "Physics"},
		Teacher:         model.TeacherRef{Name: "Dewi"},
	}
	qs := make([]Question, n)
	for i := range qs {
		qid := id*100 + i + 1
		qs[i] = Question{
			Question: model.Question{
				ID:      qid,
				Text:    fmt.Sprintf("Question %d", qid),
				OptionA: "alpha",
				OptionB: "beta",
				OptionC: "gamma",
				OptionD: "delta",
			},
			Correct: model.OptionA,
		}
	}
	s.AddExam(e, qs)
	return e
}
