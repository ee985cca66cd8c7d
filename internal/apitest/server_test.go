package apitest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, s *Server, path, token string, body interface{}) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.URL+path, bytes.NewReader(buf))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestFlagsDisqualifyAtMax(t *testing.T) {
	s := New()
	defer s.Close()
	id := s.AddStudent(7, "Ayu", "ayu@example.com", "secret123")
	s.SeedExam(1, 2)

	res := post(t, s, "/student/exams/1/attempts/start/7", id.Token, struct{}{})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	for i := 0; i < s.MaxFlags; i++ {
		res = post(t, s, "/student/exams/1/attempts/101/flags/7", id.Token, model.FlagRequest{Reason: "Tab switched"})
		require.Equal(t, http.StatusOK, res.StatusCode)
	}

	a, ok := s.Attempt(101)
	require.True(t, ok)
	assert.Equal(t, model.AttemptStatusDisqualified, a.Status)
	assert.Equal(t, 3, a.Flags)
	assert.Equal(t, 3, s.Calls(EPFlags))

	res = post(t, s, "/student/exams/1/attempts/101/submit/7", id.Token, struct{}{})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestOtherStudentForbidden(t *testing.T) {
	s := New()
	defer s.Close()
	id := s.AddStudent(7, "Ayu", "ayu@example.com", "secret123")
	s.SeedExam(1, 1)

	res := post(t, s, "/student/exams/1/attempts/start/8", id.Token, struct{}{})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestFailNextServesQueuedStatus(t *testing.T) {
	s := New()
	defer s.Close()
	s.AddStudent(7, "Ayu", "ayu@example.com", "secret123")
	s.FailNext(EPLogin, http.StatusServiceUnavailable)

	login := model.LoginRequest{Email: "ayu@example.com", Password: "secret123"}
	assert.Equal(t, http.StatusServiceUnavailable, post(t, s, "/auth/student/login", "", login).StatusCode)
	assert.Equal(t, http.StatusOK, post(t, s, "/auth/student/login", "", login).StatusCode)
	assert.Equal(t, 2, s.Calls(EPLogin))
}
