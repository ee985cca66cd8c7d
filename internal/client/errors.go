package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stemsi/exstem-client/internal/response"
)

// Kind classifies a failed call.
type Kind string

const (
	KindAuthRequired       Kind = "auth_required"
	KindNotFound           Kind = "not_found"
	KindValidationFailed   Kind = "validation_failed"
	KindServerError        Kind = "server_error"
	KindNetworkUnreachable Kind = "network_unreachable"
)

// Sentinels matched by errors.Is against any *Error of the same Kind.
var (
	ErrAuthRequired       = errors.New("authentication required")
	ErrNotFound           = errors.New("not found")
	ErrValidationFailed   = errors.New("validation failed")
	ErrServerError        = errors.New("server error")
	ErrNetworkUnreachable = errors.New("network unreachable")
)

var sentinels = map[Kind]error{
	KindAuthRequired:       ErrAuthRequired,
	KindNotFound:           ErrNotFound,
	KindValidationFailed:   ErrValidationFailed,
	KindServerError:        ErrServerError,
	KindNetworkUnreachable: ErrNetworkUnreachable,
}

// Error is the classified failure of one API call.
type Error struct {
	Kind      Kind
	Op        string
	Status    int // 0 when no response arrived
	Code      response.ErrCode
	Message   string
	Fields    map[string]string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = sentinels[e.Kind].Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindServerError || e.Kind == KindNetworkUnreachable
}

// KindOf returns the Kind of err, or "" if err is not a classified client error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// classifyStatus maps an HTTP failure status onto a Kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuthRequired
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return KindServerError
	case status >= 500:
		return KindServerError
	default:
		return KindValidationFailed
	}
}

// statusError builds the Error for a non-2xx response.
func statusError(op string, status int, body []byte, requestID string) *Error {
	e := &Error{
		Kind:      classifyStatus(status),
		Op:        op,
		Status:    status,
		RequestID: requestID,
	}
	if eb := response.ParseError(body); eb != nil {
		e.Code = eb.Code
		e.Message = eb.Message
		e.Fields = eb.Fields
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
