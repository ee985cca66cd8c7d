package exam

import (
	"errors"
	"fmt"
)

var (
	ErrClosed        = errors.New("exam session closed")
	ErrNotLoaded     = errors.New("exam not loaded")
	ErrAttemptClosed = errors.New("attempt already submitted")
	ErrAnswerLocked  = errors.New("question already answered")
	ErrInvalidOption = errors.New("invalid option")
	ErrNoQuestion    = errors.New("no current question")
)

// Action names the controller step that failed.
type Action string

const (
	ActionLoad   Action = "load"
	ActionSave   Action = "save"
	ActionFlag   Action = "flag"
	ActionSubmit Action = "submit"
)

// ActionError wraps an API failure with the step it interrupted.
type ActionError struct {
	Action Action
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }
