package exam

import (
	"errors"

	"github.com/stemsi/exstem-client/internal/client"
)

var actionText = map[Action]string{
	ActionLoad:   "Could not load the exam.",
	ActionSave:   "Your answer was not saved.",
	ActionFlag:   "The violation could not be recorded.",
	ActionSubmit: "The exam could not be submitted.",
}

// UserMessage turns an operation error into text for the student.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrClosed):
		return "The exam session has ended."
	case errors.Is(err, ErrAttemptClosed):
		return "This attempt has already been submitted."
	case errors.Is(err, ErrAnswerLocked):
		return "This question is already answered. Answers are final once saved."
	case errors.Is(err, ErrInvalidOption):
		return "Choose one of a, b, c or d."
	case errors.Is(err, ErrNotLoaded):
		return "The exam has not loaded yet."
	case errors.Is(err, ErrNoQuestion):
		return "There is no question to answer."
	case errors.Is(err, client.ErrAuthRequired):
		return "Your session has expired. Please sign in again."
	}

	prefix := "Something went wrong."
	var ae *ActionError
	if errors.As(err, &ae) {
		prefix = actionText[ae.Action]
	}

	var ce *client.Error
	switch {
	case errors.Is(err, client.ErrServerError), errors.Is(err, client.ErrNetworkUnreachable):
		return prefix + " Please try again."
	case errors.Is(err, client.ErrNotFound):
		return prefix + " The exam or question no longer exists."
	case errors.As(err, &ce) && ce.Message != "":
		return prefix + " " + ce.Message
	}
	return prefix
}

// IsFatal reports whether err should end the exam flow rather than keep the
// student on the current question.
func IsFatal(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, client.ErrAuthRequired)
}
