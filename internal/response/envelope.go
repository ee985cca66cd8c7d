package response

import (
	"bytes"
	"encoding/json"
)

// Envelope is the client-side view of Response: the payload is kept raw so the
// caller decides its type.
type Envelope struct {
	Data     json.RawMessage `json:"data"`
	Error    *ErrorBody      `json:"error,omitempty"`
	Metadata *Metadata       `json:"metadata,omitempty"`
}

// Unwrap returns the payload of body. Bodies written with Success/Fail carry
// a metadata block and are unwrapped; any other JSON is returned as is.
func Unwrap(body []byte) json.RawMessage {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Metadata == nil {
		return bytes.TrimSpace(body)
	}
	return env.Data
}

// ParseError extracts the error description from a failed response body.
// It understands the ExStem envelope and the bare {"error": "message"} form.
// Returns nil if body carries neither.
func ParseError(body []byte) *ErrorBody {
	var raw struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}

	if len(raw.Error) > 0 {
		var eb ErrorBody
		if err := json.Unmarshal(raw.Error, &eb); err == nil && (eb.Code != "" || eb.Message != "") {
			return &eb
		}
		var msg string
		if err := json.Unmarshal(raw.Error, &msg); err == nil && msg != "" {
			return &ErrorBody{Message: msg}
		}
	}
	if raw.Message != "" {
		return &ErrorBody{Message: raw.Message}
	}
	return nil
}
