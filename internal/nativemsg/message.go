package nativemsg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Command names sent by the extension.
const (
	CommandPing   = "ping"
	CommandRecord = "record"
)

// DefaultDurationMs is used when a record request omits duration.
const DefaultDurationMs = 5000

// MaxMessageSize caps inbound messages. Extension requests are tiny.
const MaxMessageSize = 64 * 1024 * 1024

// Request is an inbound message from the extension.
//
// Decoding only fails for bodies that are not JSON objects. A field of the
// wrong type is kept out of the typed fields and listed in Invalid so the
// handler can answer it; a non-string command keeps its JSON text so it
// reads back as an unknown command.
type Request struct {
	Command string
	// Duration is in milliseconds.
	Duration  *float64
	EncodeMp3 bool
	Invalid   []*FieldError
}

// FieldError describes a request field whose JSON type is wrong.
type FieldError struct {
	Field string
	Want  string
	Got   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %q field: expected %s, got %s", e.Field, e.Want, e.Got)
}

// ErrNotObject is returned when a well-formed body is not a JSON object.
var ErrNotObject = errors.New("request is not a JSON object")

func (r *Request) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return ErrNotObject
	}

	*r = Request{}
	if raw, ok := present(fields, "command"); ok {
		if err := json.Unmarshal(raw, &r.Command); err != nil {
			r.Command = jsonText(raw)
		}
	}
	if raw, ok := present(fields, "duration"); ok {
		var ms float64
		if err := json.Unmarshal(raw, &ms); err != nil {
			r.reject("duration", "a number of milliseconds", raw)
		} else {
			r.Duration = &ms
		}
	}
	if raw, ok := present(fields, "encodeMp3"); ok {
		if err := json.Unmarshal(raw, &r.EncodeMp3); err != nil {
			r.reject("encodeMp3", "a boolean", raw)
		}
	}
	return nil
}

func (r *Request) reject(field, want string, raw json.RawMessage) {
	r.Invalid = append(r.Invalid, &FieldError{Field: field, Want: want, Got: jsonText(raw)})
}

// Err joins the field errors found while decoding, or returns nil.
func (r *Request) Err() error {
	if len(r.Invalid) == 0 {
		return nil
	}
	errs := make([]error, len(r.Invalid))
	for i, fe := range r.Invalid {
		errs[i] = fe
	}
	return errors.Join(errs...)
}

// DurationMs returns the requested duration, defaulting when absent.
func (r *Request) DurationMs() float64 {
	if r.Duration == nil {
		return DefaultDurationMs
	}
	return *r.Duration
}

// present treats an explicit null like a missing key.
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func jsonText(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Response is an outbound message. Success is always present; the other
// fields appear only when set.
type Response struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	AudioSystem string `json:"audioSystem,omitempty"`
	AudioBase64 string `json:"audioBase64,omitempty"`
	Format      string `json:"format,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Failure builds an error response.
func Failure(reason string) *Response {
	return &Response{Success: false, Error: reason}
}
