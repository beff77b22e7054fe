package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind discriminates the failures a call can end with.
type Kind int

const (
	KindHTTP Kind = iota + 1
	KindNetworkUnavailable
	KindSessionExpired
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http_error"
	case KindNetworkUnavailable:
		return "network_unavailable"
	case KindSessionExpired:
		return "session_expired"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

const (
	msgNetworkUnavailable = "Network error: Cannot connect to server"
	msgSessionExpired     = "Session expired. Please login again."
	msgMalformedResponse  = "Malformed response from server"
)

// Sentinels for errors.Is. An *Error matches a sentinel of the same Kind.
var (
	ErrHTTP               = &Error{Kind: KindHTTP}
	ErrNetworkUnavailable = &Error{Kind: KindNetworkUnavailable, Message: msgNetworkUnavailable}
	ErrSessionExpired     = &Error{Kind: KindSessionExpired, Message: msgSessionExpired}
	ErrMalformedResponse  = &Error{Kind: KindMalformedResponse, Message: msgMalformedResponse}
)

// Error is returned by every Client call that does not succeed.
//
// Status and Body are set for KindHTTP (Body is the parsed JSON when the
// server sent any) and for KindMalformedResponse. Diagnostic carries the
// truncated raw text when the body could not be parsed.
type Error struct {
	Kind       Kind
	Status     int
	Message    string
	Body       json.RawMessage
	Diagnostic string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Status == 0 || t.Status == e.Status)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// ErrorMessage returns the text a caller should show to the user: the
// server's "error" field when present, otherwise the error's message.
func ErrorMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

func networkUnavailable(err error) *Error {
	return &Error{Kind: KindNetworkUnavailable, Message: msgNetworkUnavailable, Err: err}
}

func sessionExpired() *Error {
	return &Error{Kind: KindSessionExpired, Message: msgSessionExpired}
}
