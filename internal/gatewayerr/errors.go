// Package gatewayerr implements the gateway's error taxonomy: a small set
// of kinds, each mapped to an HTTP status and an OpenAI-compatible error
// type, plus the streaming-path visible-delta prefixes.
package gatewayerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway error for HTTP-status and wire-format mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindContextExceeded
	KindContentPolicy
	KindGeneratorUnavailable
)

// Error is a typed gateway error carrying a Kind, a client-facing message,
// and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus returns the status code a non-streaming response should use.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindContextExceeded, KindContentPolicy:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindGeneratorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// OpenAIType returns the wire-format "type" string for the error body.
func (e *Error) OpenAIType() string {
	switch e.Kind {
	case KindValidation:
		return "invalid_request_error"
	case KindNotFound:
		return "model_not_found"
	case KindContextExceeded:
		return "context_length_exceeded"
	case KindContentPolicy:
		return "content_policy_violation"
	case KindGeneratorUnavailable:
		return "foundation_model_error"
	default:
		return "internal_error"
	}
}

// StreamingPrefix returns the visible-delta prefix used to surface this
// error once SSE headers have already been sent.
func (e *Error) StreamingPrefix() string {
	switch e.Kind {
	case KindContextExceeded:
		return "⚠️ **Context window exceeded**"
	case KindContentPolicy:
		return "⚠️ **Content Policy Violation**"
	default:
		return "⚠️ **Error**"
	}
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a KindValidation error.
func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

// ContextExceeded builds a KindContextExceeded error.
func ContextExceeded(format string, args ...interface{}) *Error {
	return newf(KindContextExceeded, format, args...)
}

// ContentPolicy builds a KindContentPolicy error.
func ContentPolicy(format string, args ...interface{}) *Error {
	return newf(KindContentPolicy, format, args...)
}

// GeneratorUnavailable builds a KindGeneratorUnavailable error, wrapping
// the backend-reported cause when present.
func GeneratorUnavailable(cause error, format string, args ...interface{}) *Error {
	e := newf(KindGeneratorUnavailable, format, args...)
	e.Cause = cause
	return e
}

// Internal builds a KindInternal error, wrapping cause.
func Internal(cause error, format string, args ...interface{}) *Error {
	e := newf(KindInternal, format, args...)
	e.Cause = cause
	return e
}

// As reports whether err is (or wraps) a *Error, returning it if so.
func As(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// Wrap converts an arbitrary error into a gateway Error, classifying it as
// internal unless it already carries gateway taxonomy.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if ge, ok := As(err); ok {
		return ge
	}
	return Internal(err, "internal error")
}
