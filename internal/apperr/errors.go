// Package apperr defines the error taxonomy used across the gateway core.
//
// Components classify failures into one of six kinds (spec §7). The edge
// maps a kind to an HTTP status; the core decides local-retry eligibility
// from the same kind.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Validation    Kind = "validation"
	Auth          Kind = "auth"
	LimitExceeded Kind = "limit_exceeded"
	NotConnected  Kind = "not_connected"
	Transient     Kind = "transient"
	Fatal         Kind = "fatal"
)

// Error wraps an underlying cause with a Kind and optional structured
// fields (e.g. current/limit for LimitExceeded) used by the HTTP edge.
type Error struct {
	Kind    Kind
	Message string
	Current int
	Limit   int
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func new(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

func Validationf(format string, args ...interface{}) *Error {
	return new(Validation, fmt.Sprintf(format, args...), nil)
}

func AuthError(msg string) *Error {
	return new(Auth, msg, nil)
}

func LimitExceededErr(msg string, current, limit int) *Error {
	e := new(LimitExceeded, msg, nil)
	e.Current = current
	e.Limit = limit
	return e
}

func NotConnectedErr(sessionID string) *Error {
	return new(NotConnected, "session is not connected", nil).withSession(sessionID)
}

func (e *Error) withSession(id string) *Error {
	e.Message = fmt.Sprintf("%s (session=%s)", e.Message, id)
	return e
}

func Transientf(cause error, format string, args ...interface{}) *Error {
	return new(Transient, fmt.Sprintf(format, args...), cause)
}

func Fatalf(cause error, format string, args ...interface{}) *Error {
	return new(Fatal, fmt.Sprintf(format, args...), cause)
}

// KindOf extracts the Kind of err, defaulting to Fatal for anything that
// isn't one of our typed errors (spec §7: "unrecognized errors are treated
// as Fatal for the current operation").
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Fatal
}

// Retryable reports whether the error is locally retryable (Transient).
func Retryable(err error) bool {
	return KindOf(err) == Transient
}
