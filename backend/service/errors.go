package service

import (
	"errors"
)

// Repository sentinels. Implementations wrap or return these so callers can
// classify failures with errors.Is.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record changed concurrently or is in the wrong state")
)

// ErrorKind classifies a signing failure for callers.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindStorage      ErrorKind = "storage_failure"
	KindPersistence  ErrorKind = "persistence_failure"
	KindInternal     ErrorKind = "internal"
)

// Error is returned by the signing workflow. Message is safe to show to clients.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// persistenceError keeps repository conflicts and misses distinguishable from
// plain write failures.
func persistenceError(msg string, err error) *Error {
	switch {
	case errors.Is(err, ErrConflict):
		return newError(KindConflict, msg, err)
	case errors.Is(err, ErrNotFound):
		return newError(KindNotFound, msg, err)
	default:
		return newError(KindPersistence, msg, err)
	}
}

// KindOf reports the kind of err, falling back to the repository sentinels.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return "Internal server error"
}
