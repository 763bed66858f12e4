package domain

import (
	"errors"
	"fmt"
)

// Error is a store error with a stable code.
type Error struct {
	Code    string
	Message string
	Details string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates an error kind.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(format string, args ...any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: fmt.Sprintf(format, args...),
		Cause:   e.Cause,
	}
}

// Wrap returns a copy of the error wrapping cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Code extracts the error code, or "" if err carries none.
func Code(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

var (
	ErrIO            = NewError("KV-IO-5001", "i/o error")
	ErrSerialization = NewError("KV-SER-5002", "serialization error")
	ErrLockPoisoned  = NewError("KV-LOCK-5003", "store lock poisoned")
	ErrKeyNotFound   = NewError("KV-KEY-4040", "key not found")
	ErrClosed        = NewError("KV-SYS-5030", "store closed")
)

// IOError wraps cause as an ErrIO with an operation description.
func IOError(op string, cause error) error {
	return ErrIO.WithDetails("%s", op).Wrap(cause)
}

// SerializationError wraps cause as an ErrSerialization with an operation description.
func SerializationError(op string, cause error) error {
	return ErrSerialization.WithDetails("%s", op).Wrap(cause)
}
