// Package errors defines the coded error taxonomy used across the service.
//
// Codes map directly onto HTTP statuses at the handler boundary and onto the
// lifecycle failure classes: validation, unauthorized, invalid_transition,
// conflict, not_found, internal.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrCode classifies an error for callers and for transport mapping.
type ErrCode string

const (
	// ErrCodeValidation marks malformed input: bad item data, missing
	// required request fields, or a violated price-gating rule.
	ErrCodeValidation ErrCode = "validation"
	// ErrCodeUnauthorized marks an actor whose role does not match the
	// current waypoint's required role.
	ErrCodeUnauthorized ErrCode = "unauthorized"
	// ErrCodeInvalidTransition marks an action attempted on a terminal
	// state or a waypoint that does not exist.
	ErrCodeInvalidTransition ErrCode = "invalid_transition"
	// ErrCodeConflict marks a mutation based on stale state; the caller
	// must re-fetch and retry.
	ErrCodeConflict ErrCode = "conflict"
	// ErrCodeNotFound marks a missing resource.
	ErrCodeNotFound ErrCode = "not_found"
	// ErrCodeInternal marks an unexpected failure.
	ErrCodeInternal ErrCode = "internal"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    ErrCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code ErrCode, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code ErrCode, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code ErrCode, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound creates a not_found error for a named resource.
func NotFound(resource, id string) error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// InvalidInput creates a validation error naming the offending field and rule.
func InvalidInput(field, rule string) error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf("%s: %s", field, rule)}
}

// Code extracts the ErrCode from an error chain, defaulting to internal.
func Code(err error) ErrCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether the error chain carries the given code.
func IsCode(err error, code ErrCode) bool {
	return err != nil && Code(err) == code
}
