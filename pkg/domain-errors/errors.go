// Package domainerrors provides coded errors for the experimentation engine.
//
// Services return these so transport layers can translate them into HTTP
// responses without inspecting error strings. Stores return sentinel errors
// (pkg/platform/sentinel) and services wrap them with a code here.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers and the HTTP boundary.
type Code string

const (
	// CodeValidation marks a malformed experiment definition rejected at
	// create time.
	CodeValidation Code = "validation_error"

	// CodeBadRequest marks malformed or missing request input.
	CodeBadRequest Code = "bad_request"

	// CodeInvalidInput marks values rejected at a trust boundary, such as
	// malformed IDs.
	CodeInvalidInput Code = "invalid_input"

	// CodeNotFound marks an unknown experiment, variant, or assignment.
	CodeNotFound Code = "not_found"

	// CodeInvalidState marks an illegal lifecycle transition, including a
	// double stop.
	CodeInvalidState Code = "invalid_state"

	// CodeInsufficientTraffic marks a failed start-time power check.
	CodeInsufficientTraffic Code = "insufficient_traffic"

	// CodeInsufficientData marks an analysis attempted with zero samples.
	CodeInsufficientData Code = "insufficient_data"

	// CodeConflict marks a concurrent-update conflict.
	CodeConflict Code = "conflict"

	// CodeInvariantViolation marks a broken domain invariant.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal_error"
)

// Error carries a code, a human-readable message, and an optional cause.
type Error struct {
	Code    Code
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

// New creates a coded error with a message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost coded message, or empty when uncoded.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
