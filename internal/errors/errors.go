// Package errors provides the structured error type used across WebSeek.
// Errors carry a stable code so the HTTP layer and the worker retry policy
// can act on them without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Error codes. The set mirrors the platform error policy: validation and
// not-found errors are terminal, remote errors are retryable, persistence
// errors propagate to the worker which applies its retry budget.
const (
	ErrCodeBadConfig       = "ERR_BAD_CONFIG"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeNotFound        = "ERR_NOT_FOUND"
	ErrCodeConflict        = "ERR_CONFLICT"
	ErrCodeRetryableRemote = "ERR_RETRYABLE_REMOTE"
	ErrCodePermanentRemote = "ERR_PERMANENT_REMOTE"
	ErrCodeEmbedding       = "ERR_EMBEDDING"
	ErrCodeLLMUnavailable  = "ERR_LLM_UNAVAILABLE"
	ErrCodePersistence     = "ERR_PERSISTENCE"
	ErrCodeInternal        = "ERR_INTERNAL"
)

// retryableCodes marks which codes the worker may retry.
var retryableCodes = map[string]bool{
	ErrCodeRetryableRemote: true,
	ErrCodePersistence:     true,
}

// Error is the structured error type for WebSeek.
type Error struct {
	// Code is the stable error code (e.g. ERR_NOT_FOUND).
	Code string

	// Message is the human-readable error message.
	Message string

	// Retryable indicates whether the operation can be retried.
	Retryable bool

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, enabling errors.Is with sentinel values.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: retryableCodes[code],
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an Error from an existing error, preserving it as the cause.
// Returns nil if err is nil.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:      code,
		Message:   err.Error(),
		Retryable: retryableCodes[code],
		Cause:     err,
	}
}

// BadConfig creates a crawler/config validation error. Never retried.
func BadConfig(message string) *Error {
	return New(ErrCodeBadConfig, message)
}

// NotFound creates a missing-entity error.
func NotFound(what, id string) *Error {
	return Newf(ErrCodeNotFound, "%s %s not found", what, id)
}

// Conflict creates a duplicate-entity error.
func Conflict(message string) *Error {
	return New(ErrCodeConflict, message)
}

// CodeOf extracts the code from an error chain.
// Returns ERR_INTERNAL for non-structured errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether the error may be retried by the worker.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	// Unknown errors default to retryable so transient failures are not
	// dropped on the floor; the retry budget bounds the damage.
	return true
}
