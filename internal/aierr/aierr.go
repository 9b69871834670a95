// Package aierr defines the closed error taxonomy for AI enrichment
// operations. Errors are value types carrying a stable machine-readable
// code; callers branch on Code, never on message text.
package aierr

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies one failure class. The set is closed: new codes require
// updating every switch over Code in the API layer.
type Code string

const (
	// CodeMissingCredentials means no API key is configured. Fatal,
	// non-retryable; a configuration problem, not a runtime one.
	CodeMissingCredentials Code = "MISSING_CREDENTIALS"

	// CodeRequestFailed means the upstream call failed with a
	// non-retryable error, or wrapping an operation-level failure.
	CodeRequestFailed Code = "REQUEST_FAILED"

	// CodeMaxRetriesExceeded means every retry attempt was consumed.
	CodeMaxRetriesExceeded Code = "MAX_RETRIES_EXCEEDED"

	// CodeRateLimited means the per-user quota is exhausted. Retryable
	// after RetryAfter.
	CodeRateLimited Code = "RATE_LIMITED"

	// CodeTimeout means the caller's deadline expired mid-operation.
	CodeTimeout Code = "TIMEOUT"

	// Operation-specific wrappers over an underlying failure.
	CodeSummaryFailed  Code = "SUMMARY_FAILED"
	CodeTagsFailed     Code = "TAGS_FAILED"
	CodeCategoryFailed Code = "CATEGORY_FAILED"
	CodeSearchFailed   Code = "SEARCH_FAILED"
)

// Error is the typed error returned by every enrichment component.
// It is never mutated after construction.
type Error struct {
	Code      Code
	Message   string
	Retryable bool

	// RetryAfter is set only for CodeRateLimited: how long until the
	// quota window resets.
	RetryAfter time.Duration

	// Err is the wrapped underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with no wrapped cause.
func New(code Code, retryable bool, format string, args ...any) *Error {
	return &Error{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: retryable,
	}
}

// Wrap creates an Error wrapping cause. The wrapper is non-retryable
// unless the code is CodeRateLimited.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: code == CodeRateLimited,
		Err:       cause,
	}
}

// RateLimited creates a CodeRateLimited error carrying the wait time.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Message:    fmt.Sprintf("rate limit exceeded, retry in %s", retryAfter.Round(time.Second)),
		Retryable:  true,
		RetryAfter: retryAfter,
	}
}

// CodeOf returns the Code of err if it is (or wraps) an *Error, or "" otherwise.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
