// Package apperr defines the transport-independent error kinds from
// spec.md §7 Error Handling Design.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error independent of its transport.
type Kind string

const (
	KindValidation                   Kind = "validation_error"
	KindNotFound                     Kind = "not_found"
	KindRateLimited                  Kind = "rate_limited"
	KindUnauthorized                 Kind = "unauthorized"
	KindUpstream                     Kind = "upstream_error"
	KindLLMUnavailable               Kind = "llm_unavailable"
	KindDuplicateDetectorUnavailable Kind = "duplicate_detector_unavailable"
	KindDatabase                     Kind = "database_error"
	KindTaskTimeout                  Kind = "task_timeout"
	KindFileAnalysis                 Kind = "file_analysis_error"
)

// Error is the user-visible {error_code, message, context} object spec.md
// §7 requires for every surfaced failure.
type Error struct {
	Kind       Kind
	Message    string
	Context    map[string]any
	RetryAfter time.Duration // only meaningful for KindRateLimited
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind, preserving cause for errors.Is/As.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithContext attaches structured context (e.g. {"pr_number": 42}) and
// returns the receiver for chaining.
func (e *Error) WithContext(ctx map[string]any) *Error {
	e.Context = ctx
	return e
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// Retriable reports whether a task-level retry should be attempted for this
// error kind, per the propagation rule in spec.md §7: only fetch failures
// and their exhaustion produce a failed terminal state; LLM/duplicate
// detector failures never surface this far because they degrade upstream.
func Retriable(err error) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Kind {
	case KindRateLimited, KindUpstream, KindDatabase:
		return true
	default:
		return false
	}
}
