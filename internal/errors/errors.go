// Package errors provides centralized error definitions and error handling
// utilities for councild. It defines sentinel errors for request validation
// and pipeline outcomes, semantic error types, and classification helpers.
//
// # Error Types
//
// Sentinel errors cover the conditions the pipeline distinguishes:
// validation failures (ErrEmptyContent, ErrCouncilTooLarge, ...), the
// stage-1 total failure (ErrAllModelsFailed), and timeouts (ErrTimeout).
//
// Semantic errors carry structured context:
//   - ValidationError: a malformed or oversized request field
//   - TimeoutError: an operation that exceeded its budget
//   - ProviderError: a failed call to one remote model backend
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewValidationError("content cannot be empty").WithField("content")
//	err := errors.NewProviderError("openai/gpt-5.2-chat", 502, cause)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrAllModelsFailed) { ... }
//
//	var provErr *errors.ProviderError
//	if errors.As(err, &provErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Validation sentinel errors. All of these fail a request before any
// pipeline stage starts.
var (
	// ErrMissingCredential indicates the per-request API credential is absent.
	ErrMissingCredential = New("missing API credential")
	// ErrEmptyContent indicates the query text is empty or whitespace.
	ErrEmptyContent = New("content cannot be empty")
	// ErrContentTooLarge indicates the query text exceeds the hard cap.
	ErrContentTooLarge = New("content too large")
	// ErrCouncilTooLarge indicates more council members than permitted.
	ErrCouncilTooLarge = New("too many council models")
	// ErrContextTooLarge indicates the prior-turn context exceeds its caps.
	ErrContextTooLarge = New("conversation context too large")
	// ErrInvalidContextRole indicates a prior turn with an unknown role.
	ErrInvalidContextRole = New("conversation context role must be 'user' or 'assistant'")
	// ErrModelNotAllowed indicates a model identifier outside the configured
	// allow patterns.
	ErrModelNotAllowed = New("model not allowed")
)

// Pipeline sentinel errors.
var (
	// ErrAllModelsFailed indicates that no council member produced a
	// stage-1 response. This is the only stage-fatal provider condition.
	ErrAllModelsFailed = New("all models failed to respond")
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that the caller went away mid-run.
	ErrCanceled = New("operation canceled")
)

// Storage sentinel errors.
var (
	// ErrConversationNotFound indicates an unknown conversation id.
	ErrConversationNotFound = New("conversation not found")
)

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents a malformed or oversized request field.
//
// Example:
//
//	err := errors.NewValidationError("content cannot be empty")
//	err = err.WithField("content")
type ValidationError struct {
	message string
	cause   error
	Field   string
	Value   any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{message: message}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the offending value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Message returns the bare message without the field/value prefix. This is
// what gets surfaced to callers on the error event.
func (e *ValidationError) Message() string { return e.message }

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// TimeoutError represents an operation that exceeded its time budget.
//
// Example:
//
//	err := errors.NewTimeoutError("stage1 response", 120*time.Second)
type TimeoutError struct {
	cause     error
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// ProviderError represents a failed call to one remote model backend.
// Per-branch provider errors are isolated: they are logged, recorded as
// absence in the result set, and never raised past the dispatcher.
//
// Example:
//
//	err := errors.NewProviderError("openai/gpt-5.2-chat", 502, cause)
type ProviderError struct {
	cause      error
	Model      string
	StatusCode int // 0 when the failure happened before an HTTP status
}

// NewProviderError creates a new ProviderError.
func NewProviderError(model string, statusCode int, cause error) *ProviderError {
	return &ProviderError{Model: model, StatusCode: statusCode, cause: cause}
}

// Error returns the formatted error message.
func (e *ProviderError) Error() string {
	prefix := fmt.Sprintf("provider error [model=%s]", e.Model)
	if e.StatusCode != 0 {
		prefix = fmt.Sprintf("provider error [model=%s, status=%d]", e.Model, e.StatusCode)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *ProviderError) Is(target error) bool {
	if _, ok := target.(*ProviderError); ok {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. The pipeline itself never retries; this exists
// for callers that implement their own per-branch retry policy.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if Is(err, ErrTimeout) {
		return true
	}

	var provErr *ProviderError
	if As(err, &provErr) {
		// Upstream 5xx and transport-level failures are worth retrying;
		// 4xx means the request itself is bad.
		return provErr.StatusCode == 0 || provErr.StatusCode >= 500
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to
// callers. Validation failures and the stage-1 total failure are; raw
// provider errors are not (they may embed upstream response bodies).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var validation *ValidationError
	var timeout *TimeoutError
	if As(err, &validation) || As(err, &timeout) {
		return true
	}

	return Is(err, ErrAllModelsFailed) ||
		Is(err, ErrMissingCredential) ||
		Is(err, ErrConversationNotFound)
}

// UserMessage returns the message to surface on an error event. For
// ValidationError this is the bare message; anything not user-facing is
// replaced with a generic line.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var validation *ValidationError
	if As(err, &validation) {
		return validation.Message()
	}

	if IsUserFacing(err) {
		return err.Error()
	}
	return "internal error"
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
