package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Engine error codes
const (
	ErrInvalidQuery        ErrorCode = "INVALID_QUERY"
	ErrAdapterTimeout      ErrorCode = "ADAPTER_TIMEOUT"
	ErrAdapterFailure      ErrorCode = "ADAPTER_FAILURE"
	ErrAllStrategiesFailed ErrorCode = "ALL_STRATEGIES_FAILED"
	ErrHistoryUnavailable  ErrorCode = "HISTORY_UNAVAILABLE"
	ErrInternalError       ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode  `json:"code"`
	Message   string     `json:"message"`
	Strategy  StrategyID `json:"strategy,omitempty"`
	Retryable bool       `json:"retryable"`
	Cause     error      `json:"-"`
	// Outcomes carries the per-strategy diagnostic trail when an
	// orchestration-level error surfaces to the caller.
	Outcomes []StrategyOutcome `json:"outcomes,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithStrategy tags the error with the originating strategy.
func (e *Error) WithStrategy(id StrategyID) *Error {
	e.Strategy = id
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithOutcomes attaches the per-strategy diagnostic trail.
func (e *Error) WithOutcomes(outcomes []StrategyOutcome) *Error {
	e.Outcomes = outcomes
	return e
}

// CodeOf extracts the ErrorCode from an error chain, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternalError
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
