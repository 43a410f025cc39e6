package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for caseflow errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Graph connection error codes
const (
	GRAPH_CONNECTION_FAILED ErrorCode = "GRAPH_CONNECTION_FAILED"
	GRAPH_CONNECTION_CLOSED ErrorCode = "GRAPH_CONNECTION_CLOSED"
	GRAPH_POOL_EXHAUSTED    ErrorCode = "GRAPH_POOL_EXHAUSTED"
	GRAPH_INVALID_CONFIG    ErrorCode = "GRAPH_INVALID_CONFIG"
)

// Query error codes
const (
	GRAPH_QUERY_FAILED          ErrorCode = "GRAPH_QUERY_FAILED"
	GRAPH_QUERY_TIMEOUT         ErrorCode = "GRAPH_QUERY_TIMEOUT"
	GRAPH_RESULT_PARSING        ErrorCode = "GRAPH_RESULT_PARSING"
	QUERY_BUILDER_INVALID       ErrorCode = "QUERY_BUILDER_INVALID"
	QUERY_CARDINALITY_VIOLATION ErrorCode = "QUERY_CARDINALITY_VIOLATION"
)

// Transaction error codes
const (
	TX_FAILED            ErrorCode = "TX_FAILED"
	TX_RETRIES_EXHAUSTED ErrorCode = "TX_RETRIES_EXHAUSTED"
)

// Domain error codes
const (
	VALIDATION_FAILED ErrorCode = "VALIDATION_FAILED"
	PROCESS_NOT_FOUND ErrorCode = "PROCESS_NOT_FOUND"
	TASK_NOT_FOUND    ErrorCode = "TASK_NOT_FOUND"
	USER_NOT_FOUND    ErrorCode = "USER_NOT_FOUND"
)

// Error represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for transaction retry logic:
// Retryable marks transient failures (conflicts, leader changes, network blips)
// that may succeed when the whole unit of work is re-run.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var cfErr *Error
	if errors.As(target, &cfErr) {
		return e.Code == cfErr.Code
	}
	return false
}

// NewError creates a new non-retryable Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable Error with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable Error that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// WrapRetryableError creates a new retryable Error that wraps an existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// IsRetryable reports whether err (or any error in its chain) is a caseflow
// Error marked retryable. Non-caseflow errors report false.
func IsRetryable(err error) bool {
	var cfErr *Error
	if errors.As(err, &cfErr) {
		return cfErr.Retryable
	}
	return false
}

// CodeOf extracts the caseflow error code from err, or an empty code when err
// carries no *Error in its chain.
func CodeOf(err error) ErrorCode {
	var cfErr *Error
	if errors.As(err, &cfErr) {
		return cfErr.Code
	}
	return ""
}
