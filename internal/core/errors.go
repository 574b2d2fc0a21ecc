// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Lookup errors
	ErrStrategyNotFound = &Error{Code: "STRATEGY_NOT_FOUND", Message: "strategy not found"}
	ErrRunNotFound      = &Error{Code: "RUN_NOT_FOUND", Message: "run not found"}

	// Validation errors
	ErrValidation    = &Error{Code: "VALIDATION_FAILED", Message: "request validation failed"}
	ErrAlreadyExists = &Error{Code: "ALREADY_EXISTS", Message: "resource already exists"}
	ErrConflict      = &Error{Code: "CONFLICT", Message: "operation conflicts with existing state"}

	// Merge errors
	ErrMergeOverlap      = &Error{Code: "MERGE_OVERLAP", Message: "run date ranges overlap"}
	ErrParameterMismatch = &Error{Code: "PARAMETER_MISMATCH", Message: "run parameters differ"}

	// Ingest errors
	ErrParseFailed = &Error{Code: "PARSE_FAILED", Message: "export file could not be parsed"}

	// Infrastructure errors
	ErrStorageFailed  = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}
	ErrArchiveFailed  = &Error{Code: "ARCHIVE_FAILED", Message: "archive operation failed"}
	ErrNotifierFailed = &Error{Code: "NOTIFIER_FAILED", Message: "notifier failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
