// Package errors provides error code definitions for the Aida client core.
package errors

import "fmt"

// ErrorCode represents a unique error code surfaced across the Go-Dart boundary.
type ErrorCode string

const (
	// Transport failures recovered locally by the queue processor.
	ErrNetwork     ErrorCode = "NETWORK_ERROR"
	ErrTimeout     ErrorCode = "TIMEOUT"
	ErrServerError ErrorCode = "SERVER_ERROR"

	// Transport failures surfaced immediately, never retried.
	ErrBadRequest  ErrorCode = "BAD_REQUEST"
	ErrForbidden   ErrorCode = "FORBIDDEN"
	ErrNotFound    ErrorCode = "NOT_FOUND"
	ErrAuthExpired ErrorCode = "AUTH_EXPIRED"
	ErrUnknown     ErrorCode = "UNKNOWN_ERROR"

	// Queue errors surfaced synchronously at enqueue time.
	ErrQueueFull ErrorCode = "QUEUE_FULL"

	// Storage errors.
	ErrStorage ErrorCode = "STORAGE_ERROR"

	// Local validation errors.
	ErrInvalid ErrorCode = "INVALID_INPUT"
)

// AppError represents an application error with a code, message, and for
// transport failures the HTTP status and retry eligibility.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int  // 0 when no response was received
	Retryable  bool // eligible for automatic retry by the queue processor
	Err        error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}
