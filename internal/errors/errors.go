// Package errors defines structured error types for the API.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode defines specific error types for the API.
type ErrorCode string

const (
	// ErrValidationFailed is returned when input data fails validation
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrMissingField is returned when a required field is missing
	ErrMissingField ErrorCode = "MISSING_FIELD"
	// ErrInvalidFormat is returned when a field has an invalid format
	ErrInvalidFormat ErrorCode = "INVALID_FORMAT"

	// ErrNotFound is returned when a resource is not found
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrConflict is returned when there is a resource conflict
	ErrConflict ErrorCode = "CONFLICT"

	// ErrUnauthorized is returned when credentials are missing or invalid
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrRateLimited is returned when too many requests were made
	ErrRateLimited ErrorCode = "RATE_LIMITED"

	// ErrStorageError is returned when a storage operation fails
	ErrStorageError ErrorCode = "STORAGE_ERROR"
	// ErrInternal is returned when an unexpected server error occurs
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is a concrete error type with status code, code, and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{
		statusCode: statusCode,
		code:       code,
		message:    message,
	}
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *APIError) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// Predefined error constructors for common cases

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrValidationFailed, message)
}

// MissingField creates a 400 Bad Request error for a missing field.
func MissingField(fieldName string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrMissingField, fmt.Sprintf("Missing required field: %s", fieldName)).
		WithDetail("field", fieldName)
}

// InvalidFormat creates a 400 Bad Request error for a malformed field.
func InvalidFormat(fieldName, value string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrInvalidFormat, fmt.Sprintf("Invalid %s: %q", fieldName, value)).
		WithDetail("field", fieldName)
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *APIError {
	return NewAPIError(http.StatusConflict, ErrConflict, message)
}

// Unauthorized returns a 401 Unauthorized error.
func Unauthorized(message string) *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrUnauthorized, message)
}

// RateLimited returns a 429 Too Many Requests error.
func RateLimited(retryAfter time.Duration) *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrRateLimited, "Too many requests").
		WithDetail("retry_after_seconds", int(retryAfter.Seconds()+0.5))
}

// Storage creates a 500 error for a failed storage operation.
func Storage(err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrStorageError, "Storage operation failed").Wrap(err)
}

// Internal returns a 500 Internal Server Error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrInternal, message)
}

// InternalWithError creates a 500 error wrapping an underlying error.
func InternalWithError(message string, err error) *APIError {
	return Internal(message).Wrap(err)
}
