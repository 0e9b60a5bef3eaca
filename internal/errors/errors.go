// Package errors defines the service error taxonomy shared by handlers,
// services, and stores.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the service layer.
const (
	CodeNotFound    = "NOT_FOUND"
	CodeValidation  = "VALIDATION"
	CodeUnavailable = "UNAVAILABLE"
	CodeInternal    = "INTERNAL"
	CodeRateLimited = "RATE_LIMITED"

	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// ServiceError is the canonical error type. Every failure that reaches a
// client must be representable as one of these so the HTTP layer can map it
// to exactly one response.
type ServiceError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value pair for operator-facing context. Details
// are never serialized into 5xx responses.
func (e *ServiceError) WithDetails(key string, value any) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NotFound reports that route resolution or a record lookup failed.
func NotFound(message string) *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// Validation reports input that fails type or constraint checks.
func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// Unavailable reports that the store or a dependency is unreachable.
func Unavailable(message string, err error) *ServiceError {
	return &ServiceError{Code: CodeUnavailable, Message: message, HTTPStatus: http.StatusServiceUnavailable, Err: err}
}

// Internal reports an unexpected failure. The wrapped cause is logged, never
// surfaced to clients.
func Internal(message string, err error) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// MethodNotAllowed reports that the path matched a route but the method did
// not.
func MethodNotAllowed(method, path string) *ServiceError {
	return &ServiceError{
		Code:       CodeMethodNotAllowed,
		Message:    fmt.Sprintf("method %s not allowed for %s", method, path),
		HTTPStatus: http.StatusMethodNotAllowed,
	}
}

// RateLimitExceeded reports that a client has exhausted its request budget.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return (&ServiceError{
		Code:       CodeRateLimited,
		Message:    "rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
	}).WithDetails("limit", limit).WithDetails("window", window)
}

// GetServiceError extracts a *ServiceError from err, unwrapping as needed.
// Returns nil when err carries no service error.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// IsNotFound reports whether err is a NOT_FOUND service error.
func IsNotFound(err error) bool {
	svcErr := GetServiceError(err)
	return svcErr != nil && svcErr.Code == CodeNotFound
}

// IsValidation reports whether err is a VALIDATION service error.
func IsValidation(err error) bool {
	svcErr := GetServiceError(err)
	return svcErr != nil && svcErr.Code == CodeValidation
}

// IsUnavailable reports whether err is an UNAVAILABLE service error.
func IsUnavailable(err error) bool {
	svcErr := GetServiceError(err)
	return svcErr != nil && svcErr.Code == CodeUnavailable
}
