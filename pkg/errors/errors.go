package errors

import (
	"fmt"
	"net/http"
)

// Kind classifies where an error came from. Handlers never branch on the
// message text, only on the Kind.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindNotFound       Kind = "not_found"
	KindUpstream       Kind = "upstream"
	KindPersistence    Kind = "persistence"
	KindRateLimit      Kind = "rate_limit"
	KindInternal       Kind = "internal"
)

// Messages returned to clients. The frontend matches on some of these.
const (
	MsgGeneric            = "Something went wrong"
	MsgUserNotRegistered  = "User not registered OR Token malfunctioned"
	MsgPermissionMismatch = "Permissions didn't match"
	MsgTokenMissing       = "Token Not Received"
	MsgTokenExpired       = "Token Expired"
	MsgTokenInvalid       = "Token Malformed"
	MsgValidationFailed   = "Validation failed"
	MsgTooManyRequests    = "Too many requests. Please try again later."
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Kind       Kind   `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	// Err is the underlying cause. It is logged, never rendered.
	Err error `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, kind Kind, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Kind:       kind,
		Code:       code,
		Message:    message,
	}
}

// NewValidationError creates a 422 error listing the violated fields
func NewValidationError(violations any) *AppError {
	return NewError(http.StatusUnprocessableEntity, KindValidation, "VALIDATION_FAILED", MsgValidationFailed).
		WithDetails(violations)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, KindAuthentication, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(http.StatusNotFound, KindNotFound, code, message)
}

// NewTooManyRequestsError creates a 429 error
func NewTooManyRequestsError() *AppError {
	return NewError(http.StatusTooManyRequests, KindRateLimit, "RATE_LIMIT_EXCEEDED", MsgTooManyRequests)
}

// NewUpstreamError wraps an AI provider failure as a generic 500
func NewUpstreamError(cause error) *AppError {
	e := NewError(http.StatusInternalServerError, KindUpstream, "UPSTREAM_ERROR", MsgGeneric)
	e.Err = cause
	return e
}

// NewPersistenceError wraps a store failure as a generic 500
func NewPersistenceError(cause error) *AppError {
	e := NewError(http.StatusInternalServerError, KindPersistence, "PERSISTENCE_ERROR", MsgGeneric)
	e.Err = cause
	return e
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(cause error) *AppError {
	e := NewError(http.StatusInternalServerError, KindInternal, "INTERNAL_ERROR", MsgGeneric)
	e.Err = cause
	return e
}
