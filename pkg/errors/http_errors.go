package errors

import (
	stderrors "errors"
	"net/http"
)

// FromError converts a standard error to an AppError.
// If the error is (or wraps) an AppError, it is returned as-is;
// otherwise it is wrapped as an internal server error.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewInternalServerError(err)
}

// KindOf returns the Kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// GetStatusCode extracts the HTTP status code from an AppError, returns 500 if not an AppError
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether err should be shown to the caller as-is.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindAuthentication, KindNotFound, KindRateLimit:
		return true
	}
	return false
}
