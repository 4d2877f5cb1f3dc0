// Package apperr holds the error taxonomy shared by repositories, services
// and HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
)

// AppError carries an HTTP status alongside a sentinel so handlers can map
// service failures without string matching.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a not found error for the given resource and id.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

// Invalid wraps a validation failure. cause is usually an ozzo-validation
// error map and is kept for errors.As.
func Invalid(cause error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrValidation, cause),
		Message:    cause.Error(),
		HTTPStatus: http.StatusBadRequest,
	}
}

// Invalidf builds a validation error from a format string.
func Invalidf(format string, args ...interface{}) *AppError {
	return Invalid(fmt.Errorf(format, args...))
}

// Conflict creates a conflict error.
func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// Status returns the HTTP status for err, defaulting to 500.
func Status(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
