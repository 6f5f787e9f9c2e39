// Package apperror holds the error values the HTTP layer maps to status codes.
package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Error carries a user facing message next to one of the sentinel errors above
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// New returns an error of the given kind with a user facing message
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// NotFound is shorthand for New(ErrNotFound, message)
func NotFound(message string) error {
	return New(ErrNotFound, message)
}

// Conflict is shorthand for New(ErrConflict, message)
func Conflict(message string) error {
	return New(ErrConflict, message)
}

// Forbidden is shorthand for New(ErrForbidden, message)
func Forbidden(message string) error {
	return New(ErrForbidden, message)
}

// Validation is shorthand for New(ErrValidation, message)
func Validation(message string) error {
	return New(ErrValidation, message)
}

// StatusCode maps err to an HTTP status, reporting false when err is not an application error
func StatusCode(err error) (int, bool) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict, true
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, true
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, true
	}
	return 0, false
}

// Message returns the user facing message of err
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
