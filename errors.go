package orator

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/eringen/orator/books"
	"github.com/eringen/orator/pages"
)

// APIError is an error with the HTTP status and message sent to API clients
// as {"error": message}.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

var (
	errUnauthorized    = &APIError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	errTooManyAttempts = &APIError{Status: http.StatusTooManyRequests, Message: "Too many attempts. Try again later."}
	errForbidden       = &APIError{Status: http.StatusForbidden, Message: "Forbidden"}
)

// NewInvalidRequest creates a 400 error for malformed request bodies.
func NewInvalidRequest(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: msg}
}

// apiError maps domain errors to their HTTP category: missing things are
// 404, conflicts and invalid input are 400, anything else is 500 carrying the
// error text.
func apiError(err error) *APIError {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, pages.ErrExists):
		return &APIError{Status: http.StatusBadRequest, Message: "Page already exists", Err: err}
	case errors.Is(err, pages.ErrNotFound):
		return &APIError{Status: http.StatusNotFound, Message: "Page not found", Err: err}
	case errors.Is(err, pages.ErrInvalid), errors.Is(err, books.ErrInvalidID):
		return &APIError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	case errors.Is(err, books.ErrBookNotFound), errors.Is(err, books.ErrNoChapters):
		return &APIError{Status: http.StatusNotFound, Message: err.Error(), Err: err}
	}
	return &APIError{Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
}
