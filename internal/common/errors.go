package common

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrPlanLimit    = errors.New("plan limit reached")
	ErrSuspended    = errors.New("tenant suspended")
)

// HTTPStatusFor maps sentinel errors (possibly wrapped) to status codes.
func HTTPStatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrPlanLimit), errors.Is(err, ErrSuspended):
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

// CodeFor returns the error envelope code for err.
func CodeFor(err error) string {
	switch HTTPStatusFor(err) {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusPaymentRequired:
		return "PAYMENT_REQUIRED"
	}
	return "SERVER_ERROR"
}
