package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("requested resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden access")
	ErrBadRequest     = errors.New("bad request")
	ErrConflict       = errors.New("resource conflict") // e.g., duplicate open challenge
	ErrInvalidState   = errors.New("invalid state for requested transition")
	ErrValidation     = errors.New("validation failed")
	ErrInternalServer = errors.New("internal server error")
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
// InvalidState and Conflict both surface as 400: clients treat them as
// "this transition is not possible right now", not as a retryable 409.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidState) || errors.Is(err, ErrConflict) {
		return http.StatusBadRequest
	}

	// Unique violations that slipped past the service-level duplicate check.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return http.StatusBadRequest
		}
	}

	return http.StatusInternalServerError
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
