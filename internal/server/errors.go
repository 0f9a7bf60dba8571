// Package server provides the HTTP API for plan analysis and stored runs.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/plan-auditor/internal/parsing"
)

// ErrPersistenceDisabled is returned by run endpoints when no database is configured.
var ErrPersistenceDisabled = errors.New("run storage is not configured")

// ErrNotFound indicates a missing run or artifact
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		notFoundErr   *ErrNotFound
		tooLargeErr   *http.MaxBytesError
		documentErr   *parsing.DocumentError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &tooLargeErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &documentErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrPersistenceDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
