package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/plan-auditor/internal/parsing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &ErrValidation{Field: "html", Message: "is required"}, http.StatusBadRequest},
		{"not found", &ErrNotFound{Resource: "run", ID: "x"}, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", &ErrNotFound{Resource: "report", ID: "x"}), http.StatusNotFound},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"document", fmt.Errorf("plan analysis failed: %w", &parsing.DocumentError{Message: "bad html"}), http.StatusUnprocessableEntity},
		{"no storage", ErrPersistenceDisabled, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "run not found: abc", (&ErrNotFound{Resource: "run", ID: "abc"}).Error())
	assert.Equal(t, "validation error: limit - must be a positive integer",
		(&ErrValidation{Field: "limit", Message: "must be a positive integer"}).Error())
}
