package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorString(t *testing.T) {
	withCause := &AppError{Code: "INTERNAL_ERROR", Message: "boom", Err: fmt.Errorf("db down")}
	assert.Equal(t, "INTERNAL_ERROR: boom: db down", withCause.Error())

	bare := &AppError{Code: "NOT_FOUND", Message: "missing"}
	assert.Equal(t, "NOT_FOUND: missing", bare.Error())
}

func TestNotFound(t *testing.T) {
	err := NotFound("product", "p-1")
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnavailable_KeepsCauseAndSentinel(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("search", cause)

	require.NotNil(t, err)
	assert.Equal(t, "SEARCH_UNAVAILABLE", err.Code)
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
	assert.ErrorIs(t, err, ErrServiceUnavail)
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", InvalidInput("bad"), http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("get: %w", ErrNotFound), http.StatusNotFound},
		{"conflict", ErrConflict, http.StatusConflict},
		{"unavailable sentinel", fmt.Errorf("x: %w", ErrServiceUnavail), http.StatusServiceUnavailable},
		{"unknown", errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
