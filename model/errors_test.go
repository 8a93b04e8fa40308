package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorEnvelope_Error(t *testing.T) {
	e := &ErrorEnvelope{Code: ErrNotFound, Message: "grid not found"}
	assert.EqualError(t, e, "NOT_FOUND: grid not found")
}

func TestNewNotFoundError(t *testing.T) {
	e := NewNotFoundError("resource missing")
	assert.Equal(t, ErrNotFound, e.Code)
	assert.Equal(t, "resource missing", e.Message)
}

func TestNewValidationError(t *testing.T) {
	e := NewValidationError([]FieldError{
		{Field: "page_size", Code: "RANGE", Message: "page_size must be positive"},
	})
	assert.Equal(t, ErrValidationError, e.Code)
	require.Len(t, e.Details, 1)
	assert.Equal(t, "page_size", e.Details[0].Field)
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *ErrorEnvelope
		want string
	}{
		{"misconfigured", NewMisconfiguredError("no fetcher"), ErrMisconfigured},
		{"backend unavailable", NewBackendUnavailableError(), ErrBackendUnavailable},
		{"backend timeout", NewBackendTimeoutError(), ErrBackendTimeout},
		{"bad request", NewBadRequestError("bad sort"), ErrBadRequest},
		{"export failed", NewExportFailedError("pdf"), ErrExportFailed},
		{"internal", NewInternalError(), ErrInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("fetch orders: %w", NewBackendTimeoutError())

	assert.True(t, HasCode(wrapped, ErrBackendTimeout))
	assert.False(t, HasCode(wrapped, ErrNotFound))
	assert.False(t, HasCode(errors.New("plain"), ErrNotFound))
}

func TestErrorEnvelope_Is(t *testing.T) {
	err := fmt.Errorf("search orders.list: %w", NewBackendTimeoutError())

	assert.ErrorIs(t, err, &ErrorEnvelope{Code: ErrBackendTimeout}, "wrapped envelope matches by code")
	assert.NotErrorIs(t, err, &ErrorEnvelope{Code: ErrBackendUnavailable})
}
