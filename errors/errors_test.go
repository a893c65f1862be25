package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ValidationError, "invalid input", "field required")
	assert.Equal(t, ValidationError, err.Type)
	assert.Equal(t, "invalid input", err.Message)
	assert.Equal(t, "field required", err.Detail)
	assert.Equal(t, 400, err.HTTPStatus)
}

func TestWrap(t *testing.T) {
	originalErr := fmt.Errorf("original error")
	wrappedErr := Wrap(originalErr, PersistenceError, "write failed")

	assert.Equal(t, PersistenceError, wrappedErr.Type)
	assert.Equal(t, "write failed", wrappedErr.Message)
	assert.Equal(t, originalErr.Error(), wrappedErr.Detail)
	assert.Equal(t, 500, wrappedErr.HTTPStatus)
	assert.Equal(t, originalErr, wrappedErr.Raw)
	assert.True(t, errors.Is(wrappedErr, originalErr))
}

func TestNotFound(t *testing.T) {
	err := NotFound("Notification", "push:123")
	assert.Equal(t, NotFoundError, err.Type)
	assert.Equal(t, "Notification not found", err.Message)
	assert.Equal(t, "ID: push:123", err.Detail)
	assert.Equal(t, 404, err.HTTPStatus)
}

func TestNewFetchError(t *testing.T) {
	originalErr := fmt.Errorf("connection refused")
	err := NewFetchError(originalErr, "push channel unreachable")
	assert.Equal(t, FetchError, err.Type)
	assert.Equal(t, "Failed to fetch notification feed", err.Message)
	assert.Equal(t, "push channel unreachable", err.Detail)
	assert.Equal(t, 502, err.HTTPStatus)
	assert.Equal(t, originalErr, err.Raw)
	assert.True(t, IsFetchError(err))
	assert.False(t, IsPersistenceError(err))
}

func TestNewPersistenceError(t *testing.T) {
	originalErr := fmt.Errorf("disk full")
	err := NewPersistenceError(originalErr, "batch write")
	assert.Equal(t, PersistenceError, err.Type)
	assert.Equal(t, "Failed to persist read state", err.Message)
	assert.Equal(t, 500, err.HTTPStatus)
	assert.Equal(t, originalErr, err.Raw)
	assert.True(t, IsPersistenceError(err))
	assert.False(t, IsFetchError(err))
}

func TestIsTypeThroughWrapping(t *testing.T) {
	cause := NewPersistenceError(fmt.Errorf("io error"), "")
	wrapped := fmt.Errorf("mark read: %w", cause)
	assert.True(t, IsPersistenceError(wrapped))
	assert.False(t, IsFetchError(wrapped))
	assert.False(t, IsPersistenceError(nil))
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "with detail",
			err: &AppError{
				Type:    ValidationError,
				Message: "invalid input",
				Detail:  "field required",
			},
			expected: "VALIDATION_ERROR: invalid input (field required)",
		},
		{
			name: "without detail",
			err: &AppError{
				Type:    AuthError,
				Message: "unauthorized",
			},
			expected: "AUTHENTICATION_ERROR: unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestGetHTTPStatusFallback(t *testing.T) {
	err := &AppError{Type: FetchError}
	assert.Equal(t, 502, err.GetHTTPStatus())

	err = &AppError{Type: ServerError}
	assert.Equal(t, 500, err.GetHTTPStatus())

	err = &AppError{Type: AuthError, HTTPStatus: 401}
	assert.Equal(t, 401, err.GetHTTPStatus())
}
