package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/coverme/internal/fetch"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "url", Message: "invalid format"}
	assert.Equal(t, "validation error: url - invalid format", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestErrNotFound(t *testing.T) {
	err := &ErrNotFound{Resource: "detection", Key: "https://example.com"}
	assert.Equal(t, "detection not found: https://example.com", err.Error())
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", &ErrValidation{Field: "a", Message: "b"}, http.StatusBadRequest},
		{"invalid url", fmt.Errorf("%w: ftp://x", fetch.ErrInvalidURL), http.StatusBadRequest},
		{"not found", fmt.Errorf("wrapped: %w", &ErrNotFound{Resource: "r", Key: "k"}), http.StatusNotFound},
		{"extraction", fetch.ErrContentExtractionFailed, http.StatusUnprocessableEntity},
		{"upstream", fmt.Errorf("%w: status 500", fetch.ErrHTTPRequestFailed), http.StatusBadGateway},
		{"timeout", fmt.Errorf("render: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"no store", ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	type request struct {
		Action string `validate:"required"`
	}
	err := validationError(validator.New().Struct(request{}))

	var ve *ErrValidation
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "Action", ve.Field)
	assert.Equal(t, "failed on required", ve.Message)
}
