package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/inception-project/taskd/internal/api/shared"
	"github.com/inception-project/taskd/internal/kinds"
	"github.com/inception-project/taskd/internal/platform/postgres"
	"github.com/inception-project/taskd/internal/service/auth"
	"github.com/inception-project/taskd/internal/task"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	validationErr := shared.ValidateRequest(&SubmitTaskRequest{})

	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"unauthenticated", ErrUnauthenticated, http.StatusUnauthorized, "Authentication required"},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized, "Token expired"},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
		{"not found", fmt.Errorf("get: %w", postgres.ErrNotFound), http.StatusNotFound, "Run not found"},
		{"unknown kind", fmt.Errorf("%w: %q", task.ErrUnknownKind, "x"), http.StatusBadRequest, "Unknown task kind"},
		{"invalid request", task.ErrInvalidRequest, http.StatusBadRequest, "Invalid task request"},
		{"validation", validationErr, http.StatusBadRequest, "Invalid Kind: required field"},
		{"history disabled", kinds.ErrHistoryDisabled, http.StatusServiceUnavailable, "Run history is not available"},
		{"unknown", errors.New("password=hunter2"), http.StatusInternalServerError, "An unexpected error occurred"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, MapErrorToStatusCode(tc.err))
			assert.Equal(t, tc.msg, GetSafeErrorMessage(tc.err))
		})
	}

	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}

func TestSanitizeValidationError(t *testing.T) {
	err := shared.ValidateRequest(&SubmitTaskRequest{Kind: string(make([]byte, 65))})
	assert.Equal(t, "Invalid Kind: too long", SanitizeValidationError(err))
	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}
