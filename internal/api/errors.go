package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/inception-project/taskd/internal/api/shared"
	"github.com/inception-project/taskd/internal/kinds"
	"github.com/inception-project/taskd/internal/platform/postgres"
	"github.com/inception-project/taskd/internal/service/auth"
	"github.com/inception-project/taskd/internal/task"
	"github.com/inception-project/taskd/internal/trigger"
)

// Errors produced by the handlers themselves.
var (
	ErrUnauthenticated  = errors.New("no authenticated user")
	ErrInvalidProjectID = errors.New("invalid project id")
	ErrInvalidLimit     = errors.New("invalid limit")
)

// MapErrorToStatusCode maps internal errors to HTTP status codes so that
// internal error types never reach clients.
func MapErrorToStatusCode(err error) int {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingSubject):
		return http.StatusUnauthorized

	case errors.Is(err, postgres.ErrNotFound),
		errors.Is(err, trigger.ErrUnknownSchedule):
		return http.StatusNotFound

	case errors.Is(err, task.ErrUnknownKind),
		errors.Is(err, task.ErrInvalidRequest),
		errors.Is(err, ErrInvalidProjectID),
		errors.Is(err, ErrInvalidLimit),
		errors.As(err, &validationErrors):
		return http.StatusBadRequest

	case errors.Is(err, kinds.ErrHistoryDisabled):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err that carries
// no internal detail.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "Authentication required"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingSubject):
		return "Invalid token"
	case errors.Is(err, postgres.ErrNotFound):
		return "Run not found"
	case errors.Is(err, trigger.ErrUnknownSchedule):
		return "Schedule not found"
	case errors.Is(err, task.ErrUnknownKind):
		return "Unknown task kind"
	case errors.Is(err, task.ErrInvalidRequest):
		return "Invalid task request"
	case errors.Is(err, ErrInvalidProjectID):
		return "Invalid project id"
	case errors.Is(err, ErrInvalidLimit):
		return "Invalid limit"
	case errors.As(err, &validationErrors):
		return SanitizeValidationError(err)
	case errors.Is(err, kinds.ErrHistoryDisabled):
		return "Run history is not available"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator errors into a short message
// naming the first failing field.
func SanitizeValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return "Validation error"
	}
	fe := validationErrors[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the status and safe message for err and logs the
// redacted detail. A non-empty message overrides the safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
