package dto

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/colabtask/colabtask/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse creates a new error response.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// MapDomainError maps domain errors to HTTP status codes and error codes.
// Conflict is deliberately distinct from NotFound so clients know to
// re-fetch the record and retry with the fresh version token.
func MapDomainError(err error) (status int, code string, message string) {
	message = err.Error()

	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, "TASK_NOT_FOUND", message
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict, "VERSION_CONFLICT", message
	case errors.Is(err, domain.ErrMissingVersion):
		return http.StatusUnprocessableEntity, "MISSING_VERSION", message
	case errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", message
	default:
		// CRITICAL: Log unmapped error for debugging
		slog.Error("unmapped domain error returned to client",
			"error", err,
			"error_type", fmt.Sprintf("%T", err),
		)
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}
