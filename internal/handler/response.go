package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridetrack/internal/lifecycle"
	"ridetrack/internal/repository"
	"ridetrack/internal/repository/rest"
	"ridetrack/internal/routing"
	"ridetrack/internal/service"
	"ridetrack/internal/tracking"
)

// ErrorResponse represents an error response. Action is set when a
// lifecycle action could not be persisted, so the client can retry it.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	resp := ErrorResponse{Error: err.Error()}

	var pe *lifecycle.PersistenceError
	if errors.As(err, &pe) {
		resp.Action = string(pe.Action)
	}
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, resp)
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, tracking.ErrSessionNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidSessionID),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, routing.ErrInvalidRouteRequest),
		errors.Is(err, lifecycle.ErrUnknownKind):
		return http.StatusBadRequest

	// Backend refused or failed to store a transition. Checked before
	// conflicts: a compare-and-set refusal is still a persistence failure.
	case errors.Is(err, lifecycle.ErrPersistenceFailed):
		return http.StatusBadGateway

	// Conflict errors
	case errors.Is(err, lifecycle.ErrIllegalTransition),
		errors.Is(err, tracking.ErrSessionActive),
		errors.Is(err, tracking.ErrSessionClosed),
		errors.Is(err, tracking.ErrRideFinished),
		errors.Is(err, service.ErrRequestTracked),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict

	// Stored record cannot be tracked
	case errors.Is(err, repository.ErrIncomplete):
		return http.StatusUnprocessableEntity

	// Backend answered with an unexpected status
	case isUpstreamFailure(err):
		return http.StatusBadGateway

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

func isUpstreamFailure(err error) bool {
	var se *rest.StatusError
	return errors.As(err, &se)
}
