package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridetrack/internal/domain"
	"ridetrack/internal/service"
	"ridetrack/internal/tracking"
)

// SessionHandler handles HTTP requests for tracking sessions.
type SessionHandler struct {
	trackingService *service.TrackingService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(trackingService *service.TrackingService) *SessionHandler {
	return &SessionHandler{trackingService: trackingService}
}

// RouteResponse is the HTTP response for a session's route geometry.
type RouteResponse struct {
	SessionID string                `json:"session_id"`
	Route     *domain.ResolvedRoute `json:"route"`
	Summary   tracking.RouteSummary `json:"summary"`
}

// ConvertResponse is the HTTP response for converting a ride request.
type ConvertResponse struct {
	RideRequestID string `json:"ride_request_id"`
	RideID        string `json:"ride_id"`
	Status        string `json:"status"`
}

// Open handles POST /v1/sessions
func (h *SessionHandler) Open(c *gin.Context) {
	var req service.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	view, err := h.trackingService.OpenSession(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, view)
}

// Get handles GET /v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	view, err := h.trackingService.GetSession(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, view)
}

// Route handles GET /v1/sessions/:id/route
func (h *SessionHandler) Route(c *gin.Context) {
	session, err := h.trackingService.Session(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	view := session.View()
	respondJSON(c, http.StatusOK, RouteResponse{
		SessionID: session.ID(),
		Route:     session.Route(),
		Summary:   view.Route,
	})
}

// Act handles POST /v1/sessions/:id/actions/:action
func (h *SessionHandler) Act(c *gin.Context) {
	view, err := h.trackingService.Act(c.Request.Context(), c.Param("id"), c.Param("action"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, view)
}

// Close handles DELETE /v1/sessions/:id
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.trackingService.CloseSession(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Convert handles POST /v1/ride-requests/:id/convert
func (h *SessionHandler) Convert(c *gin.Context) {
	requestID := c.Param("id")

	ride, err := h.trackingService.ConvertRequest(c.Request.Context(), requestID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, ConvertResponse{
		RideRequestID: requestID,
		RideID:        ride.ID,
		Status:        string(ride.Status),
	})
}
