package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridetrack/internal/redis"
	"ridetrack/internal/service"
)

// QuoteHandler handles HTTP requests for route quotes and position search.
type QuoteHandler struct {
	trackingService *service.TrackingService
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(trackingService *service.TrackingService) *QuoteHandler {
	return &QuoteHandler{trackingService: trackingService}
}

// NearbyResponse is the HTTP response for a position search.
type NearbyResponse struct {
	Count int                  `json:"count"`
	Rides []redis.RidePosition `json:"rides"`
}

// Quote handles POST /v1/quotes
func (h *QuoteHandler) Quote(c *gin.Context) {
	var req service.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	route, err := h.trackingService.Quote(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, route)
}

// Nearby handles GET /v1/positions/nearby?lat=&lng=&radius_km=
func (h *QuoteHandler) Nearby(c *gin.Context) {
	var req service.NearbyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query parameters"})
		return
	}

	rides, err := h.trackingService.Nearby(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, NearbyResponse{Count: len(rides), Rides: rides})
}
