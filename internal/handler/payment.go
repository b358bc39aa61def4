package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridetrack/internal/domain"
	"ridetrack/internal/service"
)

// PaymentHandler handles HTTP requests for ride payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// PaymentResponse is the HTTP response for payment operations.
type PaymentResponse struct {
	ID     string  `json:"id"`
	RideID string  `json:"ride_id"`
	Amount float64 `json:"amount"`
	Status string  `json:"status"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:     p.ID,
		RideID: p.RideID,
		Amount: p.Amount,
		Status: string(p.Status),
	}
}

// GetPayment handles GET /v1/rides/:id/payment
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetForRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// CompletePayment handles POST /v1/rides/:id/payment/complete. Completion
// normally happens when the ride completes; this retries it by hand.
func (h *PaymentHandler) CompletePayment(c *gin.Context) {
	rideID := c.Param("id")
	ctx := c.Request.Context()

	if err := h.paymentService.CompleteForRide(ctx, rideID); err != nil {
		respondError(c, err)
		return
	}

	payment, err := h.paymentService.GetForRide(ctx, rideID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}
