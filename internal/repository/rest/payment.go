package rest

import (
	"context"
	"net/http"
	"net/url"

	"ridetrack/internal/domain"
	"ridetrack/internal/repository"
)

// PaymentRepository is a REST implementation of repository.PaymentRepository.
type PaymentRepository struct {
	c *Client
}

// NewPaymentRepository creates a payment repository on top of c.
func NewPaymentRepository(c *Client) *PaymentRepository {
	return &PaymentRepository{c: c}
}

// GetByRideID returns the first payment listed for the ride, or nil.
func (r *PaymentRepository) GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error) {
	var page paymentPage
	if err := r.c.call(ctx, http.MethodGet, "/payments/?ride="+url.QueryEscape(rideID), nil, &page); err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return nil, nil
	}
	p := page.Results[0].payment()
	if p.RideID == "" {
		p.RideID = rideID
	}
	return p, nil
}

// UpdateStatus updates the status of a payment.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	return r.c.call(ctx, http.MethodPatch, "/payments/"+url.PathEscape(id)+"/", statusBody{Status: string(status)}, nil)
}

var _ repository.PaymentRepository = (*PaymentRepository)(nil)
