package repository

import (
	"context"

	"ridetrack/internal/domain"
)

// PaymentRepository defines the backend operations on payments.
type PaymentRepository interface {
	// GetByRideID retrieves the payment attached to a ride.
	// Returns nil if the ride has no payment yet.
	GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error)

	// UpdateStatus updates the status of a payment.
	UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) error
}
