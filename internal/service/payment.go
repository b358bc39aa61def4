package service

import (
	"context"
	"log/slog"

	"ridetrack/internal/domain"
	"ridetrack/internal/events"
	"ridetrack/internal/logging"
	"ridetrack/internal/repository"
)

// PaymentService settles the backend payment attached to a ride.
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	publisher   events.Publisher
	logger      *slog.Logger
}

// NewPaymentService creates a new PaymentService. publisher may be nil.
func NewPaymentService(paymentRepo repository.PaymentRepository, publisher events.Publisher, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		publisher:   publisher,
		logger:      logging.OrDefault(logger),
	}
}

// CompleteForRide marks the ride's payment completed. A ride without a
// payment, or whose payment is already completed, is left alone, so the
// call is idempotent.
func (s *PaymentService) CompleteForRide(ctx context.Context, rideID string) error {
	if rideID == "" {
		return ErrInvalidRideID
	}

	payment, err := s.paymentRepo.GetByRideID(ctx, rideID)
	if err != nil {
		return err
	}
	if payment == nil {
		s.logger.InfoContext(ctx, "ride has no payment to complete", "ride_id", rideID)
		return nil
	}
	if payment.Status == domain.PaymentStatusCompleted {
		return nil
	}
	if payment.ID == "" {
		return ErrInvalidPaymentID
	}

	if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, domain.PaymentStatusCompleted); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "payment completed", "ride_id", rideID, "payment_id", payment.ID, "amount", payment.Amount)

	if s.publisher != nil {
		e := events.New(events.TypePaymentCompleted, domain.RideKindRide, rideID, map[string]any{
			"payment_id": payment.ID,
			"amount":     payment.Amount,
		})
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.WarnContext(ctx, "payment event not published", "ride_id", rideID, "error", err)
		}
	}
	return nil
}

// GetForRide retrieves the payment attached to a ride.
func (s *PaymentService) GetForRide(ctx context.Context, rideID string) (*domain.Payment, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	payment, err := s.paymentRepo.GetByRideID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, repository.ErrNotFound
	}
	return payment, nil
}
