package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridetrack/internal/domain"
	"ridetrack/internal/repository"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// GetByRideID retrieves the oldest payment attached to a ride.
// Returns nil if the ride has no payment.
func (r *PaymentRepository) GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error) {
	query := `
		SELECT id::text, ride_id::text, amount, status
		FROM drivo_payment WHERE ride_id = $1
		ORDER BY created_at ASC LIMIT 1
	`

	var payment domain.Payment
	err := r.q.QueryRowContext(ctx, query, rideID).Scan(
		&payment.ID,
		&payment.RideID,
		&payment.Amount,
		&payment.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &payment, nil
}

// UpdateStatus updates the status of a payment and stamps processed_at when
// it completes.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	query := `
		UPDATE drivo_payment
		SET status = $1,
			processed_at = CASE WHEN $3 THEN NOW() ELSE processed_at END,
			updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.ExecContext(ctx, query, status, id, status == domain.PaymentStatusCompleted)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ repository.PaymentRepository = (*PaymentRepository)(nil)
