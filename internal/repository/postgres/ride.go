package postgres

import (
	"context"
	"database/sql"

	"ridetrack/internal/domain"
	"ridetrack/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository
// over the backend's drivo_ride table.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.RideRecord, error) {
	query := `SELECT ` + rideColumns + `, driver_id FROM drivo_ride WHERE id = $1`
	return scanRide(r.q.QueryRowContext(ctx, query, id), domain.RideKindRide, true)
}

// UpdateStatus moves the ride from one status to another only if it is
// still in from.
func (r *RideRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus) error {
	return compareAndSetStatus(ctx, r.q, "drivo_ride", id,
		repository.ToBackendStatus(domain.RideKindRide, from),
		repository.ToBackendStatus(domain.RideKindRide, to),
	)
}

var _ repository.RideRepository = (*RideRepository)(nil)
