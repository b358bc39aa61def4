package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridetrack/internal/domain"
	"ridetrack/internal/repository"
)

// RideRequestRepository is a PostgreSQL implementation of
// repository.RideRequestRepository over drivo_ride_request.
type RideRequestRepository struct {
	db *sql.DB
	q  Querier
}

// NewRideRequestRepository creates a new PostgreSQL ride request repository.
func NewRideRequestRepository(db *sql.DB) *RideRequestRepository {
	return &RideRequestRepository{db: db, q: db}
}

// GetByID retrieves a ride request by ID.
func (r *RideRequestRepository) GetByID(ctx context.Context, id string) (*domain.RideRecord, error) {
	query := `SELECT ` + rideColumns + ` FROM drivo_ride_request WHERE id = $1`
	return scanRide(r.q.QueryRowContext(ctx, query, id), domain.RideKindRequest, false)
}

// UpdateStatus moves the request from one status to another only if it is
// still in from.
func (r *RideRequestRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus) error {
	return compareAndSetStatus(ctx, r.q, "drivo_ride_request", id,
		repository.ToBackendStatus(domain.RideKindRequest, from),
		repository.ToBackendStatus(domain.RideKindRequest, to),
	)
}

// UpdateRouteDetails stores the fare on the request. The table has no
// distance or duration columns; those only travel with the converted ride.
func (r *RideRequestRepository) UpdateRouteDetails(ctx context.Context, id string, details domain.RouteDetails) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE drivo_ride_request SET estimated_fare = $1, updated_at = NOW() WHERE id = $2`,
		details.Fare, id,
	)
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

// ConvertToRide copies the request into a new ride and removes the request,
// atomically.
func (r *RideRequestRepository) ConvertToRide(ctx context.Context, id string) (_ *domain.RideRecord, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// request_id stays NULL: the ride outlives the request it came from.
	var rideID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO drivo_ride (client_id, pickup_location, dropoff_location,
			pickup_latitude, pickup_longitude, dropoff_latitude, dropoff_longitude,
			scheduled_datetime, vehicle_type, fuel_type, trip_type, fare, status, created_at, updated_at)
		SELECT client_id, pickup_location, dropoff_location,
			pickup_latitude, pickup_longitude, dropoff_latitude, dropoff_longitude,
			scheduled_datetime, vehicle_type, fuel_type, trip_type, estimated_fare, 'requested', NOW(), NOW()
		FROM drivo_ride_request WHERE id = $1
		RETURNING id::text
	`, id).Scan(&rideID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM drivo_ride_request WHERE id = $1`, id); err != nil {
		return nil, err
	}

	ride, err := NewRideRepositoryWithTx(tx).GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return ride, nil
}

var _ repository.RideRequestRepository = (*RideRequestRepository)(nil)
