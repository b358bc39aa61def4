package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridetrack/internal/domain"
	"ridetrack/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// rideColumns is shared by drivo_ride and drivo_ride_request.
const rideColumns = `id, client_id, pickup_latitude, pickup_longitude, dropoff_latitude, dropoff_longitude, scheduled_datetime, trip_type, status`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRide reads one rideColumns row. Tables without a driver column pass
// withDriver=false.
func scanRide(row rowScanner, kind domain.RideKind, withDriver bool) (*domain.RideRecord, error) {
	var (
		rec                    domain.RideRecord
		id, clientID, driverID sql.NullString
		pLat, pLng, dLat, dLng sql.NullFloat64
		scheduled              sql.NullTime
		tripType, status       sql.NullString
	)

	dest := []any{&id, &clientID, &pLat, &pLng, &dLat, &dLng, &scheduled, &tripType, &status}
	if withDriver {
		dest = append(dest, &driverID)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if !pLat.Valid || !pLng.Valid || !dLat.Valid || !dLng.Valid {
		return nil, repository.ErrIncomplete
	}

	rec.ID = id.String
	rec.Kind = kind
	rec.ClientID = clientID.String
	rec.DriverID = driverID.String
	rec.Pickup = domain.Coordinate{Latitude: pLat.Float64, Longitude: pLng.Float64}
	rec.Dropoff = domain.Coordinate{Latitude: dLat.Float64, Longitude: dLng.Float64}
	rec.TripType = tripType.String
	rec.Status = repository.FromBackendStatus(kind, status.String)
	if scheduled.Valid {
		rec.ScheduledAt = scheduled.Time
		rec.TimeLabel = scheduled.Time.Format(domain.TimeLabelLayout)
	}
	return &rec, nil
}

// compareAndSetStatus moves id from one status to another in table. When no
// row matched it tells a missing record (ErrNotFound) from one that moved
// on concurrently (ErrConflict).
func compareAndSetStatus(ctx context.Context, q Querier, table string, id, from, to string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE `+table+` SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}
