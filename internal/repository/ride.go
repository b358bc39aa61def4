package repository

import (
	"context"

	"ridetrack/internal/domain"
)

// RideRepository defines the backend operations on matched rides.
type RideRepository interface {
	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.RideRecord, error)

	// UpdateStatus moves a ride from one status to another. Stores that can
	// compare-and-set return ErrConflict when the ride is not in from.
	UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus) error
}

// RideRequestRepository defines the backend operations on ride requests,
// the pre-match records a client creates before a driver is assigned.
type RideRequestRepository interface {
	// GetByID retrieves a ride request by ID.
	GetByID(ctx context.Context, id string) (*domain.RideRecord, error)

	// UpdateStatus moves a ride request from one status to another.
	UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus) error

	// UpdateRouteDetails stores the priced route on the request.
	UpdateRouteDetails(ctx context.Context, id string, details domain.RouteDetails) error

	// ConvertToRide creates a ride from the request and returns it.
	ConvertToRide(ctx context.Context, id string) (*domain.RideRecord, error)
}
