package redis

import (
	"context"
	"time"

	"ridetrack/internal/domain"
	"ridetrack/internal/routing"
)

// LocationStoreInterface defines the live position index operations.
type LocationStoreInterface interface {
	UpdatePosition(ctx context.Context, kind domain.RideKind, rideID string, pos domain.Coordinate) error
	FindNearby(ctx context.Context, center domain.Coordinate, radiusKm float64) ([]RidePosition, error)
	RemovePosition(ctx context.Context, kind domain.RideKind, rideID string) error
}

// LockStoreInterface defines the interface for distributed session locks.
type LockStoreInterface interface {
	AcquireSessionLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseSessionLock(ctx context.Context, key, owner string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ routing.CandidateCache = (*RouteCache)(nil)
)
