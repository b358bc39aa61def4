package redis

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"ridetrack/internal/domain"
)

const ridePositionKey = "rides:positions"

// RidePosition is the last simulated position of a tracked ride or ride
// request.
type RidePosition struct {
	Kind       domain.RideKind   `json:"kind"`
	RideID     string            `json:"ride_id"`
	Position   domain.Coordinate `json:"position"`
	DistanceKm float64           `json:"distance_km"`
}

// LocationStore keeps the live position of every tracked ride in a Redis
// geo index so other instances and dispatch screens can query it.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// Rides and ride requests have independent ids, so members are "kind:id".
func positionMember(kind domain.RideKind, rideID string) string {
	return string(kind) + ":" + rideID
}

// UpdatePosition stores a ride's position using GEOADD.
func (s *LocationStore) UpdatePosition(ctx context.Context, kind domain.RideKind, rideID string, pos domain.Coordinate) error {
	return s.client.GeoAdd(ctx, ridePositionKey, &redis.GeoLocation{
		Name:      positionMember(kind, rideID),
		Longitude: pos.Longitude,
		Latitude:  pos.Latitude,
	}).Err()
}

// FindNearby returns tracked rides within radiusKm of center, nearest first.
func (s *LocationStore) FindNearby(ctx context.Context, center domain.Coordinate, radiusKm float64) ([]RidePosition, error) {
	results, err := s.client.GeoRadius(ctx, ridePositionKey, center.Longitude, center.Latitude, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	positions := make([]RidePosition, 0, len(results))
	for _, r := range results {
		kind, id, ok := strings.Cut(r.Name, ":")
		if !ok {
			continue
		}
		positions = append(positions, RidePosition{
			Kind:       domain.RideKind(kind),
			RideID:     id,
			Position:   domain.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude},
			DistanceKm: r.Dist,
		})
	}

	return positions, nil
}

// RemovePosition removes a ride from the geo index.
func (s *LocationStore) RemovePosition(ctx context.Context, kind domain.RideKind, rideID string) error {
	return s.client.ZRem(ctx, ridePositionKey, positionMember(kind, rideID)).Err()
}
