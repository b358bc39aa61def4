package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ridetrack/internal/domain"
)

// DefaultRouteCacheTTL keeps routing answers for ten minutes; road
// geometry rarely changes faster than that.
const DefaultRouteCacheTTL = 10 * time.Minute

const routeCachePrefix = "cache:route:"

// RouteCache stores routing service candidates keyed by origin and
// destination rounded to five decimals (about one metre).
type RouteCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRouteCache creates a new RouteCache. A non-positive ttl uses
// DefaultRouteCacheTTL.
func NewRouteCache(client *redis.Client, ttl time.Duration) *RouteCache {
	if ttl <= 0 {
		ttl = DefaultRouteCacheTTL
	}
	return &RouteCache{client: client, ttl: ttl}
}

func routeKey(origin, destination domain.Coordinate) string {
	return fmt.Sprintf("%s%.5f,%.5f:%.5f,%.5f", routeCachePrefix,
		origin.Latitude, origin.Longitude, destination.Latitude, destination.Longitude)
}

// GetRoutes retrieves cached candidates. ok is false on a cache miss.
func (s *RouteCache) GetRoutes(ctx context.Context, origin, destination domain.Coordinate) ([]domain.RouteCandidate, bool, error) {
	data, err := s.client.Get(ctx, routeKey(origin, destination)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var routes []domain.RouteCandidate
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, false, fmt.Errorf("decode cached routes: %w", err)
	}
	return routes, true, nil
}

// SetRoutes stores candidates for the pair.
func (s *RouteCache) SetRoutes(ctx context.Context, origin, destination domain.Coordinate, routes []domain.RouteCandidate) error {
	data, err := json.Marshal(routes)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, routeKey(origin, destination), data, s.ttl).Err()
}
