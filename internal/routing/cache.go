package routing

import (
	"context"
	"log/slog"

	"ridetrack/internal/domain"
	"ridetrack/internal/logging"
	"ridetrack/internal/observability"
)

// CandidateCache stores route candidates per origin/destination pair.
type CandidateCache interface {
	GetRoutes(ctx context.Context, origin, destination domain.Coordinate) ([]domain.RouteCandidate, bool, error)
	SetRoutes(ctx context.Context, origin, destination domain.Coordinate, routes []domain.RouteCandidate) error
}

// CachedRouter serves candidates from a cache and fills it from the wrapped
// router. Cache failures fall through to the router.
type CachedRouter struct {
	next   Router
	cache  CandidateCache
	logger *slog.Logger
}

// NewCachedRouter wraps next with cache.
func NewCachedRouter(next Router, cache CandidateCache, logger *slog.Logger) *CachedRouter {
	return &CachedRouter{next: next, cache: cache, logger: logging.OrDefault(logger)}
}

// Routes implements Router.
func (c *CachedRouter) Routes(ctx context.Context, origin, destination domain.Coordinate) ([]domain.RouteCandidate, error) {
	routes, ok, err := c.cache.GetRoutes(ctx, origin, destination)
	switch {
	case err != nil:
		observability.RouteCacheLookups.WithLabelValues("error").Inc()
		c.logger.WarnContext(ctx, "route cache read failed", "error", err)
	case ok:
		observability.RouteCacheLookups.WithLabelValues("hit").Inc()
		return routes, nil
	default:
		observability.RouteCacheLookups.WithLabelValues("miss").Inc()
	}

	routes, err = c.next.Routes(ctx, origin, destination)
	if err != nil || len(routes) == 0 {
		return routes, err
	}
	if err := c.cache.SetRoutes(ctx, origin, destination, routes); err != nil {
		c.logger.WarnContext(ctx, "route cache write failed", "error", err)
	}
	return routes, nil
}
