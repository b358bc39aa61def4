package routing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"ridetrack/internal/domain"
	"ridetrack/internal/fare"
	"ridetrack/internal/geo"
	"ridetrack/internal/logging"
	"ridetrack/internal/observability"
)

// Router returns candidate routes between two points, in service order.
type Router interface {
	Routes(ctx context.Context, origin, destination domain.Coordinate) ([]domain.RouteCandidate, error)
}

// RouteRecorder stores the priced route on a ride request.
type RouteRecorder interface {
	UpdateRouteDetails(ctx context.Context, rideRequestID string, details domain.RouteDetails) error
}

// Config tunes the planner.
type Config struct {
	Schedule fare.Schedule

	// FallbackSpeedKmh is the average speed assumed for straight-line routes.
	FallbackSpeedKmh float64

	// SnapToleranceMeters is how far a candidate's endpoints may sit from
	// the requested origin/destination. Zero disables the check.
	SnapToleranceMeters float64

	// RecordTimeout bounds the background route details update.
	RecordTimeout time.Duration
}

// DefaultConfig returns the planner defaults.
func DefaultConfig() Config {
	return Config{
		Schedule:            fare.V1,
		FallbackSpeedKmh:    40,
		SnapToleranceMeters: 1000,
		RecordTimeout:       5 * time.Second,
	}
}

// Request describes one route to resolve.
type Request struct {
	Origin      domain.Coordinate
	Destination domain.Coordinate
	TimeLabel   string
	RoundTrip   bool

	// RideRequestID, when set, receives the priced route details.
	RideRequestID string
}

func (r Request) validate() error {
	if !r.Origin.Valid() {
		return fmt.Errorf("%w: origin %v out of range", ErrInvalidRouteRequest, r.Origin)
	}
	if !r.Destination.Valid() {
		return fmt.Errorf("%w: destination %v out of range", ErrInvalidRouteRequest, r.Destination)
	}
	if r.Origin == r.Destination {
		return fmt.Errorf("%w: origin and destination are the same point", ErrInvalidRouteRequest)
	}
	return nil
}

// Planner turns an origin/destination pair into a priced route. It never
// fails because the routing service is down: it degrades to a straight line.
type Planner struct {
	router   Router
	recorder RouteRecorder
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	pending sync.WaitGroup
}

// NewPlanner creates a Planner. recorder may be nil.
func NewPlanner(router Router, recorder RouteRecorder, cfg Config, logger *slog.Logger) *Planner {
	if cfg.FallbackSpeedKmh <= 0 {
		cfg.FallbackSpeedKmh = 40
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = 5 * time.Second
	}
	if cfg.Schedule.Version == "" {
		cfg.Schedule = fare.V1
	}
	return &Planner{
		router:   router,
		recorder: recorder,
		cfg:      cfg,
		logger:   logging.OrDefault(logger),
		now:      time.Now,
	}
}

// Resolve prices the shortest usable route between the request's points.
// The only error it returns wraps ErrInvalidRouteRequest.
func (p *Planner) Resolve(ctx context.Context, req Request) (resolved *domain.ResolvedRoute, err error) {
	defer observability.Time(ctx, p.logger, "routing.resolve")(&err)

	if err := req.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { observability.RouteResolveLatency.Observe(time.Since(start).Seconds()) }()

	candidates, rerr := p.router.Routes(ctx, req.Origin, req.Destination)
	if rerr != nil {
		p.logger.WarnContext(ctx, "routing service unavailable, using straight-line route",
			"origin", req.Origin.String(), "destination", req.Destination.String(), "error", rerr)
	}

	resolved = &domain.ResolvedRoute{
		FareVersion: p.cfg.Schedule.Version,
		ResolvedAt:  p.now(),
	}

	usable := p.usable(req, candidates)
	if len(usable) == 0 {
		resolved.Route = p.fallback(req.Origin, req.Destination)
		resolved.Fallback = true
		observability.RoutesResolved.WithLabelValues("fallback").Inc()
	} else {
		shortest, longest := selectRoutes(usable)
		resolved.Route = usable[shortest]
		if longest != shortest {
			alt := usable[longest]
			resolved.Alternate = &alt
		}
		observability.RoutesResolved.WithLabelValues("service").Inc()
	}

	resolved.Fare = p.cfg.Schedule.Price(resolved.Route.DurationSeconds/3600, fare.IsNight(req.TimeLabel), req.RoundTrip)
	resolved.DriverPayment = resolved.Fare

	p.record(ctx, req.RideRequestID, resolved)
	return resolved, nil
}

// Wait blocks until every background route details update has finished.
func (p *Planner) Wait() {
	p.pending.Wait()
}

// usable drops candidates a hostile or broken routing response could carry.
func (p *Planner) usable(req Request, candidates []domain.RouteCandidate) []domain.RouteCandidate {
	out := make([]domain.RouteCandidate, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Path) < 2 {
			continue
		}
		if !finiteNonNegative(c.DistanceMeters) || !finiteNonNegative(c.DurationSeconds) {
			continue
		}
		if !validPath(c.Path) {
			continue
		}
		if tol := p.cfg.SnapToleranceMeters; tol > 0 {
			if geo.DistanceMeters(c.Origin(), req.Origin) > tol || geo.DistanceMeters(c.Destination(), req.Destination) > tol {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// fallback builds the straight two-point route driven at the fallback speed.
func (p *Planner) fallback(origin, destination domain.Coordinate) domain.RouteCandidate {
	distance := geo.DistanceMeters(origin, destination)
	metersPerSecond := p.cfg.FallbackSpeedKmh * 1000 / 3600
	return domain.RouteCandidate{
		Path:            []domain.Coordinate{origin, destination},
		DistanceMeters:  distance,
		DurationSeconds: distance / metersPerSecond,
	}
}

func (p *Planner) record(ctx context.Context, rideRequestID string, resolved *domain.ResolvedRoute) {
	if rideRequestID == "" || p.recorder == nil {
		return
	}
	details := domain.DetailsOf(resolved)

	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.RecordTimeout)
		defer cancel()

		if err := p.recorder.UpdateRouteDetails(ctx, rideRequestID, details); err != nil {
			observability.RouteRecordFailures.Inc()
			p.logger.Warn("route details update dropped", "ride_request_id", rideRequestID, "error", err)
		}
	}()
}

// selectRoutes returns the indexes of the shortest and the longest candidate.
// Equal distances keep the earliest candidate.
func selectRoutes(candidates []domain.RouteCandidate) (shortest, longest int) {
	for i := 1; i < len(candidates); i++ {
		if candidates[i].DistanceMeters < candidates[shortest].DistanceMeters {
			shortest = i
		}
		if candidates[i].DistanceMeters > candidates[longest].DistanceMeters {
			longest = i
		}
	}
	return shortest, longest
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func validPath(path []domain.Coordinate) bool {
	for _, c := range path {
		if !c.Valid() {
			return false
		}
	}
	return true
}
