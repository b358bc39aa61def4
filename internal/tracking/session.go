// Package tracking composes route planning, the ride lifecycle and the
// position simulator into one live session per ride.
package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ridetrack/internal/domain"
	"ridetrack/internal/events"
	"ridetrack/internal/fare"
	"ridetrack/internal/lifecycle"
	"ridetrack/internal/logging"
	"ridetrack/internal/observability"
	"ridetrack/internal/redis"
	"ridetrack/internal/routing"
	"ridetrack/internal/simulator"
)

// sideEffectTimeout bounds best-effort writes made outside a caller's
// request: position index updates, events and lock releases.
const sideEffectTimeout = 2 * time.Second

// Planner resolves priced routes.
type Planner interface {
	Resolve(ctx context.Context, req routing.Request) (*domain.ResolvedRoute, error)
}

// PaymentCompleter marks a ride's payment completed.
type PaymentCompleter interface {
	CompleteForRide(ctx context.Context, rideID string) error
}

// Deps are the collaborators shared by every session. Payments, Positions
// and Publisher are optional.
type Deps struct {
	Planner   Planner
	Simulator *simulator.Simulator
	Payments  PaymentCompleter
	Positions redis.LocationStoreInterface
	Publisher events.Publisher
	Logger    *slog.Logger
}

// Config tunes sessions.
type Config struct {
	// ArrivalTimeout bounds the automatic complete issued on arrival.
	ArrivalTimeout time.Duration

	// SessionLockTTL is how long a Redis session lock lives.
	SessionLockTTL time.Duration

	// SubscriberQueue is the per-subscriber buffer of pending views.
	SubscriberQueue int
}

// DefaultConfig returns session defaults.
func DefaultConfig() Config {
	return Config{
		ArrivalTimeout:  15 * time.Second,
		SessionLockTTL:  2 * time.Hour,
		SubscriberQueue: 16,
	}
}

// Session tracks one ride from opening to a terminal status.
type Session struct {
	id      string
	ride    domain.RideRecord
	route   *domain.ResolvedRoute
	machine *lifecycle.Machine
	deps    Deps
	cfg     Config
	logger  *slog.Logger

	mu             sync.Mutex
	position       domain.Coordinate
	progress       simulator.Progress
	handle         *simulator.Handle
	moving         bool
	arrivalPending bool
	closed         bool
	subscribers    map[int]chan View
	nextSub        int
	disposeHooks   []func(*Session)

	disposeOnce sync.Once
}

// Option configures a Session at Open.
type Option func(*Session)

// OnDispose registers fn to run once when the session is disposed.
func OnDispose(fn func(*Session)) Option {
	return func(s *Session) { s.disposeHooks = append(s.disposeHooks, fn) }
}

// Open resolves the ride's route, builds its state machine and, when the
// ride is already in motion, resumes the simulation from the pickup point.
func Open(ctx context.Context, ride domain.RideRecord, persister lifecycle.Persister, deps Deps, cfg Config, opts ...Option) (*Session, error) {
	lc, err := lifecycle.For(ride.Kind)
	if err != nil {
		return nil, err
	}
	if lc.Terminal(ride.Status) {
		return nil, ErrRideFinished
	}

	req := routing.Request{
		Origin:      ride.Pickup,
		Destination: ride.Dropoff,
		TimeLabel:   ride.TimeLabel,
		RoundTrip:   fare.IsRoundTrip(ride.TripType),
	}
	if ride.Kind == domain.RideKindRequest {
		req.RideRequestID = ride.ID
	}
	route, err := deps.Planner.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	logger := logging.OrDefault(deps.Logger).With("ride_id", ride.ID, "kind", ride.Kind)
	s := &Session{
		id:          uuid.NewString(),
		ride:        ride,
		route:       route,
		machine:     lifecycle.NewMachine(ride.ID, lc, ride.Status, persister, logger),
		deps:        deps,
		cfg:         cfg,
		logger:      logger,
		position:    route.Route.Origin(),
		subscribers: make(map[int]chan View),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.progress = simulator.Progress{Position: s.position, RemainingMeters: route.Route.DistanceMeters}

	if ride.Kind == domain.RideKindRide && deps.Payments != nil {
		s.machine.OnComplete("payment", func(ctx context.Context) error {
			return deps.Payments.CompleteForRide(ctx, ride.ID)
		})
	}
	s.machine.OnComplete("simulator", func(context.Context) error {
		s.stopSimulation()
		return nil
	})
	s.machine.Observe(s.onTransition)

	logger.InfoContext(ctx, "tracking session opened",
		"session_id", s.id, "status", ride.Status, "fare", route.Fare, "fallback", route.Fallback)

	if lc.InMotion(ride.Status) {
		s.startSimulation()
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Ride returns the record the session was opened with.
func (s *Session) Ride() domain.RideRecord { return s.ride }

// Route returns the resolved route. It never changes.
func (s *Session) Route() *domain.ResolvedRoute { return s.route }

// Status returns the canonical ride status.
func (s *Session) Status() domain.RideStatus { return s.machine.Status() }

// Closed reports whether the session was disposed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// View returns the current read model.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	allowed := s.machine.Allowed()
	if allowed == nil {
		allowed = []domain.RideAction{}
	}
	return View{
		SessionID:       s.id,
		RideID:          s.ride.ID,
		Kind:            s.ride.Kind,
		Status:          s.machine.Status(),
		Position:        s.position,
		PathIndex:       s.progress.Index,
		Progress:        s.progress.Fraction,
		RemainingMeters: s.progress.RemainingMeters,
		AllowedActions:  allowed,
		Route:           summarize(s.route),
		Moving:          s.moving,
		ArrivalPending:  s.arrivalPending,
		Closed:          s.closed,
	}
}

// Start puts the vehicle in motion: start for rides, confirm for requests.
func (s *Session) Start(ctx context.Context) (View, error) {
	return s.Do(ctx, s.machine.Lifecycle().StartAction())
}

// Complete finishes the ride by hand.
func (s *Session) Complete(ctx context.Context) (View, error) {
	return s.Do(ctx, domain.ActionComplete)
}

// Cancel cancels the ride.
func (s *Session) Cancel(ctx context.Context) (View, error) {
	return s.Do(ctx, domain.ActionCancel)
}

// Do applies any lifecycle action. Effects of the transition (simulation,
// events, disposal) happen before it returns.
func (s *Session) Do(ctx context.Context, action domain.RideAction) (View, error) {
	if s.Closed() {
		return View{}, ErrSessionClosed
	}
	if _, err := s.machine.Advance(ctx, action); err != nil {
		return s.View(), err
	}
	return s.View(), nil
}

// Subscribe returns a channel of views, sent after every tick and
// transition, and a function that ends the subscription. Slow subscribers
// miss views rather than delay the simulation. The channel is closed on
// unsubscribe or dispose.
func (s *Session) Subscribe() (<-chan View, func()) {
	queue := s.cfg.SubscriberQueue
	if queue <= 0 {
		queue = 1
	}
	ch := make(chan View, queue)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	ch <- s.viewLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(c)
		}
	}
}

func (s *Session) broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.subscribers) == 0 {
		return
	}
	v := s.viewLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- v:
		default:
		}
	}
}

// Dispose stops the simulation and releases the session. It is safe to call
// any number of times; results of actions still in flight are discarded.
func (s *Session) Dispose() {
	s.stopSimulation()

	s.disposeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for id, ch := range s.subscribers {
			delete(s.subscribers, id)
			close(ch)
		}
		hooks := s.disposeHooks
		s.mu.Unlock()

		if s.deps.Positions != nil {
			ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			if err := s.deps.Positions.RemovePosition(ctx, s.ride.Kind, s.ride.ID); err != nil {
				s.logger.Warn("position index cleanup failed", "error", err)
			}
			cancel()
		}

		for _, fn := range hooks {
			fn(s)
		}
		s.logger.Info("tracking session closed", "session_id", s.id, "status", s.machine.Status())
	})
}

// ─── Simulation ──────────────────────────────────────────────────────────────

func (s *Session) startSimulation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.moving {
		return
	}

	h, err := s.deps.Simulator.Start(s.route.Route, s.position, s.onTick, s.onArrive)
	if err != nil {
		s.logger.Error("simulation not started", "error", err)
		return
	}
	s.handle = h
	s.moving = true
}

func (s *Session) stopSimulation() {
	s.mu.Lock()
	h := s.handle
	s.moving = false
	s.mu.Unlock()

	h.Cancel()
}

func (s *Session) onTick(p simulator.Progress) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.position = p.Position
	s.progress = p
	s.mu.Unlock()

	if s.deps.Positions != nil {
		s.indexPosition(p.Position)
	}
	s.broadcast()
}

// indexPosition writes pos to the live index. A Dispose that ran while the
// write was in flight may have removed the entry first, so a closed session
// removes it again.
func (s *Session) indexPosition(pos domain.Coordinate) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if err := s.deps.Positions.UpdatePosition(ctx, s.ride.Kind, s.ride.ID, pos); err != nil {
		s.logger.Debug("position index update failed", "error", err)
		return
	}
	if s.Closed() {
		if err := s.deps.Positions.RemovePosition(ctx, s.ride.Kind, s.ride.ID); err != nil {
			s.logger.Warn("position index cleanup failed", "error", err)
		}
	}
}

// onArrive completes the ride. If the backend refuses, the ride stays in
// motion status with ArrivalPending set until someone completes it by hand.
func (s *Session) onArrive() {
	if s.Closed() {
		return
	}
	s.mu.Lock()
	s.moving = false
	s.mu.Unlock()

	s.publish(events.New(events.TypeVehicleArrived, s.ride.Kind, s.ride.ID, map[string]any{
		"position": s.View().Position,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ArrivalTimeout)
	defer cancel()

	if _, err := s.machine.Advance(ctx, domain.ActionComplete); err != nil {
		s.logger.Warn("automatic completion failed", "error", err)
		s.mu.Lock()
		s.arrivalPending = true
		s.mu.Unlock()
		s.broadcast()
	}
}

// ─── Transitions ─────────────────────────────────────────────────────────────

func (s *Session) onTransition(t lifecycle.Transition) {
	lc := s.machine.Lifecycle()

	s.mu.Lock()
	if t.To == domain.RideStatusCompleted {
		s.arrivalPending = false
	}
	s.mu.Unlock()

	s.publish(events.FromTransition(s.ride.Kind, t))

	if lc.InMotion(t.To) {
		s.startSimulation()
	}
	s.broadcast()

	if lc.Terminal(t.To) {
		s.Dispose()
	}
}

func (s *Session) publish(e events.Event) {
	if s.deps.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := s.deps.Publisher.Publish(ctx, e); err != nil {
		observability.EventsPublished.WithLabelValues("dropped").Inc()
		s.logger.Warn("event not published", "type", e.Type, "error", err)
	}
}
