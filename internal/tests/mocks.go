package tests

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"ridetrack/internal/domain"
	"ridetrack/internal/events"
	"ridetrack/internal/lifecycle"
	"ridetrack/internal/logging"
	"ridetrack/internal/repository"
	"ridetrack/internal/routing"
	"ridetrack/internal/service"
	"ridetrack/internal/simulator"
	"ridetrack/internal/tracking"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository with the
// backend's compare-and-set status semantics.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.RideRecord

	// Counters for verification
	UpdateStatusCallCount int32

	// Error injection
	GetByIDError      error
	UpdateStatusError error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.RideRecord),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.RideRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.RideRecord, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return repository.ErrNotFound
	}
	if ride.Status != from {
		return repository.ErrConflict
	}
	ride.Status = to
	return nil
}

// GetStatus returns the stored status for test assertions.
func (m *MockRideRepository) GetStatus(id string) domain.RideStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ride, ok := m.rides[id]; ok {
		return ride.Status
	}
	return ""
}

// ──────────────────────────────────────────────
// MOCK RIDE REQUEST REPOSITORY
// ──────────────────────────────────────────────

// MockRideRequestRepository is a mock implementation of RideRequestRepository.
type MockRideRequestRepository struct {
	MockRideRepository

	detailsMu sync.Mutex
	details   map[string]domain.RouteDetails

	// Counters for verification
	ConvertCallCount int32

	// Error injection
	ConvertError error
	// ConvertHook, when set, runs before a conversion takes effect.
	ConvertHook func(id string)

	nextRideID atomic.Int64
}

// NewMockRideRequestRepository creates a new mock ride request repository.
func NewMockRideRequestRepository() *MockRideRequestRepository {
	m := &MockRideRequestRepository{
		MockRideRepository: MockRideRepository{rides: make(map[string]*domain.RideRecord)},
		details:            make(map[string]domain.RouteDetails),
	}
	m.nextRideID.Store(1000)
	return m
}

func (m *MockRideRequestRepository) UpdateRouteDetails(ctx context.Context, id string, details domain.RouteDetails) error {
	m.detailsMu.Lock()
	defer m.detailsMu.Unlock()
	m.details[id] = details
	return nil
}

func (m *MockRideRequestRepository) ConvertToRide(ctx context.Context, id string) (*domain.RideRecord, error) {
	atomic.AddInt32(&m.ConvertCallCount, 1)
	if m.ConvertHook != nil {
		m.ConvertHook(id)
	}
	if m.ConvertError != nil {
		return nil, m.ConvertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(m.rides, id)

	ride := *req
	ride.ID = strconv.FormatInt(m.nextRideID.Add(1), 10)
	ride.Kind = domain.RideKindRide
	ride.Status = domain.RideStatusRequested
	return &ride, nil
}

// GetDetails returns the route details stored for a request.
func (m *MockRideRequestRepository) GetDetails(id string) (domain.RouteDetails, bool) {
	m.detailsMu.Lock()
	defer m.detailsMu.Unlock()
	d, ok := m.details[id]
	return d, ok
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	// Counters for verification
	UpdateStatusCallCount int32

	// Error injection
	GetByRideIDError  error
	UpdateStatusError error
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

// AddPayment adds a payment to the mock repository.
func (m *MockPaymentRepository) AddPayment(payment *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = payment
}

func (m *MockPaymentRepository) GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error) {
	if m.GetByRideIDError != nil {
		return nil, m.GetByRideIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.RideID == rideID {
			copy := *p
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	return nil
}

// GetStatus returns the stored status for test assertions.
func (m *MockPaymentRepository) GetStatus(id string) domain.PaymentStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.payments[id]; ok {
		return p.Status
	}
	return ""
}

// ──────────────────────────────────────────────
// MOCK ROUTER
// ──────────────────────────────────────────────

// MockRouter is a mock implementation of routing.Router that returns a
// straight path with a midpoint between the requested points.
type MockRouter struct {
	CallCount int32
	Error     error
}

func (m *MockRouter) Routes(ctx context.Context, origin, destination domain.Coordinate) ([]domain.RouteCandidate, error) {
	atomic.AddInt32(&m.CallCount, 1)
	if m.Error != nil {
		return nil, m.Error
	}
	mid := domain.Coordinate{
		Latitude:  (origin.Latitude + destination.Latitude) / 2,
		Longitude: (origin.Longitude + destination.Longitude) / 2,
	}
	return []domain.RouteCandidate{{
		Path:            []domain.Coordinate{origin, mid, destination},
		DistanceMeters:  2200,
		DurationSeconds: 360,
	}}, nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.Event

	PublishError error
}

func (m *MockPublisher) Publish(ctx context.Context, e events.Event) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// Types returns the types of the published events, in order.
func (m *MockPublisher) Types() []events.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Type, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

// ──────────────────────────────────────────────
// FIXTURE
// ──────────────────────────────────────────────

var (
	pickup  = domain.Coordinate{Latitude: 33.6844, Longitude: 73.0479}
	dropoff = domain.Coordinate{Latitude: 33.7030, Longitude: 73.0479}
)

// Fixture wires the real planner, simulator, session manager and services
// over mock backends.
type Fixture struct {
	Rides     *MockRideRepository
	Requests  *MockRideRequestRepository
	Payments  *MockPaymentRepository
	Router    *MockRouter
	Publisher *MockPublisher

	Planner  *routing.Planner
	Manager  *tracking.Manager
	Tracking *service.TrackingService
	Payment  *service.PaymentService
}

// NewFixture builds a fixture whose simulator ticks every few milliseconds.
func NewFixture() *Fixture {
	f := &Fixture{
		Rides:     NewMockRideRepository(),
		Requests:  NewMockRideRequestRepository(),
		Payments:  NewMockPaymentRepository(),
		Router:    &MockRouter{},
		Publisher: &MockPublisher{},
	}
	logger := logging.Discard()

	f.Planner = routing.NewPlanner(f.Router, f.Requests, routing.DefaultConfig(), logger)
	f.Payment = service.NewPaymentService(f.Payments, f.Publisher, logger)

	sim := simulator.New(simulator.Config{
		TickInterval:           5 * time.Millisecond,
		ArrivalThresholdMeters: 100,
	}, simulator.WithLogger(logger))

	f.Manager = tracking.NewManager(tracking.Deps{
		Planner:   f.Planner,
		Simulator: sim,
		Payments:  f.Payment,
		Publisher: f.Publisher,
		Logger:    logger,
	}, tracking.Persisters{
		Rides:    lifecycle.PersisterFunc(f.Rides.UpdateStatus),
		Requests: lifecycle.PersisterFunc(f.Requests.UpdateStatus),
	}, tracking.DefaultConfig())

	f.Tracking = service.NewTrackingService(f.Rides, f.Requests, f.Manager, f.Planner, nil, logger)
	return f
}

// Close disposes every session and waits for background route updates.
func (f *Fixture) Close() {
	f.Manager.Shutdown()
	f.Planner.Wait()
}

// AddRide stores a ride of the given kind between the fixture's points.
func (f *Fixture) AddRide(kind domain.RideKind, id string, status domain.RideStatus) {
	ride := &domain.RideRecord{
		ID:        id,
		Kind:      kind,
		Status:    status,
		Pickup:    pickup,
		Dropoff:   dropoff,
		TimeLabel: "10:00",
		TripType:  "one_way",
	}
	if kind == domain.RideKindRequest {
		f.Requests.AddRide(ride)
		return
	}
	f.Rides.AddRide(ride)
}
