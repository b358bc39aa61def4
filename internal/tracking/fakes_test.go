package tracking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ridetrack/internal/domain"
	"ridetrack/internal/events"
	"ridetrack/internal/logging"
	"ridetrack/internal/redis"
	"ridetrack/internal/routing"
	"ridetrack/internal/simulator"
)

var testPath = []domain.Coordinate{
	{Latitude: 33.60, Longitude: 73.00},
	{Latitude: 33.61, Longitude: 73.00},
	{Latitude: 33.62, Longitude: 73.00},
}

func testRoute() *domain.ResolvedRoute {
	return &domain.ResolvedRoute{
		Route: domain.RouteCandidate{
			Path:            testPath,
			DistanceMeters:  2224,
			DurationSeconds: 300,
		},
		Fare:          25,
		DriverPayment: 25,
		FareVersion:   "v1",
	}
}

func testRide(status domain.RideStatus) domain.RideRecord {
	return domain.RideRecord{
		ID:      "42",
		Kind:    domain.RideKindRide,
		Status:  status,
		Pickup:  testPath[0],
		Dropoff: testPath[2],
	}
}

// ─── Planner ─────────────────────────────────────────────────────────────────

type fakePlanner struct {
	mu       sync.Mutex
	requests []routing.Request
	err      error
}

func (p *fakePlanner) Resolve(ctx context.Context, req routing.Request) (*domain.ResolvedRoute, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return testRoute(), nil
}

// ─── Persister ───────────────────────────────────────────────────────────────

type fakePersister struct {
	mu    sync.Mutex
	calls []domain.RideStatus
	fail  map[domain.RideStatus]error
}

func (p *fakePersister) PersistStatus(ctx context.Context, id string, from, to domain.RideStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, to)
	return p.fail[to]
}

func (p *fakePersister) setFailure(to domain.RideStatus, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail == nil {
		p.fail = make(map[domain.RideStatus]error)
	}
	p.fail[to] = err
}

func (p *fakePersister) persisted() []domain.RideStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.RideStatus(nil), p.calls...)
}

// ─── Payments, positions, events ─────────────────────────────────────────────

type fakePayments struct {
	calls atomic.Int32
}

func (p *fakePayments) CompleteForRide(ctx context.Context, rideID string) error {
	p.calls.Add(1)
	return nil
}

// fakePositions mirrors the Redis index: members are keyed by kind and id
// and indexed tells whether a member is currently present. A non-nil gate
// holds every update until it is closed.
type fakePositions struct {
	mu      sync.Mutex
	updates map[string]int
	removed map[string]bool
	indexed map[string]bool

	gate    chan struct{}
	entered chan struct{}
}

func newFakePositions() *fakePositions {
	return &fakePositions{
		updates: make(map[string]int),
		removed: make(map[string]bool),
		indexed: make(map[string]bool),
	}
}

func memberKey(kind domain.RideKind, rideID string) string {
	return string(kind) + ":" + rideID
}

func (f *fakePositions) UpdatePosition(ctx context.Context, kind domain.RideKind, rideID string, pos domain.Coordinate) error {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[memberKey(kind, rideID)]++
	f.indexed[memberKey(kind, rideID)] = true
	return nil
}

func (f *fakePositions) FindNearby(ctx context.Context, center domain.Coordinate, radiusKm float64) ([]redis.RidePosition, error) {
	return nil, nil
}

func (f *fakePositions) RemovePosition(ctx context.Context, kind domain.RideKind, rideID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed[memberKey(kind, rideID)] = true
	delete(f.indexed, memberKey(kind, rideID))
	return nil
}

// hold makes the next updates block until the returned release is called.
// entered receives once per blocked update.
func (f *fakePositions) hold() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 8)
	gate := f.gate
	return f.entered, func() { close(gate) }
}

func (f *fakePositions) snapshot(kind domain.RideKind, rideID string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates[memberKey(kind, rideID)], f.removed[memberKey(kind, rideID)]
}

func (f *fakePositions) isIndexed(kind domain.RideKind, rideID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexed[memberKey(kind, rideID)]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeLocks struct {
	mu    sync.Mutex
	held  map[string]string
	calls int
}

func (l *fakeLocks) AcquireSessionLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.held == nil {
		l.held = make(map[string]string)
	}
	if _, ok := l.held[key]; ok {
		return false, nil
	}
	l.held[key] = owner
	return true, nil
}

func (l *fakeLocks) ReleaseSessionLock(ctx context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == owner {
		delete(l.held, key)
	}
	return nil
}

func (l *fakeLocks) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// ─── Clock ───────────────────────────────────────────────────────────────────

type manualTicker struct{ ch chan time.Time }

func (m manualTicker) C() <-chan time.Time { return m.ch }
func (m manualTicker) Stop()               {}

// manualClock hands every simulation the same tick channel.
type manualClock struct{ ch chan time.Time }

func newManualClock() *manualClock { return &manualClock{ch: make(chan time.Time)} }

func (c *manualClock) NewTicker(time.Duration) simulator.Ticker { return manualTicker{ch: c.ch} }

// tick delivers one tick and reports whether a simulation accepted it.
func (c *manualClock) tick() bool {
	select {
	case c.ch <- time.Now():
		return true
	case <-time.After(200 * time.Millisecond):
		return false
	}
}

// ─── Harness ─────────────────────────────────────────────────────────────────

type harness struct {
	planner   *fakePlanner
	persister *fakePersister
	payments  *fakePayments
	positions *fakePositions
	publisher *fakePublisher
	clock     *manualClock
	deps      Deps
	cfg       Config
}

func newHarness() *harness {
	h := &harness{
		planner:   &fakePlanner{},
		persister: &fakePersister{},
		payments:  &fakePayments{},
		positions: newFakePositions(),
		publisher: &fakePublisher{},
		clock:     newManualClock(),
		cfg:       DefaultConfig(),
	}
	h.deps = Deps{
		Planner:   h.planner,
		Simulator: simulator.New(simulator.DefaultConfig(), simulator.WithClock(h.clock), simulator.WithLogger(logging.Discard())),
		Payments:  h.payments,
		Positions: h.positions,
		Publisher: h.publisher,
		Logger:    logging.Discard(),
	}
	return h
}

func (h *harness) open(t *testing.T, ride domain.RideRecord) *Session {
	t.Helper()
	s, err := Open(context.Background(), ride, h.persister, h.deps, h.cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(s.Dispose)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
