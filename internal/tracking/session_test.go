package tracking

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"ridetrack/internal/domain"
	"ridetrack/internal/events"
	"ridetrack/internal/lifecycle"
	"ridetrack/internal/routing"
)

// ─── Opening ─────────────────────────────────────────────────────────────────

func TestOpen_BuildsReadModel(t *testing.T) {
	t.Parallel()

	h := newHarness()
	s := h.open(t, testRide(domain.RideStatusAccepted))

	v := s.View()
	if v.Status != domain.RideStatusAccepted || v.Moving || v.Closed {
		t.Errorf("unexpected view: %+v", v)
	}
	if !reflect.DeepEqual(v.AllowedActions, []domain.RideAction{domain.ActionStart, domain.ActionCancel}) {
		t.Errorf("unexpected actions: %v", v.AllowedActions)
	}
	if v.Position != testPath[0] || v.Route.Fare != 25 || v.Route.Points != 3 {
		t.Errorf("unexpected position or route: %+v", v)
	}
	if v.SessionID == "" || v.SessionID != s.ID() {
		t.Errorf("expected the session id in the view, got %q", v.SessionID)
	}

	req := h.planner.requests[0]
	if req.Origin != testPath[0] || req.Destination != testPath[2] || req.RideRequestID != "" {
		t.Errorf("unexpected route request: %+v", req)
	}
}

func TestOpen_RideRequestRecordsRouteDetails(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ride := testRide(domain.RideStatusRequested)
	ride.Kind = domain.RideKindRequest
	ride.ID = "7"
	ride.TripType = "two_way"
	ride.TimeLabel = "21:30"
	h.open(t, ride)

	req := h.planner.requests[0]
	if req.RideRequestID != "7" || !req.RoundTrip || req.TimeLabel != "21:30" {
		t.Errorf("unexpected route request: %+v", req)
	}
}

func TestOpen_RejectsFinishedRide(t *testing.T) {
	t.Parallel()

	h := newHarness()
	_, err := Open(context.Background(), testRide(domain.RideStatusCompleted), h.persister, h.deps, h.cfg)
	if !errors.Is(err, ErrRideFinished) {
		t.Fatalf("expected ErrRideFinished, got %v", err)
	}
	if len(h.planner.requests) != 0 {
		t.Error("a finished ride must not be routed")
	}
}

func TestOpen_PropagatesInvalidRoute(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.planner.err = routing.ErrInvalidRouteRequest
	_, err := Open(context.Background(), testRide(domain.RideStatusAccepted), h.persister, h.deps, h.cfg)
	if !errors.Is(err, routing.ErrInvalidRouteRequest) {
		t.Fatalf("expected ErrInvalidRouteRequest, got %v", err)
	}
}

func TestOpen_ResumesRideAlreadyStarted(t *testing.T) {
	t.Parallel()

	h := newHarness()
	s := h.open(t, testRide(domain.RideStatusStarted))

	if !s.View().Moving {
		t.Fatal("expected a started ride to resume moving")
	}
	if !h.clock.tick() {
		t.Fatal("expected the simulation to accept a tick")
	}
	waitFor(t, "first position update", func() bool { return s.View().PathIndex == 1 })
}

// ─── Driving a ride ──────────────────────────────────────────────────────────

func TestSession_StartToArrivalCompletesRide(t *testing.T) {
	t.Parallel()

	h := newHarness()
	s := h.open(t, testRide(domain.RideStatusAccepted))

	v, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if v.Status != domain.RideStatusStarted || !v.Moving {
		t.Fatalf("unexpected view after start: %+v", v)
	}

	h.clock.tick()
	waitFor(t, "first tick", func() bool { return s.View().Position == testPath[1] })
	h.clock.tick()
	// payment runs after the session is released, so it is the last effect
	waitFor(t, "payment completion", func() bool { return h.payments.calls.Load() == 1 })

	if !s.Closed() {
		t.Error("expected the session to be closed")
	}
	if got := s.Status(); got != domain.RideStatusCompleted {
		t.Errorf("expected completed, got %s", got)
	}
	if got := h.persister.persisted(); !reflect.DeepEqual(got, []domain.RideStatus{domain.RideStatusStarted, domain.RideStatusCompleted}) {
		t.Errorf("unexpected persisted statuses: %v", got)
	}

	updates, removed := h.positions.snapshot(domain.RideKindRide, "42")
	if updates != 2 || !removed {
		t.Errorf("expected 2 index updates and removal, got %d / %v", updates, removed)
	}

	want := []events.Type{events.TypeRideStarted, events.TypeVehicleArrived, events.TypeRideCompleted}
	if got := h.publisher.types(); !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected events: %v", got)
	}

	if h.clock.tick() {
		t.Error("no simulation should be running after completion")
	}
}

func TestSession_ArrivalCompletionFailureLeavesRideStarted(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.persister.setFailure(domain.RideStatusCompleted, errors.New("503 service unavailable"))
	s := h.open(t, testRide(domain.RideStatusStarted))

	h.clock.tick()
	h.clock.tick()
	waitFor(t, "arrival pending", func() bool { return s.View().ArrivalPending })

	v := s.View()
	if v.Status != domain.RideStatusStarted || v.Closed || v.Moving {
		t.Fatalf("unexpected view after failed completion: %+v", v)
	}
	if h.payments.calls.Load() != 0 {
		t.Error("payment must not complete when the ride did not")
	}

	// the backend recovers and the driver completes by hand
	h.persister.setFailure(domain.RideStatusCompleted, nil)
	v, err := s.Complete(context.Background())
	if err != nil {
		t.Fatalf("manual complete: %v", err)
	}
	if v.Status != domain.RideStatusCompleted || v.ArrivalPending || !s.Closed() {
		t.Errorf("unexpected view after manual completion: %+v", v)
	}
}

func TestSession_PersistenceFailureDoesNotStartSimulation(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.persister.setFailure(domain.RideStatusStarted, errors.New("timeout"))
	s := h.open(t, testRide(domain.RideStatusAccepted))

	v, err := s.Start(context.Background())
	if !errors.Is(err, lifecycle.ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}
	var pe *lifecycle.PersistenceError
	if !errors.As(err, &pe) || pe.Action != domain.ActionStart {
		t.Errorf("expected the attempted action in the error, got %v", err)
	}
	if v.Status != domain.RideStatusAccepted || v.Moving {
		t.Errorf("status must stay accepted, got %+v", v)
	}
	if h.clock.tick() {
		t.Error("no simulation should be running")
	}
}

func TestSession_IllegalActionNeverPersists(t *testing.T) {
	t.Parallel()

	h := newHarness()
	s := h.open(t, testRide(domain.RideStatusRequested))

	_, err := s.Start(context.Background())
	if !errors.Is(err, lifecycle.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if len(h.persister.persisted()) != 0 {
		t.Error("an illegal action must not reach the backend")
	}
}

func TestSession_CancelClosesSession(t *testing.T) {
	t.Parallel()

	h := newHarness()
	s := h.open(t, testRide(domain.RideStatusAccepted))

	v, err := s.Cancel(context.Background())
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if v.Status != domain.RideStatusCancelled || !v.Closed {
		t.Errorf("unexpected view: %+v", v)
	}
	if h.payments.calls.Load() != 0 {
		t.Error("cancellation must not complete payment")
	}
	if _, err := s.Start(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSession_RideRequestConfirmMovesWithoutPayment(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ride := testRide(domain.RideStatusRequested)
	ride.Kind = domain.RideKindRequest
	s := h.open(t, ride)

	v, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if v.Status != domain.RideStatusConfirmed || !v.Moving {
		t.Fatalf("unexpected view: %+v", v)
	}

	h.clock.tick()
	h.clock.tick()
	waitFor(t, "session close", s.Closed)

	if s.Status() != domain.RideStatusCompleted {
		t.Errorf("expected completed, got %s", s.Status())
	}
	if h.payments.calls.Load() != 0 {
		t.Error("ride requests carry no payment")
	}
}

// ─── Disposal and subscriptions ──────────────────────────────────────────────

func TestSession_DisposeStopsSimulationAndIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness()
	s := h.open(t, testRide(domain.RideStatusStarted))

	s.Dispose()
	s.Dispose()

	before := s.View().Position
	h.clock.tick()
	if after := s.View().Position; after != before {
		t.Errorf("position moved after dispose: %v -> %v", before, after)
	}
	if _, err := s.Complete(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if len(h.persister.persisted()) != 0 {
		t.Error("dispose must not persist anything")
	}
}

func TestSession_DisposeDuringIndexWriteLeavesNoEntry(t *testing.T) {
	t.Parallel()

	h := newHarness()
	s := h.open(t, testRide(domain.RideStatusStarted))
	entered, release := h.positions.hold()

	h.clock.tick()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("tick never reached the position index")
	}

	// the session closes while the write is still in flight
	s.Dispose()
	release()

	waitFor(t, "stale entry removal", func() bool {
		updates, _ := h.positions.snapshot(domain.RideKindRide, "42")
		return updates == 1 && !h.positions.isIndexed(domain.RideKindRide, "42")
	})
}

func TestSession_IndexesRidesAndRequestsSeparately(t *testing.T) {
	t.Parallel()

	rides := newHarness()
	requests := newHarness()
	requests.positions = rides.positions
	requests.deps.Positions = rides.positions

	ride := rides.open(t, testRide(domain.RideStatusStarted))
	reqRecord := testRide(domain.RideStatusConfirmed)
	reqRecord.Kind = domain.RideKindRequest
	req := requests.open(t, reqRecord)

	rides.clock.tick()
	requests.clock.tick()
	waitFor(t, "both records indexed", func() bool {
		return rides.positions.isIndexed(domain.RideKindRide, "42") &&
			rides.positions.isIndexed(domain.RideKindRequest, "42")
	})

	req.Dispose()
	if !rides.positions.isIndexed(domain.RideKindRide, "42") {
		t.Error("disposing the ride request must keep the ride indexed")
	}
	if rides.positions.isIndexed(domain.RideKindRequest, "42") {
		t.Error("expected the ride request entry to be removed")
	}
	if ride.Closed() {
		t.Error("the ride session must stay open")
	}
}

func TestSession_SubscribersReceiveViews(t *testing.T) {
	t.Parallel()

	h := newHarness()
	s := h.open(t, testRide(domain.RideStatusAccepted))

	views, unsubscribe := s.Subscribe()
	first := <-views
	if first.Status != domain.RideStatusAccepted {
		t.Fatalf("expected the current view first, got %+v", first)
	}

	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	started := <-views
	if started.Status != domain.RideStatusStarted {
		t.Errorf("expected a started view, got %+v", started)
	}

	unsubscribe()
	unsubscribe()
	for range views {
	}
}

func TestSession_SlowSubscriberDoesNotBlockTicks(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.cfg.SubscriberQueue = 1
	s := h.open(t, testRide(domain.RideStatusStarted))

	views, _ := s.Subscribe() // never drained

	h.clock.tick()
	h.clock.tick()
	waitFor(t, "session close", s.Closed)

	n := 0
	for range views {
		n++
	}
	if n != 1 {
		t.Errorf("expected the buffered view only, got %d", n)
	}
}
