package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"ridetrack/internal/domain"
	"ridetrack/internal/logging"
)

type recordingPersister struct {
	mu    sync.Mutex
	calls []domain.RideStatus
	err   error
}

func (p *recordingPersister) PersistStatus(ctx context.Context, id string, from, to domain.RideStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, to)
	return p.err
}

func (p *recordingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newMachine(status domain.RideStatus, p Persister) *Machine {
	return NewMachine("ride-1", Ride, status, p, logging.Discard())
}

func TestAdvance_AcceptedStartSucceeds(t *testing.T) {
	t.Parallel()

	p := &recordingPersister{}
	m := newMachine(domain.RideStatusAccepted, p)

	got, err := m.Advance(context.Background(), domain.ActionStart)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.RideStatusStarted || m.Status() != domain.RideStatusStarted {
		t.Errorf("expected started, got %s / %s", got, m.Status())
	}
	if p.count() != 1 {
		t.Errorf("expected one persist call, got %d", p.count())
	}
}

func TestAdvance_IllegalActionNeverReachesBackend(t *testing.T) {
	t.Parallel()

	p := &recordingPersister{}
	m := newMachine(domain.RideStatusRequested, p)

	_, err := m.Advance(context.Background(), domain.ActionStart)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if p.count() != 0 {
		t.Errorf("expected no persist call, got %d", p.count())
	}
	if m.Status() != domain.RideStatusRequested {
		t.Errorf("status must not change, got %s", m.Status())
	}
}

func TestAdvance_PersistenceFailureKeepsStatus(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("502 bad gateway")
	p := &recordingPersister{err: backendErr}
	m := newMachine(domain.RideStatusAccepted, p)

	_, err := m.Advance(context.Background(), domain.ActionStart)
	if !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}
	if !errors.Is(err, backendErr) {
		t.Errorf("expected the backend error to be wrapped, got %v", err)
	}

	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Action != domain.ActionStart || pe.Target != domain.RideStatusStarted {
		t.Errorf("expected attempted action in error, got %+v", pe)
	}
	if m.Status() != domain.RideStatusAccepted {
		t.Errorf("status must not advance optimistically, got %s", m.Status())
	}

	// caller retries once the backend recovers
	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()
	if _, err := m.Advance(context.Background(), domain.ActionStart); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestAdvance_CompletedRejectsEverything(t *testing.T) {
	t.Parallel()

	m := newMachine(domain.RideStatusCompleted, &recordingPersister{})
	for _, a := range allActions {
		if _, err := m.Advance(context.Background(), a); !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("expected %s to be illegal after completion, got %v", a, err)
		}
	}
}

func TestAdvance_CompletionHooksRunIndependently(t *testing.T) {
	t.Parallel()

	m := newMachine(domain.RideStatusStarted, &recordingPersister{})

	var order []string
	m.OnComplete("payment", func(ctx context.Context) error {
		order = append(order, "payment")
		return errors.New("payment service down")
	})
	m.OnComplete("panicky", func(ctx context.Context) error {
		order = append(order, "panicky")
		panic("boom")
	})
	m.OnComplete("simulator", func(ctx context.Context) error {
		order = append(order, "simulator")
		return nil
	})

	got, err := m.Advance(context.Background(), domain.ActionComplete)
	if err != nil {
		t.Fatalf("hook failures must not fail the transition: %v", err)
	}
	if got != domain.RideStatusCompleted {
		t.Errorf("expected completed, got %s", got)
	}
	if len(order) != 3 || order[2] != "simulator" {
		t.Errorf("expected every hook to run, got %v", order)
	}
}

func TestAdvance_HooksOnlyRunOnCompletion(t *testing.T) {
	t.Parallel()

	m := newMachine(domain.RideStatusRequested, &recordingPersister{})
	var ran int32
	m.OnComplete("count", func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	if _, err := m.Advance(context.Background(), domain.ActionAccept); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&ran) != 0 {
		t.Error("hooks must not run before completion")
	}
}

func TestAdvance_ObserversSeeCommittedTransitions(t *testing.T) {
	t.Parallel()

	m := newMachine(domain.RideStatusRequested, &recordingPersister{})
	var seen []Transition
	m.Observe(func(tr Transition) { seen = append(seen, tr) })

	_, _ = m.Advance(context.Background(), domain.ActionAccept)
	_, _ = m.Advance(context.Background(), domain.ActionComplete) // illegal, not observed

	if len(seen) != 1 {
		t.Fatalf("expected 1 observed transition, got %d", len(seen))
	}
	if seen[0].From != domain.RideStatusRequested || seen[0].To != domain.RideStatusAccepted || seen[0].RideID != "ride-1" {
		t.Errorf("unexpected transition: %+v", seen[0])
	}
}

func TestAdvance_ConcurrentStartPersistsOnce(t *testing.T) {
	t.Parallel()

	p := &recordingPersister{}
	m := newMachine(domain.RideStatusAccepted, p)

	const workers = 8
	var wg sync.WaitGroup
	var ok, illegal int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Advance(context.Background(), domain.ActionStart)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, ErrIllegalTransition):
				atomic.AddInt32(&illegal, 1)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || illegal != workers-1 {
		t.Errorf("expected 1 success and %d illegal, got %d / %d", workers-1, ok, illegal)
	}
	if p.count() != 1 {
		t.Errorf("expected a single persist call, got %d", p.count())
	}
}
