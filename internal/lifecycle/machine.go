package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ridetrack/internal/domain"
	"ridetrack/internal/logging"
	"ridetrack/internal/observability"
)

// Persister writes a status change to the backend. from is the status the
// machine believes the record is in; stores that support compare-and-set
// use it to detect concurrent transitions.
type Persister interface {
	PersistStatus(ctx context.Context, id string, from, to domain.RideStatus) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, id string, from, to domain.RideStatus) error

// PersistStatus implements Persister.
func (f PersisterFunc) PersistStatus(ctx context.Context, id string, from, to domain.RideStatus) error {
	return f(ctx, id, from, to)
}

// CompletionHook runs once the record reaches completed. Hooks are
// best-effort: their errors are logged, never returned to the caller.
type CompletionHook func(ctx context.Context) error

// Transition is a committed status change.
type Transition struct {
	RideID    string
	Lifecycle string
	Action    domain.RideAction
	From      domain.RideStatus
	To        domain.RideStatus
	At        time.Time
}

// Observer is notified of every committed transition.
type Observer func(Transition)

type namedHook struct {
	name string
	fn   CompletionHook
}

// Machine owns the canonical status of one ride or ride request. The status
// only moves after the backend accepted the change.
type Machine struct {
	id        string
	lc        Lifecycle
	persister Persister
	logger    *slog.Logger

	// advanceMu serializes Advance so a consumed transition cannot be
	// persisted twice from this machine.
	advanceMu sync.Mutex

	mu        sync.RWMutex
	status    domain.RideStatus
	hooks     []namedHook
	observers []Observer
}

// NewMachine creates a machine for record id currently in status initial.
func NewMachine(id string, lc Lifecycle, initial domain.RideStatus, persister Persister, logger *slog.Logger) *Machine {
	return &Machine{
		id:        id,
		lc:        lc,
		persister: persister,
		logger:    logging.OrDefault(logger),
		status:    initial,
	}
}

// Status returns the current status.
func (m *Machine) Status() domain.RideStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Lifecycle returns the lifecycle variant the machine follows.
func (m *Machine) Lifecycle() Lifecycle {
	return m.lc
}

// Allowed lists the actions legal from the current status.
func (m *Machine) Allowed() []domain.RideAction {
	return m.lc.Allowed(m.Status())
}

// Terminal reports whether the current status is terminal.
func (m *Machine) Terminal() bool {
	return m.lc.Terminal(m.Status())
}

// OnComplete registers a hook to run when the record reaches completed.
// Hooks run in registration order and independently of each other.
func (m *Machine) OnComplete(name string, hook CompletionHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, fn: hook})
}

// Observe registers fn to be called after every committed transition.
func (m *Machine) Observe(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Advance applies action. Illegal actions fail with ErrIllegalTransition
// before the backend is contacted. A backend failure returns a
// *PersistenceError and leaves the status unchanged. The machine never
// retries on its own.
func (m *Machine) Advance(ctx context.Context, action domain.RideAction) (next domain.RideStatus, err error) {
	defer observability.Time(ctx, m.logger, "lifecycle.advance")(&err)

	m.advanceMu.Lock()
	defer m.advanceMu.Unlock()

	current := m.Status()
	next, err = m.lc.Next(current, action)
	if err != nil {
		observability.Transitions.WithLabelValues(m.lc.Name(), string(action), "illegal").Inc()
		return current, err
	}

	if err := m.persister.PersistStatus(ctx, m.id, current, next); err != nil {
		observability.Transitions.WithLabelValues(m.lc.Name(), string(action), "persist_failed").Inc()
		m.logger.WarnContext(ctx, "transition not persisted",
			"ride_id", m.id, "lifecycle", m.lc.Name(), "action", action, "error", err)
		return current, &PersistenceError{Action: action, Target: next, Err: err}
	}

	m.mu.Lock()
	m.status = next
	hooks := append([]namedHook(nil), m.hooks...)
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	observability.Transitions.WithLabelValues(m.lc.Name(), string(action), "ok").Inc()
	m.logger.InfoContext(ctx, "ride transitioned",
		"ride_id", m.id, "lifecycle", m.lc.Name(), "action", action, "from", current, "to", next)

	t := Transition{RideID: m.id, Lifecycle: m.lc.Name(), Action: action, From: current, To: next, At: time.Now()}
	for _, o := range observers {
		o(t)
	}

	if next == domain.RideStatusCompleted {
		m.runCompletionHooks(context.WithoutCancel(ctx), hooks)
	}
	return next, nil
}

// runCompletionHooks runs every hook even when an earlier one fails or panics.
func (m *Machine) runCompletionHooks(ctx context.Context, hooks []namedHook) {
	for _, h := range hooks {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					m.logger.ErrorContext(ctx, "completion hook panicked", "ride_id", m.id, "hook", h.name, "panic", rec)
				}
			}()
			if err := h.fn(ctx); err != nil {
				m.logger.WarnContext(ctx, "completion hook failed", "ride_id", m.id, "hook", h.name, "error", err)
			}
		}()
	}
}
