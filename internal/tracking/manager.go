package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"ridetrack/internal/domain"
	"ridetrack/internal/lifecycle"
	"ridetrack/internal/logging"
	"ridetrack/internal/observability"
	"ridetrack/internal/redis"
)

// Persisters maps each ride kind to the store its status changes go to.
type Persisters struct {
	Rides    lifecycle.Persister
	Requests lifecycle.Persister
}

func (p Persisters) forKind(kind domain.RideKind) (lifecycle.Persister, error) {
	switch kind {
	case domain.RideKindRide:
		if p.Rides != nil {
			return p.Rides, nil
		}
	case domain.RideKindRequest:
		if p.Requests != nil {
			return p.Requests, nil
		}
	}
	return nil, lifecycle.ErrUnknownKind
}

// Manager is the per-instance registry of open sessions. It guarantees at
// most one session per ride; with a lock store, across instances too.
type Manager struct {
	deps       Deps
	persisters Persisters
	cfg        Config
	locks      redis.LockStoreInterface
	instanceID string
	logger     *slog.Logger

	mu      sync.Mutex
	byKey   map[string]*Session
	byID    map[string]*Session
	opening map[string]bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLocks enforces one session per ride across instances.
func WithLocks(locks redis.LockStoreInterface) ManagerOption {
	return func(m *Manager) { m.locks = locks }
}

// NewManager creates an empty registry.
func NewManager(deps Deps, persisters Persisters, cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		deps:       deps,
		persisters: persisters,
		cfg:        cfg,
		instanceID: uuid.NewString(),
		logger:     logging.OrDefault(deps.Logger),
		byKey:      make(map[string]*Session),
		byID:       make(map[string]*Session),
		opening:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func sessionKey(kind domain.RideKind, id string) string {
	return string(kind) + ":" + id
}

// Open starts tracking ride. It fails with ErrSessionActive when the ride
// is already tracked.
func (m *Manager) Open(ctx context.Context, ride domain.RideRecord) (*Session, error) {
	persister, err := m.persisters.forKind(ride.Kind)
	if err != nil {
		return nil, err
	}

	key := sessionKey(ride.Kind, ride.ID)
	m.mu.Lock()
	if m.byKey[key] != nil || m.opening[key] {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}
	m.opening[key] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.opening, key)
		m.mu.Unlock()
	}()

	if m.locks != nil {
		ok, err := m.locks.AcquireSessionLock(ctx, key, m.instanceID, m.cfg.SessionLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		if !ok {
			return nil, ErrSessionActive
		}
	}

	s, err := Open(ctx, ride, persister, m.deps, m.cfg, OnDispose(m.remove))
	if err != nil {
		m.releaseLock(key)
		return nil, err
	}

	m.mu.Lock()
	if !s.Closed() {
		m.byKey[key] = s
		m.byID[s.ID()] = s
		observability.SessionsActive.Inc()
	}
	m.mu.Unlock()

	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Lookup returns the open session tracking the given record, if any.
func (m *Manager) Lookup(kind domain.RideKind, rideID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byKey[sessionKey(kind, rideID)]
	return s, ok
}

// Reserve keeps sessions from opening for the record until release is
// called, so the record can be changed underneath without a tracker. It
// fails with ErrSessionActive when the record is tracked or being opened.
func (m *Manager) Reserve(ctx context.Context, kind domain.RideKind, rideID string) (release func(), err error) {
	key := sessionKey(kind, rideID)
	m.mu.Lock()
	if m.byKey[key] != nil || m.opening[key] {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}
	m.opening[key] = true
	m.mu.Unlock()

	unreserve := func() {
		m.mu.Lock()
		delete(m.opening, key)
		m.mu.Unlock()
	}

	if m.locks != nil {
		ok, err := m.locks.AcquireSessionLock(ctx, key, m.instanceID, m.cfg.SessionLockTTL)
		if err != nil {
			unreserve()
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		if !ok {
			unreserve()
			return nil, ErrSessionActive
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.releaseLock(key)
			unreserve()
		})
	}, nil
}

// Dispose closes the session with the given id.
func (m *Manager) Dispose(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.Dispose()
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Shutdown disposes every open session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Dispose()
	}
}

func (m *Manager) remove(s *Session) {
	key := sessionKey(s.ride.Kind, s.ride.ID)

	m.mu.Lock()
	if m.byID[s.ID()] == s {
		delete(m.byID, s.ID())
		delete(m.byKey, key)
		observability.SessionsActive.Dec()
	}
	m.mu.Unlock()

	m.releaseLock(key)
}

func (m *Manager) releaseLock(key string) {
	if m.locks == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := m.locks.ReleaseSessionLock(ctx, key, m.instanceID); err != nil {
		m.logger.Warn("session lock not released", "key", key, "error", err)
	}
}
