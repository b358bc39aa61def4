// Package simulator moves a simulated vehicle along a resolved route on a
// fixed tick and signals arrival exactly once.
package simulator

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ridetrack/internal/domain"
	"ridetrack/internal/logging"
	"ridetrack/internal/observability"
)

// ErrInvalidRoute is returned by Start for a route with fewer than two points.
var ErrInvalidRoute = errors.New("route needs at least two points")

// Ticker is the part of time.Ticker the simulator uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers. Tests swap it for a manual clock.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Config tunes the simulation.
type Config struct {
	TickInterval           time.Duration
	ArrivalThresholdMeters float64

	// StepDegrees > 0 moves the vehicle by that many degrees per tick
	// toward the next vertex instead of jumping vertex to vertex.
	StepDegrees float64
}

// DefaultConfig ticks every second and arrives within 100 m.
func DefaultConfig() Config {
	return Config{
		TickInterval:           time.Second,
		ArrivalThresholdMeters: 100,
	}
}

// Simulator starts handles. It holds no per-run state.
type Simulator struct {
	cfg    Config
	clock  Clock
	logger *slog.Logger
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Simulator) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// New creates a Simulator.
func New(cfg Config, opts ...Option) *Simulator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	s := &Simulator{cfg: cfg, clock: realClock{}}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)
	return s
}

// Start begins moving along route from the path vertex nearest to from.
// onTick receives every new position; onArrive runs once when the vehicle
// reaches the end of the path or comes within the arrival threshold.
// Both callbacks run on the handle's goroutine, one at a time.
func (s *Simulator) Start(route domain.RouteCandidate, from domain.Coordinate, onTick func(Progress), onArrive func()) (*Handle, error) {
	if len(route.Path) < 2 {
		return nil, ErrInvalidRoute
	}
	h := s.newHandle(route.Path, from, onTick, onArrive)
	s.logger.Debug("simulation started", "start_index", h.cursor.index, "points", len(route.Path), "interval", s.cfg.TickInterval)

	go h.run(s.clock.NewTicker(s.cfg.TickInterval))
	return h, nil
}

func (s *Simulator) newHandle(path []domain.Coordinate, from domain.Coordinate, onTick func(Progress), onArrive func()) *Handle {
	if onTick == nil {
		onTick = func(Progress) {}
	}
	if onArrive == nil {
		onArrive = func() {}
	}
	return &Handle{
		cursor:   newCursor(path, from, s.cfg.StepDegrees, s.cfg.ArrivalThresholdMeters),
		onTick:   onTick,
		onArrive: onArrive,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Cancel stops h. It is safe on a nil, cancelled or arrived handle.
func (s *Simulator) Cancel(h *Handle) {
	h.Cancel()
}

// Handle is the only way to stop a running simulation.
type Handle struct {
	cursor   *cursor
	onTick   func(Progress)
	onArrive func()

	stop       chan struct{}
	done       chan struct{}
	cancelOnce sync.Once
	arriveOnce sync.Once
	arrived    atomic.Bool

	mu       sync.Mutex
	finished bool
}

// Cancel stops further ticks. It never blocks, so it may be called from
// inside onTick or onArrive, and calling it again is a no-op.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.cancelOnce.Do(func() { close(h.stop) })
}

// Done is closed once the handle's goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Arrived reports whether onArrive has fired.
func (h *Handle) Arrived() bool {
	return h.arrived.Load()
}

// Progress returns the latest simulated state.
func (h *Handle) Progress() Progress {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor.progress()
}

func (h *Handle) cancelled() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

func (h *Handle) run(t Ticker) {
	defer close(h.done)
	defer t.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-t.C():
			if h.step() {
				return
			}
		}
	}
}

// step performs one tick and reports whether the simulation is over.
// Ticks after arrival or cancellation do nothing.
func (h *Handle) step() bool {
	h.mu.Lock()
	if h.finished || h.cancelled() {
		h.finished = true
		h.mu.Unlock()
		return true
	}
	p, moved, arrived := h.cursor.advance()
	if arrived {
		h.finished = true
	}
	h.mu.Unlock()

	if moved {
		observability.SimulatorTicks.Inc()
		h.onTick(p)
	}
	if arrived {
		h.arriveOnce.Do(func() {
			h.arrived.Store(true)
			observability.Arrivals.Inc()
			h.onArrive()
		})
	}
	return arrived
}
