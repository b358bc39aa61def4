package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"ridetrack/internal/domain"
	"ridetrack/internal/fare"
	"ridetrack/internal/logging"
	"ridetrack/internal/redis"
	"ridetrack/internal/repository"
	"ridetrack/internal/routing"
	"ridetrack/internal/tracking"
)

const (
	defaultNearbyRadiusKm = 5
	maxNearbyRadiusKm     = 50
)

// OpenSessionRequest names the backend record to track.
type OpenSessionRequest struct {
	Kind   string `json:"kind" validate:"required,oneof=ride ride_request"`
	RideID string `json:"ride_id" validate:"required,max=64"`
}

// QuoteRequest contains the parameters for pricing a route.
type QuoteRequest struct {
	PickupLat  float64 `json:"pickup_lat" validate:"latitude"`
	PickupLng  float64 `json:"pickup_lng" validate:"longitude"`
	DropoffLat float64 `json:"dropoff_lat" validate:"latitude"`
	DropoffLng float64 `json:"dropoff_lng" validate:"longitude"`
	TimeLabel  string  `json:"time" validate:"omitempty,max=32"`
	TripType   string  `json:"trip_type" validate:"omitempty,max=32"`

	// RideRequestID, when set, stores the quote on that ride request.
	RideRequestID string `json:"ride_request_id" validate:"omitempty,max=64"`
}

// NearbyRequest contains the parameters for a live position search.
type NearbyRequest struct {
	Lat      float64 `form:"lat" validate:"latitude"`
	Lng      float64 `form:"lng" validate:"longitude"`
	RadiusKm float64 `form:"radius_km" validate:"gte=0,lte=50"`
}

// TrackingService is the entry point for quotes and tracking sessions.
type TrackingService struct {
	rideRepo    repository.RideRepository
	requestRepo repository.RideRequestRepository
	manager     *tracking.Manager
	planner     tracking.Planner
	positions   redis.LocationStoreInterface
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewTrackingService creates a new TrackingService. positions may be nil,
// in which case nearby searches return nothing.
func NewTrackingService(
	rideRepo repository.RideRepository,
	requestRepo repository.RideRequestRepository,
	manager *tracking.Manager,
	planner tracking.Planner,
	positions redis.LocationStoreInterface,
	logger *slog.Logger,
) *TrackingService {
	return &TrackingService{
		rideRepo:    rideRepo,
		requestRepo: requestRepo,
		manager:     manager,
		planner:     planner,
		positions:   positions,
		validate:    validator.New(),
		logger:      logging.OrDefault(logger),
	}
}

func (s *TrackingService) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Quote prices a route without opening a session.
func (s *TrackingService) Quote(ctx context.Context, req QuoteRequest) (*domain.ResolvedRoute, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	return s.planner.Resolve(ctx, routing.Request{
		Origin:        domain.Coordinate{Latitude: req.PickupLat, Longitude: req.PickupLng},
		Destination:   domain.Coordinate{Latitude: req.DropoffLat, Longitude: req.DropoffLng},
		TimeLabel:     req.TimeLabel,
		RoundTrip:     fare.IsRoundTrip(req.TripType),
		RideRequestID: req.RideRequestID,
	})
}

// OpenSession loads the record from the backend and starts tracking it.
func (s *TrackingService) OpenSession(ctx context.Context, req OpenSessionRequest) (tracking.View, error) {
	if err := s.check(req); err != nil {
		return tracking.View{}, err
	}

	ride, err := s.load(ctx, domain.RideKind(req.Kind), req.RideID)
	if err != nil {
		return tracking.View{}, err
	}

	session, err := s.manager.Open(ctx, *ride)
	if err != nil {
		return tracking.View{}, err
	}
	return session.View(), nil
}

func (s *TrackingService) load(ctx context.Context, kind domain.RideKind, id string) (*domain.RideRecord, error) {
	switch kind {
	case domain.RideKindRide:
		return s.rideRepo.GetByID(ctx, id)
	case domain.RideKindRequest:
		return s.requestRepo.GetByID(ctx, id)
	default:
		return nil, ErrInvalidRequest
	}
}

// Session returns an open session.
func (s *TrackingService) Session(sessionID string) (*tracking.Session, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	return s.manager.Get(sessionID)
}

// GetSession returns the read model of an open session.
func (s *TrackingService) GetSession(sessionID string) (tracking.View, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return tracking.View{}, err
	}
	return session.View(), nil
}

// Act applies a named lifecycle action to a session. On failure the
// returned view still reflects the unchanged status.
func (s *TrackingService) Act(ctx context.Context, sessionID, action string) (tracking.View, error) {
	a, err := parseAction(action)
	if err != nil {
		return tracking.View{}, err
	}
	session, err := s.Session(sessionID)
	if err != nil {
		return tracking.View{}, err
	}
	return session.Do(ctx, a)
}

// CloseSession stops tracking without changing the ride's status.
func (s *TrackingService) CloseSession(sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	return s.manager.Dispose(sessionID)
}

// ConvertRequest turns a ride request into a ride. A tracked request must
// be closed first.
func (s *TrackingService) ConvertRequest(ctx context.Context, requestID string) (*domain.RideRecord, error) {
	if requestID == "" {
		return nil, ErrInvalidRideID
	}
	release, err := s.manager.Reserve(ctx, domain.RideKindRequest, requestID)
	if errors.Is(err, tracking.ErrSessionActive) {
		return nil, ErrRequestTracked
	}
	if err != nil {
		return nil, err
	}
	defer release()

	ride, err := s.requestRepo.ConvertToRide(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "ride request converted", "ride_request_id", requestID, "ride_id", ride.ID)
	return ride, nil
}

// Nearby lists tracked vehicles around a point, nearest first.
func (s *TrackingService) Nearby(ctx context.Context, req NearbyRequest) ([]redis.RidePosition, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if s.positions == nil {
		return []redis.RidePosition{}, nil
	}

	radius := req.RadiusKm
	if radius == 0 {
		radius = defaultNearbyRadiusKm
	}
	radius = min(radius, maxNearbyRadiusKm)

	found, err := s.positions.FindNearby(ctx, domain.Coordinate{Latitude: req.Lat, Longitude: req.Lng}, radius)
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []redis.RidePosition{}
	}
	return found, nil
}

var knownActions = map[domain.RideAction]bool{
	domain.ActionAccept:   true,
	domain.ActionReject:   true,
	domain.ActionStart:    true,
	domain.ActionConfirm:  true,
	domain.ActionComplete: true,
	domain.ActionCancel:   true,
}

func parseAction(name string) (domain.RideAction, error) {
	a := domain.RideAction(name)
	if !knownActions[a] {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, name)
	}
	return a, nil
}
