package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"ridetrack/internal/domain"
	"ridetrack/internal/repository"
)

// RideRequestRepository is a REST implementation of
// repository.RideRequestRepository.
type RideRequestRepository struct {
	c *Client
}

// NewRideRequestRepository creates a ride request repository on top of c.
func NewRideRequestRepository(c *Client) *RideRequestRepository {
	return &RideRequestRepository{c: c}
}

func requestPath(id string) string {
	return "/client/ride-request/" + url.PathEscape(id) + "/"
}

// GetByID retrieves a ride request by ID.
func (r *RideRequestRepository) GetByID(ctx context.Context, id string) (*domain.RideRecord, error) {
	var res rideResource
	if err := r.c.call(ctx, http.MethodGet, requestPath(id), nil, &res); err != nil {
		return nil, err
	}
	return res.record(domain.RideKindRequest)
}

// UpdateStatus patches the request's status through its status endpoint.
func (r *RideRequestRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus) error {
	body := statusBody{Status: repository.ToBackendStatus(domain.RideKindRequest, to)}
	if err := r.c.call(ctx, http.MethodPatch, requestPath(id)+"status/", body, nil); err != nil {
		return fmt.Errorf("ride request %s %s -> %s: %w", id, from, to, err)
	}
	return nil
}

// UpdateRouteDetails stores distance (km), duration (minutes) and fare on
// the request.
func (r *RideRequestRepository) UpdateRouteDetails(ctx context.Context, id string, details domain.RouteDetails) error {
	return r.c.call(ctx, http.MethodPatch, requestPath(id), details, nil)
}

// ConvertToRide asks the backend to create a ride from the request.
func (r *RideRequestRepository) ConvertToRide(ctx context.Context, id string) (*domain.RideRecord, error) {
	var res rideResource
	if err := r.c.call(ctx, http.MethodPost, requestPath(id)+"convert/", nil, &res); err != nil {
		return nil, err
	}
	return res.record(domain.RideKindRide)
}

var _ repository.RideRequestRepository = (*RideRequestRepository)(nil)
