package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"ridetrack/internal/domain"
	"ridetrack/internal/repository"
)

// RideRepository is a REST implementation of repository.RideRepository.
type RideRepository struct {
	c *Client
}

// NewRideRepository creates a ride repository on top of c.
func NewRideRepository(c *Client) *RideRepository {
	return &RideRepository{c: c}
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.RideRecord, error) {
	var res rideResource
	if err := r.c.call(ctx, http.MethodGet, "/rides/"+url.PathEscape(id)+"/", nil, &res); err != nil {
		return nil, err
	}
	return res.record(domain.RideKindRide)
}

// UpdateStatus patches the ride's status. The backend has no conditional
// update, so from is only used for logging; a 409 still maps to
// repository.ErrConflict.
func (r *RideRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus) error {
	body := statusBody{Status: repository.ToBackendStatus(domain.RideKindRide, to)}
	if err := r.c.call(ctx, http.MethodPatch, "/rides/"+url.PathEscape(id)+"/", body, nil); err != nil {
		return fmt.Errorf("ride %s %s -> %s: %w", id, from, to, err)
	}
	return nil
}

var _ repository.RideRepository = (*RideRepository)(nil)
