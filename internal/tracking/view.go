package tracking

import (
	"ridetrack/internal/domain"
)

// RouteSummary describes the resolved route without its geometry.
type RouteSummary struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	Points          int     `json:"points"`
	Fare            float64 `json:"fare"`
	DriverPayment   float64 `json:"driver_payment"`
	FareVersion     string  `json:"fare_version"`
	Fallback        bool    `json:"fallback"`
	HasAlternate    bool    `json:"has_alternate"`
}

// View is the read model a rider or driver screen renders.
type View struct {
	SessionID       string              `json:"session_id"`
	RideID          string              `json:"ride_id"`
	Kind            domain.RideKind     `json:"kind"`
	Status          domain.RideStatus   `json:"status"`
	Position        domain.Coordinate   `json:"position"`
	PathIndex       int                 `json:"path_index"`
	Progress        float64             `json:"progress"`
	RemainingMeters float64             `json:"remaining_meters"`
	AllowedActions  []domain.RideAction `json:"allowed_actions"`
	Route           RouteSummary        `json:"route"`
	Moving          bool                `json:"moving"`

	// ArrivalPending is set when the vehicle arrived but the automatic
	// completion could not be persisted; a manual complete finishes it.
	ArrivalPending bool `json:"arrival_pending"`
	Closed         bool `json:"closed"`
}

func summarize(r *domain.ResolvedRoute) RouteSummary {
	return RouteSummary{
		DistanceMeters:  r.Route.DistanceMeters,
		DurationSeconds: r.Route.DurationSeconds,
		Points:          len(r.Route.Path),
		Fare:            r.Fare,
		DriverPayment:   r.DriverPayment,
		FareVersion:     r.FareVersion,
		Fallback:        r.Fallback,
		HasAlternate:    r.Alternate != nil,
	}
}
