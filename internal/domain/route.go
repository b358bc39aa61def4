package domain

import "time"

// RouteCandidate is one path returned by the routing service for an
// origin/destination pair.
type RouteCandidate struct {
	Path            []Coordinate `json:"path"`
	DistanceMeters  float64      `json:"distance_meters"`
	DurationSeconds float64      `json:"duration_seconds"`
}

// Origin returns the first point of the path.
func (r RouteCandidate) Origin() Coordinate { return r.Path[0] }

// Destination returns the last point of the path.
func (r RouteCandidate) Destination() Coordinate { return r.Path[len(r.Path)-1] }

// ResolvedRoute is the priced route a tracking session drives along.
// It is never mutated after creation.
type ResolvedRoute struct {
	Route RouteCandidate `json:"route"`

	// Alternate is the longest candidate, kept for display only.
	Alternate *RouteCandidate `json:"alternate,omitempty"`

	Fare          float64 `json:"fare"`
	DriverPayment float64 `json:"driver_payment"` // equal to Fare: drivers receive the whole fare
	FareVersion   string  `json:"fare_version"`

	// Fallback is set when the route is the straight two-point estimate
	// used because the routing service produced nothing usable.
	Fallback   bool      `json:"fallback"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// RouteDetails is what the backend stores on a ride request once a route
// has been priced. Units follow the backend: kilometres and minutes.
type RouteDetails struct {
	DistanceKm      float64 `json:"distance"`
	DurationMinutes float64 `json:"duration"`
	Fare            float64 `json:"fare"`
}

// DetailsOf converts a resolved route into the backend's units.
func DetailsOf(r *ResolvedRoute) RouteDetails {
	return RouteDetails{
		DistanceKm:      r.Route.DistanceMeters / 1000,
		DurationMinutes: r.Route.DurationSeconds / 60,
		Fare:            r.Fare,
	}
}
