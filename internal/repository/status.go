package repository

import "ridetrack/internal/domain"

// The backend calls a started ride "in_progress" and a fresh ride request
// "pending". Everything else maps one to one.

// FromBackendStatus converts a stored status into the canonical vocabulary.
func FromBackendStatus(kind domain.RideKind, s string) domain.RideStatus {
	switch {
	case kind == domain.RideKindRide && s == "in_progress":
		return domain.RideStatusStarted
	case kind == domain.RideKindRequest && s == "pending":
		return domain.RideStatusRequested
	}
	return domain.RideStatus(s)
}

// ToBackendStatus converts a canonical status into what the backend stores.
func ToBackendStatus(kind domain.RideKind, s domain.RideStatus) string {
	switch {
	case kind == domain.RideKindRide && s == domain.RideStatusStarted:
		return "in_progress"
	case kind == domain.RideKindRequest && s == domain.RideStatusRequested:
		return "pending"
	}
	return string(s)
}
