package tracking

import "errors"

var (
	// ErrSessionActive is returned when a ride already has an open session,
	// here or, with a session lock configured, on another instance.
	ErrSessionActive = errors.New("tracking session already active for ride")

	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("tracking session not found")

	// ErrSessionClosed is returned by actions on a disposed session.
	ErrSessionClosed = errors.New("tracking session closed")

	// ErrRideFinished is returned when opening a session for a ride that
	// already reached a terminal status.
	ErrRideFinished = errors.New("ride already finished")
)
