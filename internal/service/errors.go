package service

import "errors"

var (
	// ErrInvalidRequest is returned when a request fails validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidSessionID is returned when session ID is empty.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrInvalidAction is returned when an action name is not a known ride action.
	ErrInvalidAction = errors.New("invalid ride action")

	// ErrRequestTracked is returned when converting a ride request that is
	// still being tracked.
	ErrRequestTracked = errors.New("ride request is being tracked")

	// ErrInvalidPaymentID is returned when payment ID is empty.
	ErrInvalidPaymentID = errors.New("invalid payment id")
)
