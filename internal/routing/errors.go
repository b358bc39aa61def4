package routing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRouteRequest is returned when the origin or destination is
	// missing or invalid, or both are the same point.
	ErrInvalidRouteRequest = errors.New("invalid route request")

	// ErrRoutingUnavailable is returned by routers when the routing service
	// cannot produce routes. The planner absorbs it with a fallback route.
	ErrRoutingUnavailable = errors.New("routing unavailable")
)

// httpStatusError is a non-2xx answer from the routing service.
type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("routing service returned %d: %s", e.Code, e.Body)
}

func (e *httpStatusError) Unwrap() error { return ErrRoutingUnavailable }
