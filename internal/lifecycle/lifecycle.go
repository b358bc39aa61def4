// Package lifecycle validates and executes ride status transitions.
//
// Rides and ride requests follow different lifecycles with different legal
// action sets, so each is its own Lifecycle value rather than one merged
// status enum:
//
//	ride:          requested -accept-> accepted -start-> started -complete-> completed
//	               requested -reject-> rejected
//	               accepted  -cancel-> cancelled
//	ride request:  requested -confirm-> confirmed -complete-> completed
package lifecycle

import (
	"ridetrack/internal/domain"
)

// Lifecycle is one variant of the status state machine.
type Lifecycle interface {
	// Name identifies the variant in errors, logs and metrics.
	Name() string

	// Next returns the status reached by applying action to current, or a
	// *TransitionError when the action is not legal from current.
	Next(current domain.RideStatus, action domain.RideAction) (domain.RideStatus, error)

	// Allowed lists the legal actions from current, in declaration order.
	Allowed(current domain.RideStatus) []domain.RideAction

	// Terminal reports whether no action is legal from status.
	Terminal(status domain.RideStatus) bool

	// StartAction is the action that puts the vehicle in motion.
	StartAction() domain.RideAction

	// InMotion reports whether status is the one StartAction leads to.
	InMotion(status domain.RideStatus) bool
}

type transition struct {
	from   domain.RideStatus
	action domain.RideAction
	to     domain.RideStatus
}

type table struct {
	name        string
	start       domain.RideAction
	transitions []transition
	known       map[domain.RideStatus]bool
}

func newTable(name string, start domain.RideAction, transitions ...transition) *table {
	t := &table{
		name:        name,
		start:       start,
		transitions: transitions,
		known:       make(map[domain.RideStatus]bool),
	}
	for _, tr := range transitions {
		t.known[tr.from] = true
		t.known[tr.to] = true
	}
	return t
}

func (t *table) Name() string { return t.name }

func (t *table) StartAction() domain.RideAction { return t.start }

func (t *table) InMotion(status domain.RideStatus) bool {
	for _, tr := range t.transitions {
		if tr.action == t.start && tr.to == status {
			return true
		}
	}
	return false
}

func (t *table) Next(current domain.RideStatus, action domain.RideAction) (domain.RideStatus, error) {
	for _, tr := range t.transitions {
		if tr.from == current && tr.action == action {
			return tr.to, nil
		}
	}
	return current, &TransitionError{Lifecycle: t.name, From: current, Action: action}
}

func (t *table) Allowed(current domain.RideStatus) []domain.RideAction {
	var actions []domain.RideAction
	for _, tr := range t.transitions {
		if tr.from == current {
			actions = append(actions, tr.action)
		}
	}
	return actions
}

func (t *table) Terminal(status domain.RideStatus) bool {
	return t.known[status] && len(t.Allowed(status)) == 0
}

// Ride is the lifecycle of a matched ride.
var Ride Lifecycle = newTable("ride", domain.ActionStart,
	transition{domain.RideStatusRequested, domain.ActionAccept, domain.RideStatusAccepted},
	transition{domain.RideStatusRequested, domain.ActionReject, domain.RideStatusRejected},
	transition{domain.RideStatusAccepted, domain.ActionStart, domain.RideStatusStarted},
	transition{domain.RideStatusAccepted, domain.ActionCancel, domain.RideStatusCancelled},
	transition{domain.RideStatusStarted, domain.ActionComplete, domain.RideStatusCompleted},
)

// RideRequest is the lifecycle of a pre-match ride request. Confirmation
// stands in for accept and start together.
var RideRequest Lifecycle = newTable("ride_request", domain.ActionConfirm,
	transition{domain.RideStatusRequested, domain.ActionConfirm, domain.RideStatusConfirmed},
	transition{domain.RideStatusConfirmed, domain.ActionComplete, domain.RideStatusCompleted},
)

// For returns the lifecycle a record of the given kind follows.
func For(kind domain.RideKind) (Lifecycle, error) {
	switch kind {
	case domain.RideKindRide:
		return Ride, nil
	case domain.RideKindRequest:
		return RideRequest, nil
	default:
		return nil, ErrUnknownKind
	}
}
