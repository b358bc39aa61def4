// Package events publishes ride lifecycle events to other systems.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ridetrack/internal/domain"
	"ridetrack/internal/lifecycle"
)

// Type identifies what happened.
type Type string

const (
	TypeRideAccepted     Type = "RIDE_ACCEPTED"
	TypeRideRejected     Type = "RIDE_REJECTED"
	TypeRideStarted      Type = "RIDE_STARTED"
	TypeRideCancelled    Type = "RIDE_CANCELLED"
	TypeRideCompleted    Type = "RIDE_COMPLETED"
	TypeRequestConfirmed Type = "RIDE_REQUEST_CONFIRMED"
	TypeVehicleArrived   Type = "VEHICLE_ARRIVED"
	TypePaymentCompleted Type = "PAYMENT_COMPLETED"
)

var statusTypes = map[domain.RideStatus]Type{
	domain.RideStatusAccepted:  TypeRideAccepted,
	domain.RideStatusRejected:  TypeRideRejected,
	domain.RideStatusStarted:   TypeRideStarted,
	domain.RideStatusCancelled: TypeRideCancelled,
	domain.RideStatusCompleted: TypeRideCompleted,
	domain.RideStatusConfirmed: TypeRequestConfirmed,
}

// Event is one published message. It is JSON encoded on the wire.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	RideID    string          `json:"ride_id"`
	Kind      domain.RideKind `json:"kind"`
	Data      map[string]any  `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// New creates an event with a fresh id.
func New(t Type, kind domain.RideKind, rideID string, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		RideID:    rideID,
		Kind:      kind,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// FromTransition turns a committed transition into an event.
func FromTransition(kind domain.RideKind, t lifecycle.Transition) Event {
	typ, ok := statusTypes[t.To]
	if !ok {
		typ = Type("RIDE_" + string(t.To))
	}
	e := New(typ, kind, t.RideID, map[string]any{
		"action": t.Action,
		"from":   t.From,
		"to":     t.To,
	})
	e.CreatedAt = t.At.UTC()
	return e
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}
