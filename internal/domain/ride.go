package domain

import "time"

// RideStatus represents the canonical status of a ride or ride request.
type RideStatus string

const (
	RideStatusRequested RideStatus = "requested"
	RideStatusAccepted  RideStatus = "accepted"
	RideStatusRejected  RideStatus = "rejected"
	RideStatusStarted   RideStatus = "started"
	RideStatusCancelled RideStatus = "cancelled"
	RideStatusCompleted RideStatus = "completed"
	RideStatusConfirmed RideStatus = "confirmed" // ride requests only
)

// RideAction is a request to move a ride to another status.
type RideAction string

const (
	ActionAccept   RideAction = "accept"
	ActionReject   RideAction = "reject"
	ActionStart    RideAction = "start"
	ActionCancel   RideAction = "cancel"
	ActionComplete RideAction = "complete"
	ActionConfirm  RideAction = "confirm"
)

// RideKind separates matched rides from pre-match ride requests.
type RideKind string

const (
	RideKindRide    RideKind = "ride"
	RideKindRequest RideKind = "ride_request"
)

// Valid reports whether k is a known kind.
func (k RideKind) Valid() bool {
	return k == RideKindRide || k == RideKindRequest
}

// TimeLabelLayout renders a scheduled pickup the way the rider app labels
// it ("09:30 PM"). Fare night pricing reads the AM/PM suffix.
const TimeLabelLayout = "03:04 PM"

// RideRecord is the client-side copy of a ride or ride request owned by the backend.
type RideRecord struct {
	ID          string
	Kind        RideKind
	Status      RideStatus
	Pickup      Coordinate
	Dropoff     Coordinate
	DriverID    string
	ClientID    string
	ScheduledAt time.Time

	// TimeLabel is the free-form pickup time shown to the rider ("09:30 PM").
	TimeLabel string
	// TripType is the ride type label ("One-Way", "2-Way", "two_way").
	TripType string
}
