package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ridetrack/internal/domain"
	"ridetrack/internal/repository"
)

// The backend serializes decimals as strings ("33.684422"), ids as integers
// and related records as nested objects. These types absorb those shapes.

// decimal decodes a JSON number or numeric string. null leaves it invalid.
type decimal struct {
	Value float64
	Valid bool
}

func (d *decimal) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*d = decimal{}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("decimal %q: %w", b, err)
	}
	*d = decimal{Value: v, Valid: true}
	return nil
}

// ident decodes an integer or string id.
type ident string

func (i *ident) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*i = ""
		return nil
	}
	*i = ident(bytes.Trim(b, `"`))
	return nil
}

// ref is a related record: either a nested object with an id or a bare id.
type ref struct {
	ID ident
}

func (r *ref) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			ID ident `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		r.ID = obj.ID
		return nil
	}
	return r.ID.UnmarshalJSON(b)
}

type rideResource struct {
	ID                ident      `json:"id"`
	Client            ref        `json:"client"`
	Driver            ref        `json:"driver"`
	PickupLatitude    decimal    `json:"pickup_latitude"`
	PickupLongitude   decimal    `json:"pickup_longitude"`
	DropoffLatitude   decimal    `json:"dropoff_latitude"`
	DropoffLongitude  decimal    `json:"dropoff_longitude"`
	ScheduledDatetime *time.Time `json:"scheduled_datetime"`
	TripType          string     `json:"trip_type"`
	Status            string     `json:"status"`
}

type paymentResource struct {
	ID     ident   `json:"id"`
	Ride   ref     `json:"ride"`
	Amount decimal `json:"amount"`
	Status string  `json:"status"`
}

type paymentPage struct {
	Count   int               `json:"count"`
	Results []paymentResource `json:"results"`
}

type statusBody struct {
	Status string `json:"status"`
}

func (r rideResource) record(kind domain.RideKind) (*domain.RideRecord, error) {
	if !r.PickupLatitude.Valid || !r.PickupLongitude.Valid || !r.DropoffLatitude.Valid || !r.DropoffLongitude.Valid {
		return nil, fmt.Errorf("%s %s has no pickup or dropoff coordinates: %w", kind, r.ID, repository.ErrIncomplete)
	}

	rec := &domain.RideRecord{
		ID:       string(r.ID),
		Kind:     kind,
		Status:   repository.FromBackendStatus(kind, r.Status),
		Pickup:   domain.Coordinate{Latitude: r.PickupLatitude.Value, Longitude: r.PickupLongitude.Value},
		Dropoff:  domain.Coordinate{Latitude: r.DropoffLatitude.Value, Longitude: r.DropoffLongitude.Value},
		ClientID: string(r.Client.ID),
		DriverID: string(r.Driver.ID),
		TripType: r.TripType,
	}
	if r.ScheduledDatetime != nil {
		rec.ScheduledAt = *r.ScheduledDatetime
		rec.TimeLabel = r.ScheduledDatetime.Format(domain.TimeLabelLayout)
	}
	return rec, nil
}

func (p paymentResource) payment() *domain.Payment {
	return &domain.Payment{
		ID:     string(p.ID),
		RideID: string(p.Ride.ID),
		Amount: p.Amount.Value,
		Status: domain.PaymentStatus(p.Status),
	}
}
