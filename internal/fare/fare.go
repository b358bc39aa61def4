// Package fare prices a trip from its duration, the pickup time label and
// the trip type.
package fare

import (
	"math"
	"strconv"
	"strings"
)

// Schedule is one immutable version of the pricing constants. Changing a
// constant means adding a new Schedule, never mutating an existing one.
type Schedule struct {
	Version             string
	HourlyRate          float64
	NightMultiplier     float64
	RoundTripMultiplier float64
}

// V1 is the schedule in force: 300 per hour, +25% at night, doubled for
// round trips.
var V1 = Schedule{
	Version:             "v1",
	HourlyRate:          300,
	NightMultiplier:     1.25,
	RoundTripMultiplier: 2,
}

// nightStartHour is the first hour of a 24-hour label treated as night.
const nightStartHour = 21

// Price returns the rounded fare for a trip of durationHours.
func (s Schedule) Price(durationHours float64, isNight, isRoundTrip bool) float64 {
	amount := durationHours * s.HourlyRate
	if isNight {
		amount *= s.NightMultiplier
	}
	if isRoundTrip {
		amount *= s.RoundTripMultiplier
	}
	return math.Round(amount)
}

// Price prices a trip with the current schedule.
func Price(durationHours float64, isNight, isRoundTrip bool) float64 {
	return V1.Price(durationHours, isNight, isRoundTrip)
}

// IsNight reports whether a free-form time label falls in the night band:
// the label mentions "pm" in any case, or its leading hour is 21 or later.
func IsNight(label string) bool {
	lower := strings.ToLower(label)
	if strings.Contains(lower, "pm") {
		return true
	}
	hourText, _, _ := strings.Cut(lower, ":")
	hour, err := strconv.Atoi(strings.TrimSpace(hourText))
	if err != nil {
		return false
	}
	return hour >= nightStartHour
}

// IsRoundTrip reports whether a ride type label describes a two-way trip.
// The rider app labels it "2-Way"; the backend stores "two_way" or "round_trip".
func IsRoundTrip(label string) bool {
	lower := strings.ToLower(strings.TrimSpace(label))
	switch lower {
	case "two_way", "round_trip":
		return true
	}
	return strings.Contains(lower, "2")
}
