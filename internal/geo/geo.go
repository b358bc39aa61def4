// Package geo holds the coordinate math used by routing and the position
// simulator. Every function is pure and total over valid coordinates.
package geo

import (
	"math"

	"ridetrack/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius used by DistanceMeters.
const EarthRadiusMeters = 6371000.0

// stepEpsilon absorbs float drift so a path of n whole steps lands on the
// target in exactly n calls.
const stepEpsilon = 1e-9

// ToRadians converts degrees to radians.
func ToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ToDegrees converts radians to degrees.
func ToDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// DistanceMeters returns the haversine great-circle distance between a and b.
func DistanceMeters(a, b domain.Coordinate) float64 {
	if a == b {
		return 0
	}
	phi1 := ToRadians(a.Latitude)
	phi2 := ToRadians(b.Latitude)
	deltaPhi := ToRadians(b.Latitude - a.Latitude)
	deltaLambda := ToRadians(b.Longitude - a.Longitude)

	h := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	h = math.Min(math.Max(h, 0), 1)

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// StepToward moves current by stepDegrees toward target along the straight
// line in coordinate space. It never overshoots: when the remaining distance
// is within one step the target itself is returned.
func StepToward(current, target domain.Coordinate, stepDegrees float64) domain.Coordinate {
	if current == target {
		return target
	}
	dLat := target.Latitude - current.Latitude
	dLng := target.Longitude - current.Longitude
	remaining := math.Hypot(dLat, dLng)
	if remaining <= stepDegrees*(1+stepEpsilon) {
		return target
	}
	if stepDegrees <= 0 {
		return current
	}
	ratio := stepDegrees / remaining
	return domain.Coordinate{
		Latitude:  current.Latitude + dLat*ratio,
		Longitude: current.Longitude + dLng*ratio,
	}
}

// NearestIndex returns the index of the path vertex closest to p.
// Ties keep the earliest vertex. It returns -1 for an empty path.
func NearestIndex(path []domain.Coordinate, p domain.Coordinate) int {
	best := -1
	bestDist := math.MaxFloat64
	for i, c := range path {
		if d := DistanceMeters(c, p); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// PathLengthMeters sums the great-circle length of every segment in path.
func PathLengthMeters(path []domain.Coordinate) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += DistanceMeters(path[i-1], path[i])
	}
	return total
}
