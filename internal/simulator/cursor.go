package simulator

import (
	"ridetrack/internal/domain"
	"ridetrack/internal/geo"
)

// Progress is the simulated vehicle state after a tick.
type Progress struct {
	Position        domain.Coordinate `json:"position"`
	Index           int               `json:"path_index"`
	Fraction        float64           `json:"fraction"`
	RemainingMeters float64           `json:"remaining_meters"`
}

// cursor walks a path one tick at a time. It is not safe for concurrent use;
// a Handle owns exactly one.
type cursor struct {
	path      []domain.Coordinate
	index     int
	position  domain.Coordinate
	step      float64
	threshold float64
}

func newCursor(path []domain.Coordinate, from domain.Coordinate, stepDegrees, thresholdMeters float64) *cursor {
	index := geo.NearestIndex(path, from)
	if index < 0 {
		index = 0
	}
	position := path[index]
	if stepDegrees > 0 {
		// interpolated movement starts where the vehicle actually is
		position = from
	}
	return &cursor{
		path:      path,
		index:     index,
		position:  position,
		step:      stepDegrees,
		threshold: thresholdMeters,
	}
}

func (c *cursor) last() int { return len(c.path) - 1 }

// advance moves one tick along the path. moved is false when the cursor was
// already at the end; arrived reports the arrival condition after the move.
func (c *cursor) advance() (p Progress, moved, arrived bool) {
	if c.index < c.last() {
		next := c.path[c.index+1]
		if c.step > 0 {
			c.position = geo.StepToward(c.position, next, c.step)
		} else {
			c.position = next
		}
		if c.position == next {
			c.index++
		}
		moved = true
	}

	p = c.progress()
	arrived = c.index >= c.last() || p.RemainingMeters < c.threshold
	return p, moved, arrived
}

func (c *cursor) progress() Progress {
	fraction := 1.0
	if c.last() > 0 {
		fraction = float64(c.index) / float64(c.last())
	}
	return Progress{
		Position:        c.position,
		Index:           c.index,
		Fraction:        fraction,
		RemainingMeters: geo.DistanceMeters(c.position, c.path[c.last()]),
	}
}
