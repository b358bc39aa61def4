package events

import (
	"context"
	"log/slog"

	"ridetrack/internal/logging"
	"ridetrack/internal/observability"
)

// LogPublisher writes events to the structured log. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logging.OrDefault(logger)}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.InfoContext(ctx, "event",
		"event_id", e.ID,
		"type", e.Type,
		"ride_id", e.RideID,
		"kind", e.Kind,
		"data", e.Data,
	)
	observability.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

// Close implements Publisher.
func (p *LogPublisher) Close() error { return nil }
