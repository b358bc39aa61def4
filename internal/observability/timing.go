package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Time opens a New Relic segment named op (when the context carries a
// transaction) and returns a closer that ends it and logs the duration:
//
//	defer observability.Time(ctx, logger, "routing.resolve")(&err)
func Time(ctx context.Context, logger *slog.Logger, op string) func(errp *error) {
	start := time.Now()
	var seg *newrelic.Segment
	if txn := newrelic.FromContext(ctx); txn != nil {
		seg = txn.StartSegment(op)
	}

	return func(errp *error) {
		if seg != nil {
			seg.End()
		}
		if logger == nil {
			return
		}
		dur := time.Since(start)
		if errp != nil && *errp != nil {
			logger.DebugContext(ctx, "operation finished", "op", op, "duration_ms", dur.Milliseconds(), "error", *errp)
			return
		}
		logger.DebugContext(ctx, "operation finished", "op", op, "duration_ms", dur.Milliseconds())
	}
}
