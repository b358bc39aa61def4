package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestTime_LogsOperationAndError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := errors.New("boom")
	Time(context.Background(), logger, "routing.resolve")(&err)

	out := buf.String()
	if !strings.Contains(out, "op=routing.resolve") || !strings.Contains(out, "error=boom") {
		t.Fatalf("unexpected log output: %q", out)
	}
}

func TestTime_NilLoggerAndNoTransaction(t *testing.T) {
	t.Parallel()

	// must not panic without a logger or a New Relic transaction
	Time(context.Background(), nil, "noop")(nil)
}
