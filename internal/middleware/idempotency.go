package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replay"
	idempotencyPrefix = "idempotency:"
	idempotencyTTL    = 6 * time.Hour
)

// storedResponse is what gets replayed for a repeated key.
type storedResponse struct {
	Status      int             `json:"status"`
	ContentType string          `json:"content_type,omitempty"`
	Body        json.RawMessage `json:"body"`
}

// recordingWriter copies everything written to the client into body.
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the stored response of a POST that carries
// an Idempotency-Key already seen, so a retried session action is not
// applied twice. A nil client disables it.
func IdempotencyMiddleware(client *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if client == nil || key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		// Keys are scoped to the concrete path, so one key reused on another
		// session or action does not replay this response.
		redisKey := idempotencyPrefix + c.Request.URL.Path + ":" + key

		stored, err := loadResponse(ctx, client, redisKey)
		switch {
		case err == nil:
			if stored.ContentType != "" {
				c.Header("Content-Type", stored.ContentType)
			}
			c.Header(replayHeader, "true")
			c.Status(stored.Status)
			_, _ = c.Writer.Write(stored.Body)
			c.Abort()
			return
		case !errors.Is(err, redis.Nil):
			// Redis trouble must not block the request.
			slog.WarnContext(ctx, "idempotency lookup failed", "key", key, "error", err)
			c.Next()
			return
		}

		w := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// Server and upstream failures stay retryable.
		status := w.Status()
		if status >= http.StatusInternalServerError || w.body.Len() == 0 {
			return
		}
		resp := storedResponse{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}
		if err := saveResponse(context.WithoutCancel(ctx), client, redisKey, resp); err != nil {
			slog.WarnContext(ctx, "idempotency store failed", "key", key, "error", err)
		}
	}
}

func loadResponse(ctx context.Context, client *redis.Client, key string) (storedResponse, error) {
	var resp storedResponse
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return resp, err
	}
	err = json.Unmarshal(data, &resp)
	return resp, err
}

func saveResponse(ctx context.Context, client *redis.Client, key string, resp storedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, data, idempotencyTTL).Err()
}
