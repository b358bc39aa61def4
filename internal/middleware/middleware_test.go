package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func countingRouter(client *redis.Client, calls *atomic.Int32, status int) *gin.Engine {
	r := gin.New()
	r.Use(IdempotencyMiddleware(client))
	handler := func(c *gin.Context) {
		n := calls.Add(1)
		c.JSON(status, gin.H{"call": n})
	}
	r.POST("/v1/sessions/:id/actions/:action", handler)
	r.POST("/v1/quotes", handler)
	r.GET("/v1/sessions/:id", handler)
	return r
}

func send(r http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ──────────────────────────────────────────────────────────────
// Idempotency
// ──────────────────────────────────────────────────────────────

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := countingRouter(newRedis(t), &calls, http.StatusOK)

	first := send(r, http.MethodPost, "/v1/sessions/s1/actions/accept", "key-1")
	second := send(r, http.MethodPost, "/v1/sessions/s1/actions/accept", "key-1")

	if calls.Load() != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls.Load())
	}
	if second.Code != http.StatusOK || second.Body.String() != first.Body.String() {
		t.Fatalf("expected replay of %q, got %d %q", first.Body.String(), second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replay") != "true" {
		t.Error("expected replay header")
	}
	if first.Header().Get("Idempotent-Replay") != "" {
		t.Error("first response must not be marked as replay")
	}
}

func TestIdempotency_PassThrough(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		method string
		path   string
		key    string
	}{
		{"no key", http.MethodPost, "/v1/quotes", ""},
		{"get request", http.MethodGet, "/v1/sessions/s1", "key-1"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			r := countingRouter(newRedis(t), &calls, http.StatusOK)
			send(r, tc.method, tc.path, tc.key)
			send(r, tc.method, tc.path, tc.key)

			if calls.Load() != 2 {
				t.Fatalf("expected 2 calls, got %d", calls.Load())
			}
		})
	}
}

func TestIdempotency_NilClientDisabled(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := countingRouter(nil, &calls, http.StatusOK)
	send(r, http.MethodPost, "/v1/quotes", "key-1")
	send(r, http.MethodPost, "/v1/quotes", "key-1")

	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestIdempotency_KeysScopedToPath(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := countingRouter(newRedis(t), &calls, http.StatusOK)

	paths := []string{
		"/v1/quotes",
		"/v1/sessions/s1/actions/start",
		"/v1/sessions/s2/actions/start",
		"/v1/sessions/s1/actions/cancel",
	}
	for _, p := range paths {
		if w := send(r, http.MethodPost, p, "shared"); w.Header().Get("Idempotent-Replay") != "" {
			t.Errorf("%s: a key first seen on another path must not replay", p)
		}
	}
	if calls.Load() != int32(len(paths)) {
		t.Fatalf("expected every path to run, got %d calls", calls.Load())
	}

	if w := send(r, http.MethodPost, "/v1/sessions/s2/actions/start", "shared"); w.Header().Get("Idempotent-Replay") != "true" {
		t.Error("expected the same path and key to replay")
	}
	if calls.Load() != int32(len(paths)) {
		t.Errorf("replay must not run the handler, got %d calls", calls.Load())
	}
}

func TestIdempotency_ServerErrorsNotStored(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := countingRouter(newRedis(t), &calls, http.StatusBadGateway)
	send(r, http.MethodPost, "/v1/quotes", "key-1")
	w := send(r, http.MethodPost, "/v1/quotes", "key-1")

	if calls.Load() != 2 {
		t.Fatalf("expected retry after 502, got %d calls", calls.Load())
	}
	if w.Header().Get("Idempotent-Replay") != "" {
		t.Error("502 must not be replayed")
	}
}

// ──────────────────────────────────────────────────────────────
// RequestMetrics and CORS
// ──────────────────────────────────────────────────────────────

func TestRequestMetrics_LogsRoutePattern(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(RequestMetrics(logger))
	r.GET("/v1/sessions/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send(r, http.MethodGet, "/v1/sessions/abc", "")
	send(r, http.MethodGet, "/nowhere", "")

	out := buf.String()
	if !strings.Contains(out, `"path":"/v1/sessions/:id"`) {
		t.Errorf("expected route pattern in log, got %s", out)
	}
	if !strings.Contains(out, `"path":"unmatched"`) {
		t.Errorf("expected unmatched path in log, got %s", out)
	}
	if strings.Contains(out, "abc") {
		t.Errorf("raw path must not be logged, got %s", out)
	}
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	pre := httptest.NewRequest(http.MethodOptions, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, pre)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), idempotencyHeader) {
		t.Error("expected Idempotency-Key to be an allowed header")
	}

	w = send(r, http.MethodGet, "/health", "")
	body, _ := io.ReadAll(w.Body)
	if w.Code != http.StatusOK || string(body) != "ok" || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected response: %d %q %v", w.Code, body, w.Header())
	}
}
