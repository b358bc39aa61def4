package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"ridetrack/internal/handler"
	"ridetrack/internal/logging"
	"ridetrack/internal/tests"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := tests.NewFixture()
	t.Cleanup(f.Close)

	return NewRouter(RouterDeps{
		SessionHandler: handler.NewSessionHandler(f.Tracking),
		QuoteHandler:   handler.NewQuoteHandler(f.Tracking),
		PaymentHandler: handler.NewPaymentHandler(f.Payment),
		Logger:         logging.Discard(),
	})
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response: %d %s", w.Code, w.Body.String())
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	// One request so the HTTP counters have a sample.
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ride_tracking_http_requests_total") {
		t.Error("expected HTTP request counter in metrics output")
	}
}

func TestRouter_RegistersSessionRoutes(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/v1/sessions/unknown", http.StatusNotFound},
		{http.MethodGet, "/v1/sessions/unknown/route", http.StatusNotFound},
		{http.MethodDelete, "/v1/sessions/unknown", http.StatusNotFound},
		{http.MethodPost, "/v1/sessions/unknown/actions/start", http.StatusNotFound},
		{http.MethodGet, "/v1/rides/404/payment", http.StatusNotFound},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Errorf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, w.Code)
		}
	}
}

func TestKeyCollection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []any
		want string
	}{
		{"route cache", []any{"get", "cache:route:33.68440,73.04790:33.70300,73.04790"}, "cache"},
		{"session lock", []any{"set", "lock:session:ride:42", "owner"}, "lock"},
		{"no colon", []any{"zrem", "positions", "42"}, "positions"},
		{"position index", []any{"geoadd", "rides:positions", 73.04, 33.68, "42"}, "rides"},
		{"no key", []any{"ping"}, "redis"},
		{"non-string key", []any{"get", 42}, "redis"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := keyCollection(tc.args); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
