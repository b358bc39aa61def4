package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ride_tracking"

var (
	RoutesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "routes_resolved_total", Help: "Routes resolved, by source (service, fallback)"},
		[]string{"source"},
	)
	RouteResolveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "route_resolve_seconds",
		Help:      "Route resolution latency",
		Buckets:   prometheus.DefBuckets,
	})
	RouteCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "route_cache_lookups_total", Help: "Route cache lookups, by result"},
		[]string{"result"},
	)
	RouteRecordFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "route_record_failures_total", Help: "Dropped best-effort route detail updates"})

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "transitions_total", Help: "Lifecycle transitions, by lifecycle, action and result"},
		[]string{"lifecycle", "action", "result"},
	)

	SimulatorTicks = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "simulator_ticks_total", Help: "Position simulator ticks"})
	Arrivals       = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "arrivals_total", Help: "Simulated arrivals"})
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "sessions_active", Help: "Open tracking sessions"})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "events_published_total", Help: "Lifecycle events published, by result"},
		[]string{"result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
