// Package metrics provides Prometheus instrumentation for the SafeTrace service.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safetrace",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "safetrace",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RoutesComputedTotal counts route computations by mode and result.
	RoutesComputedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safetrace",
			Name:      "routes_computed_total",
			Help:      "Total route computations by mode and result (ok, out_of_coverage, no_path).",
		},
		[]string{"mode", "result"},
	)

	// RouteComputeDuration observes shortest-path search latency by mode.
	RouteComputeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "safetrace",
			Name:      "route_compute_duration_seconds",
			Help:      "Route computation duration in seconds, including edge pricing.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	// VisitsRecordedTotal counts segment visit events fed to the crowd tracker.
	VisitsRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "safetrace",
		Name:      "visits_recorded_total",
		Help:      "Total segment visit events recorded.",
	})

	// ShadowSegments tracks segments present in the published shadow-score snapshot.
	ShadowSegments = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "safetrace",
		Name:      "shadow_segments",
		Help:      "Number of segments with a non-zero shadow score in the current snapshot.",
	})

	// ShadowRecomputeDuration observes the crowd-score recompute pass.
	ShadowRecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "safetrace",
		Name:      "shadow_recompute_duration_seconds",
		Help:      "Duration of a shadow-score prune-and-normalize pass in seconds.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	// FeedbackSubmissionsTotal counts segment feedback ratings received.
	FeedbackSubmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "safetrace",
		Name:      "feedback_submissions_total",
		Help:      "Total segment feedback ratings received.",
	})

	// AlertsTotal counts monitoring alerts by type.
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safetrace",
			Name:      "alerts_total",
			Help:      "Total monitoring alerts emitted by type (hazard_ahead, deviation).",
		},
		[]string{"type"},
	)

	// ActiveSOSSessions tracks currently active emergency sessions.
	ActiveSOSSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "safetrace",
		Name:      "active_sos_sessions",
		Help:      "Number of currently active SOS sessions.",
	})

	// ActiveWebSocketClients tracks connected guardian stream clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "safetrace",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RoutesComputedTotal,
		RouteComputeDuration,
		VisitsRecordedTotal,
		ShadowSegments,
		ShadowRecomputeDuration,
		FeedbackSubmissionsTotal,
		AlertsTotal,
		ActiveSOSSessions,
		ActiveWebSocketClients,
	)
}

// Middleware records request counts and latency for every route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for the /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
