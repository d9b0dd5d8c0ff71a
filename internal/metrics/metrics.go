// Package metrics provides Prometheus instrumentation for the position
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IngestBatches counts ingested batches, partitioned by stream.
	IngestBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seatflow_ingest_batches_total",
		Help: "Total number of ingest batches received",
	}, []string{"stream"})

	// RecordsRejected counts raw records rejected by validation.
	RecordsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seatflow_records_rejected_total",
		Help: "Raw records rejected by per-record validation",
	}, []string{"stream"})

	// DaysRecomputed counts derived-table day recomputations.
	DaysRecomputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seatflow_days_recomputed_total",
		Help: "Derived-table day recomputations performed",
	})

	// RecomputeLatency tracks the duration of one day's full recompute.
	RecomputeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seatflow_recompute_latency_seconds",
		Help:    "Full-day derived recompute latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// ScreenRuns counts screening evaluations.
	ScreenRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seatflow_screen_runs_total",
		Help: "Screening evaluations performed",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seatflow_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seatflow_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seatflow_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
