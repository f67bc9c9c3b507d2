// Package metrics provides Prometheus metrics for the PrinterPal server.
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
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printerpal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printerpal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Live channel metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "printerpal_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printerpal_sse_updates_total",
			Help: "Total status updates published to live channels",
		},
	)

	// Status aggregation metrics
	snapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "printerpal_snapshot_duration_seconds",
			Help:    "Time to assemble a status snapshot from CUPS",
			Buckets: prometheus.DefBuckets,
		},
	)

	cupsAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "printerpal_cups_available",
			Help: "Whether the CUPS scheduler is reachable (1) or not (0)",
		},
	)

	// Print metrics
	printSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printerpal_print_submissions_total",
			Help: "Total print submissions",
		},
		[]string{"result"},
	)

	// Preview metrics
	previewRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printerpal_preview_renders_total",
			Help: "Total preview renders",
		},
		[]string{"mode", "result"},
	)

	previewRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "printerpal_preview_render_duration_seconds",
			Help:    "Preview render duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// SetSSEConnectionsActive updates the active SSE connection gauge.
func SetSSEConnectionsActive(n int64) {
	sseConnectionsActive.Set(float64(n))
}

// RecordSSEUpdate increments the published-update counter.
func RecordSSEUpdate() {
	sseUpdatesTotal.Inc()
}

// RecordSnapshot records a snapshot assembly and CUPS availability.
func RecordSnapshot(d time.Duration, available bool) {
	snapshotDuration.Observe(d.Seconds())
	if available {
		cupsAvailable.Set(1)
	} else {
		cupsAvailable.Set(0)
	}
}

// RecordPrintSubmission records a print submission outcome ("ok" or "error").
func RecordPrintSubmission(result string) {
	printSubmissionsTotal.WithLabelValues(result).Inc()
}

// RecordPreviewRender records a preview render outcome.
func RecordPreviewRender(mode, result string, d time.Duration) {
	previewRendersTotal.WithLabelValues(mode, result).Inc()
	previewRenderDuration.Observe(d.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sr, r)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sr.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
