// Package metrics defines the Prometheus collectors the server exports on
// /metrics:
//   - http_requests_total: requests by route, method and status
//   - http_request_duration_seconds: latency by route and method
//   - upload_batches_total: upload batches by outcome
//   - uploaded_files_total: files committed to the File Store
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequests counts requests by chi route pattern, method and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests by route, method and status."},
		[]string{"route", "method", "status"},
	)
	// HTTPLatency observes request duration by route pattern and method.
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request latency in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"route", "method"},
	)
	// UploadBatches counts upload batches by outcome (the Result* constants).
	UploadBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "upload_batches_total", Help: "Upload batches by outcome."},
		[]string{"result"},
	)
	// UploadedFiles counts files committed to the File Store.
	UploadedFiles = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "uploaded_files_total", Help: "Files committed to the File Store."},
	)
)

// Upload batch outcomes.
const (
	ResultCreated    = "created"
	ResultRejected   = "rejected"
	ResultFileError  = "file_error"
	ResultStoreError = "store_error"
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPLatency, UploadBatches, UploadedFiles)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency. The route label is chi's
// route pattern (e.g. /photos/{userId}) so ids do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPLatency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
