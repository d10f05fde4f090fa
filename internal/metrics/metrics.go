package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uploadflow_uploads_started_total",
		Help: "Upload sessions initialized.",
	})
	UploadsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uploadflow_uploads_completed_total",
		Help: "Upload sessions completed successfully.",
	})
	UploadsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uploadflow_uploads_failed_total",
		Help: "Upload sessions that ended in failure, aborts included.",
	})
	ChunksIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uploadflow_chunks_ingested_total",
		Help: "Chunks uploaded as multipart parts.",
	})
	ChunkBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uploadflow_chunk_bytes_total",
		Help: "Total bytes ingested across all chunks.",
	})
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uploadflow_http_request_duration_seconds",
		Help:    "HTTP request latency by method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

// Middleware records request latency and status for every route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		requestDuration.
			WithLabelValues(r.Method, strconv.Itoa(recorder.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer so streaming responses keep
// working behind the middleware.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
