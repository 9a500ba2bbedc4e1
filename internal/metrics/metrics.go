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
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groomly_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groomly_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	slotQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groomly_slot_queries_total",
			Help: "Availability slot computations served",
		},
	)

	appointmentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groomly_appointments_created_total",
			Help: "Appointments created by service type",
		},
		[]string{"service"},
	)

	retryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groomly_notification_retries_total",
			Help: "Notification retry attempts by outcome and channel",
		},
		[]string{"outcome", "channel"},
	)

	retryBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groomly_retry_batch_duration_seconds",
			Help:    "Duration of one retry processing pass",
			Buckets: []float64{.05, .1, .5, 1, 5, 15, 60},
		},
	)

	retryBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groomly_retry_batch_size",
			Help:    "Entries processed per retry pass",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	idempotencyHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groomly_idempotency_hits_total",
			Help: "Booking requests served from the idempotency cache",
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groomly_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"key"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSlotQuery counts one availability computation.
func RecordSlotQuery() {
	slotQueries.Inc()
}

// RecordAppointmentCreated counts a new booking.
func RecordAppointmentCreated(service string) {
	appointmentsCreated.WithLabelValues(service).Inc()
}

// RecordRetryOutcome counts one retry attempt result
// (sent, rescheduled, permanent_failure).
func RecordRetryOutcome(outcome, channel string) {
	retryOutcomes.WithLabelValues(outcome, channel).Inc()
}

// RecordRetryBatch records the size and duration of one retry pass.
func RecordRetryBatch(processed int, duration time.Duration) {
	retryBatchSize.Observe(float64(processed))
	retryBatchDuration.Observe(duration.Seconds())
}

// RecordIdempotencyHit records a cache hit for idempotency
func RecordIdempotencyHit() {
	idempotencyHits.Inc()
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(key string) {
	rateLimitRejections.WithLabelValues(key).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
