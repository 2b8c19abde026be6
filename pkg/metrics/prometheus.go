// Package metrics provides Prometheus metrics for the courtside booking service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Booking
	operations        *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	casConflicts      *prometheus.CounterVec
	casRetries        prometheus.Counter
	seatsTaken        prometheus.Counter
	seatsReleased     prometheus.Counter
	sessionsCreated   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec

	// Ratings
	ratingUpdates        prometheus.Counter
	ratingFailures       prometheus.Counter
	ratingPending        prometheus.Gauge
	ratingDelta          prometheus.Histogram
	leaderboardSize      prometheus.Gauge
	storeLatency         *prometheus.HistogramVec
	storeErrors          *prometheus.CounterVec
	notificationsSent    *prometheus.CounterVec
	notificationsDropped prometheus.Counter
	notificationsDup     prometheus.Counter

	// Queue / workers
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	workerCount      prometheus.Gauge
	workerActive     prometheus.Gauge
	workerLatency    prometheus.Histogram
	workerErrorCount prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level recorders

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // avoids default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "courtside",
		subsystem:        "booking",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.operations = m.counterVec("operations_total", "Engine operations by name and result code", "operation", "result")
	m.operationLatency = m.histogramVec("operation_latency_milliseconds", "Engine operation latency in milliseconds", "operation")
	m.casConflicts = m.counterVec("cas_conflicts_total", "Version conflicts observed during compare-and-swap", "operation")
	m.casRetries = m.counter("cas_retries_total", "Retried read-modify-write attempts")
	m.seatsTaken = m.counter("seats_taken_total", "Seats allocated by successful joins")
	m.seatsReleased = m.counter("seats_released_total", "Seats released by leaves")
	m.sessionsCreated = m.counterVec("sessions_created_total", "Sessions created by type", "type")
	m.sessionsCompleted = m.counterVec("sessions_finished_total", "Sessions reaching a terminal state", "state")

	m.ratingUpdates = m.counter("rating_batches_total", "Rating batches committed")
	m.ratingFailures = m.counter("rating_batch_failures_total", "Rating batches that failed and left the session pending")
	m.ratingPending = m.gauge("rating_pending_sessions", "Completed ranked sessions awaiting a rating update")
	m.ratingDelta = m.histogram("rating_delta_points", "Absolute Elo change per participant", []float64{1, 2, 4, 8, 16, 24, 32, 48, 64, 96})
	m.leaderboardSize = m.gauge("leaderboard_users", "Users ranked on the Elo ladder")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store call latency by backend and call", "backend", "call")
	m.storeErrors = m.counterVec("store_errors_total", "Store errors by backend and kind", "backend", "kind")
	m.notificationsSent = m.counterVec("notifications_sent_total", "Notifications delivered by kind", "kind")
	m.notificationsDropped = m.counter("notifications_dropped_total", "Notifications dropped because the queue was full")
	m.notificationsDup = m.counter("notifications_duplicate_total", "Notifications suppressed as duplicates")

	m.queueSize = m.gauge("queue_size", "Current number of queued notifications")
	m.queueCapacity = m.gauge("queue_capacity", "Notification queue capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Notifications enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Notifications dequeued")
	m.workerCount = m.gauge("worker_count", "Configured notification workers")
	m.workerActive = m.gauge("worker_active", "Workers currently delivering a notification")
	m.workerLatency = m.histogram("worker_latency_milliseconds", "Notification delivery latency", m.histogramBuckets)
	m.workerErrorCount = m.counter("worker_errors_total", "Notification delivery failures")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("http_errors_total", "HTTP error responses by endpoint and code", "endpoint", "code")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordOperation counts one engine operation and its latency.
func RecordOperation(op, result string, latencyMs float64) {
	globalManager.operations.WithLabelValues(op, result).Inc()
	globalManager.operationLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordCASConflict counts a version conflict for op.
func RecordCASConflict(op string) {
	globalManager.casConflicts.WithLabelValues(op).Inc()
}

// RecordCASRetry counts one retried attempt.
func RecordCASRetry() { globalManager.casRetries.Inc() }

// RecordSeatTaken counts a successful join.
func RecordSeatTaken() { globalManager.seatsTaken.Inc() }

// RecordSeatReleased counts a successful leave.
func RecordSeatReleased() { globalManager.seatsReleased.Inc() }

// RecordSessionCreated counts a new session of the given type.
func RecordSessionCreated(sessionType string) {
	globalManager.sessionsCreated.WithLabelValues(sessionType).Inc()
}

// RecordSessionFinished counts a session entering a terminal state.
func RecordSessionFinished(state string) {
	globalManager.sessionsCompleted.WithLabelValues(state).Inc()
}

// RecordRatingBatch counts a committed rating batch and observes each delta.
func RecordRatingBatch(deltas []int) {
	globalManager.ratingUpdates.Inc()
	for _, d := range deltas {
		if d < 0 {
			d = -d
		}
		globalManager.ratingDelta.Observe(float64(d))
	}
}

// RecordRatingFailure counts a failed rating batch.
func RecordRatingFailure() { globalManager.ratingFailures.Inc() }

// UpdateRatingPending sets the number of sessions awaiting ratings.
func UpdateRatingPending(n int) { globalManager.ratingPending.Set(float64(n)) }

// UpdateLeaderboardSize sets the number of ranked users.
func UpdateLeaderboardSize(n int) { globalManager.leaderboardSize.Set(float64(n)) }

// RecordStoreLatency observes a store call.
func RecordStoreLatency(backend, call string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(backend, call).Observe(latencyMs)
}

// RecordStoreError counts a store error of the given kind.
func RecordStoreError(backend, kind string) {
	globalManager.storeErrors.WithLabelValues(backend, kind).Inc()
}

// RecordNotificationSent counts a delivered notification.
func RecordNotificationSent(kind string) {
	globalManager.notificationsSent.WithLabelValues(kind).Inc()
}

// RecordNotificationDropped counts a notification rejected by a full queue.
func RecordNotificationDropped() { globalManager.notificationsDropped.Inc() }

// RecordNotificationDuplicate counts a suppressed duplicate.
func RecordNotificationDuplicate() { globalManager.notificationsDup.Inc() }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// AddWorkerActive adjusts the number of busy workers.
func AddWorkerActive(delta int) { globalManager.workerActive.Add(float64(delta)) }

// RecordWorkerLatency observes one delivery.
func RecordWorkerLatency(latencyMs float64) { globalManager.workerLatency.Observe(latencyMs) }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrorCount.Inc() }

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError counts an error response by code.
func RecordHTTPError(endpoint, code string) {
	globalManager.httpErrors.WithLabelValues(endpoint, code).Inc()
}

// UpdateSystemMemoryUsage sets the memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
