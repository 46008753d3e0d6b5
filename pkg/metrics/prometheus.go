// Package metrics provides Prometheus metrics for the libero match recorder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Ledger
	eventsApplied   prometheus.Counter
	eventsRejected  *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	applyLatency    prometheus.Histogram
	ledgerLength    *prometheus.GaugeVec
	activeMatches   prometheus.Gauge

	// Reads
	readLatency *prometheus.HistogramVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Repository
	repositoryLatency *prometheus.HistogramVec
	repositoryErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "libero",
		subsystem:        "recorder",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		customLabels:     map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) histogram(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets, ConstLabels: m.customLabels}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsApplied = auto.NewCounter(m.counter("events_applied_total", "Events accepted into a ledger"))
	m.eventsRejected = auto.NewCounterVec(m.counter("events_rejected_total", "Events rejected by validation, by kind"), []string{"kind"})
	m.eventsDuplicate = auto.NewCounter(m.counter("events_duplicate_total", "Submissions answered from the idempotency cache"))
	m.applyLatency = auto.NewHistogram(m.histogram("apply_latency_milliseconds", "Time from submission to published ledger version"))
	m.ledgerLength = auto.NewGaugeVec(m.gauge("ledger_events", "Events in the latest ledger version"), []string{"match"})
	m.activeMatches = auto.NewGauge(m.gauge("active_matches", "Matches with an open session"))

	m.readLatency = auto.NewHistogramVec(m.histogram("read_latency_milliseconds", "Aggregation and query latency"), []string{"op"})

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Commands waiting for a recorder worker"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Total command queue capacity"))
	m.queueEnqueueRate = auto.NewCounter(m.counter("queue_enqueued_total", "Commands enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counter("queue_dequeued_total", "Commands dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Commands refused by a full or closed queue"))

	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Running recorder workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("worker_processing_latency_milliseconds", "Time a worker spends on one command"))
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total", "Commands that failed inside a worker"))

	m.repositoryLatency = auto.NewHistogramVec(m.histogram("repository_latency_milliseconds", "Repository operation latency"), []string{"op"})
	m.repositoryErrors = auto.NewCounterVec(m.counter("repository_errors_total", "Repository operation failures"), []string{"op"})

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds", "HTTP request duration"), []string{"endpoint", "method", "status"})

	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutines", "Live goroutines"))
	m.systemGCPauseTime = auto.NewGauge(m.gauge("system_gc_pause_milliseconds", "Average GC pause"))
}

// RecordEventApplied increments the applied events counter.
func RecordEventApplied() { globalManager.eventsApplied.Inc() }

// RecordEventRejected counts a validation rejection of the given kind.
func RecordEventRejected(kind string) { globalManager.eventsRejected.WithLabelValues(kind).Inc() }

// RecordEventDuplicate increments the duplicate submissions counter.
func RecordEventDuplicate() { globalManager.eventsDuplicate.Inc() }

// RecordApplyLatency records apply latency in milliseconds.
func RecordApplyLatency(latencyMs float64) { globalManager.applyLatency.Observe(latencyMs) }

// UpdateLedgerLength sets the event count of a match's latest version.
func UpdateLedgerLength(matchID string, n int) {
	globalManager.ledgerLength.WithLabelValues(matchID).Set(float64(n))
}

// ForgetMatch drops per-match series once a session is closed.
func ForgetMatch(matchID string) { globalManager.ledgerLength.DeleteLabelValues(matchID) }

// UpdateActiveMatches sets the number of open sessions.
func UpdateActiveMatches(n int) { globalManager.activeMatches.Set(float64(n)) }

// RecordReadLatency records an aggregate or query latency in milliseconds.
func RecordReadLatency(op string, latencyMs float64) {
	globalManager.readLatency.WithLabelValues(op).Observe(latencyMs)
}

// UpdateQueueSize sets the current queue backlog.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records command processing latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordRepositoryLatency records a repository operation latency in milliseconds.
func RecordRepositoryLatency(op string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordRepositoryError counts a failed repository operation.
func RecordRepositoryError(op string) { globalManager.repositoryErrors.WithLabelValues(op).Inc() }

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the allocated heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(n int) { globalManager.systemGoroutineCount.Set(float64(n)) }

// RecordSystemGCPauseTime sets the average GC pause gauge.
func RecordSystemGCPauseTime(ms float64) { globalManager.systemGCPauseTime.Set(ms) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
