// Package metrics provides Prometheus metrics for the kudos ledger service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ledger
	ledgerWrites     *prometheus.CounterVec
	ledgerRejections *prometheus.CounterVec
	recomputeLatency prometheus.Histogram
	profilesTotal    prometheus.Gauge

	// Tasks and settlement
	taskTransitions     *prometheus.CounterVec
	settlementsBilled   prometheus.Counter
	settlementTransfers prometheus.Counter

	// Jobs
	jobRuns       *prometheus.CounterVec
	jobDuplicates prometheus.Counter
	jobLatency    *prometheus.HistogramVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount  prometheus.Gauge
	workerActive prometheus.Gauge
	workerErrors prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	Init()
}

// Init rebuilds the global manager on a fresh registry. Call it at startup,
// before the registry is served.
func Init(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "kudos",
		subsystem:        "ledger",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
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

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.ledgerWrites = m.counterVec("writes_total",
		"Ledger entry writes by category and operation (create, update, retract)", "category", "op")
	m.ledgerRejections = m.counterVec("rejections_total",
		"Ledger operations rejected, by reason (irreversible, integrity)", "reason")
	m.recomputeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "recompute_latency_milliseconds",
		Help:        "Latency of a profile category recompute",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
	m.profilesTotal = m.gauge("profiles_total", "Number of profiles known to the ledger")

	m.taskTransitions = m.counterVec("task_transitions_total",
		"Task status transitions applied", "from", "to")
	m.settlementsBilled = m.counter("settlements_billed_total", "Events billed through the settlement engine")
	m.settlementTransfers = m.counter("settlement_transfers_total", "Settling payments persisted as billed transactions")

	m.jobRuns = m.counterVec("job_runs_total", "Job runs by kind and result", "kind", "result")
	m.jobDuplicates = m.counter("job_duplicates_total", "Job submissions dropped as duplicates")
	m.jobLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "job_latency_milliseconds",
		Help:        "Job run latency by kind",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.queueSize = m.gauge("queue_size", "Current number of queued job runs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum job queue capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Job runs accepted by the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Job runs taken from the queue")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Job runs rejected because the queue was full or closed")

	m.workerCount = m.gauge("worker_count", "Configured job workers")
	m.workerActive = m.gauge("worker_active", "Workers currently running a job")
	m.workerErrors = m.counter("worker_errors_total", "Job runs that returned an error")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// RecordLedgerWrite counts a ledger create, update or retract.
func RecordLedgerWrite(category, op string) {
	globalManager.ledgerWrites.WithLabelValues(category, op).Inc()
}

// RecordLedgerRejection counts a rejected ledger operation.
func RecordLedgerRejection(reason string) {
	globalManager.ledgerRejections.WithLabelValues(reason).Inc()
}

// RecordRecomputeLatency records a recompute duration in milliseconds.
func RecordRecomputeLatency(latencyMs float64) {
	globalManager.recomputeLatency.Observe(latencyMs)
}

// UpdateProfilesTotal sets the profile count.
func UpdateProfilesTotal(count int) {
	globalManager.profilesTotal.Set(float64(count))
}

// RecordTaskTransition counts a task status change.
func RecordTaskTransition(from, to string) {
	globalManager.taskTransitions.WithLabelValues(from, to).Inc()
}

// RecordSettlementBilled counts a billed event and its transfers.
func RecordSettlementBilled(transfers int) {
	globalManager.settlementsBilled.Inc()
	globalManager.settlementTransfers.Add(float64(transfers))
}

// RecordJobRun counts a finished job run and its latency.
func RecordJobRun(kind, result string, latencyMs float64) {
	globalManager.jobRuns.WithLabelValues(kind, result).Inc()
	globalManager.jobLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordJobDuplicate counts a job submission dropped by dedupe.
func RecordJobDuplicate() {
	globalManager.jobDuplicates.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// IncWorkerActive marks one worker busy.
func IncWorkerActive() { globalManager.workerActive.Inc() }

// DecWorkerActive marks one worker idle.
func DecWorkerActive() { globalManager.workerActive.Dec() }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
