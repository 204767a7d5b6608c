// Package metrics provides Prometheus metrics for the mimic recorder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the recorder and replayer.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Recording
	eventsRecorded   *prometheus.CounterVec
	eventsDiscarded  prometheus.Counter
	eventsMalformed  prometheus.Counter
	batchesScheduled prometheus.Counter
	bufferedEvents   prometheus.Gauge

	// Persistence
	persistCycles  prometheus.Counter
	persistErrors  *prometheus.CounterVec
	persistLatency prometheus.Histogram
	pendingBatches prometheus.Gauge
	storedEvents   prometheus.Gauge

	// Replay
	replayDispatches *prometheus.CounterVec
	replayPasses     prometheus.Counter
	replayAborts     prometheus.Counter
	replayLateness   prometheus.Histogram

	// Resource sampling
	residentMemory *prometheus.GaugeVec

	// Task lifecycle
	taskRunning *prometheus.GaugeVec
	taskPanics  *prometheus.CounterVec
	taskMisuse  *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "mimic",
		subsystem:        "input",
		histogramBuckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.eventsRecorded = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_recorded_total",
			Help:      "Total number of input events appended to the recording buffer",
		},
		[]string{"kind"},
	)

	m.eventsDiscarded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_discarded_total",
		Help:      "Input events dropped because no recording session was active",
	})

	m.eventsMalformed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_malformed_total",
		Help:      "Input events rejected as malformed",
	})

	m.batchesScheduled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_scheduled_total",
		Help:      "Non-empty batches handed from the recorder to the persister",
	})

	m.bufferedEvents = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffered_events",
		Help:      "Events held in the recorder buffer awaiting the next flush",
	})

	m.persistCycles = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_cycles_total",
		Help:      "Completed persist cycles",
	})

	m.persistErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "persist_errors_total",
			Help:      "Storage errors by operation",
		},
		[]string{"op"},
	)

	m.persistLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_latency_milliseconds",
		Help:      "Duration of a persist cycle in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.pendingBatches = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pending_batches",
		Help:      "Batches queued in the persister",
	})

	m.storedEvents = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stored_events",
		Help:      "Events held by the durable store after the last persist",
	})

	m.replayDispatches = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "replay_dispatches_total",
			Help:      "Events dispatched to the output sink",
		},
		[]string{"kind"},
	)

	m.replayPasses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_passes_total",
		Help:      "Replay passes completed without cancellation",
	})

	m.replayAborts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_aborts_total",
		Help:      "Replay passes aborted by a stop request",
	})

	m.replayLateness = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_lateness_milliseconds",
		Help:      "Delay between an event's target instant and its dispatch",
		Buckets:   m.histogramBuckets,
	})

	m.residentMemory = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "resident_memory_bytes",
			Help:      "Sampled resident memory of the process",
		},
		[]string{"stat"},
	)

	m.taskRunning = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "task_running",
			Help:      "1 while the named task has a live run loop",
		},
		[]string{"task"},
	)

	m.taskPanics = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "task_panics_total",
			Help:      "Panics recovered from task run loops",
		},
		[]string{"task"},
	)

	m.taskMisuse = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "task_lifecycle_misuse_total",
			Help:      "Double start or double stop calls",
		},
		[]string{"task", "op"},
	)
}

// RecordEventRecorded counts an appended event of the given kind.
func RecordEventRecorded(kind string) {
	globalManager.eventsRecorded.WithLabelValues(kind).Inc()
}

// RecordEventDiscarded counts an event dropped outside a session.
func RecordEventDiscarded() {
	globalManager.eventsDiscarded.Inc()
}

// RecordEventMalformed counts a rejected input event.
func RecordEventMalformed() {
	globalManager.eventsMalformed.Inc()
}

// RecordBatchScheduled counts a batch handed to the persister.
func RecordBatchScheduled() {
	globalManager.batchesScheduled.Inc()
}

// UpdateBufferedEvents sets the recorder buffer size.
func UpdateBufferedEvents(count int) {
	globalManager.bufferedEvents.Set(float64(count))
}

// RecordPersistCycle records a successful persist and its latency.
func RecordPersistCycle(latencyMs float64) {
	globalManager.persistCycles.Inc()
	globalManager.persistLatency.Observe(latencyMs)
}

// RecordPersistError counts a storage error for op (read, write, reset).
func RecordPersistError(op string) {
	globalManager.persistErrors.WithLabelValues(op).Inc()
}

// UpdatePendingBatches sets the persister queue depth.
func UpdatePendingBatches(count int) {
	globalManager.pendingBatches.Set(float64(count))
}

// UpdateStoredEvents sets the durable store size.
func UpdateStoredEvents(count int) {
	globalManager.storedEvents.Set(float64(count))
}

// RecordReplayDispatch counts an event dispatched to the sink and how late it was.
func RecordReplayDispatch(kind string, latenessMs float64) {
	globalManager.replayDispatches.WithLabelValues(kind).Inc()
	globalManager.replayLateness.Observe(latenessMs)
}

// RecordReplayPass counts a completed pass.
func RecordReplayPass() {
	globalManager.replayPasses.Inc()
}

// RecordReplayAbort counts a pass cut short by stop.
func RecordReplayAbort() {
	globalManager.replayAborts.Inc()
}

// UpdateResidentMemory publishes the sampler's current/min/max.
func UpdateResidentMemory(current, minimum, maximum uint64) {
	globalManager.residentMemory.WithLabelValues("current").Set(float64(current))
	globalManager.residentMemory.WithLabelValues("min").Set(float64(minimum))
	globalManager.residentMemory.WithLabelValues("max").Set(float64(maximum))
}

// UpdateTaskRunning flags whether the named task is running.
func UpdateTaskRunning(task string, running bool) {
	v := 0.0
	if running {
		v = 1
	}
	globalManager.taskRunning.WithLabelValues(task).Set(v)
}

// RecordTaskPanic counts a recovered run loop panic.
func RecordTaskPanic(task string) {
	globalManager.taskPanics.WithLabelValues(task).Inc()
}

// RecordTaskMisuse counts a double start or double stop.
func RecordTaskMisuse(task, op string) {
	globalManager.taskMisuse.WithLabelValues(task, op).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
