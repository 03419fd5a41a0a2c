// Package metrics provides Prometheus metrics for the shotlog analysis service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Pipeline metrics - the frame -> position -> shot funnel
	framesProcessed  prometheus.Counter
	ballObservations prometheus.Counter
	detectorCalls    prometheus.Counter
	detectorErrors   prometheus.Counter
	detectorLatency  prometheus.Histogram
	shotsDetected    prometheus.Counter
	shotsByOutcome   *prometheus.CounterVec
	shotsDiscarded   prometheus.Counter

	// Analysis run metrics
	analysesStarted   prometheus.Counter
	analysesCompleted prometheus.Counter
	analysesFailed    prometheus.Counter
	analysisDuration  prometheus.Histogram

	// Queue metrics
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	queueEnqueues  prometheus.Counter
	queueDequeues  prometheus.Counter
	queueErrors    *prometheus.CounterVec
	jobsDuplicated prometheus.Counter

	// Worker metrics
	workerCount   prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Result store metrics
	storedResults prometheus.Gauge
}

// NewManager creates a metrics Manager and registers all instruments.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "shotlog",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.framesProcessed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "frames_processed_total",
		Help: "Frames run through the detection pipeline.",
	})
	m.ballObservations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ball_observations_total",
		Help: "Frames yielding a ball position above the confidence threshold.",
	})
	m.detectorCalls = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "detector_calls_total",
		Help: "Calls issued to the external object detector.",
	})
	m.detectorErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "detector_errors_total",
		Help: "Detector calls that failed; the frame is skipped.",
	})
	m.detectorLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "detector_latency_ms",
		Help:    "Latency of individual detector calls in milliseconds.",
		Buckets: m.histogramBuckets,
	})
	m.shotsDetected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "shots_detected_total",
		Help: "Shot events finalized by the tracker.",
	})
	m.shotsByOutcome = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "shots_by_outcome_total",
		Help: "Finalized shots partitioned by classified outcome.",
	}, []string{"outcome"})
	m.shotsDiscarded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "shots_discarded_total",
		Help: "Candidate shots discarded before reaching minimum duration.",
	})

	m.analysesStarted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "analyses_started_total",
		Help: "Analysis runs started.",
	})
	m.analysesCompleted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "analyses_completed_total",
		Help: "Analysis runs completed with a result.",
	})
	m.analysesFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "analyses_failed_total",
		Help: "Analysis runs that failed before producing a result.",
	})
	m.analysisDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "analysis_duration_seconds",
		Help:    "Wall-clock duration of full analysis runs.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	m.queueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_size",
		Help: "Jobs currently waiting in the analysis queue.",
	})
	m.queueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_capacity",
		Help: "Configured capacity of the analysis queue.",
	})
	m.queueEnqueues = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_enqueues_total",
		Help: "Jobs accepted into the queue.",
	})
	m.queueDequeues = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_dequeues_total",
		Help: "Jobs handed to workers.",
	})
	m.queueErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_errors_total",
		Help: "Enqueue failures partitioned by reason.",
	}, []string{"reason"})
	m.jobsDuplicated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "jobs_duplicated_total",
		Help: "Job submissions rejected as duplicates.",
	})

	m.workerCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_count",
		Help: "Number of analysis workers.",
	})
	m.workerLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "worker_job_latency_ms",
		Help:    "End-to-end job processing latency in milliseconds.",
		Buckets: m.histogramBuckets,
	})
	m.workerErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_errors_total",
		Help: "Jobs that failed inside a worker.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests partitioned by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds.",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method"})

	m.storedResults = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "stored_results",
		Help: "Analysis results currently held by the repository.",
	})

	return m
}

var (
	defaultManager *Manager
	defaultOnce    sync.Once
)

// Default returns the process-wide Manager, creating it on first use.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = NewManager()
	})
	return defaultManager
}

// SetDefault replaces the process-wide Manager. Intended for tests that need
// an isolated registry.
func SetDefault(m *Manager) {
	defaultOnce.Do(func() {}) // mark initialized
	defaultManager = m
}

// Package-level helpers delegating to the default manager.

func RecordFrameProcessed() { Default().framesProcessed.Inc() }
func RecordBallObservation() { Default().ballObservations.Inc() }
func RecordDetectorCall() { Default().detectorCalls.Inc() }
func RecordDetectorError() { Default().detectorErrors.Inc() }
func RecordDetectorLatency(ms float64) {
	Default().detectorLatency.Observe(ms)
}
func RecordShotDetected() { Default().shotsDetected.Inc() }
func RecordShotOutcome(outcome string) {
	Default().shotsByOutcome.WithLabelValues(outcome).Inc()
}
func RecordShotDiscarded() { Default().shotsDiscarded.Inc() }

func RecordAnalysisStarted() { Default().analysesStarted.Inc() }
func RecordAnalysisCompleted() { Default().analysesCompleted.Inc() }
func RecordAnalysisFailed() { Default().analysesFailed.Inc() }
func RecordAnalysisDuration(seconds float64) {
	Default().analysisDuration.Observe(seconds)
}

func UpdateQueueSize(n int) { Default().queueSize.Set(float64(n)) }
func UpdateQueueCapacity(n int) { Default().queueCapacity.Set(float64(n)) }
func RecordQueueEnqueue() { Default().queueEnqueues.Inc() }
func RecordQueueDequeue() { Default().queueDequeues.Inc() }
func RecordQueueError(reason string) {
	Default().queueErrors.WithLabelValues(reason).Inc()
}
func RecordJobDuplicate() { Default().jobsDuplicated.Inc() }

func UpdateWorkerCount(n int) { Default().workerCount.Set(float64(n)) }
func RecordWorkerLatency(ms float64) {
	Default().workerLatency.Observe(ms)
}
func RecordWorkerError() { Default().workerErrors.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	Default().httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method string, ms float64) {
	Default().httpRequestDuration.WithLabelValues(endpoint, method).Observe(ms)
}

func UpdateStoredResults(n int) { Default().storedResults.Set(float64(n)) }
