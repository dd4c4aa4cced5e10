// Package metrics provides Prometheus metrics for the puckcast service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Prediction
	predictionsCreated *prometheus.CounterVec
	predictionsReused  *prometheus.CounterVec
	predictionLatency  prometheus.Histogram
	explainLatency     prometheus.Histogram
	unseenCategories   *prometheus.CounterVec

	// Training
	trainingRuns       *prometheus.CounterVec
	trainingDuration   prometheus.Histogram
	trainingAccuracy   prometheus.Gauge
	trainingRows       prometheus.Gauge
	latestModelVersion *prometheus.GaugeVec

	// Ingestion
	snapshotsCreated prometheus.Counter
	upstreamRequests *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec

	// Training job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "puckcast",
		subsystem:        "predictor",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// NewMetricsManager is an alias of NewManager.
func NewMetricsManager(opts ...Option) *Manager { return NewManager(opts...) }

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)
	counter := func(n, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: labels})
	}
	counterVec := func(n, help string, l ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: labels}, l)
	}
	gauge := func(n, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: labels})
	}
	histogram := func(n, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, Buckets: buckets, ConstLabels: labels})
	}

	m.predictionsCreated = counterVec("predictions_created_total", "Predictions computed and stored, by model version", "model_version")
	m.predictionsReused = counterVec("predictions_reused_total", "Prediction requests answered from an existing record, by source", "source")
	m.predictionLatency = histogram("prediction_latency_milliseconds", "Time to predict one game including explanation", m.histogramBuckets)
	m.explainLatency = histogram("explanation_latency_milliseconds", "Time spent in the local surrogate explainer", m.histogramBuckets)
	m.unseenCategories = counterVec("unseen_category_levels_total", "Categorical levels dropped at encoding because the vocabulary lacks them", "feature")

	m.trainingRuns = counterVec("training_runs_total", "Training runs by outcome", "outcome")
	m.trainingDuration = histogram("training_duration_seconds", "Wall time of a training run", prometheus.ExponentialBuckets(0.5, 2, 10))
	m.trainingAccuracy = gauge("training_validation_accuracy", "Held-out accuracy of the most recent training run")
	m.trainingRows = gauge("training_rows", "Rows in the most recent training dataset")
	m.latestModelVersion = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("latest_model_info"),
		Help: "Set to 1 for the model version currently served", ConstLabels: labels,
	}, []string{"name", "version"})

	m.snapshotsCreated = counter("team_snapshots_created_total", "Team statistics snapshots persisted")
	m.upstreamRequests = counterVec("upstream_requests_total", "Requests to the upstream NHL API by endpoint and status", "endpoint", "status_code")
	m.upstreamErrors = counterVec("upstream_errors_total", "Failed upstream NHL API requests by endpoint", "endpoint")
	m.upstreamLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("upstream_latency_milliseconds"),
		Help: "Upstream NHL API latency", Buckets: m.histogramBuckets, ConstLabels: labels,
	}, []string{"endpoint"})

	m.queueSize = gauge("training_queue_size", "Training jobs waiting in the queue")
	m.queueCapacity = gauge("training_queue_capacity", "Capacity of the training job queue")
	m.queueUtilization = gauge("training_queue_utilization_ratio", "Training queue size divided by capacity")
	m.queueEnqueue = counter("training_queue_enqueue_total", "Training jobs accepted")
	m.queueDequeue = counter("training_queue_dequeue_total", "Training jobs handed to the worker")
	m.queueEnqueueErrors = counterVec("training_queue_enqueue_errors_total", "Training jobs rejected by reason", "reason")

	m.httpRequests = counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", Buckets: m.histogramBuckets, ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = gauge("system_goroutines", "Live goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_milliseconds", "Average GC pause", m.histogramBuckets)
}

// Package-level helpers record against the global manager.

func RecordPredictionCreated(modelVersion string) {
	globalManager.predictionsCreated.WithLabelValues(modelVersion).Inc()
}

func RecordPredictionReused(source string) {
	globalManager.predictionsReused.WithLabelValues(source).Inc()
}

func RecordPredictionLatency(ms float64) { globalManager.predictionLatency.Observe(ms) }

func RecordExplainLatency(ms float64) { globalManager.explainLatency.Observe(ms) }

func RecordUnseenCategory(feature string) {
	globalManager.unseenCategories.WithLabelValues(feature).Inc()
}

func RecordTrainingRun(outcome string) {
	globalManager.trainingRuns.WithLabelValues(outcome).Inc()
}

func RecordTrainingDuration(d time.Duration) { globalManager.trainingDuration.Observe(d.Seconds()) }

func UpdateTrainingAccuracy(acc float64) { globalManager.trainingAccuracy.Set(acc) }

func UpdateTrainingRows(n int) { globalManager.trainingRows.Set(float64(n)) }

// SetLatestModel marks name/version as the served model.
func SetLatestModel(name, version string) {
	globalManager.latestModelVersion.Reset()
	globalManager.latestModelVersion.WithLabelValues(name, version).Set(1)
}

func RecordSnapshotsCreated(n int) { globalManager.snapshotsCreated.Add(float64(n)) }

func RecordUpstreamRequest(endpoint, statusCode string, ms float64) {
	globalManager.upstreamRequests.WithLabelValues(endpoint, statusCode).Inc()
	globalManager.upstreamLatency.WithLabelValues(endpoint).Observe(ms)
}

func RecordUpstreamError(endpoint string) {
	globalManager.upstreamErrors.WithLabelValues(endpoint).Inc()
}

func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

func UpdateQueueUtilization(u float64) { globalManager.queueUtilization.Set(u) }

func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

func RecordSystemGCPauseTime(ms float64) { globalManager.systemGCPauseTime.Observe(ms) }

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
