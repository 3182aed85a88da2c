// Package metrics provides Prometheus metrics for the gazetrack pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// latencyBuckets suit device round trips measured in milliseconds.
var latencyBuckets = []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 250, 500, 1000} //nolint:gochecknoglobals // fixed bucket layout

// Manager manages all Prometheus metrics for the gaze pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Device proxy
	deviceRequests       *prometheus.CounterVec
	deviceRequestLatency *prometheus.HistogramVec
	connectionErrors     prometheus.Counter
	noResponses          prometheus.Counter
	reconnects           prometheus.Counter
	pendingResponses     prometheus.Gauge
	pendingDropped       prometheus.Counter
	protocolDropped      prometheus.Counter

	// Heartbeat
	heartbeats *prometheus.CounterVec

	// Sample pipeline
	samplesPolled    prometheus.Counter
	samplePollErrors prometheus.Counter
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueDropped     prometheus.Counter
	samplesPublished prometheus.Counter
	samplesDuplicate prometheus.Counter
	samplesLogged    prometheus.Counter
	logWriteErrors   prometheus.Counter
	publishLatency   prometheus.Histogram
	recordingEnabled prometheus.Gauge
	streamClients    prometheus.Gauge

	// Detection and calibration
	eventsDetected   *prometheus.CounterVec
	driftCorrections *prometheus.CounterVec
	calibrations     *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init replaces the global manager with one built from opts on a fresh
// registry. Call it once at startup, before metrics are recorded and before
// GetRegistry is read.
func Init(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// RefreshInterval reports how often the global gauges should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gazetrack",
		subsystem:        "pipeline",
		histogramBuckets: latencyBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.deviceRequests = m.counterVec("device_requests_total", "Device requests by category, request and status code", "category", "request", "status_code")
	m.deviceRequestLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "device_request_latency_milliseconds",
		Help:        "Round trip latency of device requests in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"category"})
	m.connectionErrors = m.counter("connection_errors_total", "Synthetic 901 responses returned after a transport failure")
	m.noResponses = m.counter("no_responses_total", "Requests that found no matching response before the max wait")
	m.reconnects = m.counter("reconnects_total", "Transport reconnect attempts")
	m.pendingResponses = m.gauge("pending_responses", "Decoded responses waiting for a matching request")
	m.pendingDropped = m.counter("pending_dropped_total", "Pending responses discarded because the pending list was full")
	m.protocolDropped = m.counter("protocol_dropped_total", "Malformed message fragments dropped by the decoder")

	m.heartbeats = m.counterVec("heartbeats_total", "Heartbeat attempts by result (ok, failed, skipped)", "result")

	m.samplesPolled = m.counter("samples_polled_total", "Samples fetched from the device")
	m.samplePollErrors = m.counter("sample_poll_errors_total", "Sample polls that returned no sample")
	m.queueSize = m.gauge("queue_size", "Samples waiting in the hand-off queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the hand-off queue")
	m.queueDropped = m.counter("queue_dropped_total", "Samples evicted from a full hand-off queue")
	m.samplesPublished = m.counter("samples_published_total", "Samples published as the current sample")
	m.samplesDuplicate = m.counter("samples_duplicate_total", "Samples discarded because their timestamp repeated")
	m.samplesLogged = m.counter("samples_logged_total", "Samples written to the data log")
	m.logWriteErrors = m.counter("log_write_errors_total", "Failed data log writes")
	m.publishLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "publish_latency_milliseconds",
		Help:        "Time between a sample being polled and being published",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})
	m.recordingEnabled = m.gauge("recording_enabled", "1 while samples are being written to the data log")
	m.streamClients = m.gauge("stream_clients", "Connected websocket sample stream clients")

	m.eventsDetected = m.counterVec("events_detected_total", "Gaze events detected by kind", "kind")
	m.driftCorrections = m.counterVec("drift_corrections_total", "Drift correction outcomes", "outcome")
	m.calibrations = m.counterVec("calibrations_total", "Calibration runs by result", "result")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint, method and error type", "endpoint", "method", "error_type")
}

// Device proxy metrics.

// RecordDeviceRequest counts one completed device request.
func RecordDeviceRequest(category, request, statusCode string, latencyMs float64) {
	globalManager.deviceRequests.WithLabelValues(category, request, statusCode).Inc()
	globalManager.deviceRequestLatency.WithLabelValues(category).Observe(latencyMs)
}

// RecordConnectionError increments the synthetic 901 counter.
func RecordConnectionError() {
	globalManager.connectionErrors.Inc()
}

// RecordNoResponse increments the max-wait-elapsed counter.
func RecordNoResponse() {
	globalManager.noResponses.Inc()
}

// RecordReconnect increments the reconnect counter.
func RecordReconnect() {
	globalManager.reconnects.Inc()
}

// UpdatePendingResponses sets the pending response depth.
func UpdatePendingResponses(n int) {
	globalManager.pendingResponses.Set(float64(n))
}

// RecordPendingDropped increments the pending-overflow counter.
func RecordPendingDropped() {
	globalManager.pendingDropped.Inc()
}

// RecordProtocolDropped increments the malformed fragment counter.
func RecordProtocolDropped() {
	globalManager.protocolDropped.Inc()
}

// Heartbeat metrics.

// RecordHeartbeat counts a heartbeat by result: ok, failed or skipped.
func RecordHeartbeat(result string) {
	globalManager.heartbeats.WithLabelValues(result).Inc()
}

// Pipeline metrics.

// RecordSamplePolled increments the polled samples counter.
func RecordSamplePolled() {
	globalManager.samplesPolled.Inc()
}

// RecordSamplePollError increments the poll error counter.
func RecordSamplePollError() {
	globalManager.samplePollErrors.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueDropped increments the queue eviction counter.
func RecordQueueDropped() {
	globalManager.queueDropped.Inc()
}

// RecordSamplePublished increments the published samples counter.
func RecordSamplePublished() {
	globalManager.samplesPublished.Inc()
}

// RecordSampleDuplicate increments the duplicate timestamp counter.
func RecordSampleDuplicate() {
	globalManager.samplesDuplicate.Inc()
}

// RecordSampleLogged increments the logged samples counter.
func RecordSampleLogged() {
	globalManager.samplesLogged.Inc()
}

// RecordLogWriteError increments the log write error counter.
func RecordLogWriteError() {
	globalManager.logWriteErrors.Inc()
}

// RecordPublishLatency records poll-to-publish latency in milliseconds.
func RecordPublishLatency(latencyMs float64) {
	globalManager.publishLatency.Observe(latencyMs)
}

// UpdateRecording flips the recording gauge.
func UpdateRecording(enabled bool) {
	v := 0.0
	if enabled {
		v = 1
	}
	globalManager.recordingEnabled.Set(v)
}

// UpdateStreamClients sets the number of websocket stream clients.
func UpdateStreamClients(n int) {
	globalManager.streamClients.Set(float64(n))
}

// Detection metrics.

// RecordEventDetected counts a detected gaze event.
func RecordEventDetected(kind string) {
	globalManager.eventsDetected.WithLabelValues(kind).Inc()
}

// RecordDriftCorrection counts a drift correction outcome.
func RecordDriftCorrection(outcome string) {
	globalManager.driftCorrections.WithLabelValues(outcome).Inc()
}

// RecordCalibration counts a calibration run.
func RecordCalibration(result string) {
	globalManager.calibrations.WithLabelValues(result).Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
