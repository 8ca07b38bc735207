package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics (gateway surface)
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Download pipeline metrics
	DownloadsTotal   *prometheus.CounterVec
	DownloadDuration *prometheus.HistogramVec
	DownloadBytes    prometheus.Counter
	InstallsActive   prometheus.Gauge
	Evictions        prometheus.Counter

	// Bridge metrics
	BridgeRequests *prometheus.CounterVec
	BridgeDuration *prometheus.HistogramVec

	// Secure storage metrics
	StorageOps *prometheus.CounterVec

	// Registry client metrics
	RegistryCalls *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	registry  *prometheus.Registry
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests int64
	TotalErrors   int64
	TotalDuration float64
	RequestCount  int64
}

// NewMetrics creates a new metrics collector backed by its own registry, so
// multiple collectors can coexist in one process.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniapp_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniapp_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniapp_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniapp_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		DownloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniapp_downloads_total",
				Help: "Total number of bundle downloads by outcome",
			},
			[]string{"outcome"},
		),
		DownloadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniapp_download_duration_seconds",
				Help:    "Bundle download and install duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		DownloadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "miniapp_download_bytes_total",
				Help: "Total bytes downloaded",
			},
		),
		InstallsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "miniapp_installs_active",
				Help: "Number of in-flight install sessions",
			},
		),
		Evictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "miniapp_evictions_total",
				Help: "Total number of version directories evicted",
			},
		),

		BridgeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniapp_bridge_requests_total",
				Help: "Total number of bridge requests by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		BridgeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniapp_bridge_duration_seconds",
				Help:    "Bridge request handling duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"action"},
		),

		StorageOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniapp_storage_ops_total",
				Help: "Total number of secure storage operations",
			},
			[]string{"backend", "op", "status"},
		),

		RegistryCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniapp_registry_calls_total",
				Help: "Total number of registry API calls",
			},
			[]string{"operation", "status"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "miniapp_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniapp_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "miniapp_uptime_seconds",
				Help: "Gateway uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordDownload records a completed download pipeline run
func (m *Metrics) RecordDownload(outcome string, duration time.Duration) {
	m.DownloadsTotal.WithLabelValues(outcome).Inc()
	m.DownloadDuration.WithLabelValues("total").Observe(duration.Seconds())
}

// RecordBridgeRequest records one terminal bridge callback
func (m *Metrics) RecordBridgeRequest(action, outcome string, duration time.Duration) {
	m.BridgeRequests.WithLabelValues(action, outcome).Inc()
	m.BridgeDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordStorageOp records a secure storage operation
func (m *Metrics) RecordStorageOp(backend, op, status string) {
	m.StorageOps.WithLabelValues(backend, op, status).Inc()
}

// RecordRegistryCall records a registry client call
func (m *Metrics) RecordRegistryCall(operation, status string) {
	m.RegistryCalls.WithLabelValues(operation, status).Inc()
}

// Registry exposes the backing registry for the scrape endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Snapshot returns the current snapshot values
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
