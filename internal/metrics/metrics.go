package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediastream_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Session Metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediastream_sessions_registered",
			Help: "Number of sessions currently in the registry",
		},
	)

	SessionOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_session_operations_total",
			Help: "Total number of registry operations",
		},
		[]string{"operation"},
	)

	SessionsPurgedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_sessions_purged_total",
			Help: "Total number of sessions removed without an explicit delete",
		},
		[]string{"reason"},
	)

	StreamStartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_stream_starts_total",
			Help: "Total number of stream start attempts",
		},
		[]string{"mode", "outcome"},
	)

	// Negotiation Metrics
	NegotiationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_negotiations_total",
			Help: "Total number of format negotiations",
		},
		[]string{"descriptor", "result"},
	)

	// Transcoder Metrics
	TranscodesRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediastream_transcodes_running",
			Help: "Number of transcoder processes currently running",
		},
	)

	TranscodeBusyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediastream_transcode_busy_total",
			Help: "Total number of transcode starts rejected at capacity",
		},
	)

	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediastream_transcode_duration_seconds",
			Help:    "Lifetime of transcoder processes in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5 hours
		},
		[]string{"kind", "status"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediastream_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"operation"},
	)

	// Database Metrics
	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediastream_database_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Event Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_session_events_total",
			Help: "Total number of session events delivered to sinks",
		},
		[]string{"sink", "status"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordSessionOperation records a registry operation and the resulting size
func RecordSessionOperation(operation string, registered int) {
	SessionOperationsTotal.WithLabelValues(operation).Inc()
	SessionsActive.Set(float64(registered))
}

// RecordSessionStop records a stop, which leaves the registry size unchanged
func RecordSessionStop() {
	SessionOperationsTotal.WithLabelValues("stop").Inc()
}

// RecordSessionsPurged records sessions removed by the registry itself
func RecordSessionsPurged(reason string, count int) {
	SessionsPurgedTotal.WithLabelValues(reason).Add(float64(count))
}

// RecordStreamStart records the outcome of a stream start
func RecordStreamStart(mode, outcome string) {
	StreamStartsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordNegotiation records a negotiation result
func RecordNegotiation(descriptor, result string) {
	NegotiationsTotal.WithLabelValues(descriptor, result).Inc()
}

// UpdateTranscodesRunning sets the running transcode gauge
func UpdateTranscodesRunning(running int) {
	TranscodesRunning.Set(float64(running))
}

// RecordTranscodeBusy records a start rejected at capacity
func RecordTranscodeBusy() {
	TranscodeBusyTotal.Inc()
}

// RecordTranscodeFinished records the end of a transcoder process
func RecordTranscodeFinished(kind, status string, duration float64) {
	TranscodeDuration.WithLabelValues(kind, status).Observe(duration)
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, duration float64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string, duration float64) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
	DatabaseOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordEventPublished records a session event delivery
func RecordEventPublished(sink string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	EventsPublishedTotal.WithLabelValues(sink, status).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
