package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Feed Metrics
	ReadingsIngestedTotal prometheus.Counter
	ReadingsRejectedTotal *prometheus.CounterVec
	FeedBatchSize         prometheus.Histogram

	// Alert Metrics
	AlertsCreatedTotal    *prometheus.CounterVec
	AlertsSuppressedTotal prometheus.Counter
	AlertTransitionsTotal *prometheus.CounterVec
	ActiveAlerts          prometheus.Gauge

	// History Metrics
	HistoryQueriesTotal  *prometheus.CounterVec
	HistoryQueryDuration prometheus.Histogram
	ExportsTotal         *prometheus.CounterVec

	// Device Metrics
	WiFiConfirmationsTotal *prometheus.CounterVec

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec

	// Websocket Metrics
	WebsocketClients prometheus.Gauge
}

// NewCollector creates a new metrics collector registered on reg
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 15.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		ReadingsIngestedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readings_ingested_total",
				Help:      "Total number of sensor readings accepted from the feed",
			},
		),

		ReadingsRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readings_rejected_total",
				Help:      "Total number of feed records skipped by reason",
			},
			[]string{"reason"},
		),

		FeedBatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "feed_batch_size",
				Help:      "Number of records per feed batch",
				Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000},
			},
		),

		AlertsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_created_total",
				Help:      "Total number of alerts raised by parameter and severity",
			},
			[]string{"parameter", "severity"},
		),

		AlertsSuppressedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_suppressed_total",
				Help:      "Threshold violations suppressed by the cool-down window",
			},
		),

		AlertTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_transitions_total",
				Help:      "Alert acknowledge/dismiss operations by result",
			},
			[]string{"action", "result"},
		),

		ActiveAlerts: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_alerts",
				Help:      "Number of alerts awaiting operator attention",
			},
		),

		HistoryQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_queries_total",
				Help:      "Historical queries by result",
			},
			[]string{"result"},
		),

		HistoryQueryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "history_query_duration_seconds",
				Help:      "Duration of filter, sort and aggregate over the reading set",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.5},
			},
		),

		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Generated export documents by format",
			},
			[]string{"format"},
		),

		WiFiConfirmationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wifi_confirmations_total",
				Help:      "WiFi save confirmations by result",
			},
			[]string{"result"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "total"
		),

		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),

		WebsocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Number of connected dashboard websocket clients",
			},
		),
	}
}

// NewNopCollector returns a collector bound to a private registry
func NewNopCollector() *Collector {
	return NewCollector("test", prometheus.NewRegistry())
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordRejectedReading counts a feed record that failed normalization
func (c *Collector) RecordRejectedReading(reason string) {
	c.ReadingsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordAlertCreated counts a newly raised alert
func (c *Collector) RecordAlertCreated(parameter, severity string) {
	c.AlertsCreatedTotal.WithLabelValues(parameter, severity).Inc()
}

// RecordAlertTransition counts an acknowledge or dismiss attempt
func (c *Collector) RecordAlertTransition(action, result string) {
	c.AlertTransitionsTotal.WithLabelValues(action, result).Inc()
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
