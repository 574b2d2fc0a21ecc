package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	runsImported      *prometheus.CounterVec
	importDuration    prometheus.Histogram
	mergesTotal       *prometheus.CounterVec
	baselineSwitches  prometheus.Counter
	webhookDeliveries *prometheus.CounterVec
	runsStored        prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.runsImported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runhub_runs_imported_total",
			Help: "Total number of run imports",
		},
		[]string{"status"},
	)
	r.importDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "runhub_import_duration_seconds",
			Help:    "Run import duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	r.mergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runhub_merges_total",
			Help: "Total number of merge operations",
		},
		[]string{"status"},
	)
	r.baselineSwitches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "runhub_baseline_switches_total",
			Help: "Total number of baseline designations and clears",
		},
	)
	r.webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runhub_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"status"},
	)
	r.runsStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "runhub_runs_stored",
			Help: "Number of runs currently stored",
		},
	)

	reg.MustRegister(r.runsImported)
	reg.MustRegister(r.importDuration)
	reg.MustRegister(r.mergesTotal)
	reg.MustRegister(r.baselineSwitches)
	reg.MustRegister(r.webhookDeliveries)
	reg.MustRegister(r.runsStored)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordImport records a run import attempt.
func (r *Registry) RecordImport(status string, duration float64) {
	r.runsImported.WithLabelValues(status).Inc()
	r.importDuration.Observe(duration)
}

// RecordMerge records a merge operation outcome.
func (r *Registry) RecordMerge(status string) {
	r.mergesTotal.WithLabelValues(status).Inc()
}

// RecordBaselineSwitch records a baseline designation or clear.
func (r *Registry) RecordBaselineSwitch() {
	r.baselineSwitches.Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt.
func (r *Registry) RecordWebhookDelivery(status string) {
	r.webhookDeliveries.WithLabelValues(status).Inc()
}

// SetRunsStored sets the stored run count.
func (r *Registry) SetRunsStored(count int) {
	r.runsStored.Set(float64(count))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
