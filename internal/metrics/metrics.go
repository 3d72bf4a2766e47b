package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics of a simulation run.
type Registry struct {
	*prometheus.Registry

	// HTTP client metrics
	fetchRequestsTotal    *prometheus.CounterVec
	fetchRequestDuration  *prometheus.HistogramVec
	fetchRequestsInFlight prometheus.Gauge

	// Simulation metrics
	signalsTotal       *prometheus.CounterVec
	outcomesTotal      *prometheus.CounterVec
	seriesFetches      *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	simulationDuration prometheus.Histogram
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		fetchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigsim_http_requests_total",
				Help: "Total number of outgoing HTTP requests to data sources",
			},
			[]string{"source", "status"},
		),

		fetchRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sigsim_http_request_duration_seconds",
				Help:    "Outgoing HTTP request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"source"},
		),

		fetchRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sigsim_http_requests_in_flight",
				Help: "Number of outgoing HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.fetchRequestsTotal)
	reg.MustRegister(r.fetchRequestDuration)
	reg.MustRegister(r.fetchRequestsInFlight)

	r.signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigsim_signals_total",
			Help: "Total number of signals processed, by status",
		},
		[]string{"status"},
	)
	r.outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigsim_outcomes_total",
			Help: "Total number of trade outcomes, by terminal state and close reason",
		},
		[]string{"state", "reason"},
	)
	r.seriesFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigsim_series_fetches_total",
			Help: "Total number of remote series fetches",
		},
		[]string{"source", "status"},
	)
	r.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigsim_cache_lookups_total",
			Help: "Total number of series cache lookups",
		},
		[]string{"result"},
	)
	r.simulationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sigsim_simulation_duration_seconds",
			Help:    "Simulation run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 900},
		},
	)

	reg.MustRegister(r.signalsTotal)
	reg.MustRegister(r.outcomesTotal)
	reg.MustRegister(r.seriesFetches)
	reg.MustRegister(r.cacheLookups)
	reg.MustRegister(r.simulationDuration)

	return r
}

// RecordRequest records metrics for an outgoing HTTP request.
func (r *Registry) RecordRequest(source string, status int, duration float64) {
	statusStr := statusToString(status)
	r.fetchRequestsTotal.WithLabelValues(source, statusStr).Inc()
	r.fetchRequestDuration.WithLabelValues(source).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.fetchRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.fetchRequestsInFlight.Dec()
}

// RecordSignal records a processed signal ("evaluated", "skipped" or "failed").
func (r *Registry) RecordSignal(status string) {
	r.signalsTotal.WithLabelValues(status).Inc()
}

// RecordOutcome records the terminal state of an evaluated signal.
func (r *Registry) RecordOutcome(state, reason string) {
	if reason == "" {
		reason = "none"
	}
	r.outcomesTotal.WithLabelValues(state, reason).Inc()
}

// RecordFetch records a remote series fetch.
func (r *Registry) RecordFetch(source string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	r.seriesFetches.WithLabelValues(source, status).Inc()
}

// RecordCacheLookup records a series cache hit or miss.
func (r *Registry) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// RecordSimulation records a simulation run completion.
func (r *Registry) RecordSimulation(duration float64) {
	r.simulationDuration.Observe(duration)
}

// WriteTextfile writes all metrics to path in the Prometheus text format,
// for pickup by a node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
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
	case status == 0:
		return "error"
	default:
		return "1xx"
	}
}
