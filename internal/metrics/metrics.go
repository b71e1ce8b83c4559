// Package metrics provides Prometheus metrics collection for the forecast
// combiner. It defines the learning, service and stream metrics exposed via
// the Prometheus metrics endpoint for monitoring and alerting.
//
// The package includes metrics for the classifier system (coverings, GA runs,
// deletions, population size), the combine/reward API, remote forecast
// requests and websocket subscribers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the combiner.
type Metrics struct {
	// Learning metrics
	PredictionsTotal  prometheus.Counter   // Total number of combined predictions
	RewardsTotal      prometheus.Counter   // Total number of rewards received
	CoveringsTotal    prometheus.Counter   // Total number of covering classifiers created
	GARunsTotal       prometheus.Counter   // Total number of genetic algorithm runs
	DeletionsTotal    prometheus.Counter   // Total number of micro-classifiers deleted
	SubsumptionsTotal prometheus.Counter   // Total number of offspring subsumed or merged
	CompactionsTotal  prometheus.Counter   // Total number of condensation/compaction switches
	PopulationMacro   prometheus.Gauge     // Distinct classifiers in the population
	PopulationMicro   prometheus.Gauge     // Sum of numerosities in the population
	MatchSetSize      prometheus.Histogram // Match set size per iteration
	PredictionError   prometheus.Histogram // Absolute error of the system prediction

	// Service metrics
	CombineLatency   prometheus.Histogram // End-to-end latency of a combine request
	ForecastRequests prometheus.Counter   // Requests sent to the remote forecast engine
	ForecastFailures prometheus.Counter   // Failed requests to the remote forecast engine
	StreamClients    prometheus.Gauge     // Connected websocket subscribers
	StreamDropped    prometheus.Counter   // Snapshots dropped for slow subscribers

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered

	gatherer prometheus.Gatherer
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// When the registerer is also a Gatherer it is used by ErrorRate.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "xcsf_predictions_total",
			Help: "Total number of combined predictions",
		}),
		RewardsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "xcsf_rewards_total",
			Help: "Total number of rewards received",
		}),
		CoveringsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "xcsf_coverings_total",
			Help: "Total number of covering classifiers created",
		}),
		GARunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "xcsf_ga_runs_total",
			Help: "Total number of genetic algorithm runs",
		}),
		DeletionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "xcsf_deletions_total",
			Help: "Total number of micro-classifiers deleted",
		}),
		SubsumptionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "xcsf_subsumptions_total",
			Help: "Total number of offspring subsumed or merged into existing classifiers",
		}),
		CompactionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "xcsf_compactions_total",
			Help: "Total number of condensation or compaction switches",
		}),
		PopulationMacro: factory.NewGauge(prometheus.GaugeOpts{
			Name: "xcsf_population_macro",
			Help: "Number of distinct classifiers in the population",
		}),
		PopulationMicro: factory.NewGauge(prometheus.GaugeOpts{
			Name: "xcsf_population_micro",
			Help: "Sum of classifier numerosities in the population",
		}),
		MatchSetSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "xcsf_match_set_size",
			Help:    "Number of classifiers in the match set",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		PredictionError: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "xcsf_prediction_abs_error",
			Help:    "Absolute error of the system prediction against the true value",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		CombineLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "combine_latency_seconds",
			Help:    "Combine request latency in seconds (end-to-end)",
			Buckets: prometheus.DefBuckets,
		}),
		ForecastRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "forecast_requests_total",
			Help: "Total number of requests sent to the forecast engine",
		}),
		ForecastFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "forecast_failures_total",
			Help: "Total number of failed forecast engine requests",
		}),
		StreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stream_clients",
			Help: "Number of connected websocket subscribers",
		}),
		StreamDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_dropped_total",
			Help: "Total number of snapshots dropped for slow subscribers",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
		gatherer: gatherer,
	}
}

// ErrorRate returns the ratio of errors to predictions, or 0 if no
// predictions have been recorded.
func (m *Metrics) ErrorRate() float64 {
	var predictions, errors float64

	metricFamilies, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "xcsf_predictions_total":
			for _, m := range mf.Metric {
				predictions = m.GetCounter().GetValue()
			}
		case "errors_total":
			for _, m := range mf.Metric {
				errors = m.GetCounter().GetValue()
			}
		}
	}

	if predictions == 0 {
		return 0
	}
	return errors / predictions
}

// Gatherer returns the registry the metrics were registered with, for
// serving them over HTTP.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}
