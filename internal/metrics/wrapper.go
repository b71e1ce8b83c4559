package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
)

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

type MetricsHistogram interface {
	Observe(float64)
}

// MetricsWrapper adapts Metrics to the narrow interfaces the learning and
// service packages depend on. It satisfies xcsf.MetricsInterface.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc()               { w.m.PredictionsTotal.Inc() }
func (w *MetricsWrapper) RewardsInc()                   { w.m.RewardsTotal.Inc() }
func (w *MetricsWrapper) CoveringsInc()                 { w.m.CoveringsTotal.Inc() }
func (w *MetricsWrapper) GARunsInc()                    { w.m.GARunsTotal.Inc() }
func (w *MetricsWrapper) DeletionsAdd(n float64)        { w.m.DeletionsTotal.Add(n) }
func (w *MetricsWrapper) SubsumptionsAdd(n float64)     { w.m.SubsumptionsTotal.Add(n) }
func (w *MetricsWrapper) CompactionsInc()               { w.m.CompactionsTotal.Inc() }
func (w *MetricsWrapper) MatchSetSizeObserve(v float64) { w.m.MatchSetSize.Observe(v) }

func (w *MetricsWrapper) PopulationSizeSet(macro, micro float64) {
	w.m.PopulationMacro.Set(macro)
	w.m.PopulationMicro.Set(micro)
}

// PredictionErrorObserve ignores NaN errors produced before the first
// prediction is available.
func (w *MetricsWrapper) PredictionErrorObserve(v float64) {
	if math.IsNaN(v) {
		return
	}
	w.m.PredictionError.Observe(v)
}

func (w *MetricsWrapper) CombineLatency() MetricsHistogram {
	return &HistogramWrapper{w.m.CombineLatency}
}

func (w *MetricsWrapper) ForecastRequests() MetricsCounter {
	return &CounterWrapper{w.m.ForecastRequests}
}

func (w *MetricsWrapper) ForecastFailures() MetricsCounter {
	return &CounterWrapper{w.m.ForecastFailures}
}

func (w *MetricsWrapper) StreamClients() MetricsGauge {
	return &GaugeWrapper{w.m.StreamClients}
}

func (w *MetricsWrapper) StreamDropped() MetricsCounter {
	return &CounterWrapper{w.m.StreamDropped}
}

func (w *MetricsWrapper) Errors() MetricsCounter {
	return &CounterWrapper{w.m.ErrorsTotal}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}

type HistogramWrapper struct {
	h prometheus.Histogram
}

func (hw *HistogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}
