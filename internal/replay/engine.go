// Package replay runs a recorded series through a combination strategy for
// one or more experiments and reports the prediction quality.
package replay

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"forecast-combiner/internal/combine"
	"forecast-combiner/internal/source"
	"forecast-combiner/internal/xcsf"
)

// Prediction is one combined forecast of the last experiment.
type Prediction struct {
	Step      int       `json:"step"`
	Forecasts []float64 `json:"-"`
	Combined  float64   `json:"combined"`
	Baseline  float64   `json:"baseline"`
	Actual    float64   `json:"actual"`
}

// ExperimentResult holds the error statistics of one pass over the series.
type ExperimentResult struct {
	Experiment  int     `json:"experiment"`
	Predictions int     `json:"predictions"`
	Skipped     int     `json:"skipped"`
	MAE         float64 `json:"mae"`
	RMSE        float64 `json:"rmse"`
	BaselineMAE float64 `json:"baseline_mae"`
}

// Results holds replay results
type Results struct {
	Strategy    string             `json:"strategy"`
	Series      string             `json:"series"`
	Experiments []ExperimentResult `json:"experiments"`
	Predictions []Prediction       `json:"-"`

	MAE         float64 `json:"mae"`
	MAEStdDev   float64 `json:"mae_std_dev"`
	RMSE        float64 `json:"rmse"`
	BaselineMAE float64 `json:"baseline_mae"`

	// Evaluator telemetry, only for the learning strategy.
	Window      int               `json:"window,omitempty"`
	Performance []xcsf.SummaryRow `json:"performance,omitempty"`
	Matrices    [][][]float64     `json:"-"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Engine replays a series through a combination module.
type Engine struct {
	module      *combine.Module
	data        *source.Loader
	series      string
	experiments int
	results     *Results
}

// NewEngine creates a new replay engine
func NewEngine(module *combine.Module, data *source.Loader, series string, experiments int) *Engine {
	if experiments < 1 {
		experiments = 1
	}
	return &Engine{
		module:      module,
		data:        data,
		series:      series,
		experiments: experiments,
		results: &Results{
			Strategy: module.Strategy().Name(),
			Series:   series,
		},
	}
}

// Run executes every experiment. Each experiment after the first starts
// from fresh learned state. Steps are rewarded as soon as their true value
// is known.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().
		Str("strategy", e.results.Strategy).
		Str("series", e.series).
		Int("observations", e.data.Count()).
		Int("experiments", e.experiments).
		Msg("Starting replay")

	e.results.StartTime = time.Now()
	baseline := combine.Average{}

	for exp := 0; exp < e.experiments; exp++ {
		if exp > 0 {
			e.module.Reset()
		}
		e.data.Reset()

		res := ExperimentResult{Experiment: exp}
		var absSum, sqSum, baseSum float64
		last := exp == e.experiments-1

		for e.data.HasNext() {
			if err := ctx.Err(); err != nil {
				return err
			}
			o := e.data.Next()

			combined := e.module.Combine(o.Step, o.Forecasts)
			if !o.HasActual() {
				continue
			}
			actual := *o.Actual
			e.module.Reward(o.Step, actual)

			if math.IsNaN(combined) {
				res.Skipped++
				continue
			}
			base := baseline.Combine(o.Step, combine.Finite(o.Forecasts))

			res.Predictions++
			absSum += math.Abs(combined - actual)
			sqSum += (combined - actual) * (combined - actual)
			baseSum += math.Abs(base - actual)

			if last {
				e.results.Predictions = append(e.results.Predictions, Prediction{
					Step:      o.Step,
					Forecasts: o.Forecasts,
					Combined:  combined,
					Baseline:  base,
					Actual:    actual,
				})
			}
		}

		if res.Predictions > 0 {
			n := float64(res.Predictions)
			res.MAE = absSum / n
			res.RMSE = math.Sqrt(sqSum / n)
			res.BaselineMAE = baseSum / n
		}
		e.results.Experiments = append(e.results.Experiments, res)

		log.Info().
			Int("experiment", exp).
			Int("predictions", res.Predictions).
			Float64("mae", res.MAE).
			Float64("baseline_mae", res.BaselineMAE).
			Msg("Experiment finished")
	}

	e.calculateMetrics()
	e.results.EndTime = time.Now()
	return nil
}

func (e *Engine) calculateMetrics() {
	n := len(e.results.Experiments)
	mae := make([]float64, n)
	rmse := make([]float64, n)
	base := make([]float64, n)
	for i, r := range e.results.Experiments {
		mae[i], rmse[i], base[i] = r.MAE, r.RMSE, r.BaselineMAE
	}

	e.results.MAE = stat.Mean(mae, nil)
	e.results.RMSE = stat.Mean(rmse, nil)
	e.results.BaselineMAE = stat.Mean(base, nil)
	if n > 1 {
		e.results.MAEStdDev = stat.StdDev(mae, nil)
	}

	if x, ok := e.module.Strategy().(*combine.XCSF); ok {
		eval := x.Driver().Evaluator()
		e.results.Window = eval.Window()
		e.results.Performance = eval.Summary()
		e.results.Matrices = eval.Performance()
	}
}

// GetResults returns the results of the last Run.
func (e *Engine) GetResults() *Results {
	return e.results
}
