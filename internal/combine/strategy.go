// Package combine selects and runs the strategy that merges several
// forecasts of the same series into one combined forecast.
//
// The learning strategy wraps the XCSF driver; the simple average and median
// strategies are stateless and serve as baselines or fallbacks.
package combine

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"

	"forecast-combiner/internal/common"
	"forecast-combiner/internal/xcsf"
)

// Strategy combines the forecasts offered for one step.
type Strategy interface {
	Name() string
	// Combine returns the combined forecast, or NaN when none can be made.
	Combine(step int, forecasts []float64) float64
}

// Learner is implemented by strategies that learn from the true value of a
// step after it becomes known.
type Learner interface {
	Reward(step int, value float64)
	// Reset starts a new experiment with fresh learned state.
	Reset()
	// Forget drops the input kept for the next Reward, so a step that was
	// never combined does not train on stale forecasts.
	Forget()
}

// New creates the strategy named kind. Learning parameters and driver options
// are only used by the xcsf strategy.
func New(kind string, params xcsf.Params, opts ...xcsf.Option) (Strategy, error) {
	switch strings.ToLower(kind) {
	case common.StrategyXCSF:
		return NewXCSF(params, opts...)
	case common.StrategyAverage:
		return Average{}, nil
	case common.StrategyMedian:
		return Median{}, nil
	default:
		return nil, fmt.Errorf("unknown combination strategy %q", kind)
	}
}

// XCSF combines forecasts with a learning classifier system.
type XCSF struct {
	driver *xcsf.Driver
}

func NewXCSF(params xcsf.Params, opts ...xcsf.Option) (*XCSF, error) {
	d, err := xcsf.NewDriver(params, opts...)
	if err != nil {
		return nil, fmt.Errorf("create xcsf driver: %w", err)
	}
	return &XCSF{driver: d}, nil
}

func (x *XCSF) Name() string { return common.StrategyXCSF }

func (x *XCSF) Combine(step int, forecasts []float64) float64 {
	return x.driver.Run(step, forecasts)
}

func (x *XCSF) Reward(step int, value float64) {
	x.driver.ReceiveReward(step, value)
}

func (x *XCSF) Reset() {
	x.driver.ResetForNextExperiment()
}

func (x *XCSF) Forget() {
	x.driver.Forget()
}

// Driver exposes the underlying driver for persistence and telemetry.
func (x *XCSF) Driver() *xcsf.Driver { return x.driver }

// Average is the arithmetic mean of the forecasts.
type Average struct{}

func (Average) Name() string { return common.StrategyAverage }

func (Average) Combine(_ int, forecasts []float64) float64 {
	if len(forecasts) == 0 {
		return math.NaN()
	}
	return stat.Mean(forecasts, nil)
}

// Median is the middle forecast, or the mean of the two middle forecasts for
// an even count.
type Median struct{}

func (Median) Name() string { return common.StrategyMedian }

func (Median) Combine(_ int, forecasts []float64) float64 {
	n := len(forecasts)
	if n == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(forecasts)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
