package xcsf

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// MetricsInterface defines the metrics the driver reports. A nil value
// disables reporting.
type MetricsInterface interface {
	PredictionsInc()
	RewardsInc()
	CoveringsInc()
	GARunsInc()
	DeletionsAdd(float64)
	SubsumptionsAdd(float64)
	CompactionsInc()
	PopulationSizeSet(macro, micro float64)
	MatchSetSizeObserve(float64)
	PredictionErrorObserve(float64)
}

// Option configures a Driver.
type Option func(*Driver)

func WithMetrics(m MetricsInterface) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithObserver registers an observer; it may be given several times.
func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observers = append(d.observers, o) }
}

// WithPopulation warm-starts the first experiment from a snapshot.
func WithPopulation(s PopulationSnapshot) Option {
	return func(d *Driver) { d.warm = &s }
}

// Driver runs the per-iteration protocol: Run predicts from the current
// forecasts, ReceiveReward later learns from the true value for the input
// cached by the last Run. It is not safe for concurrent use.
type Driver struct {
	p   *Params
	rng *Random

	pop  *Population
	ms   *MatchSet
	evo  *Evolution
	eval *Evaluator

	metrics   MetricsInterface
	observers []Observer
	warm      *PopulationSnapshot

	inputDim   int
	input      []float64
	prediction []float64
	warnedRaw  bool
}

// NewDriver validates params and builds a driver for the first experiment.
func NewDriver(params Params, opts ...Option) (*Driver, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid xcsf parameters: %w", err)
	}
	p := params
	d := &Driver{
		p:    &p,
		rng:  NewRandom(p.Seed),
		eval: NewEvaluator(p.AverageExploitTrials),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.ResetForNextExperiment()

	if d.warm != nil {
		pop, err := DecodePopulation(*d.warm, d.p, d.rng)
		if err != nil {
			return nil, fmt.Errorf("failed to load population: %w", err)
		}
		d.pop = pop
		if d.warm.InputDim > 0 {
			d.inputDim = d.warm.InputDim
		}
		log.Info().
			Int("classifiers", pop.Len()).
			Int("numerosity", pop.NumerositySum()).
			Msg("Warm start from population snapshot")
		d.warm = nil
	}
	return d, nil
}

// ResetForNextExperiment replaces population, match set and evolution and
// advances the evaluator to the next experiment. The cached input is dropped.
func (d *Driver) ResetForNextExperiment() {
	d.pop = NewPopulation(d.p, d.rng)
	d.ms = NewMatchSet(d.p, d.rng)
	d.evo = NewEvolution(d.p, d.rng)
	d.eval.NextExperiment()
	d.Forget()
	if d.eval.Experiment() > 0 {
		log.Info().Int("experiment", d.eval.Experiment()).Msg("Starting next experiment")
	}
}

// Run predicts the combined value for the given forecasts. The output target
// used for covering is the plain mean of the forecasts. It returns NaN when
// the forecast count does not match earlier calls; the cached input is then
// dropped so a following ReceiveReward does nothing.
func (d *Driver) Run(iteration int, forecasts []float64) float64 {
	if len(forecasts) == 0 {
		d.Forget()
		return math.NaN()
	}
	if d.inputDim == 0 {
		d.inputDim = len(forecasts)
	}
	if len(forecasts) != d.inputDim {
		log.Warn().
			Int("expected", d.inputDim).
			Int("got", len(forecasts)).
			Msg("Forecast count does not match input dimension")
		d.Forget()
		return math.NaN()
	}

	d.warnUnnormalized(iteration, forecasts)
	d.input = d.p.normalize(forecasts)
	state := NewState(d.input, []float64{stat.Mean(forecasts, nil)})
	d.match(state, iteration)
	d.prediction = d.ms.AveragePrediction()

	if d.p.ResetRLSAfterSteps > 0 && iteration+1 == d.p.ResetRLSAfterSteps {
		d.pop.ResetGainMatrices()
		log.Info().Int("iteration", iteration).Msg("Reset RLS gain matrices")
	}
	if d.p.StartCompaction > 0 && iteration+1 == d.p.StartCompaction {
		d.startCondensation(iteration)
	}

	if d.metrics != nil {
		d.metrics.PredictionsInc()
		d.metrics.PopulationSizeSet(float64(d.pop.Len()), float64(d.pop.NumerositySum()))
	}
	return d.prediction[0]
}

// Forget drops the cached input and prediction. Callers use it when a step
// is skipped without a Run.
func (d *Driver) Forget() {
	d.input = nil
	d.prediction = nil
}

// warnUnnormalized logs once when raw inputs leave the unit interval that
// mutation clamps condition centers to.
func (d *Driver) warnUnnormalized(iteration int, forecasts []float64) {
	if d.warnedRaw || d.p.normalizing() {
		return
	}
	for _, f := range forecasts {
		if f < 0 || f > 1 {
			d.warnedRaw = true
			log.Warn().
				Int("iteration", iteration).
				Float64("value", f).
				Msg("Forecast outside [0,1] with input normalization disabled; set inputLow/inputHigh")
			return
		}
	}
}

func (d *Driver) match(state *State, iteration int) {
	d.ms.Match(state, d.pop)
	if cl := d.ms.EnsureCoverage(d.pop, iteration); cl != nil && d.metrics != nil {
		d.metrics.CoveringsInc()
	}
}

func (d *Driver) startCondensation(iteration int) {
	d.evo.SetCondensation(true)
	if d.p.CompactionType%2 == 1 {
		d.ms.SetNumClosest(true)
	}
	absorbed := 0
	if d.p.CompactionType >= 2 {
		absorbed = d.pop.ApplyGreedyCompaction()
		if d.metrics != nil {
			d.metrics.CompactionsInc()
		}
	}
	log.Info().
		Int("iteration", iteration).
		Int("compaction_type", d.p.CompactionType).
		Int("absorbed", absorbed).
		Int("classifiers", d.pop.Len()).
		Msg("Condensation started")
}

// ReceiveReward learns from the true value of the input cached by the last
// Run. Without a cached input it does nothing.
func (d *Driver) ReceiveReward(iteration int, value float64) {
	if d.input == nil {
		return
	}
	truth := []float64{value}
	state := NewState(d.input, truth)
	d.match(state, iteration)

	d.eval.Evaluate(d.pop, d.ms, iteration, truth, d.prediction)
	d.ms.UpdateClassifiers()
	res := d.evo.Evolve(d.pop, d.ms, state, iteration)

	if d.metrics != nil {
		d.metrics.RewardsInc()
		d.metrics.MatchSetSizeObserve(float64(d.ms.Len()))
		d.metrics.PredictionErrorObserve(math.Abs(value - d.prediction[0]))
		if res.Ran {
			d.metrics.GARunsInc()
			d.metrics.DeletionsAdd(float64(res.Deleted))
			d.metrics.SubsumptionsAdd(float64(res.Subsumed + res.Merged))
		}
		d.metrics.PopulationSizeSet(float64(d.pop.Len()), float64(d.pop.NumerositySum()))
	}
	d.notify(iteration, state)
}

func (d *Driver) notify(iteration int, state *State) {
	if len(d.observers) == 0 {
		return
	}
	s := Snapshot{
		Iteration:   iteration,
		Population:  viewsOf(d.pop.ShallowCopy()),
		MatchSet:    viewsOf(d.ms.ShallowCopy()),
		Input:       append([]float64(nil), state.ConditionInput...),
		Output:      append([]float64(nil), state.Output...),
		Performance: d.eval.CurrentPerformance(),
	}
	for _, o := range d.observers {
		o.StateChanged(s)
	}
}

// Prediction returns the last prediction, or NaN before the first Run.
func (d *Driver) Prediction() float64 {
	if d.prediction == nil {
		return math.NaN()
	}
	return d.prediction[0]
}

func (d *Driver) Params() Params { return *d.p }

func (d *Driver) Population() *Population { return d.pop }

func (d *Driver) MatchSet() *MatchSet { return d.ms }

func (d *Driver) Evolution() *Evolution { return d.evo }

func (d *Driver) Evaluator() *Evaluator { return d.eval }

// PopulationSnapshot encodes the current population for persistence.
func (d *Driver) PopulationSnapshot() PopulationSnapshot {
	s := EncodePopulation(d.pop)
	if s.InputDim == 0 {
		s.InputDim = d.inputDim
	}
	return s
}
