package xcsf

import (
	"math"
)

// Classifier bundles a condition, a local predictor and the bookkeeping used
// by the evolutionary search. Identity is by pointer.
type Classifier struct {
	condition  *Condition
	prediction *RLSPrediction

	fitness         float64
	numerosity      int
	experience      int
	setSizeEstimate float64
	predictionError float64
	timestamp       int

	p      *Params
	offset []float64
}

// NewClassifier covers state: the condition is centered on the condition
// input and the predictor starts at the state's output.
func NewClassifier(state *State, timestamp int, p *Params, rng *Random) *Classifier {
	return &Classifier{
		condition:       NewCoveringCondition(state.ConditionInput, *p, rng),
		prediction:      NewRLSPrediction(len(state.PredictionInput), state.Output, *p),
		fitness:         p.FitnessIni,
		numerosity:      1,
		setSizeEstimate: 1,
		predictionError: p.PredictionErrorIni,
		timestamp:       timestamp,
		p:               p,
		offset:          make([]float64, len(state.ConditionInput)),
	}
}

func (cl *Classifier) Condition() *Condition      { return cl.condition }
func (cl *Classifier) Prediction() *RLSPrediction { return cl.prediction }
func (cl *Classifier) Fitness() float64           { return cl.fitness }
func (cl *Classifier) Numerosity() int            { return cl.numerosity }
func (cl *Classifier) Experience() int            { return cl.experience }
func (cl *Classifier) SetSizeEstimate() float64   { return cl.setSizeEstimate }
func (cl *Classifier) PredictionError() float64   { return cl.predictionError }
func (cl *Classifier) Timestamp() int             { return cl.timestamp }
func (cl *Classifier) Generality() float64        { return cl.condition.Volume() }

func (cl *Classifier) DoesMatch(state *State) bool {
	return cl.condition.DoesMatch(state.ConditionInput)
}

func (cl *Classifier) Activity(state *State) float64 {
	return cl.condition.Activity(state.ConditionInput)
}

// Predict evaluates the local model. When condition and prediction input are
// the same, the model sees the offset from the condition center.
func (cl *Classifier) Predict(state *State) []float64 {
	return cl.prediction.Predict(cl.predictionInput(state))
}

func (cl *Classifier) predictionInput(state *State) []float64 {
	if !state.SameInput {
		return state.PredictionInput
	}
	cl.condition.OffsetVector(state.ConditionInput, cl.offset)
	return cl.offset
}

// Update1 increments experience, trains the predictor and refreshes the
// prediction error estimate.
func (cl *Classifier) Update1(state *State) {
	cl.experience++
	cl.prediction.Update(cl.predictionInput(state), state.Output)

	var absErr float64
	for i, v := range cl.Predict(state) {
		absErr += math.Abs(v - state.Output[i])
	}
	cl.predictionError += cl.rate() * (absErr - cl.predictionError)
}

// Update2 refreshes the set size estimate and the fitness; it needs the
// match-set-wide sums computed after every member ran Update1.
func (cl *Classifier) Update2(accuracy, accuracySum float64, numerositySum int) {
	cl.setSizeEstimate += cl.rate() * (float64(numerositySum) - cl.setSizeEstimate)
	cl.fitness += cl.p.Beta * (accuracy*float64(cl.numerosity)/accuracySum - cl.fitness)
}

// rate is the arithmetic-mean rate while young, beta afterwards.
func (cl *Classifier) rate() float64 {
	if float64(cl.experience) < 1/cl.p.Beta {
		return 1 / float64(cl.experience)
	}
	return cl.p.Beta
}

// Accuracy is 1 below epsilon0 and decays as a power law above.
func (cl *Classifier) Accuracy() float64 {
	if cl.predictionError <= cl.p.Epsilon0 {
		return 1
	}
	return cl.p.Alpha * math.Pow(cl.p.Epsilon0/cl.predictionError, cl.p.Nu)
}

// CanSubsume reports whether the classifier is experienced and accurate.
func (cl *Classifier) CanSubsume() bool {
	return cl.experience > cl.p.ThetaSub && cl.predictionError < cl.p.Epsilon0
}

func (cl *Classifier) IsMoreGeneral(other *Classifier) bool {
	return cl.condition.IsMoreGeneral(other.condition)
}

// DeletionVote weights the classifier for roulette deletion. Young or
// sufficiently fit classifiers are not penalized for low fitness.
func (cl *Classifier) DeletionVote(meanFitness float64) float64 {
	vote := cl.setSizeEstimate * float64(cl.numerosity)
	micro := cl.fitness / float64(cl.numerosity)
	if micro >= cl.p.Delta*meanFitness || cl.experience < cl.p.ThetaDel {
		return vote
	}
	return vote * meanFitness / micro
}

// Clone creates a single offspring copy: numerosity 1, experience 0, fitness
// per micro-classifier and a fresh gain matrix.
func (cl *Classifier) Clone() *Classifier {
	return &Classifier{
		condition:       cl.condition.Clone(),
		prediction:      cl.prediction.Clone(),
		fitness:         cl.fitness / float64(cl.numerosity),
		numerosity:      1,
		setSizeEstimate: cl.setSizeEstimate,
		predictionError: cl.predictionError,
		timestamp:       cl.timestamp,
		p:               cl.p,
		offset:          make([]float64, len(cl.offset)),
	}
}

func (cl *Classifier) addNumerosity(n int)            { cl.numerosity += n }
func (cl *Classifier) setTimestamp(t int)             { cl.timestamp = t }
func (cl *Classifier) scaleFitness(f float64)         { cl.fitness *= f }
func (cl *Classifier) scalePredictionError(f float64) { cl.predictionError *= f }
