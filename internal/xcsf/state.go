package xcsf

// State describes one situation presented to the classifier system: the input
// used for matching, the input used by the local predictors and the target
// output. It lives for a single iteration.
type State struct {
	ConditionInput  []float64
	PredictionInput []float64
	Output          []float64
	// SameInput is set when condition and prediction input coincide; the
	// predictors then work on the offset from the condition center.
	SameInput bool
}

// NewState creates a state whose condition and prediction input are the same
// vector.
func NewState(input, output []float64) *State {
	return &State{
		ConditionInput:  input,
		PredictionInput: input,
		Output:          output,
		SameInput:       true,
	}
}

// NewSplitState creates a state with separate condition and prediction input.
func NewSplitState(conditionInput, predictionInput, output []float64) *State {
	return &State{
		ConditionInput:  conditionInput,
		PredictionInput: predictionInput,
		Output:          output,
	}
}
