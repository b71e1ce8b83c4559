package xcsf

import (
	"fmt"
)

// Params holds every tunable of the classifier system. A Params value is
// copied into the Driver at construction and never changes afterwards.
type Params struct {
	// Population
	MaxPopSize int `yaml:"maxPopSize"`

	// Accuracy and update rates
	Alpha    float64 `yaml:"alpha"`
	Beta     float64 `yaml:"beta"`
	Delta    float64 `yaml:"delta"`
	Nu       float64 `yaml:"nu"`
	Epsilon0 float64 `yaml:"epsilon0"`

	// Covering geometry
	MinConditionStretch float64 `yaml:"minConditionStretch"`
	CoverConditionRange float64 `yaml:"coverConditionRange"`

	// Recursive least squares
	RLSInitScaleFactor    float64 `yaml:"rlsInitScaleFactor"`
	LambdaRLS             float64 `yaml:"lambdaRLS"`
	PredictionOffsetValue float64 `yaml:"predictionOffsetValue"`
	ResetRLSAfterSteps    int     `yaml:"resetRLSAfterSteps"`

	// Offspring and initial values
	PredictionErrorReduction float64 `yaml:"predictionErrorReduction"`
	FitnessReduction         float64 `yaml:"fitnessReduction"`
	PredictionErrorIni       float64 `yaml:"predictionErrorIni"`
	FitnessIni               float64 `yaml:"fitnessIni"`

	// Evolution
	ThetaGA         float64 `yaml:"thetaGA"`
	SelectionType   float64 `yaml:"selectionType"`
	PM              float64 `yaml:"pM"`
	PX              float64 `yaml:"pX"`
	ThetaDel        int     `yaml:"thetaDel"`
	ThetaSub        int     `yaml:"thetaSub"`
	DoGASubsumption bool    `yaml:"doGASubsumption"`

	// Condensation and matching
	StartCompaction   int  `yaml:"startCompaction"`
	CompactionType    int  `yaml:"compactionType"`
	DoNumClosestMatch bool `yaml:"doNumClosestMatch"`
	NumClosestMatch   int  `yaml:"numClosestMatch"`

	// Input normalization; InputLow == InputHigh disables it.
	InputLow  float64 `yaml:"inputLow"`
	InputHigh float64 `yaml:"inputHigh"`

	// Telemetry
	AverageExploitTrials int `yaml:"averageExploitTrials"`

	Seed int64 `yaml:"seed"`
}

// DefaultParams returns the reference parameter set.
func DefaultParams() Params {
	return Params{
		MaxPopSize:               200,
		Alpha:                    1,
		Beta:                     0.1,
		Delta:                    0.1,
		Nu:                       5,
		Epsilon0:                 0.01,
		MinConditionStretch:      0,
		CoverConditionRange:      0.5,
		RLSInitScaleFactor:       1000,
		LambdaRLS:                1,
		PredictionOffsetValue:    1,
		ResetRLSAfterSteps:       0,
		PredictionErrorReduction: 1,
		FitnessReduction:         0.1,
		PredictionErrorIni:       0,
		FitnessIni:               0.01,
		ThetaGA:                  50,
		SelectionType:            0.4,
		PM:                       0.05,
		PX:                       1,
		ThetaDel:                 20,
		ThetaSub:                 20,
		DoGASubsumption:          true,
		StartCompaction:          0,
		CompactionType:           0,
		DoNumClosestMatch:        false,
		NumClosestMatch:          20,
		AverageExploitTrials:     75,
		Seed:                     101,
	}
}

// Validate checks the parameter ranges the algorithm relies on.
func (p Params) Validate() error {
	if p.MaxPopSize < selectionSize {
		return fmt.Errorf("maxPopSize must be at least %d, got %d", selectionSize, p.MaxPopSize)
	}
	if p.Beta <= 0 || p.Beta > 1 {
		return fmt.Errorf("beta must be in (0, 1], got %f", p.Beta)
	}
	if p.Alpha <= 0 || p.Alpha > 1 {
		return fmt.Errorf("alpha must be in (0, 1], got %f", p.Alpha)
	}
	if p.Delta < 0 || p.Delta > 1 {
		return fmt.Errorf("delta must be in [0, 1], got %f", p.Delta)
	}
	if p.Epsilon0 <= 0 {
		return fmt.Errorf("epsilon0 must be positive, got %f", p.Epsilon0)
	}
	if p.Nu <= 0 {
		return fmt.Errorf("nu must be positive, got %f", p.Nu)
	}
	if p.MinConditionStretch < 0 || p.CoverConditionRange < 0 {
		return fmt.Errorf("covering stretch must not be negative (min %f, range %f)", p.MinConditionStretch, p.CoverConditionRange)
	}
	if p.MinConditionStretch+p.CoverConditionRange <= 0 {
		return fmt.Errorf("covering would create zero-stretch conditions")
	}
	if p.RLSInitScaleFactor <= 0 {
		return fmt.Errorf("rlsInitScaleFactor must be positive, got %f", p.RLSInitScaleFactor)
	}
	if p.LambdaRLS <= 0 || p.LambdaRLS > 1 {
		return fmt.Errorf("lambdaRLS must be in (0, 1], got %f", p.LambdaRLS)
	}
	if p.SelectionType < 0 || p.SelectionType > 1 {
		return fmt.Errorf("selectionType must be 0 (roulette) or in (0, 1] (tournament), got %f", p.SelectionType)
	}
	if p.PM < 0 || p.PM > 1 {
		return fmt.Errorf("pM must be in [0, 1], got %f", p.PM)
	}
	if p.PX < 0 || p.PX > 2 {
		return fmt.Errorf("pX must be in [0, 2], got %f", p.PX)
	}
	if p.ThetaGA < 0 || p.ThetaDel < 0 || p.ThetaSub < 0 {
		return fmt.Errorf("thresholds must not be negative")
	}
	if p.CompactionType < 0 || p.CompactionType > 3 {
		return fmt.Errorf("compactionType must be between 0 and 3, got %d", p.CompactionType)
	}
	if p.StartCompaction < 0 || p.ResetRLSAfterSteps < 0 {
		return fmt.Errorf("checkpoints must not be negative")
	}
	if p.DoNumClosestMatch || p.CompactionType%2 == 1 {
		if p.NumClosestMatch < 1 {
			return fmt.Errorf("numClosestMatch must be positive, got %d", p.NumClosestMatch)
		}
	}
	if p.InputHigh < p.InputLow {
		return fmt.Errorf("inputHigh (%f) must not be below inputLow (%f)", p.InputHigh, p.InputLow)
	}
	if p.AverageExploitTrials < 1 {
		return fmt.Errorf("averageExploitTrials must be positive, got %d", p.AverageExploitTrials)
	}
	return nil
}

func (p Params) normalizing() bool { return p.InputHigh != p.InputLow }

// normalize maps raw forecasts into the unit cube when bounds are configured.
func (p Params) normalize(raw []float64) []float64 {
	out := make([]float64, len(raw))
	if !p.normalizing() {
		copy(out, raw)
		return out
	}
	span := p.InputHigh - p.InputLow
	for i, v := range raw {
		out[i] = (v - p.InputLow) / span
	}
	return out
}
