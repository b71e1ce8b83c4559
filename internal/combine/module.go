package combine

import (
	"math"

	"github.com/rs/zerolog/log"
)

// Module runs the strategy chosen at construction. It drops non-finite
// forecasts before they reach the strategy, and holds a learning strategy
// back until all expected forecasts are present, since its input dimension
// is fixed.
type Module struct {
	strategy Strategy
	expected int
}

func NewModule(s Strategy, expected int) *Module {
	return &Module{strategy: s, expected: expected}
}

func (m *Module) Strategy() Strategy { return m.strategy }

func (m *Module) Expected() int { return m.expected }

// Combine returns the combined forecast for step, or NaN when the strategy
// cannot produce one yet. A learner held back forgets its previous input, so
// a Reward for this step is a no-op.
func (m *Module) Combine(step int, forecasts []float64) float64 {
	valid := Finite(forecasts)

	if l, ok := m.strategy.(Learner); ok && len(valid) != m.expected {
		l.Forget()
		log.Debug().
			Int("step", step).
			Int("forecasts", len(valid)).
			Int("expected", m.expected).
			Msg("Not enough forecasts to combine")
		return math.NaN()
	}

	return m.strategy.Combine(step, valid)
}

// Reward passes the true value of step to a learning strategy. It reports
// whether the strategy learns.
func (m *Module) Reward(step int, value float64) bool {
	l, ok := m.strategy.(Learner)
	if !ok {
		return false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		log.Warn().Int("step", step).Float64("value", value).Msg("Ignoring non-finite reward")
		return true
	}
	l.Reward(step, value)
	return true
}

// Reset starts a new experiment for a learning strategy.
func (m *Module) Reset() {
	if l, ok := m.strategy.(Learner); ok {
		l.Reset()
	}
}

// Finite returns the finite values of forecasts in order.
func Finite(forecasts []float64) []float64 {
	out := make([]float64, 0, len(forecasts))
	for _, f := range forecasts {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		out = append(out, f)
	}
	return out
}
