package combine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast-combiner/internal/xcsf"
)

func TestNew(t *testing.T) {
	tests := []struct {
		kind    string
		want    string
		learns  bool
		wantErr bool
	}{
		{"xcsf", "xcsf", true, false},
		{"XCSF", "xcsf", true, false},
		{"average", "average", false, false},
		{"median", "median", false, false},
		{"outperformance", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			s, err := New(tt.kind, xcsf.DefaultParams())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Name())
			_, learns := s.(Learner)
			assert.Equal(t, tt.learns, learns)
		})
	}
}

func TestNew_InvalidParams(t *testing.T) {
	p := xcsf.DefaultParams()
	p.MaxPopSize = 0

	_, err := New("xcsf", p)
	assert.Error(t, err)

	// the fallbacks do not use learning parameters
	_, err = New("median", p)
	assert.NoError(t, err)
}

func TestAverage(t *testing.T) {
	tests := []struct {
		name      string
		forecasts []float64
		want      float64
	}{
		{"single", []float64{4}, 4},
		{"pair", []float64{1, 2}, 1.5},
		{"negative", []float64{-1, 1, 3}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Average{}.Combine(0, tt.forecasts), 1e-12)
		})
	}
	assert.True(t, math.IsNaN(Average{}.Combine(0, nil)))
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name      string
		forecasts []float64
		want      float64
	}{
		{"single", []float64{4}, 4},
		{"odd", []float64{5, 1, 3}, 3},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"duplicates", []float64{2, 2, 9}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := append([]float64(nil), tt.forecasts...)
			assert.Equal(t, tt.want, Median{}.Combine(0, input))
			assert.Equal(t, tt.forecasts, input, "input must not be reordered")
		})
	}
	assert.True(t, math.IsNaN(Median{}.Combine(0, nil)))
}

func TestModule_FiltersNonFinite(t *testing.T) {
	m := NewModule(Average{}, 3)

	got := m.Combine(0, []float64{1, math.NaN(), 3, math.Inf(1)})
	assert.Equal(t, 2.0, got)

	assert.True(t, math.IsNaN(m.Combine(1, []float64{math.NaN()})))
	assert.False(t, m.Reward(0, 1), "fallback strategies do not learn")
}

func TestModule_LearnerWaitsForAllForecasts(t *testing.T) {
	s, err := NewXCSF(xcsf.DefaultParams())
	require.NoError(t, err)
	m := NewModule(s, 2)

	assert.True(t, math.IsNaN(m.Combine(0, []float64{0.5})))
	assert.True(t, math.IsNaN(m.Combine(0, []float64{0.5, math.NaN()})))
	assert.Equal(t, 0, s.Driver().Population().Len(), "gated input must not reach the driver")

	got := m.Combine(1, []float64{0.5, 0.6})
	assert.False(t, math.IsNaN(got))
	assert.Greater(t, s.Driver().Population().Len(), 0)
}

func TestModule_RewardAfterHeldBackStep(t *testing.T) {
	s, err := NewXCSF(xcsf.DefaultParams())
	require.NoError(t, err)
	m := NewModule(s, 2)

	m.Combine(0, []float64{0.4, 0.6})
	require.Equal(t, 1, s.Driver().Population().Len())
	cl := s.Driver().Population().At(0)

	assert.True(t, math.IsNaN(m.Combine(1, []float64{0.4, math.NaN()})))
	assert.True(t, math.IsNaN(s.Driver().Prediction()))
	assert.True(t, m.Reward(1, 42))
	assert.Equal(t, 0, cl.Experience(), "stale input must not be trained")
}

func TestFinite(t *testing.T) {
	got := Finite([]float64{1, math.NaN(), 2, math.Inf(1), math.Inf(-1), 3})
	assert.Equal(t, []float64{1, 2, 3}, got)
	assert.Empty(t, Finite(nil))
}

func TestModule_RewardAndReset(t *testing.T) {
	var snapshots []xcsf.Snapshot
	s, err := NewXCSF(xcsf.DefaultParams(), xcsf.WithObserver(xcsf.ObserverFunc(func(snap xcsf.Snapshot) {
		snapshots = append(snapshots, snap)
	})))
	require.NoError(t, err)
	m := NewModule(s, 2)

	for i := 0; i < 10; i++ {
		m.Combine(i, []float64{0.4, 0.6})
		assert.True(t, m.Reward(i, 0.5))
	}
	assert.Len(t, snapshots, 10)

	// non-finite rewards are dropped before the driver
	assert.True(t, m.Reward(10, math.NaN()))
	assert.Len(t, snapshots, 10)

	experiment := s.Driver().Evaluator().Experiment()
	m.Reset()
	assert.Equal(t, experiment+1, s.Driver().Evaluator().Experiment())
	assert.Equal(t, 0, s.Driver().Population().Len())
	assert.True(t, math.IsNaN(s.Driver().Prediction()))
}

func TestModule_LearnsCombination(t *testing.T) {
	s, err := New("xcsf", xcsf.DefaultParams())
	require.NoError(t, err)
	m := NewModule(s, 2)

	// the truth is the lower forecast, which plain averaging misses
	var lateErr, avgErr float64
	for i := 0; i < 3000; i++ {
		a := 0.3 + 0.2*math.Sin(float64(i)/7)
		b := a + 0.2
		got := m.Combine(i, []float64{a, b})
		m.Reward(i, a)
		if i >= 2500 {
			lateErr += math.Abs(got - a)
			avgErr += math.Abs(Average{}.Combine(i, []float64{a, b}) - a)
		}
	}
	assert.Less(t, lateErr, avgErr)
}
