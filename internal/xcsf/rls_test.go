package xcsf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRLS_ConvergesOnLinearStream(t *testing.T) {
	p := DefaultParams()
	p.LambdaRLS = 1
	rls := NewRLSPrediction(2, []float64{0}, p)
	rng := NewRandom(3)

	for i := 0; i < 1000; i++ {
		x := []float64{rng.Float64(), rng.Float64()}
		y := 2*x[0] - x[1] + 3
		rls.Update(x, []float64{y})
	}

	coef := rls.Coefficients()
	require.Len(t, coef, 1)
	want := []float64{3, 2, -1}
	for i, w := range want {
		assert.InDelta(t, w, coef[0][i], 1e-3, "coefficient %d", i)
	}
	assert.InDelta(t, 2*0.3-0.6+3, rls.Predict([]float64{0.3, 0.6})[0], 1e-3)
}

func TestRLS_InitialState(t *testing.T) {
	p := DefaultParams()
	rls := NewRLSPrediction(2, []float64{1.5}, p)
	assert.Equal(t, [][]float64{{1.5, 0, 0}}, rls.Coefficients())
	assert.Equal(t, 1.5, rls.Predict([]float64{0.4, -0.2})[0])

	gain := rls.Gain()
	for i := range gain {
		for j := range gain[i] {
			if i == j {
				assert.Equal(t, p.RLSInitScaleFactor, gain[i][j])
			} else {
				assert.Zero(t, gain[i][j])
			}
		}
	}

	p.PredictionOffsetValue = 0
	noOffset := NewRLSPrediction(2, []float64{1.5}, p)
	assert.Equal(t, [][]float64{{0, 0, 0}}, noOffset.Coefficients())
}

func TestRLS_PredictDoesNotChangeState(t *testing.T) {
	rls := NewRLSPrediction(1, []float64{0.5}, DefaultParams())
	rls.Update([]float64{0.2}, []float64{1})
	before := rls.Coefficients()
	a := rls.Predict([]float64{0.3})
	b := rls.Predict([]float64{0.3})
	assert.Equal(t, a, b)
	assert.Equal(t, before, rls.Coefficients())
}

func TestRLS_ResetGainMatrix(t *testing.T) {
	p := DefaultParams()
	rls := NewRLSPrediction(1, []float64{0}, p)
	for i := 0; i < 20; i++ {
		rls.Update([]float64{float64(i) / 20}, []float64{1})
	}
	before := rls.Gain()
	rls.ResetGainMatrix()
	after := rls.Gain()
	for i := range before {
		assert.InDelta(t, before[i][i]+p.RLSInitScaleFactor, after[i][i], 1e-9)
	}
	assert.Equal(t, before[0][1], after[0][1])
}

func TestRLS_CloneResetsGain(t *testing.T) {
	p := DefaultParams()
	rls := NewRLSPrediction(1, []float64{0}, p)
	rls.Update([]float64{0.5}, []float64{2})
	clone := rls.Clone()

	assert.Equal(t, rls.Coefficients(), clone.Coefficients())
	assert.Equal(t, [][]float64{{p.RLSInitScaleFactor, 0}, {0, p.RLSInitScaleFactor}}, clone.Gain())

	clone.SetCoefficient(0, 0, 42)
	assert.NotEqual(t, 42.0, rls.Coefficients()[0][0])
}
