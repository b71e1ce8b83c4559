package xcsf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchSet_CoverEmptyPopulation(t *testing.T) {
	p := DefaultParams()
	rng := NewRandom(4)
	pop := NewPopulation(&p, rng)
	ms := NewMatchSet(&p, rng)

	x := []float64{0.3, 0.7}
	ms.Match(NewState(x, []float64{1}), pop)
	require.Zero(t, ms.Len())

	cl := ms.EnsureCoverage(pop, 5)
	require.NotNil(t, cl)
	assert.Equal(t, 1, pop.Len())
	assert.Equal(t, 1, ms.Len())
	assert.Same(t, cl, pop.At(0))
	assert.Equal(t, x, cl.Condition().Center())
	assert.Equal(t, 5, cl.Timestamp())

	assert.Nil(t, ms.EnsureCoverage(pop, 6))
}

func TestMatchSet_CoverDeletesWhenFull(t *testing.T) {
	p := DefaultParams()
	p.MaxPopSize = 4
	p.CoverConditionRange = 0.01
	rng := NewRandom(8)
	pop := fillPopulation(t, &p, rng, 4)
	ms := NewMatchSet(&p, rng)

	ms.Match(NewState([]float64{0.999, 0.001}, []float64{0}), pop)
	require.Zero(t, ms.Len())
	ms.EnsureCoverage(pop, 1)
	assert.Equal(t, 4, pop.NumerositySum())
}

func TestMatchSet_AveragePredictionIsFitnessWeighted(t *testing.T) {
	p := DefaultParams()
	rng := NewRandom(4)
	pop := NewPopulation(&p, rng)
	x := []float64{0.5}
	a := NewClassifier(NewState(x, []float64{1}), 0, &p, rng)
	b := NewClassifier(NewState(x, []float64{4}), 0, &p, rng)
	a.fitness, b.fitness = 0.3, 0.1
	pop.Add(a)
	pop.Add(b)

	ms := NewMatchSet(&p, rng)
	ms.Match(NewState(x, nil), pop)
	require.Equal(t, 2, ms.Len())
	assert.InDelta(t, (1*0.3+4*0.1)/0.4, ms.AveragePrediction()[0], 1e-12)
}

func TestMatchSet_UpdateClassifiers(t *testing.T) {
	p := DefaultParams()
	rng := NewRandom(4)
	pop := NewPopulation(&p, rng)
	x := []float64{0.5}
	for i := 0; i < 3; i++ {
		pop.Add(NewClassifier(NewState(x, []float64{0}), 0, &p, rng))
	}
	pop.At(0).numerosity = 2

	ms := NewMatchSet(&p, rng)
	ms.Match(NewState(x, []float64{1}), pop)
	ms.UpdateClassifiers()

	var fitSum float64
	for _, cl := range ms.ShallowCopy() {
		assert.Equal(t, 1, cl.Experience())
		assert.Equal(t, 4.0, cl.SetSizeEstimate())
		fitSum += cl.Fitness()
	}
	assert.Greater(t, fitSum, 3*p.FitnessIni)
}

func TestMatchSet_NumClosest(t *testing.T) {
	p := DefaultParams()
	p.NumClosestMatch = 3
	p.CoverConditionRange = 0.01
	rng := NewRandom(17)
	pop := fillPopulation(t, &p, rng, 12)

	ms := NewMatchSet(&p, rng)
	ms.SetNumClosest(true)
	state := NewState([]float64{0.5, 0.5}, nil)
	ms.Match(state, pop)
	require.Equal(t, 3, ms.Len())

	minIn := 1.0
	for _, cl := range ms.ShallowCopy() {
		minIn = min(minIn, cl.Activity(state))
	}
	for _, cl := range pop.ShallowCopy() {
		if ms.FindIdentical(cl.Condition()) == nil {
			assert.LessOrEqual(t, cl.Activity(state), minIn)
		}
	}
}
