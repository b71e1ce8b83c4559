package xcsf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillPopulation(t *testing.T, p *Params, rng *Random, n int) *Population {
	t.Helper()
	pop := NewPopulation(p, rng)
	for i := 0; i < n; i++ {
		input := []float64{rng.Float64(), rng.Float64()}
		pop.Add(NewClassifier(NewState(input, []float64{0}), 0, p, rng))
	}
	return pop
}

func TestPopulation_AddPanicsOverCapacity(t *testing.T) {
	p := DefaultParams()
	p.MaxPopSize = 3
	rng := NewRandom(1)
	pop := fillPopulation(t, &p, rng, 3)
	require.Equal(t, 3, pop.NumerositySum())

	extra := NewClassifier(NewState([]float64{0.1, 0.1}, []float64{0}), 0, &p, rng)
	assert.Panics(t, func() { pop.Add(extra) })
	assert.Equal(t, 3, pop.Len())
}

func TestPopulation_DeleteWorst(t *testing.T) {
	p := DefaultParams()
	rng := NewRandom(5)
	pop := fillPopulation(t, &p, rng, 10)
	for _, cl := range pop.items {
		cl.numerosity = 3
	}
	require.Equal(t, 30, pop.NumerositySum())

	pop.DeleteWorst(12)
	assert.Equal(t, 18, pop.NumerositySum())
	for _, cl := range pop.items {
		assert.GreaterOrEqual(t, cl.Numerosity(), 1)
	}
}

func TestPopulation_DeleteWorstRemovesEmptied(t *testing.T) {
	p := DefaultParams()
	rng := NewRandom(9)
	pop := fillPopulation(t, &p, rng, 5)

	removed := pop.DeleteWorst(3)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 2, pop.Len())
	assert.Equal(t, 2, pop.NumerositySum())
}

func TestPopulation_DeleteWorstPrefersHighVotes(t *testing.T) {
	p := DefaultParams()
	rng := NewRandom(13)
	pop := fillPopulation(t, &p, rng, 2)
	heavy, light := pop.items[0], pop.items[1]
	heavy.numerosity, light.numerosity = 50, 50
	heavy.setSizeEstimate = 1000
	light.setSizeEstimate = 1

	pop.DeleteWorst(40)
	assert.Less(t, heavy.Numerosity(), light.Numerosity())
}

func TestSearchWheel(t *testing.T) {
	wheel := []float64{1, 3, 6, 10}
	tests := []struct {
		point float64
		want  int
	}{
		{0.5, 0},
		{1.5, 1},
		{3, 2},
		{5.9, 2},
		{9.99, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, searchWheel(wheel, tt.point), "point %v", tt.point)
	}
}

func TestPopulation_GreedyCompaction(t *testing.T) {
	p := DefaultParams()
	rng := NewRandom(1)
	pop := NewPopulation(&p, rng)

	mk := func(center []float64, stretch float64, exp int, err float64) *Classifier {
		cl := NewClassifier(NewState(center, []float64{0}), 0, &p, rng)
		cl.condition = NewCondition(center, []float64{stretch, stretch}, []float64{0})
		cl.experience = exp
		cl.predictionError = err
		return cl
	}
	worse := mk([]float64{0.5, 0.5}, 0.2, 100, 0.5)
	best := mk([]float64{0.52, 0.5}, 0.2, 100, 0.01)
	young := mk([]float64{0.48, 0.5}, 0.2, 1, 0)
	far := mk([]float64{0.1, 0.1}, 0.05, 100, 0.2)
	for _, cl := range []*Classifier{worse, young, far, best} {
		pop.Add(cl)
	}

	absorbed := pop.ApplyGreedyCompaction()
	assert.Equal(t, 2, absorbed)
	require.Equal(t, 2, pop.Len())
	assert.Same(t, best, pop.At(0))
	assert.Same(t, far, pop.At(1))
	assert.Equal(t, 3, best.Numerosity())
	assert.Equal(t, 4, pop.NumerositySum())
}

func TestPopulation_FindIdentical(t *testing.T) {
	p := DefaultParams()
	rng := NewRandom(2)
	pop := fillPopulation(t, &p, rng, 4)
	target := pop.At(2)

	assert.Same(t, target, pop.FindIdentical(target.Condition().Clone()))
	other := NewCondition([]float64{0.9, 0.9}, []float64{0.1, 0.1}, []float64{0})
	assert.Nil(t, pop.FindIdentical(other))
}
