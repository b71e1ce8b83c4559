package xcsf

import (
	"github.com/rs/zerolog/log"
)

// MatchSet is the per-iteration view of the population members that apply to
// the current state. It never owns its classifiers.
type MatchSet struct {
	Collection[*Classifier]
	state      *State
	numClosest bool
	p          *Params
	rng        *Random
}

func NewMatchSet(p *Params, rng *Random) *MatchSet {
	return &MatchSet{p: p, rng: rng, numClosest: p.DoNumClosestMatch}
}

// SetNumClosest switches between threshold matching and selecting the
// NumClosestMatch most active micro-classifiers.
func (ms *MatchSet) SetNumClosest(v bool) { ms.numClosest = v }

func (ms *MatchSet) NumClosest() bool { return ms.numClosest }

func (ms *MatchSet) State() *State { return ms.state }

// Match rebuilds the set for state.
func (ms *MatchSet) Match(state *State, pop *Population) {
	ms.Clear()
	ms.state = state
	if !ms.numClosest {
		for _, cl := range pop.items {
			if cl.DoesMatch(state) {
				ms.Add(cl)
			}
		}
		return
	}

	size := pop.Len()
	if size == 0 {
		return
	}
	cls := pop.ShallowCopy()
	votes := make([]float64, size)
	nums := make([]int, size)
	for i, cl := range cls {
		votes[i] = cl.Activity(state)
		nums[i] = cl.numerosity
	}
	n := selectClosest(votes, nums, cls, ms.p.NumClosestMatch, ms.rng)
	for _, cl := range cls[:n] {
		ms.Add(cl)
	}
}

// EnsureCoverage creates a classifier for the current state when nothing
// matched, making room in the population first. It returns the new
// classifier or nil.
func (ms *MatchSet) EnsureCoverage(pop *Population, iteration int) *Classifier {
	if ms.Len() > 0 {
		return nil
	}
	cl := NewClassifier(ms.state, iteration, ms.p, ms.rng)
	ms.Add(cl)
	if excess := pop.NumerositySum() + 1 - ms.p.MaxPopSize; excess > 0 {
		pop.DeleteWorst(excess)
	}
	pop.Add(cl)
	log.Debug().
		Int("iteration", iteration).
		Floats64("center", cl.condition.center).
		Msg("covered state")
	return cl
}

// AveragePrediction is the fitness-weighted mean of the members' predictions.
func (ms *MatchSet) AveragePrediction() []float64 {
	if ms.Len() == 0 {
		return nil
	}
	var avg []float64
	var fitSum float64
	for _, cl := range ms.items {
		pred := cl.Predict(ms.state)
		if avg == nil {
			avg = make([]float64, len(pred))
		}
		for i, v := range pred {
			avg[i] += v * cl.fitness
		}
		fitSum += cl.fitness
	}
	for i := range avg {
		avg[i] /= fitSum
	}
	return avg
}

// UpdateClassifiers trains every member on the current state. Fitness needs
// the set-wide accuracy sum, so it runs in a second pass.
func (ms *MatchSet) UpdateClassifiers() {
	accuracies := make([]float64, len(ms.items))
	var accSum float64
	numSum := 0
	for i, cl := range ms.items {
		cl.Update1(ms.state)
		accuracies[i] = cl.Accuracy()
		accSum += accuracies[i] * float64(cl.numerosity)
		numSum += cl.numerosity
	}
	for i, cl := range ms.items {
		cl.Update2(accuracies[i], accSum, numSum)
	}
}

// NumerositySum is the number of micro-classifiers in the set.
func (ms *MatchSet) NumerositySum() int {
	var n int
	for _, cl := range ms.items {
		n += cl.numerosity
	}
	return n
}

// pruneDead drops members that were deleted from the population.
func (ms *MatchSet) pruneDead() {
	var dead []int
	for i, cl := range ms.items {
		if cl.numerosity == 0 {
			dead = append(dead, i)
		}
	}
	ms.RemoveIndices(dead)
}

// FindIdentical returns a live member with exactly the given geometry.
func (ms *MatchSet) FindIdentical(cond *Condition) *Classifier {
	cl, ok := ms.Find(func(cl *Classifier) bool {
		return cl.numerosity > 0 && cl.condition.Equal(cond)
	})
	if !ok {
		return nil
	}
	return cl
}
