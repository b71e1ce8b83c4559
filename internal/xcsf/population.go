package xcsf

import (
	"cmp"
	"fmt"
)

// inexperiencedError is the error assumed for young classifiers when sorting
// for compaction.
const inexperiencedError = 1000

// Population owns every classifier of one experiment. The sum of
// numerosities never exceeds MaxPopSize.
type Population struct {
	Collection[*Classifier]
	p   *Params
	rng *Random
}

func NewPopulation(p *Params, rng *Random) *Population {
	return &Population{p: p, rng: rng}
}

// Add inserts a classifier. Exceeding the capacity is a programming error and
// panics.
func (pop *Population) Add(cl *Classifier) {
	if sum := pop.NumerositySum() + cl.numerosity; sum > pop.p.MaxPopSize {
		panic(fmt.Sprintf("xcsf: population numerosity %d exceeds capacity %d", sum, pop.p.MaxPopSize))
	}
	pop.Collection.Add(cl)
}

// NumerositySum is the number of micro-classifiers.
func (pop *Population) NumerositySum() int {
	var n int
	for _, cl := range pop.items {
		n += cl.numerosity
	}
	return n
}

// FindIdentical returns a live classifier with exactly the given geometry.
func (pop *Population) FindIdentical(cond *Condition) *Classifier {
	cl, ok := pop.Find(func(cl *Classifier) bool {
		return cl.numerosity > 0 && cl.condition.Equal(cond)
	})
	if !ok {
		return nil
	}
	return cl
}

// DeleteWorst removes n micro-classifiers by roulette wheel over deletion
// votes. Classifiers whose numerosity drops to zero are removed after the
// wheel has been spun n times. It returns the number of macro-classifiers
// removed.
func (pop *Population) DeleteWorst(n int) int {
	size := len(pop.items)
	if n <= 0 || size == 0 {
		return 0
	}
	var fitSum float64
	numSum := 0
	for _, cl := range pop.items {
		fitSum += cl.fitness
		numSum += cl.numerosity
	}
	if n > numSum {
		n = numSum
	}
	meanFitness := fitSum / float64(numSum)

	wheel := make([]float64, size)
	wheel[0] = pop.items[0].DeletionVote(meanFitness)
	for i := 1; i < size; i++ {
		wheel[i] = wheel[i-1] + pop.items[i].DeletionVote(meanFitness)
	}

	var removed []int
	for deleted := 0; deleted < n; {
		idx := searchWheel(wheel, pop.rng.Float64()*wheel[size-1])
		cl := pop.items[idx]
		if cl.numerosity == 0 {
			continue
		}
		cl.numerosity--
		if cl.numerosity == 0 {
			removed = append(removed, idx)
		}
		deleted++
	}
	pop.RemoveIndices(removed)
	return len(removed)
}

// searchWheel finds the slot of a cumulative roulette wheel containing point.
func searchWheel(wheel []float64, point float64) int {
	low, high := 0, len(wheel)-1
	for low < high {
		mid := int(uint(low+high) >> 1)
		switch {
		case point < wheel[mid]:
			high = mid
		case point > wheel[mid]:
			low = mid + 1
		default:
			return mid + 1
		}
	}
	return low
}

// ApplyGreedyCompaction sorts by experience-gated prediction error and lets
// each classifier absorb every later one that matches its center. It returns
// the number of classifiers absorbed.
func (pop *Population) ApplyGreedyCompaction() int {
	if len(pop.items) < 2 {
		return 0
	}
	key := func(cl *Classifier) float64 {
		if cl.experience < pop.p.ThetaSub {
			return inexperiencedError
		}
		return cl.predictionError
	}
	pop.SortStable(func(a, b *Classifier) int {
		return cmp.Compare(key(a), key(b))
	})

	absorbed := 0
	for i := 0; i < len(pop.items); i++ {
		low := pop.items[i]
		ref := low.condition.center
		for j := i + 1; j < len(pop.items); j++ {
			high := pop.items[j]
			if high.condition.DoesMatch(ref) {
				low.numerosity += high.numerosity
				pop.RemoveAt(j)
				j--
				absorbed++
			}
		}
	}
	return absorbed
}

// ResetGainMatrices counters estimator windup in every classifier.
func (pop *Population) ResetGainMatrices() {
	for _, cl := range pop.items {
		cl.prediction.ResetGainMatrix()
	}
}
