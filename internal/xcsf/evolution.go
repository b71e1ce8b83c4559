package xcsf

import (
	"math"
)

const (
	centerLowerBound   = 0.0
	centerUpperBound   = 1.0
	rotationUpperBound = 2 * math.Pi
	// number of parents selected per GA run
	selectionSize = 2
)

// Evolution runs the steady-state genetic algorithm on the match set.
type Evolution struct {
	p            *Params
	rng          *Random
	condensation bool
}

// EvolveResult reports what one Evolve call did.
type EvolveResult struct {
	Ran       bool
	Deleted   int // micro-classifiers deleted to make room
	Subsumed  int // offspring absorbed by a more general classifier
	Merged    int // offspring merged into an identical classifier
	Inserted  int // offspring added as new classifiers
	Offspring []*Classifier
}

func NewEvolution(p *Params, rng *Random) *Evolution {
	return &Evolution{p: p, rng: rng}
}

// SetCondensation disables crossover and mutation; offspring are then plain
// clones of their parents.
func (e *Evolution) SetCondensation(v bool) { e.condensation = v }

func (e *Evolution) Condensation() bool { return e.condensation }

// Evolve runs the GA when the numerosity-weighted mean timestamp of the match
// set is at least ThetaGA iterations old.
func (e *Evolution) Evolve(pop *Population, ms *MatchSet, state *State, iteration int) EvolveResult {
	var res EvolveResult
	var fitSum, tsSum float64
	numSum := 0
	for _, cl := range ms.items {
		fitSum += cl.fitness
		tsSum += float64(cl.timestamp * cl.numerosity)
		numSum += cl.numerosity
	}
	if numSum == 0 {
		return res
	}
	if float64(iteration)-tsSum/float64(numSum) < e.p.ThetaGA {
		return res
	}
	res.Ran = true
	for _, cl := range ms.items {
		cl.setTimestamp(iteration)
	}

	parents := e.selection(ms, fitSum)
	offspring := make([]*Classifier, len(parents))
	for i, cl := range parents {
		offspring[i] = cl.Clone()
	}
	if !e.condensation {
		e.crossoverAndMutation(offspring)
	}
	res.Offspring = offspring
	e.insertion(offspring, parents, ms, pop, state, &res)
	return res
}

func (e *Evolution) selection(ms *MatchSet, fitSum float64) []*Classifier {
	parents := make([]*Classifier, 0, selectionSize)
	for i := 0; i < selectionSize; i++ {
		if e.p.SelectionType == 0 {
			parents = append(parents, e.rouletteSelection(ms, fitSum))
		} else {
			parents = append(parents, e.tournamentSelection(ms))
		}
	}
	return parents
}

func (e *Evolution) rouletteSelection(ms *MatchSet, fitSum float64) *Classifier {
	choice := e.rng.Float64() * fitSum
	items := ms.items
	cl := items[0]
	sum := cl.fitness
	for i := 1; choice > sum && i < len(items); i++ {
		cl = items[i]
		sum += cl.fitness
	}
	return cl
}

// tournamentSelection lets every micro-classifier take part with probability
// SelectionType; the highest micro-fitness participant wins.
func (e *Evolution) tournamentSelection(ms *MatchSet) *Classifier {
	var winner *Classifier
	var best float64
	for winner == nil {
		for _, cl := range ms.items {
			for j := 0; j < cl.numerosity; j++ {
				if e.rng.Float64() < e.p.SelectionType {
					micro := cl.fitness / float64(cl.numerosity)
					if winner == nil || micro > best {
						winner = cl
						best = micro
						break
					}
				}
			}
		}
	}
	return winner
}

// crossoverAndMutation varies offspring pairwise, starting from the end. PX up
// to 1 is a crossover probability followed by mutation; above 1 either
// crossover (with probability PX-1) or mutation is applied.
func (e *Evolution) crossoverAndMutation(offspring []*Classifier) {
	idx := len(offspring) - 1
	for idx > 0 {
		cl1, cl2 := offspring[idx], offspring[idx-1]
		idx -= 2
		e.reduce(cl1)
		e.reduce(cl2)

		var changed1, changed2 bool
		if e.p.PX <= 1 {
			if e.rng.Float64() < e.p.PX {
				changed1 = e.uniformCrossover(cl1, cl2)
				changed2 = changed1
			}
			changed1 = e.mutate(cl1.condition) || changed1
			changed2 = e.mutate(cl2.condition) || changed2
		} else {
			if e.rng.Float64() < e.p.PX-1 {
				changed1 = e.uniformCrossover(cl1, cl2)
				changed2 = changed1
			} else {
				changed1 = e.mutate(cl1.condition)
				changed2 = e.mutate(cl2.condition)
			}
		}
		if changed1 {
			cl1.condition.RecalculateTransform()
		}
		if changed2 {
			cl2.condition.RecalculateTransform()
		}
	}
	if idx == 0 {
		cl := offspring[0]
		e.reduce(cl)
		if e.mutate(cl.condition) {
			cl.condition.RecalculateTransform()
		}
	}
}

func (e *Evolution) reduce(cl *Classifier) {
	cl.scaleFitness(e.p.FitnessReduction)
	cl.scalePredictionError(e.p.PredictionErrorReduction)
}

// uniformCrossover averages fitness, error and coefficients of both
// offspring and swaps every geometry component with probability 0.5.
func (e *Evolution) uniformCrossover(cl1, cl2 *Classifier) bool {
	avgErr := (cl1.predictionError + cl2.predictionError) / 2
	cl1.predictionError, cl2.predictionError = avgErr, avgErr
	avgFit := (cl1.fitness + cl2.fitness) / 2
	cl1.fitness, cl2.fitness = avgFit, avgFit

	c1, c2 := cl1.prediction.coefficients, cl2.prediction.coefficients
	rows, cols := c1.Dims()
	for o := 0; o < rows; o++ {
		for i := 0; i < cols; i++ {
			avg := (c1.At(o, i) + c2.At(o, i)) / 2
			c1.Set(o, i, avg)
			c2.Set(o, i, avg)
		}
	}

	g1, g2 := cl1.condition, cl2.condition
	changed := false
	for i := range g1.center {
		if e.rng.Float64() < 0.5 {
			g1.center[i], g2.center[i] = g2.center[i], g1.center[i]
			changed = true
		}
	}
	for i := range g1.stretch {
		if e.rng.Float64() < 0.5 {
			g1.stretch[i], g2.stretch[i] = g2.stretch[i], g1.stretch[i]
			changed = true
		}
	}
	for i := range g1.angles {
		if e.rng.Float64() < 0.5 {
			g1.angles[i], g2.angles[i] = g2.angles[i], g1.angles[i]
			changed = true
		}
	}
	return changed
}

// mutate perturbs the condition in place: the center creeps by a vector that
// is shrunk to stay inside the current ellipsoid, stretches scale within
// [0.5, 2] and angles rotate by up to 45 degrees.
func (e *Evolution) mutate(c *Condition) bool {
	n := len(c.center)
	changed := false

	move := make([]float64, n)
	moved := false
	for i := 0; i < n; i++ {
		if e.rng.Float64() < e.p.PM {
			moved = true
			if e.rng.Float64() < 0.5 {
				move[i] = e.rng.Float64()
			} else {
				move[i] = -e.rng.Float64()
			}
		}
	}
	if moved {
		changed = true
		if sq := c.RelativeSquaredDistance(move); sq > 1 {
			f := e.rng.Float64() / math.Sqrt(sq)
			for i := range move {
				move[i] *= f
			}
		}
		for i := range c.center {
			c.center[i] = math.Min(math.Max(c.center[i]+move[i], centerLowerBound), centerUpperBound)
		}
	}

	for i := range c.stretch {
		if e.rng.Float64() < e.p.PM {
			changed = true
			f := 1.0
			if e.rng.Float64() < 0.5 {
				f += e.rng.Float64()
			} else {
				f -= 0.5 * e.rng.Float64()
			}
			c.stretch[i] *= f
		}
	}

	for i := range c.angles {
		if e.rng.Float64() < e.p.PM {
			changed = true
			delta := e.rng.Float64() * math.Pi / 4
			if e.rng.Float64() < 0.5 {
				c.angles[i] += delta
			} else {
				c.angles[i] -= delta
			}
			if c.angles[i] < 0 {
				c.angles[i] += 2 * math.Pi
			} else if c.angles[i] > rotationUpperBound {
				c.angles[i] -= 2 * math.Pi
			}
		}
	}
	return changed
}

// insertion makes room for the offspring and places each of them: matching
// offspring may be subsumed, otherwise they merge into an identical
// classifier or are added to both sets.
func (e *Evolution) insertion(offspring, parents []*Classifier, ms *MatchSet, pop *Population, state *State, res *EvolveResult) {
	if excess := pop.NumerositySum() + len(offspring) - e.p.MaxPopSize; excess > 0 {
		pop.DeleteWorst(excess)
		res.Deleted = excess
		ms.pruneDead()
	}
	for _, cl := range offspring {
		matches := cl.DoesMatch(state)
		if e.p.DoGASubsumption && matches {
			e.subsume(cl, parents, ms, pop, res)
			continue
		}
		e.insert(cl, ms, pop, matches, res)
	}
}

func (e *Evolution) insert(cl *Classifier, ms *MatchSet, pop *Population, matches bool, res *EvolveResult) {
	var identical *Classifier
	if matches {
		identical = ms.FindIdentical(cl.condition)
	} else {
		identical = pop.FindIdentical(cl.condition)
	}
	if identical != nil {
		identical.addNumerosity(1)
		res.Merged++
		return
	}
	ms.Add(cl)
	pop.Add(cl)
	res.Inserted++
}

func (e *Evolution) subsume(cl *Classifier, parents []*Classifier, ms *MatchSet, pop *Population, res *EvolveResult) {
	for _, parent := range parents {
		if parent.numerosity > 0 && parent.CanSubsume() && parent.IsMoreGeneral(cl) {
			parent.addNumerosity(1)
			res.Subsumed++
			return
		}
	}
	var choices []*Classifier
	for _, m := range ms.items {
		if m.numerosity > 0 && m.CanSubsume() && m.IsMoreGeneral(cl) {
			choices = append(choices, m)
		}
	}
	if len(choices) > 0 {
		choices[e.rng.Intn(len(choices))].addNumerosity(1)
		res.Subsumed++
		return
	}
	e.insert(cl, ms, pop, true, res)
}
