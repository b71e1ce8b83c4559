package xcsf

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Header names the columns of a performance row, prefixed by the iteration.
var Header = []string{
	"Iteration", "Error",
	"Macro Classifier", "Micro Classifier", "Matchset Macro Cl.",
	"MatchSet Micro Cl.", "Pred.Error", "Fitness",
	"Generality", "Experience", "SetSizeEstimate",
	"Timestamp", "Individual Error",
}

// fixed columns before the per-output errors
const performanceColumns = 11

// Evaluator aggregates prediction quality over a sliding window of
// iterations. Whenever the window wraps it appends one performance row for
// the current experiment.
type Evaluator struct {
	window int

	errors     [][]float64
	msSize     []int
	msNumSum   []int
	experiment int

	// performance[experiment][block]
	performance [][][]float64
}

func NewEvaluator(window int) *Evaluator {
	return &Evaluator{
		window:     window,
		errors:     make([][]float64, window),
		msSize:     make([]int, window),
		msNumSum:   make([]int, window),
		experiment: -1,
	}
}

// NextExperiment starts a new row of the performance matrix.
func (e *Evaluator) NextExperiment() {
	e.experiment++
	e.performance = append(e.performance, nil)
}

func (e *Evaluator) Experiment() int { return e.experiment }

func (e *Evaluator) Window() int { return e.window }

// Evaluate records the absolute error of prediction against truth and the
// match set size for iteration.
func (e *Evaluator) Evaluate(pop *Population, ms *MatchSet, iteration int, truth, prediction []float64) {
	if e.experiment < 0 {
		e.NextExperiment()
	}
	errs := make([]float64, len(prediction))
	for i := range prediction {
		errs[i] = math.Abs(truth[i] - prediction[i])
	}
	idx := ((iteration % e.window) + e.window) % e.window
	e.errors[idx] = errs
	e.msSize[idx] = ms.Len()
	e.msNumSum[idx] = ms.NumerositySum()

	// blocks close on positive multiples of the window only
	if idx != 0 || iteration <= 0 {
		return
	}
	block := iteration/e.window - 1
	rows := e.performance[e.experiment]
	for len(rows) <= block {
		rows = append(rows, nil)
	}
	rows[block] = e.row(pop, len(errs))
	e.performance[e.experiment] = rows
}

func (e *Evaluator) row(pop *Population, outDim int) []float64 {
	avgErr := make([]float64, outDim)
	var avgSize, avgNum float64
	for i := 0; i < e.window; i++ {
		if e.errors[i] != nil {
			for d := 0; d < outDim && d < len(e.errors[i]); d++ {
				avgErr[d] += e.errors[i][d]
			}
		}
		avgSize += float64(e.msSize[i])
		avgNum += float64(e.msNumSum[i])
	}
	w := float64(e.window)
	for d := range avgErr {
		avgErr[d] /= w
	}

	row := make([]float64, performanceColumns+outDim)
	for _, v := range avgErr {
		row[0] += v
	}
	row[1] = float64(pop.Len())
	numSum := pop.NumerositySum()
	row[2] = float64(numSum)
	row[3] = avgSize / w
	row[4] = avgNum / w
	for _, cl := range pop.items {
		num := float64(cl.numerosity)
		row[5] += cl.predictionError * num
		row[6] += cl.fitness
		row[7] += cl.Generality() * num
		row[8] += float64(cl.experience) * num
		row[9] += cl.setSizeEstimate * num
		row[10] += float64(cl.timestamp) * num
	}
	if numSum > 0 {
		for i := 5; i < performanceColumns; i++ {
			row[i] /= float64(numSum)
		}
	}
	copy(row[performanceColumns:], avgErr)
	return row
}

// CurrentPerformance returns a copy of the current experiment's rows.
func (e *Evaluator) CurrentPerformance() [][]float64 {
	if e.experiment < 0 {
		return nil
	}
	return copyRows(e.performance[e.experiment])
}

// Performance returns a copy of the whole matrix indexed by experiment and
// block.
func (e *Evaluator) Performance() [][][]float64 {
	out := make([][][]float64, len(e.performance))
	for i, rows := range e.performance {
		out[i] = copyRows(rows)
	}
	return out
}

// SummaryRow holds mean and sample standard deviation of one block across
// experiments.
type SummaryRow struct {
	Iteration int       `json:"iteration"`
	Mean      []float64 `json:"mean"`
	StdDev    []float64 `json:"stdDev"`
}

// Summary aggregates every block over the experiments that reached it.
func (e *Evaluator) Summary() []SummaryRow {
	blocks := 0
	for _, rows := range e.performance {
		blocks = max(blocks, len(rows))
	}
	var out []SummaryRow
	for b := 0; b < blocks; b++ {
		var present [][]float64
		for _, rows := range e.performance {
			if b < len(rows) && rows[b] != nil {
				present = append(present, rows[b])
			}
		}
		if len(present) == 0 {
			continue
		}
		cols := len(present[0])
		sr := SummaryRow{
			Iteration: (b + 1) * e.window,
			Mean:      make([]float64, cols),
			StdDev:    make([]float64, cols),
		}
		column := make([]float64, len(present))
		for c := 0; c < cols; c++ {
			for i, r := range present {
				column[i] = r[c]
			}
			sr.Mean[c] = stat.Mean(column, nil)
			if len(column) > 1 {
				sr.StdDev[c] = stat.StdDev(column, nil)
			}
		}
		out = append(out, sr)
	}
	return out
}

func copyRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		if r != nil {
			out[i] = append([]float64(nil), r...)
		}
	}
	return out
}
