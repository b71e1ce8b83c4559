package xcsf

import (
	"gonum.org/v1/gonum/mat"
)

// RLSPrediction is a recursive-least-squares linear model
//
//	y = w0*offset + sum_i w_i*x_i
//
// with one coefficient row per output dimension and a shared gain matrix
// approximating the inverse input covariance.
type RLSPrediction struct {
	coefficients *mat.Dense // out x (in+1)
	gain         *mat.Dense // (in+1) x (in+1)

	offset    float64
	lambda    float64
	initScale float64
}

// NewRLSPrediction creates a predictor for inputDim inputs. The offset
// coefficient starts at the initial target when the offset term is enabled,
// all slopes start at zero.
func NewRLSPrediction(inputDim int, initial []float64, p Params) *RLSPrediction {
	r := &RLSPrediction{
		coefficients: mat.NewDense(len(initial), inputDim+1, nil),
		gain:         mat.NewDense(inputDim+1, inputDim+1, nil),
		offset:       p.PredictionOffsetValue,
		lambda:       p.LambdaRLS,
		initScale:    p.RLSInitScaleFactor,
	}
	if r.offset > 0 {
		for o, v := range initial {
			r.coefficients.Set(o, 0, v)
		}
	}
	r.initGain()
	return r
}

func (r *RLSPrediction) initGain() {
	r.gain.Zero()
	n, _ := r.gain.Dims()
	for i := 0; i < n; i++ {
		r.gain.Set(i, i, r.initScale)
	}
}

// Predict evaluates the linear model on x without changing any state.
func (r *RLSPrediction) Predict(x []float64) []float64 {
	outDim, inDim := r.coefficients.Dims()
	out := make([]float64, outDim)
	for o := 0; o < outDim; o++ {
		v := r.coefficients.At(o, 0) * r.offset
		for i := 1; i < inDim; i++ {
			v += r.coefficients.At(o, i) * x[i-1]
		}
		out[o] = v
	}
	return out
}

// Update performs one RLS step towards target y for input x.
func (r *RLSPrediction) Update(x, y []float64) {
	pred := r.Predict(x)
	_, inDim := r.coefficients.Dims()

	ext := mat.NewVecDense(inDim, nil)
	ext.SetVec(0, r.offset)
	for i, v := range x {
		ext.SetVec(i+1, v)
	}

	var g mat.VecDense
	g.MulVec(r.gain, ext)
	divisor := r.lambda + mat.Dot(ext, &g)
	g.ScaleVec(1/divisor, &g)

	for o := range pred {
		e := y[o] - pred[o]
		for i := 0; i < inDim; i++ {
			r.coefficients.Set(o, i, r.coefficients.At(o, i)+e*g.AtVec(i))
		}
	}

	// P = (I - g*ext^T) * P / lambda
	var outer mat.Dense
	outer.Outer(1, &g, ext)
	m := mat.NewDense(inDim, inDim, nil)
	for i := 0; i < inDim; i++ {
		m.Set(i, i, 1)
	}
	m.Sub(m, &outer)
	var next mat.Dense
	next.Mul(m, r.gain)
	r.gain.Scale(1/r.lambda, &next)
}

// ResetGainMatrix adds the initial scale back onto the diagonal.
func (r *RLSPrediction) ResetGainMatrix() {
	n, _ := r.gain.Dims()
	for i := 0; i < n; i++ {
		r.gain.Set(i, i, r.gain.At(i, i)+r.initScale)
	}
}

// Coefficients returns a copy of the coefficient rows.
func (r *RLSPrediction) Coefficients() [][]float64 {
	return denseRows(r.coefficients)
}

// Gain returns a copy of the gain matrix rows.
func (r *RLSPrediction) Gain() [][]float64 {
	return denseRows(r.gain)
}

// SetCoefficient overwrites a single coefficient.
func (r *RLSPrediction) SetCoefficient(out, in int, v float64) {
	r.coefficients.Set(out, in, v)
}

// Clone copies the coefficients and starts with a fresh gain matrix.
func (r *RLSPrediction) Clone() *RLSPrediction {
	n, _ := r.gain.Dims()
	c := &RLSPrediction{
		coefficients: mat.DenseCopyOf(r.coefficients),
		gain:         mat.NewDense(n, n, nil),
		offset:       r.offset,
		lambda:       r.lambda,
		initScale:    r.initScale,
	}
	c.initGain()
	return c
}

func denseRows(m *mat.Dense) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		mat.Row(out[i], i, m)
	}
	return out
}
