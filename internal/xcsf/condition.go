package xcsf

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Condition is a rotated hyperellipsoid in the normalized input space. The
// forward transform maps the unit sphere onto the ellipsoid, the inverse maps
// input points into the ellipsoid's local frame. Both are homogeneous
// (n+1)x(n+1) matrices.
type Condition struct {
	center  []float64
	stretch []float64
	angles  []float64

	transform *mat.Dense
	inverse   *mat.Dense

	// cached distance for the last evaluated input
	lastInput []float64
	sqDist    float64
	scratch   []float64
}

// NewCondition creates a condition with explicit geometry. The slices are
// copied.
func NewCondition(center, stretch, angles []float64) *Condition {
	n := len(center)
	if len(stretch) != n || len(angles) != n*(n-1)/2 {
		panic("xcsf: condition geometry does not match dimension")
	}
	c := &Condition{
		center:    append([]float64(nil), center...),
		stretch:   append([]float64(nil), stretch...),
		angles:    append([]float64(nil), angles...),
		transform: mat.NewDense(n+1, n+1, nil),
		inverse:   mat.NewDense(n+1, n+1, nil),
		scratch:   make([]float64, n),
	}
	c.RecalculateTransform()
	return c
}

// NewCoveringCondition creates a condition centered on input with random
// stretch in [minStretch, minStretch+coverRange] and random angles in [0, 2pi).
func NewCoveringCondition(input []float64, p Params, rng *Random) *Condition {
	n := len(input)
	stretch := make([]float64, n)
	for i := range stretch {
		stretch[i] = p.MinConditionStretch + rng.Float64()*p.CoverConditionRange
	}
	angles := make([]float64, n*(n-1)/2)
	for i := range angles {
		angles[i] = rng.Float64() * 2 * math.Pi
	}
	return NewCondition(input, stretch, angles)
}

func (c *Condition) Dim() int { return len(c.center) }

func (c *Condition) Center() []float64  { return c.center }
func (c *Condition) Stretch() []float64 { return c.stretch }
func (c *Condition) Angles() []float64  { return c.angles }

// Transform returns the forward transform. Callers must not modify it.
func (c *Condition) Transform() mat.Matrix { return c.transform }

// InverseTransform returns the inverse transform. Callers must not modify it.
func (c *Condition) InverseTransform() mat.Matrix { return c.inverse }

// DoesMatch reports whether point lies strictly inside the ellipsoid.
func (c *Condition) DoesMatch(point []float64) bool {
	return c.squaredDistance(point) < 1
}

// Activity is exp(-d^2) for the squared local distance d^2; 1 at the center.
func (c *Condition) Activity(point []float64) float64 {
	return math.Exp(-c.squaredDistance(point))
}

func (c *Condition) squaredDistance(point []float64) float64 {
	if c.lastInput != nil && floatsEqual(c.lastInput, point) {
		return c.sqDist
	}
	c.sqDist = c.RelativeSquaredDistance(point)
	c.lastInput = append(c.lastInput[:0], point...)
	return c.sqDist
}

// RelativeSquaredDistance maps point through the inverse transform and returns
// its squared distance to the origin of the unit sphere.
func (c *Condition) RelativeSquaredDistance(point []float64) float64 {
	n := len(c.center)
	local := c.scratch
	for i := 0; i < n; i++ {
		v := c.inverse.At(i, n)
		for j := 0; j < n; j++ {
			v += c.inverse.At(i, j) * point[j]
		}
		local[i] = v
	}
	var dist float64
	for _, v := range local {
		dist += v * v
	}
	return dist
}

// IsMoreGeneral is a conservative containment test: the unit axis vectors of
// other, expressed in this condition's local frame, must all stay inside the
// unit sphere. It is not exact ellipsoid containment.
func (c *Condition) IsMoreGeneral(other *Condition) bool {
	n := len(c.center)
	var m mat.Dense
	m.Mul(c.inverse, other.transform)
	for dim := 0; dim < n; dim++ {
		var pos, neg float64
		for row := 0; row < n; row++ {
			t := m.At(row, n)
			v := m.At(row, dim) + t
			pos += v * v
			v = -m.At(row, dim) + t
			neg += v * v
		}
		if pos > 1 || neg > 1 {
			return false
		}
	}
	return true
}

// Volume of the ellipsoid as used for generality telemetry.
func (c *Condition) Volume() float64 {
	n := len(c.center)
	v := math.Pow(2, float64(n-1)) / float64(n) * math.Pi
	for _, s := range c.stretch {
		v *= s
	}
	return v
}

// RecalculateTransform rebuilds both transforms from center, stretch and
// angles and drops the cached distance. It must be called after any change to
// the geometry.
func (c *Condition) RecalculateTransform() {
	c.setInverseTransform()
	c.setTransform()
	c.lastInput = nil
}

// setInverseTransform builds stretch^-1 * rotation^-1 * translation^-1.
func (c *Condition) setInverseTransform() {
	n := len(c.center)
	lin := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		lin.Set(i, i, 1/c.stretch[i])
	}
	a := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			cos, sin := math.Cos(c.angles[a]), math.Sin(c.angles[a])
			lin = rotateRight(lin, i, j, cos, sin)
			a++
		}
	}
	c.inverse.Zero()
	for i := 0; i < n; i++ {
		var shift float64
		for j := 0; j < n; j++ {
			c.inverse.Set(i, j, lin.At(i, j))
			shift += lin.At(i, j) * c.center[j]
		}
		c.inverse.Set(i, n, -shift)
	}
	c.inverse.Set(n, n, 1)
}

// setTransform builds translation * rotation * stretch, applying the single
// rotations in reverse order.
func (c *Condition) setTransform() {
	n := len(c.center)
	lin := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		lin.Set(i, i, 1)
	}
	a := len(c.angles) - 1
	for i := n - 1; i >= 0; i-- {
		for j := n - 1; j > i; j-- {
			cos, sin := math.Cos(c.angles[a]), math.Sin(c.angles[a])
			lin = rotateRight(lin, i, j, cos, -sin)
			a--
		}
	}
	c.transform.Zero()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			c.transform.Set(i, j, lin.At(i, j)*c.stretch[j])
		}
		c.transform.Set(i, n, c.center[i])
	}
	c.transform.Set(n, n, 1)
}

// rotateRight returns m * R where R is the plane rotation on (i, j) with
// R[i][i] = R[j][j] = cos, R[i][j] = sin and R[j][i] = -sin.
func rotateRight(m *mat.Dense, i, j int, cos, sin float64) *mat.Dense {
	n, _ := m.Dims()
	rot := mat.NewDense(n, n, nil)
	for k := 0; k < n; k++ {
		rot.Set(k, k, 1)
	}
	rot.Set(i, i, cos)
	rot.Set(j, j, cos)
	rot.Set(i, j, sin)
	rot.Set(j, i, -sin)
	var out mat.Dense
	out.Mul(m, rot)
	return &out
}

// OffsetVector writes point - center into dst.
func (c *Condition) OffsetVector(point, dst []float64) {
	for i := range c.center {
		dst[i] = point[i] - c.center[i]
	}
}

// Equal compares the geometry exactly.
func (c *Condition) Equal(other *Condition) bool {
	return floatsEqual(c.center, other.center) &&
		floatsEqual(c.stretch, other.stretch) &&
		floatsEqual(c.angles, other.angles)
}

// Clone deep-copies the geometry and transforms; the distance cache starts
// empty.
func (c *Condition) Clone() *Condition {
	return &Condition{
		center:    append([]float64(nil), c.center...),
		stretch:   append([]float64(nil), c.stretch...),
		angles:    append([]float64(nil), c.angles...),
		transform: mat.DenseCopyOf(c.transform),
		inverse:   mat.DenseCopyOf(c.inverse),
		scratch:   make([]float64, len(c.center)),
	}
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
