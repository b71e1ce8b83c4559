package xcsf

// Park-Miller minimal standard generator constants (Schrage decomposition).
const (
	lcgM = 2147483647
	lcgA = 16807
	lcgQ = lcgM / lcgA
	lcgR = lcgM % lcgA
)

// Random is a seedable linear-congruential stream. One instance is owned by
// each Driver and passed to every component that draws random numbers, so two
// drivers built with the same seed replay identical sequences.
type Random struct {
	seed int64
}

// NewRandom creates a stream starting at seed. The seed must lie in
// [1, 2^31-2]; values outside are folded into that range.
func NewRandom(seed int64) *Random {
	r := &Random{}
	r.SetSeed(seed)
	return r
}

// SetSeed resets the stream.
func (r *Random) SetSeed(seed int64) {
	seed %= lcgM
	if seed <= 0 {
		seed += lcgM - 1
	}
	r.seed = seed
}

// Seed returns the current internal state.
func (r *Random) Seed() int64 {
	return r.seed
}

// Float64 returns the next value in (0, 1).
func (r *Random) Float64() float64 {
	hi := r.seed / lcgQ
	lo := r.seed % lcgQ
	test := lcgA*lo - lcgR*hi
	if test > 0 {
		r.seed = test
	} else {
		r.seed = test + lcgM
	}
	return float64(r.seed) / lcgM
}

// Intn returns a value in [0, n).
func (r *Random) Intn(n int) int {
	i := int(r.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
