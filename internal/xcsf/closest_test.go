package xcsf

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectClosest(t *testing.T) {
	tests := []struct {
		name string
		size int
		k    int
	}{
		{"short array", 8, 5},
		{"long array uses sampled pivot", 60, 25},
		{"k larger than total", 10, 1000},
		{"k of one", 40, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := NewRandom(21)
			votes := make([]float64, tt.size)
			nums := make([]int, tt.size)
			cls := make([]*Classifier, tt.size)
			total := 0
			for i := range votes {
				votes[i] = rng.Float64()
				nums[i] = 1 + rng.Intn(3)
				cls[i] = &Classifier{numerosity: nums[i], fitness: votes[i]}
				total += nums[i]
			}

			n := selectClosest(votes, nums, cls, tt.k, rng)
			require.GreaterOrEqual(t, n, 1)
			require.LessOrEqual(t, n, tt.size)

			// parallel slices stay consistent
			for i := range cls {
				assert.Equal(t, votes[i], cls[i].fitness)
				assert.Equal(t, nums[i], cls[i].numerosity)
			}

			sum := 0
			for _, v := range nums[:n] {
				sum += v
			}
			if tt.k >= total {
				assert.Equal(t, tt.size, n)
				return
			}
			assert.GreaterOrEqual(t, sum, tt.k)
			assert.Less(t, sum-nums[n-1], tt.k)
			if n < tt.size {
				assert.GreaterOrEqual(t, slices.Min(votes[:n]), slices.Max(votes[n:]))
			}
		})
	}
}

func TestMedianOfThree(t *testing.T) {
	v := []float64{3, 1, 2}
	assert.Equal(t, 2, medianOfThree(v, 0, 1, 2))
	assert.Equal(t, 2, medianOfThree(v, 1, 0, 2))
	assert.Equal(t, 0, medianOfThree([]float64{2, 2, 2}, 0, 1, 2))
}
