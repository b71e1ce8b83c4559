package xcsf

import (
	"cmp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func collectionOf(items ...int) *Collection[int] {
	c := &Collection[int]{}
	for _, it := range items {
		c.Add(it)
	}
	return c
}

func TestCollection_RemoveIndices(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
		want    []int
	}{
		{"none", nil, []int{0, 1, 2, 3, 4, 5}},
		{"first", []int{0}, []int{1, 2, 3, 4, 5}},
		{"last", []int{5}, []int{0, 1, 2, 3, 4}},
		{"unsorted batch", []int{4, 1, 2}, []int{0, 3, 5}},
		{"all", []int{5, 4, 3, 2, 1, 0}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := collectionOf(0, 1, 2, 3, 4, 5)
			c.RemoveIndices(tt.indices)
			got := c.ShallowCopy()
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollection_RemoveAtAndBounds(t *testing.T) {
	c := collectionOf(10, 20, 30)
	c.RemoveAt(1)
	assert.Equal(t, []int{10, 30}, c.ShallowCopy())
	assert.Panics(t, func() { c.RemoveAt(2) })
	assert.Panics(t, func() { c.At(-1) })
}

func TestCollection_SortStable(t *testing.T) {
	type pair struct{ key, id int }
	c := &Collection[pair]{}
	for i, k := range []int{3, 1, 3, 2, 1} {
		c.Add(pair{k, i})
	}
	c.SortStable(func(a, b pair) int { return cmp.Compare(a.key, b.key) })
	assert.Equal(t, []pair{{1, 1}, {1, 4}, {2, 3}, {3, 0}, {3, 2}}, c.ShallowCopy())
}

func TestCollection_ShallowCopyDoesNotAlias(t *testing.T) {
	c := collectionOf(1, 2, 3)
	snap := c.ShallowCopy()
	c.Clear()
	c.Add(9)
	assert.Equal(t, []int{1, 2, 3}, snap)
	assert.Equal(t, 1, c.Len())
}

func TestCollection_AllAndFind(t *testing.T) {
	c := collectionOf(5, 6, 7)
	sum := 0
	for i, v := range c.All() {
		sum += i * v
	}
	assert.Equal(t, 0*5+1*6+2*7, sum)

	v, ok := c.Find(func(x int) bool { return x > 5 })
	assert.True(t, ok)
	assert.Equal(t, 6, v)
	_, ok = c.Find(func(x int) bool { return x > 10 })
	assert.False(t, ok)
}
