package xcsf

import (
	"fmt"
	"iter"
	"slices"
)

// Collection is a growable indexed array with stable removal. Population and
// MatchSet are built on top of it.
type Collection[T any] struct {
	items []T
}

func (c *Collection[T]) Len() int { return len(c.items) }

func (c *Collection[T]) At(i int) T {
	if i < 0 || i >= len(c.items) {
		panic(fmt.Sprintf("xcsf: index %d out of range [0, %d)", i, len(c.items)))
	}
	return c.items[i]
}

func (c *Collection[T]) Add(item T) {
	c.items = append(c.items, item)
}

// RemoveAt removes the element at i and shifts the tail left.
func (c *Collection[T]) RemoveAt(i int) {
	c.At(i)
	c.items = slices.Delete(c.items, i, i+1)
}

// RemoveIndices removes all given positions in one pass. The indices may be
// unsorted but must be distinct.
func (c *Collection[T]) RemoveIndices(indices []int) {
	if len(indices) == 0 {
		return
	}
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	c.At(sorted[len(sorted)-1])

	out := c.items[:0]
	k := 0
	for i, item := range c.items {
		if k < len(sorted) && sorted[k] == i {
			k++
			continue
		}
		out = append(out, item)
	}
	var zero T
	for i := len(out); i < len(c.items); i++ {
		c.items[i] = zero
	}
	c.items = out
}

// SortStable orders the elements in place, keeping the relative order of
// equal elements.
func (c *Collection[T]) SortStable(cmp func(a, b T) int) {
	slices.SortStableFunc(c.items, cmp)
}

// Clear empties the collection but keeps its capacity.
func (c *Collection[T]) Clear() {
	clear(c.items)
	c.items = c.items[:0]
}

// ShallowCopy returns a new slice holding the current elements.
func (c *Collection[T]) ShallowCopy() []T {
	return slices.Clone(c.items)
}

// All iterates over index and element.
func (c *Collection[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, item := range c.items {
			if !yield(i, item) {
				return
			}
		}
	}
}

// Find returns the first element satisfying match.
func (c *Collection[T]) Find(match func(T) bool) (T, bool) {
	for _, item := range c.items {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}
