package set

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

type Set[T comparable] map[T]struct{}

// New builds a fresh set from items; duplicates collapse.
func New[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	s.Add(items...)
	return s
}

// Add adds items to the set
func (s Set[T]) Add(items ...T) {
	for _, item := range items {
		s[item] = struct{}{}
	}
}

// Remove removes an item from the set
func (s Set[T]) Remove(item T) {
	delete(s, item)
}

// Contains checks if an item exists in the set
func (s Set[T]) Contains(item T) bool {
	_, exists := s[item]
	return exists
}

// Size returns the number of items in the set
func (s Set[T]) Size() int {
	return len(s)
}

// Items returns all items in the set as a sequence
func (s Set[T]) Items() iter.Seq[T] {
	return maps.Keys(s)
}

// Sorted returns the items of s in ascending order.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	return slices.Sorted(s.Items())
}

// SortedFunc returns the items of s ordered by compare.
func SortedFunc[T comparable](s Set[T], compare func(a, b T) int) []T {
	return slices.SortedFunc(s.Items(), compare)
}
