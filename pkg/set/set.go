package set

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

// Set is an unordered collection whose iteration helpers always yield items
// in ascending order, so anything derived from a Set is reproducible.
type Set[T cmp.Ordered] map[T]struct{}

func New[T cmp.Ordered](items ...T) Set[T] {
	s := make(Set[T])
	for _, item := range items {
		s[item] = struct{}{}
	}
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

func (s Set[T]) ContainsAll(items ...T) bool {
	for _, item := range items {
		if !s.Contains(item) {
			return false
		}
	}
	return true
}

func (s Set[T]) ContainsAny(items ...T) bool {
	for _, item := range items {
		if s.Contains(item) {
			return true
		}
	}
	return false
}

// Size returns the number of items in the set
func (s Set[T]) Size() int {
	return len(s)
}

// Items returns all items in ascending order
func (s Set[T]) Items() iter.Seq[T] {
	return slices.Values(s.Sorted())
}

// Sorted returns the items as an ascending slice
func (s Set[T]) Sorted() []T {
	return slices.Sorted(maps.Keys(s))
}

// First returns the smallest item
func (s Set[T]) First() (T, bool) {
	var zero T
	if len(s) == 0 {
		return zero, false
	}
	return slices.Min(slices.Collect(maps.Keys(s))), true
}

func (s Set[T]) Clone() Set[T] {
	return maps.Clone(s)
}

func (s Set[T]) Equal(other Set[T]) bool {
	if len(s) != len(other) {
		return false
	}
	return other.ContainsAll(slices.Collect(maps.Keys(s))...)
}

// Union returns a new set containing all items from both sets
func (s Set[T]) Union(other Set[T]) Set[T] {
	result := s.Clone()
	if result == nil {
		result = make(Set[T])
	}
	for item := range other {
		result[item] = struct{}{}
	}
	return result
}

// Intersection returns a new set containing items present in both sets
func (s Set[T]) Intersection(other Set[T]) Set[T] {
	result := make(Set[T])
	for item := range s {
		if other.Contains(item) {
			result[item] = struct{}{}
		}
	}
	return result
}

// Difference returns a new set containing items in s that are not in other
func (s Set[T]) Difference(other Set[T]) Set[T] {
	result := make(Set[T], len(s))
	for item := range s {
		if !other.Contains(item) {
			result[item] = struct{}{}
		}
	}
	return result
}
