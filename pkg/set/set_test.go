package set_test

import (
	"slices"
	"testing"

	"github.com/stateforward/go-emg/pkg/set"
)

func TestSet(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		s := set.New(3, 1, 2)
		if s.Size() != 3 {
			t.Errorf("Expected size 3, got %d", s.Size())
		}
		if !s.ContainsAll(1, 2, 3) {
			t.Error("Expected set to contain 1, 2 and 3")
		}
	})

	t.Run("Remove", func(t *testing.T) {
		s := set.New("test")
		s.Remove("test")
		if s.Size() != 0 {
			t.Errorf("Expected size 0, got %d", s.Size())
		}
		if s.ContainsAny("test") {
			t.Error("Expected set to not contain 'test'")
		}
	})

	t.Run("Sorted", func(t *testing.T) {
		s := set.New(9, 5, 7, 1)
		if !slices.Equal(s.Sorted(), []int{1, 5, 7, 9}) {
			t.Errorf("Expected ascending order, got %v", s.Sorted())
		}
		collected := []int{}
		for item := range s.Items() {
			if item == 7 {
				break
			}
			collected = append(collected, item)
		}
		if !slices.Equal(collected, []int{1, 5}) {
			t.Errorf("Expected [1 5] before break, got %v", collected)
		}
	})

	t.Run("First", func(t *testing.T) {
		if _, ok := set.New[int]().First(); ok {
			t.Error("Expected empty set to have no first item")
		}
		if first, _ := set.New(4, 2, 8).First(); first != 2 {
			t.Errorf("Expected 2, got %d", first)
		}
	})

	t.Run("Equal", func(t *testing.T) {
		if !set.New(1, 2).Equal(set.New(2, 1)) {
			t.Error("Expected sets to be equal")
		}
		if set.New(1, 2).Equal(set.New(1, 3)) {
			t.Error("Expected sets to differ")
		}
		clone := set.New(1)
		copied := clone.Clone()
		copied.Add(2)
		if clone.Contains(2) {
			t.Error("Expected clone to be independent")
		}
	})

	t.Run("Union", func(t *testing.T) {
		var empty set.Set[string]
		union := empty.Union(set.New("a"))
		if !union.Contains("a") {
			t.Error("Expected union of nil set to contain 'a'")
		}
		union = set.New("test1", "test2").Union(set.New("test2", "test3"))
		if union.Size() != 3 {
			t.Errorf("Expected size 3, got %d", union.Size())
		}
	})

	t.Run("Intersection", func(t *testing.T) {
		intersection := set.New("test1", "test2").Intersection(set.New("test2", "test3"))
		if intersection.Size() != 1 || !intersection.Contains("test2") {
			t.Errorf("Expected intersection {test2}, got %v", intersection.Sorted())
		}
	})

	t.Run("Difference", func(t *testing.T) {
		difference := set.New("test1", "test2").Difference(set.New("test2", "test3"))
		if difference.Size() != 1 || !difference.Contains("test1") {
			t.Errorf("Expected difference {test1}, got %v", difference.Sorted())
		}
	})
}
