package queue_test

import (
	"testing"

	"github.com/stateforward/go-emg/queue"
)

func TestQueue(t *testing.T) {
	t.Run("FIFO", func(t *testing.T) {
		q := queue.New(1, 2)
		q.Push(3)
		for _, expected := range []int{1, 2, 3} {
			item, ok := q.Pop()
			if !ok || item != expected {
				t.Fatalf("expected %d, got %d (%v)", expected, item, ok)
			}
		}
		if _, ok := q.Pop(); ok {
			t.Fatal("expected empty queue")
		}
	})
	t.Run("LIFO", func(t *testing.T) {
		q := queue.New[string]()
		q.Push("a", "b")
		if top, _ := q.Peek(); top != "b" {
			t.Fatalf("expected b on top, got %s", top)
		}
		if item, _ := q.PopBack(); item != "b" {
			t.Fatalf("expected b, got %s", item)
		}
		if q.Len() != 1 {
			t.Fatalf("expected length 1, got %d", q.Len())
		}
		if _, ok := q.PopBack(); !ok {
			t.Fatal("expected an item")
		}
		if _, ok := q.PopBack(); ok {
			t.Fatal("expected empty queue")
		}
	})
}
