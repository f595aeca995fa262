package clock_test

import (
	"testing"
	"time"

	"github.com/stateforward/go-emg/clock"
)

func TestFrozenClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.Make(clock.Config{Frozen: true, Start: start})
	begin := c.Now()
	c.Advance(3 * time.Second)
	if c.Since(begin) != 3*time.Second {
		t.Fatalf("expected 3s, got %s", c.Since(begin))
	}
	c.Reset()
	if !c.Now().Equal(start) {
		t.Fatalf("expected %s after reset, got %s", start, c.Now())
	}
}
