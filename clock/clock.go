package clock

import "time"

// Clock times generation phases. Tests advance it by hand so reported
// durations are stable.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Advance(d time.Duration)
	Reset()
}

type Config struct {
	// Frozen stops the wall clock; only Advance moves time forward.
	Frozen bool
	Start  time.Time
}

var DefaultConfig = Config{}

type clock struct {
	delta  time.Duration
	frozen bool
	start  time.Time
}

func (c *clock) Now() time.Time {
	if c.frozen {
		return c.start.Add(c.delta)
	}
	return time.Now().Add(c.delta)
}

func (c *clock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

func (c *clock) Advance(d time.Duration) {
	c.delta += d
}

func (c *clock) Reset() {
	c.delta = 0
}

func Make(config ...Config) Clock {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	return &clock{
		frozen: cfg.Frozen,
		start:  cfg.Start,
	}
}
