package automaton

import "sync/atomic"

// Clock is a monotonic logical clock. Every Reply is stamped with Next(),
// so reply order never depends on wall time and traces replay identically.
//
// Thread-safety: Clock is safe for concurrent use. In practice only the
// transition loop calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next() returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues numbering after start.
// Used when appending a new run behind an existing journal sequence.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
