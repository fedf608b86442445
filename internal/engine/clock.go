package engine

import "sync/atomic"

// Sequencer hands out pass sequence numbers. Implementations must be
// safe for concurrent use and never return the same value twice.
type Sequencer interface {
	Next() int64
}

// Clock is the monotonic logical clock that orders passes.
//
// Every pass a dialog runs is stamped with the next value, so traces sort
// by seq regardless of wall time or which goroutine ran the pass. Safe for
// concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start, so the first Next
// returns start+1. Used to continue numbering after the last recorded pass.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
