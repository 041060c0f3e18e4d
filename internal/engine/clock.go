package engine

import "sync/atomic"

// Clock hands out the seq stamped on new instances and snapshots.
//
// An instance's history is ordered by seq alone. Engines sharing one
// database each keep their own Clock, so a restore moves the clock past
// the seq it read before the next save is stamped.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first stamp is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose first stamp is start+1. New uses the
// store's MaxSeq as start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next stamps a new record.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current is the last stamp handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Observe moves the clock forward to seq if it is behind. It never moves
// the clock back.
func (c *Clock) Observe(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
