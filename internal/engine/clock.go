package engine

import "sync/atomic"

// Clock stamps events with a strictly increasing sequence number.
//
// Sequence numbers order events in logs and traces independently of wall
// time, which the Scheduler may fake.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Tasks on different goroutines stamp events concurrently.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
