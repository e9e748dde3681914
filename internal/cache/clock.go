package cache

import "sync/atomic"

// Clock hands out the logical timestamps used for eviction order.
type Clock interface {
	Next() int64
}

// logicalClock is a monotonic counter safe for concurrent use.
type logicalClock struct {
	seq atomic.Int64
}

// newClockAt creates a clock whose next value is start+1, so a reopened
// cache continues after the newest stored stamp.
func newClockAt(start int64) *logicalClock {
	c := &logicalClock{}
	c.seq.Store(start)
	return c
}

func (c *logicalClock) Next() int64 {
	return c.seq.Add(1)
}
