package testutil

import (
	"slices"
	"sync"
)

// Clock is a cache.Clock for tests. It counts up from a chosen start and
// records every stamp it hands out, so a test can check which cache
// operations took a stamp and in what order.
//
// Thread-safety: safe for concurrent use via internal mutex.
type Clock struct {
	mu     sync.Mutex
	last   int64
	issued []int64
}

// NewClock creates a clock whose first stamp is start+1.
func NewClock(start int64) *Clock {
	return &Clock{last: start}
}

// Next returns the next stamp.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last++
	c.issued = append(c.issued, c.last)
	return c.last
}

// Issued returns the stamps handed out so far, oldest first.
func (c *Clock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.issued)
}
