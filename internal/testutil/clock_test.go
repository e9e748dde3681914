package testutil

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_CountsFromStart(t *testing.T) {
	c := NewClock(40)
	assert.Empty(t, c.Issued())
	assert.Equal(t, int64(41), c.Next())
	assert.Equal(t, int64(42), c.Next())
	assert.Equal(t, []int64{41, 42}, c.Issued())
}

func TestClock_ConcurrentStampsAreDistinct(t *testing.T) {
	c := NewClock(0)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				c.Next()
			}
		}()
	}
	wg.Wait()

	got := c.Issued()
	slices.Sort(got)
	want := make([]int64, 400)
	for i := range want {
		want[i] = int64(i + 1)
	}
	assert.Equal(t, want, got)
}
