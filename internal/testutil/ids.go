package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator returns canonical UUID strings numbered from 1:
// 00000000-0000-7000-8000-000000000001, 00000000-0000-7000-8000-000000000002
// and so on. Store ids in golden output stay stable across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu sync.Mutex
	n  uint64
}

// NewSequentialIDGenerator creates a generator whose first id ends in 1.
func NewSequentialIDGenerator() *SequentialIDGenerator {
	return &SequentialIDGenerator{}
}

// Generate returns the next id.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return ID(g.n)
}

// ID formats n as the id SequentialIDGenerator hands out n-th.
func ID(n uint64) string {
	return fmt.Sprintf("00000000-0000-7000-8000-%012x", n)
}

// FixedIDGenerator returns the same id every time.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator returning id, or ID(1) when id
// is empty.
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = ID(1)
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
