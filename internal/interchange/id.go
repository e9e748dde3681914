package interchange

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces store identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 store identifiers. It is
// stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns predetermined identifiers in order. It is safe
// for concurrent use.
type SequenceGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewSequenceGenerator creates a generator returning ids in order.
func NewSequenceGenerator(ids ...string) *SequenceGenerator {
	return &SequenceGenerator{ids: ids}
}

// Generate returns the next identifier. It panics once all identifiers
// have been handed out.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic(fmt.Sprintf("SequenceGenerator: all %d ids exhausted", len(g.ids)))
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// ValidateStoreID reports whether id is a UUID in canonical form.
func ValidateStoreID(id string) error {
	u, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("store id %q: %w", id, err)
	}
	if u.String() != id {
		return fmt.Errorf("store id %q is not in canonical form", id)
	}
	return nil
}
