package optimize

import (
	"errors"
	"fmt"
)

// DefaultMaxRounds is the round ceiling used when Options.MaxRounds is zero.
const DefaultMaxRounds = 8

// roundBudget counts pipeline rounds against the ceiling.
//
// Every pass either shrinks the tree or replaces a subtree by a smaller
// one, so a run normally converges well below the ceiling. The budget
// bounds the run when two passes keep undoing each other.
type roundBudget struct {
	max     int
	current int
}

func newRoundBudget(max int) *roundBudget {
	return &roundBudget{max: max}
}

// next starts another round, or returns a *CeilingError when the ceiling
// has been reached.
func (b *roundBudget) next() error {
	if b.current >= b.max {
		return &CeilingError{Rounds: b.current, Limit: b.max}
	}
	b.current++
	return nil
}

func (b *roundBudget) rounds() int { return b.current }

// CeilingError reports that the pipeline stopped at the round ceiling
// while the last round still changed the IR. The IR is valid but may not
// be fully optimized.
type CeilingError struct {
	Rounds int
	Limit  int
}

func (e *CeilingError) Error() string {
	return fmt.Sprintf("no fixed point after %d rounds (limit %d)", e.Rounds, e.Limit)
}

// IsCeilingError reports whether err is a *CeilingError.
func IsCeilingError(err error) bool {
	var ce *CeilingError
	return errors.As(err, &ce)
}
