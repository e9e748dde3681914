package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the deterministic parts of a result as text: stats,
// diagnostics, program output and the optimized IR. Handles and store ids
// are left out, so snapshots are stable across runs.
func Snapshot(name string, r *Result) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "scenario: %s\n", name)
	fmt.Fprintf(&b, "mode: %s\n", r.Mode)
	fmt.Fprintf(&b, "rounds: %d converged: %t folded: %d inlined: %d removed: %d\n",
		r.Stats.Rounds, r.Stats.Converged, r.Stats.Folded, r.Stats.Inlined, r.Stats.Removed)
	b.WriteString("diagnostics:\n")
	for _, d := range r.Diagnostics.Sorted() {
		fmt.Fprintf(&b, "  %s\n", d)
	}
	b.WriteString("output:\n")
	for _, line := range r.Output {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	if r.EvalError != "" {
		fmt.Fprintf(&b, "error: %s\n", r.EvalError)
	}
	b.WriteString("ir:\n")
	b.WriteString(r.Dump)
	return b.Bytes()
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Assertion failures and
// snapshot mismatches fail t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()
	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares the snapshot of an existing result against a
// golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(name, result))
}
