package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/lumen/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Dump     string // Optimized IR for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Dump != "" {
		fmt.Fprintf(&buf, "\nOptimized IR:\n%s", e.Dump)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages in assertion order.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(r, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(r *Result, a Assertion) error {
	switch a.Type {
	case AssertNoErrors:
		return assertNoErrors(r)
	case AssertDiagnostic:
		return assertDiagnostic(r, a)
	case AssertConverged, AssertNotConverged:
		want := a.Type == AssertConverged
		if r.Stats.Converged != want {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("converged=%t", want),
				Actual:   fmt.Sprintf("converged=%t after %d rounds", r.Stats.Converged, r.Stats.Rounds),
			}
		}
	case AssertBindings:
		return assertBindings(r, a)
	case AssertAbsent, AssertPresent:
		return assertKind(r, a)
	case AssertOutput:
		return assertOutput(r, a)
	case AssertGlobal:
		return assertGlobal(r, a)
	case AssertBehaviorPreserved:
		return assertBehaviorPreserved(r)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

func assertNoErrors(r *Result) error {
	if !r.Diagnostics.HasErrors() {
		return nil
	}
	var msgs []string
	for _, d := range r.Diagnostics {
		if d.Kind.IsError() {
			msgs = append(msgs, d.String())
		}
	}
	return &AssertionError{
		Type:     AssertNoErrors,
		Expected: "no lexical or syntax errors",
		Actual:   strings.Join(msgs, "; "),
	}
}

func assertDiagnostic(r *Result, a Assertion) error {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Code == a.Code {
			n++
		}
	}
	switch {
	case a.Count == nil && n > 0:
		return nil
	case a.Count != nil && *a.Count == n:
		return nil
	}
	expected := fmt.Sprintf("at least one %s", a.Code)
	if a.Count != nil {
		expected = fmt.Sprintf("%d x %s", *a.Count, a.Code)
	}
	return &AssertionError{
		Type:     AssertDiagnostic,
		Expected: expected,
		Actual:   fmt.Sprintf("%d x %s in %v", n, a.Code, r.Diagnostics),
	}
}

func assertBindings(r *Result, a Assertion) error {
	got := topLevelNames(r.store)
	if diff := cmp.Diff(a.Names, got, cmpopts.EquateEmpty()); diff != "" {
		return &AssertionError{
			Type:     AssertBindings,
			Expected: fmt.Sprintf("%v", a.Names),
			Actual:   fmt.Sprintf("%v (-want +got):\n%s", got, diff),
			Dump:     r.Dump,
		}
	}
	return nil
}

func assertKind(r *Result, a Assertion) error {
	kind, err := ir.ParseKind(a.Kind)
	if err != nil {
		return err
	}
	found := 0
	r.store.Walk(r.store.Root(), func(h ir.Handle) bool {
		if r.store.Kind(h) == kind {
			found++
		}
		return true
	})
	if (a.Type == AssertAbsent) == (found == 0) {
		return nil
	}
	expected := fmt.Sprintf("no %s node", kind)
	if a.Type == AssertPresent {
		expected = fmt.Sprintf("at least one %s node", kind)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   fmt.Sprintf("%d %s nodes", found, kind),
		Dump:     r.Dump,
	}
}

func assertOutput(r *Result, a Assertion) error {
	if r.EvalError != "" {
		return &AssertionError{Type: AssertOutput, Expected: "program runs", Actual: r.EvalError, Dump: r.Dump}
	}
	if diff := cmp.Diff(a.Lines, r.Output, cmpopts.EquateEmpty()); diff != "" {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("%q", a.Lines),
			Actual:   fmt.Sprintf("%q (-want +got):\n%s", r.Output, diff),
			Dump:     r.Dump,
		}
	}
	return nil
}

func assertGlobal(r *Result, a Assertion) error {
	got, ok := r.Globals[a.Name]
	if !ok {
		return &AssertionError{
			Type:     AssertGlobal,
			Expected: fmt.Sprintf("%s = %s", a.Name, a.Value),
			Actual:   fmt.Sprintf("no binding %s among %v", a.Name, slices.Sorted(maps.Keys(r.Globals))),
			Dump:     r.Dump,
		}
	}
	if got != a.Value {
		return &AssertionError{
			Type:     AssertGlobal,
			Expected: fmt.Sprintf("%s = %s", a.Name, a.Value),
			Actual:   fmt.Sprintf("%s = %s", a.Name, got),
			Dump:     r.Dump,
		}
	}
	return nil
}

func assertBehaviorPreserved(r *Result) error {
	if r.EvalError != r.BaselineError {
		return &AssertionError{
			Type:     AssertBehaviorPreserved,
			Expected: fmt.Sprintf("error %q", r.BaselineError),
			Actual:   fmt.Sprintf("error %q", r.EvalError),
			Dump:     r.Dump,
		}
	}
	if diff := cmp.Diff(r.Baseline, r.Output, cmpopts.EquateEmpty()); diff != "" {
		return &AssertionError{
			Type:     AssertBehaviorPreserved,
			Expected: fmt.Sprintf("%q", r.Baseline),
			Actual:   fmt.Sprintf("%q (-unoptimized +optimized):\n%s", r.Output, diff),
			Dump:     r.Dump,
		}
	}
	return nil
}

// topLevelNames lists the names bound by top-level declarations, looking
// through export statements.
func topLevelNames(s *ir.Store) []string {
	var out []string
	for _, stmt := range s.Children(s.Root()) {
		if s.Kind(stmt) == ir.KindExportDecl && s.Str(stmt, ir.AttrForm) == ir.ExportDeclaration {
			stmt = s.Child(stmt, 0)
		}
		switch s.Kind(stmt) {
		case ir.KindFunctionDecl, ir.KindClassDecl, ir.KindEnumDecl:
			out = append(out, s.Str(stmt, ir.AttrName))
		case ir.KindVariableDecl:
			for _, d := range s.Children(stmt) {
				if t := s.Child(d, 0); s.Kind(t) == ir.KindIdentifier {
					out = append(out, s.Str(t, ir.AttrName))
				}
			}
		}
	}
	return out
}
