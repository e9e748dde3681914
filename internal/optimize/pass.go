package optimize

import (
	"fmt"
	"slices"

	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/ir"
)

// Pass is one IR transformation. Run mutates the store in place and reports
// what it changed; a pass that reports no change must leave the store as it
// found it.
type Pass interface {
	Name() string
	// Reads and Writes list the node kinds the pass inspects and rewrites.
	Reads() []ir.Kind
	Writes() []ir.Kind
	Run(s *ir.Store) Outcome
}

// Outcome is the result of one pass invocation.
type Outcome struct {
	Changed     bool
	Removed     int
	Folded      int
	Inlined     int
	Diagnostics diag.List
}

func (o *Outcome) merge(other Outcome) {
	o.Changed = o.Changed || other.Changed
	o.Removed += other.Removed
	o.Folded += other.Folded
	o.Inlined += other.Inlined
	o.Diagnostics = append(o.Diagnostics, other.Diagnostics...)
}

// Pass names.
const (
	PassInline = "inline"
	PassFold   = "fold"
	PassDCE    = "dce"
)

type registration struct {
	name     string
	minLevel int
	build    func(Options) Pass
}

// registry is closed and ordered: inlining exposes constants to folding,
// and folding exposes dead branches to elimination.
var registry = []registration{
	{PassInline, 2, func(Options) Pass { return &inlinePass{} }},
	{PassFold, 1, func(Options) Pass { return &foldPass{} }},
	{PassDCE, 1, func(o Options) Pass { return &dcePass{entry: o.Entry, preserve: o.Preserve} }},
}

// Names returns every registered pass name in default order.
func Names() []string {
	out := make([]string, len(registry))
	for i, r := range registry {
		out[i] = r.name
	}
	return out
}

// DefaultPasses returns the passes enabled at level, in default order.
func DefaultPasses(level int) []string {
	var out []string
	for _, r := range registry {
		if level >= r.minLevel {
			out = append(out, r.name)
		}
	}
	return out
}

// MinLevel returns the lowest optimization level a pass runs at.
func MinLevel(name string) (int, error) {
	i := slices.IndexFunc(registry, func(r registration) bool { return r.name == name })
	if i < 0 {
		return 0, fmt.Errorf("unknown pass %q (known: %v)", name, Names())
	}
	return registry[i].minLevel, nil
}

func lookup(name string) (registration, bool) {
	i := slices.IndexFunc(registry, func(r registration) bool { return r.name == name })
	if i < 0 {
		return registration{}, false
	}
	return registry[i], true
}
