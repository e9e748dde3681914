package optimize

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/ir"
)

// Options configures a Pipeline.
type Options struct {
	// Level is the optimization level: 0 none, 1 fold and dce, 2 adds
	// inlining.
	Level int
	// Passes overrides the level's default pass list when non-nil. Order
	// is normalized to the registry order.
	Passes []string
	// MaxRounds is the round ceiling, DefaultMaxRounds when zero.
	MaxRounds int
	// Entry names top-level functions that are always live.
	Entry []string
	// Preserve names top-level bindings dead-code elimination must keep.
	Preserve []string
	Logger   *slog.Logger
}

// MaxLevel is the highest optimization level.
const MaxLevel = 2

// Stats summarizes a pipeline run.
type Stats struct {
	Rounds    int  `json:"rounds"`
	PassesRun int  `json:"passes_run"`
	Removed   int  `json:"removed"`
	Folded    int  `json:"folded"`
	Inlined   int  `json:"inlined"`
	Converged bool `json:"converged"`
	// LastRoundChanges counts the removals, folds and inlines of the final
	// round. It is zero for a converged run.
	LastRoundChanges int `json:"last_round_changes"`
	// PassTime is the wall time spent in each pass, summed over rounds.
	PassTime map[string]time.Duration `json:"pass_time_ns,omitempty"`
}

// Add accumulates a later run over the same store into s.
func (s *Stats) Add(later Stats) {
	s.Rounds += later.Rounds
	s.PassesRun += later.PassesRun
	s.Removed += later.Removed
	s.Folded += later.Folded
	s.Inlined += later.Inlined
	s.Converged = later.Converged
	s.LastRoundChanges = later.LastRoundChanges
	for name, d := range later.PassTime {
		if s.PassTime == nil {
			s.PassTime = make(map[string]time.Duration)
		}
		s.PassTime[name] += d
	}
}

// Pipeline runs its passes in rounds until a round changes nothing or the
// round ceiling is reached. A Pipeline holds no per-store state and may be
// shared by goroutines working on different stores.
type Pipeline struct {
	passes    []Pass
	maxRounds int
	warnings  diag.List
	logger    *slog.Logger
}

// New validates opts and builds a pipeline. Unknown pass names are an
// error; a pass that needs a higher level than opts.Level is dropped with
// a W402 warning reported by every Run.
func New(opts Options) (*Pipeline, error) {
	if opts.Level < 0 || opts.Level > MaxLevel {
		return nil, fmt.Errorf("optimization level %d out of range 0..%d", opts.Level, MaxLevel)
	}
	if opts.MaxRounds < 0 {
		return nil, fmt.Errorf("max rounds must be positive, got %d", opts.MaxRounds)
	}
	p := &Pipeline{
		maxRounds: opts.MaxRounds,
		logger:    opts.Logger,
	}
	if p.maxRounds == 0 {
		p.maxRounds = DefaultMaxRounds
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	names := opts.Passes
	if names == nil {
		names = DefaultPasses(opts.Level)
	}
	enabled := make(map[string]bool, len(names))
	for _, name := range names {
		reg, ok := lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown pass %q (known: %v)", name, Names())
		}
		if enabled[name] {
			return nil, fmt.Errorf("pass %q listed twice", name)
		}
		if opts.Level < reg.minLevel {
			p.warnings = append(p.warnings, diag.Diagnostic{
				Kind:    diag.SemanticWarning,
				Code:    diag.CodePassNotAllowed,
				Message: fmt.Sprintf("pass %s requires level %d, running at level %d", name, reg.minLevel, opts.Level),
			})
			continue
		}
		enabled[name] = true
	}
	for _, reg := range registry {
		if enabled[reg.name] {
			p.passes = append(p.passes, reg.build(opts))
		}
	}
	return p, nil
}

// Passes returns the names of the passes the pipeline runs, in order.
func (p *Pipeline) Passes() []string {
	out := make([]string, len(p.passes))
	for i, pass := range p.passes {
		out[i] = pass.Name()
	}
	return out
}

// Run optimizes s in place. The store is validated after every pass; an
// invariant violation aborts the run with an *ir.InvariantError. Reaching
// the round ceiling is not an error: the IR stays usable and a W501
// diagnostic is reported.
func (p *Pipeline) Run(s *ir.Store) (Stats, diag.List, error) {
	var stats Stats
	diags := slices.Clone(p.warnings)
	if len(p.passes) == 0 {
		stats.Converged = true
		return stats, diags, nil
	}

	budget := newRoundBudget(p.maxRounds)
	for {
		if err := budget.next(); err != nil {
			p.logger.Warn("round ceiling reached", "rounds", stats.Rounds, "limit", p.maxRounds)
			diags = append(diags, diag.Diagnostic{
				Kind:    diag.ConvergenceWarning,
				Code:    diag.CodeRoundCeiling,
				Message: err.Error(),
			})
			break
		}
		var round Outcome
		for _, pass := range p.passes {
			start := time.Now()
			out := pass.Run(s)
			elapsed := time.Since(start)
			stats.PassesRun++
			if stats.PassTime == nil {
				stats.PassTime = make(map[string]time.Duration, len(p.passes))
			}
			stats.PassTime[pass.Name()] += elapsed
			if err := s.Validate(); err != nil {
				return stats, diags.Dedup(), fmt.Errorf("pass %s (round %d): %w", pass.Name(), budget.rounds(), err)
			}
			p.logger.Debug("pass finished",
				"pass", pass.Name(),
				"round", budget.rounds(),
				"changed", out.Changed,
				"removed", out.Removed,
				"folded", out.Folded,
				"inlined", out.Inlined,
				"elapsed", elapsed)
			round.merge(out)
		}
		stats.Rounds = budget.rounds()
		stats.Removed += round.Removed
		stats.Folded += round.Folded
		stats.Inlined += round.Inlined
		stats.LastRoundChanges = round.Removed + round.Folded + round.Inlined
		diags = append(diags, round.Diagnostics...)
		if !round.Changed {
			stats.Converged = true
			break
		}
	}
	return stats, diags.Dedup(), nil
}
