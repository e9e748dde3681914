package harness

import (
	"fmt"
	"log/slog"

	"github.com/roach88/lumen/internal/config"
	"github.com/roach88/lumen/internal/eval"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/optimize"
	"github.com/roach88/lumen/internal/parser"
)

// Run compiles the scenario program, evaluates it before and after
// optimization and checks the assertions.
//
// Errors are returned for scenarios that cannot run at all: an invalid
// config block, an unknown mode or an optimizer failure. Failed
// assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	cfg := config.Default()
	if scenario.Config != "" {
		var err error
		cfg, err = config.Parse([]byte(scenario.Config), scenario.Name+".cue")
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
	}
	mode, err := scenarioMode(scenario, cfg)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	// Suppress logs in tests
	logger := slog.New(slog.DiscardHandler)
	pipeline, err := optimize.New(cfg.Pipeline(logger))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	result.Mode = mode.String()

	baseline, err := parser.Parse(scenario.Source, mode)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	if !baseline.Diagnostics.HasErrors() {
		result.Baseline, _, result.BaselineError = evaluate(baseline.Store)
	}

	parsed, err := parser.Parse(scenario.Source, mode)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	stats, diags, err := pipeline.Run(parsed.Store)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	result.store = parsed.Store
	result.Stats = stats
	result.Diagnostics = append(parsed.Diagnostics, diags...)
	result.Dump = parsed.Store.Dump()
	if !result.Diagnostics.HasErrors() {
		result.Output, result.Globals, result.EvalError = evaluate(parsed.Store)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func scenarioMode(s *Scenario, cfg *config.Config) (parser.Mode, error) {
	switch {
	case s.Mode != "":
		return parser.ParseMode(s.Mode)
	case cfg.Mode != "":
		return parser.ParseMode(cfg.Mode)
	}
	return parser.Plain, nil
}

// evaluate runs the program and renders what it left behind. An uncaught
// exception still yields the output printed before it.
func evaluate(s *ir.Store) (output []string, globals map[string]string, errMsg string) {
	globals = make(map[string]string)
	res, err := eval.Run(s)
	if err != nil {
		errMsg = err.Error()
	}
	if res == nil {
		return nil, globals, errMsg
	}
	for _, name := range res.Names() {
		globals[name], _ = res.Global(name)
	}
	return res.Output, globals, errMsg
}
