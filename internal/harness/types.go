package harness

import (
	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/optimize"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Errors contains one message per failed assertion.
	Errors []string `json:"errors,omitempty"`

	Mode        string         `json:"mode"`
	Stats       optimize.Stats `json:"stats"`
	Diagnostics diag.List      `json:"diagnostics"`

	// Dump is the optimized IR as rendered by ir.Store.Dump.
	Dump string `json:"dump"`

	// Output holds the console lines of the optimized program, and
	// Baseline those of the unoptimized one.
	Output   []string `json:"output"`
	Baseline []string `json:"baseline"`

	// EvalError is set when the optimized program threw or used an
	// unsupported construct; BaselineError likewise for the original.
	EvalError     string `json:"eval_error,omitempty"`
	BaselineError string `json:"baseline_error,omitempty"`

	// Globals maps top-level binding names to their rendered values.
	Globals map[string]string `json:"globals"`

	store *ir.Store
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Errors:  []string{},
		Globals: make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
