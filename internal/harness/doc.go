// Package harness runs optimizer scenarios described in YAML files.
//
// A scenario names a program, the configuration to compile it with and a
// list of assertions about the result:
//
//	name: fold_constants
//	description: "Arithmetic on literals folds to a single literal"
//	mode: plain
//	config: |
//	  level: 1
//	source: |
//	  console.log(1 + 2);
//	assertions:
//	  - type: no_errors
//	  - type: output
//	    lines: ["3"]
//	  - type: absent
//	    kind: Binary
//
// The config block is a lumen.cue document and is validated against the
// same schema as project files. The program can be given inline as source
// or as a file path relative to the scenario.
//
// # Assertion Types
//
//   - no_errors: no lexical or syntax errors were reported
//   - diagnostic: a code was reported, count times when count is given
//   - converged / not_converged: whether the pipeline reached a fixed point
//   - bindings: the top-level declared names, in order
//   - absent / present: whether a node kind remains in the optimized IR
//   - output: the console.log lines of the optimized program
//   - global: the rendered value of a top-level binding after evaluation
//   - behavior_preserved: the optimized program prints what the
//     unoptimized one prints
//
// Scenarios run with a discarding logger and no cache, so results depend
// only on the scenario file. RunWithGolden additionally compares a text
// snapshot of the result against testdata/golden/<name>.golden.
package harness
