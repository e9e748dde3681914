// Package build compiles a set of source files as one program.
//
// Each file is a unit with its own IR store. Units are parsed and
// optimized concurrently on a bounded worker pool; a store is only ever
// touched by the goroutine compiling it. Cancellation is observed between
// units, never inside a pipeline run.
//
// After all units are compiled the builder links them: relative import
// specifiers are resolved to units, import cycles are reported as W601
// warnings, and, when tree shaking is on, exports that no other unit
// imports are turned into plain declarations in every non-entry unit. The
// pipeline then runs again on those units so dead-code elimination can
// drop whatever became unreachable.
//
// Compiled units are cached by ir.SourceKey when a cache is configured.
// Only units without diagnostics are stored, so a cache hit never hides a
// warning.
package build
