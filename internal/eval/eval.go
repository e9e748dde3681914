// Package eval is a reference interpreter for the JavaScript subset the
// optimizer rewrites. It evaluates an IR store directly, so an optimized
// store and its original can be run side by side and their observable
// results compared.
//
// The interpreter is synchronous and single-threaded. Classes, generators,
// async functions, modules, regular expressions and JSX are outside the
// subset and report an *UnsupportedError.
package eval

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/jsvalue"
)

// DefaultMaxSteps bounds evaluation so a non-terminating program fails
// instead of hanging.
const DefaultMaxSteps = 1_000_000

// maxDepth is the call depth at which a RangeError is thrown.
const maxDepth = 500

// Interpreter evaluates one store. It is not safe for concurrent use.
type Interpreter struct {
	store    *ir.Store
	builtins *scope
	global   *scope
	maxSteps int
	steps    int
	depth    int
	output   []string
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithMaxSteps sets the evaluation step budget.
func WithMaxSteps(n int) Option {
	return func(in *Interpreter) {
		in.maxSteps = n
	}
}

// Result is the observable outcome of a program.
type Result struct {
	// Globals holds the top-level bindings after the program finished.
	Globals map[string]jsvalue.Value
	// Output holds one line per console.log call.
	Output []string
}

// Global returns the rendered value of a top-level binding.
func (r *Result) Global(name string) (string, bool) {
	v, ok := r.Globals[name]
	if !ok {
		return "", false
	}
	return Inspect(v), true
}

// Names returns the sorted names of the top-level bindings.
func (r *Result) Names() []string {
	return slices.Sorted(maps.Keys(r.Globals))
}

// New creates an interpreter for s.
func New(s *ir.Store, opts ...Option) *Interpreter {
	in := &Interpreter{store: s, maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(in)
	}
	in.builtins = newScope(nil, true)
	installBuiltins(in)
	in.global = newScope(in.builtins, true)
	return in
}

// Run evaluates the program. An uncaught exception is returned as a
// *ThrowError together with the partial result.
func (in *Interpreter) Run() (*Result, error) {
	root := in.store.Root()
	in.global.declare("this", jsvalue.Undefined, true)
	in.hoistVars(in.global, root)
	_, err := in.execList(in.global, in.store.Children(root))
	res := &Result{Globals: make(map[string]jsvalue.Value), Output: in.output}
	for name, b := range in.global.vars {
		if name != "this" {
			res.Globals[name] = b.v
		}
	}
	return res, err
}

// Run is shorthand for New(s, opts...).Run().
func Run(s *ir.Store, opts ...Option) (*Result, error) {
	return New(s, opts...).Run()
}

func (in *Interpreter) step() error {
	in.steps++
	if in.steps > in.maxSteps {
		return &StepLimitError{Limit: in.maxSteps}
	}
	return nil
}

// ThrowError is an exception that escaped the program.
type ThrowError struct {
	Value jsvalue.Value
	Span  ir.Span
}

func (e *ThrowError) Error() string {
	return fmt.Sprintf("uncaught exception at %d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, Inspect(e.Value))
}

// UnsupportedError reports a construct outside the interpreter's subset.
type UnsupportedError struct {
	Kind ir.Kind
	Span ir.Span
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%d:%d: %s is not supported by the interpreter", e.Span.Start.Line, e.Span.Start.Column, e.Kind)
}

// StepLimitError reports that the step budget ran out.
type StepLimitError struct {
	Limit int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("evaluation exceeded %d steps", e.Limit)
}

// IsThrowError reports whether err is an uncaught exception.
func IsThrowError(err error) bool {
	var te *ThrowError
	return errors.As(err, &te)
}

// IsUnsupportedError reports whether err is an *UnsupportedError.
func IsUnsupportedError(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}

func (in *Interpreter) unsupported(h ir.Handle) error {
	return &UnsupportedError{Kind: in.store.Kind(h), Span: in.store.Span(h)}
}

// throwError raises a built-in error object such as a TypeError.
func (in *Interpreter) throwError(h ir.Handle, name, message string) error {
	o := newObject()
	o.set("name", jsvalue.Str(name))
	o.set("message", jsvalue.Str(message))
	return &ThrowError{Value: jsvalue.Obj(o), Span: in.store.Span(h)}
}

type binding struct {
	v        jsvalue.Value
	constant bool
}

type scope struct {
	vars     map[string]*binding
	parent   *scope
	function bool
}

func newScope(parent *scope, function bool) *scope {
	return &scope{vars: make(map[string]*binding), parent: parent, function: function}
}

func (sc *scope) lookup(name string) *binding {
	for s := sc; s != nil; s = s.parent {
		if b, ok := s.vars[name]; ok {
			return b
		}
	}
	return nil
}

func (sc *scope) declare(name string, v jsvalue.Value, constant bool) {
	sc.vars[name] = &binding{v: v, constant: constant}
}

// functionScope is the nearest scope var declarations belong to.
func (sc *scope) functionScope() *scope {
	s := sc
	for !s.function {
		s = s.parent
	}
	return s
}
