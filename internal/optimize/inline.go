package optimize

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/graph"
	"github.com/roach88/lumen/internal/ir"
)

// inlinePass replaces calls to simple functions by a copy of the returned
// expression with the arguments substituted for the parameters.
//
// A function is simple when it is a top-level, non-async, non-generator
// declaration with plain identifier parameters whose body is a single
// return statement. The returned expression may read its parameters and
// top-level constants, read properties and call other simple functions; it
// may not assign, allocate closures or refer to this or arguments.
type inlinePass struct{}

func (*inlinePass) Name() string { return PassInline }

func (*inlinePass) Reads() []ir.Kind {
	return []ir.Kind{ir.KindFunctionDecl, ir.KindParam, ir.KindReturn, ir.KindCall, ir.KindIdentifier}
}

func (*inlinePass) Writes() []ir.Kind { return []ir.Kind{ir.KindCall} }

// simpleFunc is an inlining candidate.
type simpleFunc struct {
	name   string
	params []string
	ret    ir.Handle
	calls  []string
	// refusal is set when calls to the function must be reported rather
	// than inlined.
	refusal string
}

func (*inlinePass) Run(s *ir.Store) Outcome {
	var out Outcome
	funcs := collectSimple(s)
	if len(funcs) == 0 {
		return out
	}
	// Calls inside a function that is itself refused are not reported;
	// the refusal at the outer call site already explains them.
	refused := make(map[ir.Handle]bool)
	for _, fn := range funcs {
		if fn.refusal != "" {
			refused[fn.ret] = true
		}
	}
	for _, call := range s.PostOrder(s.Root()) {
		if !s.Live(call) || s.Kind(call) != ir.KindCall || s.Flag(call, ir.AttrOptional) {
			continue
		}
		callee := s.Child(call, 0)
		if s.Kind(callee) != ir.KindIdentifier || s.Parent(call) == ir.NoHandle {
			continue
		}
		fn, ok := funcs[s.Str(callee, ir.AttrName)]
		if !ok {
			continue
		}
		reason := fn.refusal
		if reason == "" {
			reason = checkArguments(s, fn, s.Children(call)[1:])
		}
		if reason != "" {
			if !within(s, call, refused) {
				out.Diagnostics = append(out.Diagnostics, diag.Diagnostic{
					Kind:    diag.SemanticWarning,
					Code:    diag.CodeInlineSkipped,
					Message: fmt.Sprintf("call to %s not inlined: %s", fn.name, reason),
					Span:    s.Span(call),
				})
			}
			continue
		}
		if err := inlineCall(s, fn, call); err != nil {
			continue
		}
		out.Changed = true
		out.Inlined++
	}
	return out
}

// within reports whether h lies inside one of the subtrees in roots.
func within(s *ir.Store, h ir.Handle, roots map[ir.Handle]bool) bool {
	if roots[h] {
		return true
	}
	for a := range s.Ancestors(h) {
		if roots[a] {
			return true
		}
	}
	return false
}

// immutableGlobals may be read by an inlined expression unless the
// program declares them.
var immutableGlobals = map[string]bool{"undefined": true, "NaN": true, "Infinity": true}

// collectSimple finds the simple functions of the program. Functions that
// are simple in shape but unsafe to inline are returned with a refusal.
func collectSimple(s *ir.Store) map[string]*simpleFunc {
	var decls []ir.Handle
	count := make(map[string]int)
	consts := make(map[string]bool)
	functions := make(map[string]bool)
	for _, stmt := range s.Children(s.Root()) {
		if s.Kind(stmt) == ir.KindExportDecl {
			stmt = s.Child(stmt, 0)
		}
		switch s.Kind(stmt) {
		case ir.KindFunctionDecl:
			decls = append(decls, stmt)
			count[s.Str(stmt, ir.AttrName)]++
			functions[s.Str(stmt, ir.AttrName)] = true
		case ir.KindVariableDecl:
			for _, d := range s.Children(stmt) {
				if t := s.Child(d, 0); s.Kind(t) == ir.KindIdentifier {
					name := s.Str(t, ir.AttrName)
					count[name]++
					if s.Str(stmt, ir.AttrKind) == "const" {
						consts[name] = true
					}
				}
			}
		case ir.KindClassDecl, ir.KindEnumDecl:
			count[s.Str(stmt, ir.AttrName)]++
		case ir.KindImportDecl:
			for _, spec := range s.Children(stmt) {
				count[s.Str(spec, ir.AttrLocal)]++
			}
		}
	}
	shadowed, assigned := localBindings(s)

	funcs := make(map[string]*simpleFunc)
	for _, decl := range decls {
		fn, ok := simpleShape(s, decl)
		if !ok || count[fn.name] != 1 {
			continue
		}
		funcs[fn.name] = fn
	}

	// A free name must be a constant or another function, and no inner
	// scope may rebind any name the copy will mention.
	for _, fn := range funcs {
		names := append([]string{fn.name}, fn.calls...)
		for _, free := range freeNames(s, fn) {
			if !consts[free] && !functions[free] && !(immutableGlobals[free] && count[free] == 0) {
				fn.refusal = "reads mutable binding " + free
				break
			}
			names = append(names, free)
		}
		for _, n := range names {
			if fn.refusal != "" {
				break
			}
			switch {
			case shadowed[n]:
				fn.refusal = n + " is shadowed by an inner binding"
			case assigned[n]:
				fn.refusal = n + " is reassigned"
			}
		}
	}

	// Callees must be simple themselves; drop functions calling anything
	// else until the set is stable.
	for changed := true; changed; {
		changed = false
		for name, fn := range funcs {
			for _, callee := range fn.calls {
				if funcs[callee] == nil {
					delete(funcs, name)
					changed = true
					break
				}
			}
		}
	}

	g := graph.New[string]()
	for name, fn := range funcs {
		g.AddNode(name)
		for _, callee := range fn.calls {
			g.AddEdge(name, callee)
		}
	}
	for name := range g.InCycle() {
		if fn := funcs[name]; fn.refusal == "" {
			fn.refusal = "recursive"
		}
	}
	for changed := true; changed; {
		changed = false
		for _, name := range slices.Sorted(maps.Keys(funcs)) {
			fn := funcs[name]
			if fn.refusal != "" {
				continue
			}
			for _, callee := range fn.calls {
				if funcs[callee].refusal != "" {
					fn.refusal = "calls " + callee + ", which is not inlined"
					changed = true
					break
				}
			}
		}
	}
	return funcs
}

// simpleShape checks the declaration shape and collects the parameters and
// the callees of the returned expression.
func simpleShape(s *ir.Store, decl ir.Handle) (*simpleFunc, bool) {
	if s.Flag(decl, ir.AttrAsync) || s.Flag(decl, ir.AttrGenerator) {
		return nil, false
	}
	fn := &simpleFunc{name: s.Str(decl, ir.AttrName)}
	kids := s.Children(decl)
	if len(kids) == 0 {
		return nil, false
	}
	for _, param := range kids[:len(kids)-1] {
		if s.Kind(param) != ir.KindParam || s.Flag(param, ir.AttrRest) || len(s.Children(param)) != 1 {
			return nil, false
		}
		id := s.Child(param, 0)
		if s.Kind(id) != ir.KindIdentifier {
			return nil, false
		}
		name := s.Str(id, ir.AttrName)
		if name == "this" || slices.Contains(fn.params, name) {
			return nil, false
		}
		fn.params = append(fn.params, name)
	}
	body := kids[len(kids)-1]
	if s.Kind(body) != ir.KindBlock || len(s.Children(body)) != 1 {
		return nil, false
	}
	ret := s.Child(body, 0)
	if s.Kind(ret) != ir.KindReturn || len(s.Children(ret)) != 1 {
		return nil, false
	}
	fn.ret = s.Child(ret, 0)

	ok := true
	s.Walk(fn.ret, func(h ir.Handle) bool {
		if !ok {
			return false
		}
		switch s.Kind(h) {
		case ir.KindNumber, ir.KindString, ir.KindBoolean, ir.KindNull, ir.KindTemplate,
			ir.KindBinary, ir.KindLogical, ir.KindConditional, ir.KindMember, ir.KindAs,
			ir.KindNonNull, ir.KindSequence:
		case ir.KindUnary:
			ok = s.Str(h, ir.AttrOp) != "delete"
		case ir.KindIdentifier:
			name := s.Str(h, ir.AttrName)
			ok = name != "arguments" && name != "new.target"
		case ir.KindCall:
			callee := s.Child(h, 0)
			ok = s.Kind(callee) == ir.KindIdentifier && !s.Flag(h, ir.AttrOptional) &&
				!slices.Contains(fn.params, s.Str(callee, ir.AttrName))
			for _, a := range s.Children(h)[1:] {
				ok = ok && s.Kind(a) != ir.KindSpread
			}
			if ok && !slices.Contains(fn.calls, s.Str(callee, ir.AttrName)) {
				fn.calls = append(fn.calls, s.Str(callee, ir.AttrName))
			}
		default:
			ok = false
		}
		return ok
	})
	return fn, ok
}

// freeNames lists the identifiers the returned expression reads that are
// neither parameters nor callees.
func freeNames(s *ir.Store, fn *simpleFunc) []string {
	var out []string
	s.Walk(fn.ret, func(h ir.Handle) bool {
		if s.Kind(h) != ir.KindIdentifier {
			return true
		}
		if s.Kind(s.Parent(h)) == ir.KindCall && s.Child(s.Parent(h), 0) == h {
			return true
		}
		name := s.Str(h, ir.AttrName)
		if !slices.Contains(fn.params, name) && !slices.Contains(out, name) {
			out = append(out, name)
		}
		return true
	})
	return out
}

// localBindings returns the names bound anywhere below the top level and
// the names that are assigned to.
func localBindings(s *ir.Store) (shadowed, assigned map[string]bool) {
	shadowed = make(map[string]bool)
	assigned = make(map[string]bool)
	bindAll := func(target ir.Handle) {
		s.Walk(target, func(h ir.Handle) bool {
			if s.Kind(h) == ir.KindIdentifier {
				shadowed[s.Str(h, ir.AttrName)] = true
			}
			return true
		})
	}
	topLevel := func(h ir.Handle) bool {
		p := s.Parent(h)
		if s.Kind(p) == ir.KindExportDecl {
			p = s.Parent(p)
		}
		return p == s.Root()
	}
	for _, h := range s.Handles() {
		switch s.Kind(h) {
		case ir.KindParam, ir.KindCatch:
			if t := s.Child(h, 0); s.Kind(t) != ir.KindBlock {
				bindAll(t)
			}
		case ir.KindVariableDeclarator:
			if !topLevel(s.Parent(h)) {
				bindAll(s.Child(h, 0))
			}
		case ir.KindFunctionDecl, ir.KindClassDecl:
			if !topLevel(h) {
				shadowed[s.Str(h, ir.AttrName)] = true
			}
		case ir.KindFunctionExpr, ir.KindClassExpr:
			if name := s.Str(h, ir.AttrName); name != "" {
				shadowed[name] = true
			}
		case ir.KindAssign, ir.KindUpdate:
			// Patterns on the left of an assignment may assign several names.
			target := s.Child(h, 0)
			s.Walk(target, func(n ir.Handle) bool {
				if s.Kind(n) == ir.KindIdentifier {
					assigned[s.Str(n, ir.AttrName)] = true
				}
				return s.Kind(n) != ir.KindMember
			})
		case ir.KindFor:
			if f := s.Str(h, ir.AttrForm); f == "in" || f == "of" {
				if left := s.Child(h, 0); s.Kind(left) == ir.KindIdentifier {
					assigned[s.Str(left, ir.AttrName)] = true
				}
			}
		}
	}
	return shadowed, assigned
}

// checkArguments explains why a call's arguments cannot replace the
// parameters, or returns "".
func checkArguments(s *ir.Store, fn *simpleFunc, args []ir.Handle) string {
	if len(args) != len(fn.params) {
		return fmt.Sprintf("expects %d arguments, got %d", len(fn.params), len(args))
	}
	for i, a := range args {
		if s.Kind(a) == ir.KindSpread {
			return "spread argument"
		}
		if !pure(s, a) {
			return fmt.Sprintf("argument %d has side effects", i+1)
		}
		if allocates(s, a) && paramUses(s, fn, fn.params[i]) != 1 {
			return fmt.Sprintf("argument %d creates an object and would not be evaluated exactly once", i+1)
		}
	}
	return ""
}

func paramUses(s *ir.Store, fn *simpleFunc, name string) int {
	n := 0
	s.Walk(fn.ret, func(h ir.Handle) bool {
		if s.Kind(h) == ir.KindIdentifier && s.Str(h, ir.AttrName) == name {
			n++
		}
		return true
	})
	return n
}

// inlineCall replaces call by a fresh copy of fn's returned expression with
// copies of the arguments in place of the parameters.
func inlineCall(s *ir.Store, fn *simpleFunc, call ir.Handle) error {
	args := slices.Clone(s.Children(call)[1:])
	body, err := s.Clone(fn.ret)
	if err != nil {
		return err
	}
	var uses []ir.Handle
	s.Walk(body, func(h ir.Handle) bool {
		if s.Kind(h) == ir.KindIdentifier && slices.Contains(fn.params, s.Str(h, ir.AttrName)) {
			uses = append(uses, h)
		}
		return true
	})
	for _, use := range uses {
		arg, err := s.Clone(args[slices.Index(fn.params, s.Str(use, ir.AttrName))])
		if err != nil {
			return err
		}
		if use == body {
			if _, err := s.Discard(body); err != nil {
				return err
			}
			body = arg
			continue
		}
		if err := replaceWith(s, use, arg); err != nil {
			return err
		}
	}
	s.SetSpan(body, s.Span(call))
	return replaceWith(s, call, body)
}
