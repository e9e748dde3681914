package optimize

import (
	"strings"

	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/jsvalue"
)

// literal returns the value of a primitive literal node. BigInt literals
// are not folded.
func literal(s *ir.Store, h ir.Handle) (jsvalue.Value, bool) {
	switch s.Kind(h) {
	case ir.KindNumber:
		if s.Flag(h, ir.AttrBigInt) {
			return jsvalue.Undefined, false
		}
		n, ok := s.Num(h, ir.AttrValue)
		return jsvalue.Num(n), ok
	case ir.KindString:
		return jsvalue.Str(s.Str(h, ir.AttrValue)), true
	case ir.KindBoolean:
		return jsvalue.Boolean(s.Flag(h, ir.AttrValue)), true
	case ir.KindNull:
		return jsvalue.Null, true
	}
	return jsvalue.Undefined, false
}

// newLiteral builds a detached literal node holding v. Undefined and
// objects have no literal form.
func newLiteral(s *ir.Store, v jsvalue.Value, span ir.Span) (ir.Handle, bool) {
	var h ir.Handle
	switch v.Kind {
	case jsvalue.KindNumber:
		h = s.New(ir.KindNumber, span)
		s.SetAttr(h, ir.AttrValue, ir.Number(v.Num))
		s.SetAttr(h, ir.AttrRaw, ir.String(jsvalue.NumberToString(v.Num)))
	case jsvalue.KindString:
		h = s.New(ir.KindString, span)
		s.SetAttr(h, ir.AttrValue, ir.String(v.Str))
		s.SetAttr(h, ir.AttrRaw, ir.String(jsvalue.Quote(v.Str)))
	case jsvalue.KindBoolean:
		h = s.New(ir.KindBoolean, span)
		s.SetAttr(h, ir.AttrValue, ir.Bool(v.Bool))
	case jsvalue.KindNull:
		h = s.New(ir.KindNull, span)
	default:
		return ir.NoHandle, false
	}
	return h, true
}

// pure reports whether evaluating the expression h has no observable
// effect. Coercions through valueOf or toString on user objects, getters
// and reads of undeclared globals are not considered effects.
func pure(s *ir.Store, h ir.Handle) bool {
	switch s.Kind(h) {
	case ir.KindNumber, ir.KindString, ir.KindBoolean, ir.KindNull, ir.KindRegExp,
		ir.KindIdentifier, ir.KindThis, ir.KindFunctionExpr, ir.KindArrow,
		ir.KindFunctionDecl, ir.KindEmpty:
		return true
	case ir.KindTemplate, ir.KindLogical, ir.KindConditional, ir.KindSequence,
		ir.KindArray, ir.KindAs, ir.KindNonNull, ir.KindProperty:
		return allPure(s, s.Children(h))
	case ir.KindUnary:
		return s.Str(h, ir.AttrOp) != "delete" && allPure(s, s.Children(h))
	case ir.KindBinary:
		switch s.Str(h, ir.AttrOp) {
		case "in", "instanceof":
			return false
		}
		return allPure(s, s.Children(h))
	case ir.KindObject:
		return allPure(s, s.Children(h))
	case ir.KindMethod:
		return !s.Flag(h, ir.AttrComputed) || pure(s, s.Child(h, 0))
	case ir.KindClassExpr, ir.KindClassDecl:
		return pureClass(s, h)
	case ir.KindEnumDecl:
		for _, m := range s.Children(h) {
			if !allPure(s, s.Children(m)) {
				return false
			}
		}
		return true
	}
	return false
}

func allPure(s *ir.Store, hs []ir.Handle) bool {
	for _, h := range hs {
		if !pure(s, h) {
			return false
		}
	}
	return true
}

// pureClass reports whether defining the class runs no user code.
func pureClass(s *ir.Store, h ir.Handle) bool {
	if s.Flag(h, ir.AttrExtends) {
		return false
	}
	for _, m := range s.Children(h) {
		switch s.Kind(m) {
		case ir.KindMethod:
			if !pure(s, m) {
				return false
			}
		case ir.KindClassProperty:
			kids := s.Children(m)
			if s.Flag(m, ir.AttrComputed) && len(kids) > 0 && !pure(s, kids[0]) {
				return false
			}
			if s.Flag(m, ir.AttrStatic) && !allPure(s, kids) {
				return false
			}
		case ir.KindBlock:
			// static initialization block
			return false
		}
	}
	return true
}

// allocates reports whether evaluating h creates an object with identity,
// so that evaluating it twice is observable.
func allocates(s *ir.Store, h ir.Handle) bool {
	found := false
	s.Walk(h, func(n ir.Handle) bool {
		switch s.Kind(n) {
		case ir.KindObject, ir.KindArray, ir.KindFunctionExpr, ir.KindArrow,
			ir.KindClassExpr, ir.KindRegExp:
			found = true
		}
		return !found
	})
	return found
}

// references calls add for every name read inside h. Binding occurrences
// are included, which only over-approximates liveness.
func references(s *ir.Store, h ir.Handle, add func(string)) {
	s.Walk(h, func(n ir.Handle) bool {
		switch s.Kind(n) {
		case ir.KindIdentifier:
			add(s.Str(n, ir.AttrName))
		case ir.KindJSXElement:
			name := s.Str(n, ir.AttrName)
			if i := strings.IndexAny(name, ".:"); i >= 0 {
				name = name[:i]
			}
			add(name)
		case ir.KindExportSpecifier:
			add(s.Str(n, ir.AttrLocal))
		}
		return true
	})
}

// ReferencedNames returns every name the top-level statements of s refer
// to, import declarations excluded. Any identifier with the name counts,
// so the set can only be too large.
func ReferencedNames(s *ir.Store) map[string]bool {
	out := make(map[string]bool)
	for _, stmt := range s.Children(s.Root()) {
		if s.Kind(stmt) == ir.KindImportDecl {
			continue
		}
		references(s, stmt, func(name string) { out[name] = true })
	}
	return out
}

// refTargets returns every handle some Ref attribute points at.
func refTargets(s *ir.Store) map[ir.Handle]bool {
	out := make(map[ir.Handle]bool)
	for _, h := range s.Handles() {
		for _, v := range s.Get(h).Attrs {
			if r, ok := v.(ir.Ref); ok {
				out[ir.Handle(r)] = true
			}
		}
	}
	return out
}

// isFunctionBoundary reports whether h starts a new var scope.
func isFunctionBoundary(s *ir.Store, h ir.Handle) bool {
	switch s.Kind(h) {
	case ir.KindFunctionDecl, ir.KindFunctionExpr, ir.KindArrow, ir.KindMethod,
		ir.KindClassDecl, ir.KindClassExpr:
		return true
	}
	return false
}

// declaresVar reports whether h contains a var declaration hoisted out of
// it, which must survive even when h never runs.
func declaresVar(s *ir.Store, h ir.Handle) bool {
	found := false
	s.Walk(h, func(n ir.Handle) bool {
		if found || (n != h && isFunctionBoundary(s, n)) {
			return false
		}
		if s.Kind(n) == ir.KindVariableDecl && s.Str(n, ir.AttrKind) == "var" {
			found = true
		}
		return !found
	})
	return found
}

// replaceWith puts the detached node repl in h's slot and frees h.
func replaceWith(s *ir.Store, h, repl ir.Handle) error {
	if err := s.Replace(h, repl); err != nil {
		return err
	}
	_, err := s.Discard(h)
	return err
}

// hoist replaces h by its own child c.
func hoist(s *ir.Store, h, c ir.Handle) error {
	if err := s.Detach(c); err != nil {
		return err
	}
	return replaceWith(s, h, c)
}

// isCallee reports whether h is in a position where replacing a member
// expression would change the receiver or the operation: a call target,
// a tag, or a delete operand.
func isCallee(s *ir.Store, h ir.Handle) bool {
	p := s.Parent(h)
	switch s.Kind(p) {
	case ir.KindCall, ir.KindTaggedTemplate, ir.KindNew:
		return s.Child(p, 0) == h
	case ir.KindUnary:
		return s.Str(p, ir.AttrOp) == "delete"
	}
	return false
}
