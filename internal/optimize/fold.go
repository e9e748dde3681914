package optimize

import (
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/jsvalue"
	"github.com/roach88/lumen/internal/wtf8"
)

// foldPass evaluates operators whose operands are literals. Arithmetic
// follows IEEE-754 doubles exactly, so Infinity and NaN propagate the way
// they would at run time.
type foldPass struct{}

func (*foldPass) Name() string { return PassFold }

func (*foldPass) Reads() []ir.Kind {
	return []ir.Kind{ir.KindBinary, ir.KindUnary, ir.KindLogical, ir.KindConditional, ir.KindTemplate,
		ir.KindNumber, ir.KindString, ir.KindBoolean, ir.KindNull}
}

func (*foldPass) Writes() []ir.Kind {
	return []ir.Kind{ir.KindNumber, ir.KindString, ir.KindBoolean, ir.KindNull}
}

func (*foldPass) Run(s *ir.Store) Outcome {
	var out Outcome
	// Children come first, so nested constants collapse in one pass.
	for _, h := range s.PostOrder(s.Root()) {
		if !s.Live(h) || s.Parent(h) == ir.NoHandle {
			continue
		}
		var folded bool
		switch s.Kind(h) {
		case ir.KindBinary:
			folded = foldBinary(s, h)
		case ir.KindUnary:
			folded = foldUnary(s, h)
		case ir.KindLogical:
			folded = foldLogical(s, h)
		case ir.KindConditional:
			folded = foldConditional(s, h)
		case ir.KindTemplate:
			folded = foldTemplate(s, h)
		}
		if folded {
			out.Changed = true
			out.Folded++
		}
	}
	return out
}

func foldBinary(s *ir.Store, h ir.Handle) bool {
	op := s.Str(h, ir.AttrOp)
	if !jsvalue.IsPureBinary(op) {
		return false
	}
	a, ok := literal(s, s.Child(h, 0))
	if !ok {
		return false
	}
	b, ok := literal(s, s.Child(h, 1))
	if !ok {
		return false
	}
	v, ok := jsvalue.Binary(op, a, b)
	if !ok {
		return false
	}
	return replaceWithValue(s, h, v)
}

func foldUnary(s *ir.Store, h ir.Handle) bool {
	op := s.Str(h, ir.AttrOp)
	if op == "delete" || op == "void" {
		return false
	}
	a, ok := literal(s, s.Child(h, 0))
	if !ok {
		return false
	}
	v, ok := jsvalue.Unary(op, a)
	if !ok {
		return false
	}
	return replaceWithValue(s, h, v)
}

// foldLogical keeps one operand when the left one is a literal:
// "0 && x" is 0, "1 && x" is x.
func foldLogical(s *ir.Store, h ir.Handle) bool {
	left, right := s.Child(h, 0), s.Child(h, 1)
	v, ok := literal(s, left)
	if !ok {
		return false
	}
	keepLeft := false
	switch s.Str(h, ir.AttrOp) {
	case "&&":
		keepLeft = !jsvalue.Truthy(v)
	case "||":
		keepLeft = jsvalue.Truthy(v)
	case "??":
		keepLeft = v.Kind != jsvalue.KindNull
	default:
		return false
	}
	keep := right
	if keepLeft {
		keep = left
	}
	if s.Kind(keep) == ir.KindMember && isCallee(s, h) {
		return false
	}
	return hoist(s, h, keep) == nil
}

func foldConditional(s *ir.Store, h ir.Handle) bool {
	v, ok := literal(s, s.Child(h, 0))
	if !ok {
		return false
	}
	keep := s.Child(h, 2)
	if jsvalue.Truthy(v) {
		keep = s.Child(h, 1)
	}
	if s.Kind(keep) == ir.KindMember && isCallee(s, h) {
		return false
	}
	return hoist(s, h, keep) == nil
}

// foldTemplate turns a template whose substitutions are all literals into
// a string. Tagged templates keep their parts.
func foldTemplate(s *ir.Store, h ir.Handle) bool {
	if s.Kind(s.Parent(h)) == ir.KindTaggedTemplate {
		return false
	}
	var out string
	for i, c := range s.Children(h) {
		if i%2 == 0 {
			out = wtf8.Concat(out, s.Str(c, ir.AttrValue))
			continue
		}
		v, ok := literal(s, c)
		if !ok {
			return false
		}
		out = wtf8.Concat(out, jsvalue.ToString(v))
	}
	return replaceWithValue(s, h, jsvalue.Str(out))
}

func replaceWithValue(s *ir.Store, h ir.Handle, v jsvalue.Value) bool {
	repl, ok := newLiteral(s, v, s.Span(h))
	if !ok {
		return false
	}
	if err := replaceWith(s, h, repl); err != nil {
		s.Discard(repl)
		return false
	}
	return true
}
