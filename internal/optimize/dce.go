package optimize

import (
	"slices"

	"github.com/roach88/lumen/internal/graph"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/jsvalue"
)

// dcePass removes code that can never run or whose result is never used.
//
// Liveness is computed over top-level bindings: exports, statements other
// than declarations, side-effecting initializers, entry functions and
// preserved names are roots; a declaration is live when a root reaches it
// through identifier references. Unreached declarations are removed.
type dcePass struct {
	entry    []string
	preserve []string
}

func (*dcePass) Name() string { return PassDCE }

func (*dcePass) Reads() []ir.Kind {
	return []ir.Kind{ir.KindProgram, ir.KindBlock, ir.KindCase, ir.KindIf, ir.KindIdentifier,
		ir.KindFunctionDecl, ir.KindClassDecl, ir.KindVariableDecl, ir.KindEnumDecl, ir.KindExportDecl}
}

func (*dcePass) Writes() []ir.Kind {
	return []ir.Kind{ir.KindProgram, ir.KindBlock, ir.KindCase, ir.KindIf,
		ir.KindFunctionDecl, ir.KindClassDecl, ir.KindVariableDecl, ir.KindVariableDeclarator, ir.KindEnumDecl}
}

// Run removes literal-test branches, then statements after a completion,
// then unreached bindings. Each step only exposes work for the later ones,
// so a second Run changes nothing.
func (d *dcePass) Run(s *ir.Store) Outcome {
	var out Outcome
	out.merge(pruneConstantIfs(s))
	out.merge(pruneUnreachable(s))
	out.merge(d.pruneBindings(s))
	return out
}

// pruneConstantIfs keeps the taken branch of an if statement whose test is
// a literal. A dropped branch declaring a var keeps the statement intact.
func pruneConstantIfs(s *ir.Store) Outcome {
	var out Outcome
	for _, h := range s.PostOrder(s.Root()) {
		if !s.Live(h) || s.Kind(h) != ir.KindIf || s.Parent(h) == ir.NoHandle {
			continue
		}
		v, ok := literal(s, s.Child(h, 0))
		if !ok {
			continue
		}
		taken, dropped := s.Child(h, 1), s.Child(h, 2)
		if !jsvalue.Truthy(v) {
			taken, dropped = dropped, taken
		}
		if dropped != ir.NoHandle && declaresVar(s, dropped) {
			continue
		}
		removed := s.SubtreeSize(h)
		if taken != ir.NoHandle {
			removed -= s.SubtreeSize(taken)
		}
		var err error
		switch {
		case taken != ir.NoHandle:
			err = hoist(s, h, taken)
		case inStatementList(s, h):
			_, err = s.Remove(h)
		default:
			err = replaceWith(s, h, s.New(ir.KindEmpty, s.Span(h)))
		}
		if err != nil {
			continue
		}
		out.Changed = true
		out.Removed += removed
	}
	return out
}

// inStatementList reports whether h may be removed from its parent without
// breaking the parent's child layout.
func inStatementList(s *ir.Store, h ir.Handle) bool {
	p := s.Parent(h)
	switch s.Kind(p) {
	case ir.KindProgram, ir.KindBlock:
		return true
	case ir.KindCase:
		return s.Flag(p, ir.AttrDefault) || s.IndexOf(p, h) > 0
	case ir.KindIf:
		return s.IndexOf(p, h) == 2
	}
	return false
}

// pruneUnreachable removes statements following return, throw, break or
// continue in the same list. Function declarations and var declarations
// are hoisted and stay.
func pruneUnreachable(s *ir.Store) Outcome {
	var out Outcome
	var lists []ir.Handle
	s.Walk(s.Root(), func(h ir.Handle) bool {
		switch s.Kind(h) {
		case ir.KindProgram, ir.KindBlock, ir.KindCase:
			lists = append(lists, h)
		}
		return true
	})
	for _, list := range lists {
		if !s.Live(list) {
			continue
		}
		start := 0
		if s.Kind(list) == ir.KindCase && !s.Flag(list, ir.AttrDefault) {
			start = 1
		}
		stmts := slices.Clone(s.Children(list))
		cut := -1
		for i := start; i < len(stmts); i++ {
			switch s.Kind(stmts[i]) {
			case ir.KindReturn, ir.KindThrow, ir.KindBreak, ir.KindContinue:
				cut = i
			}
			if cut >= 0 {
				break
			}
		}
		if cut < 0 {
			continue
		}
		for _, stmt := range stmts[cut+1:] {
			if hoisted(s, stmt) {
				continue
			}
			n, err := s.Remove(stmt)
			if err != nil {
				continue
			}
			out.Changed = true
			out.Removed += n
		}
	}
	return out
}

func hoisted(s *ir.Store, stmt ir.Handle) bool {
	switch s.Kind(stmt) {
	case ir.KindFunctionDecl:
		return true
	case ir.KindVariableDecl:
		return s.Str(stmt, ir.AttrKind) == "var"
	}
	return false
}

// binding is a removable top-level declaration.
type binding struct {
	stmt ir.Handle
	// decl is the declarator for variables, else stmt.
	decl ir.Handle
	name string
}

func (d *dcePass) pruneBindings(s *ir.Store) Outcome {
	g := graph.New[string]()
	var (
		bindings []binding
		roots    []string
		edges    = make(map[string][]string)
	)
	addRefs := func(from string, h ir.Handle) {
		references(s, h, func(name string) { edges[from] = append(edges[from], name) })
	}
	rootRefs := func(h ir.Handle) {
		references(s, h, func(name string) { roots = append(roots, name) })
	}
	declare := func(stmt, decl ir.Handle, name string, live bool) {
		g.AddNode(name)
		addRefs(name, decl)
		if live {
			roots = append(roots, name)
		} else {
			bindings = append(bindings, binding{stmt: stmt, decl: decl, name: name})
		}
	}

	for _, stmt := range s.Children(s.Root()) {
		switch s.Kind(stmt) {
		case ir.KindFunctionDecl:
			declare(stmt, stmt, s.Str(stmt, ir.AttrName), false)
		case ir.KindClassDecl, ir.KindEnumDecl:
			declare(stmt, stmt, s.Str(stmt, ir.AttrName), !pure(s, stmt))
		case ir.KindVariableDecl:
			for _, decl := range s.Children(stmt) {
				target := s.Child(decl, 0)
				if s.Kind(target) != ir.KindIdentifier {
					rootRefs(decl)
					continue
				}
				init := s.Child(decl, 1)
				live := init != ir.NoHandle && !pure(s, init)
				declare(stmt, decl, s.Str(target, ir.AttrName), live)
			}
		case ir.KindInterfaceDecl, ir.KindTypeAlias, ir.KindImportDecl, ir.KindEmpty:
			// no runtime references
		default:
			// exports and statements with effects
			rootRefs(stmt)
		}
	}
	roots = append(roots, d.entry...)
	roots = append(roots, d.preserve...)

	for from, tos := range edges {
		for _, to := range tos {
			if g.Has(to) {
				g.AddEdge(from, to)
			}
		}
	}
	var known []string
	for _, r := range roots {
		if g.Has(r) {
			known = append(known, r)
		}
	}
	live := g.Reachable(known...)
	protected := refTargets(s)

	var out Outcome
	for _, b := range bindings {
		if live[b.name] || protected[b.decl] || !s.Live(b.decl) {
			continue
		}
		n, err := s.Remove(b.decl)
		if err != nil {
			continue
		}
		out.Changed = true
		out.Removed += n
		if b.decl != b.stmt && len(s.Children(b.stmt)) == 0 {
			if n, err := s.Remove(b.stmt); err == nil {
				out.Removed += n
			}
		}
	}
	return out
}
