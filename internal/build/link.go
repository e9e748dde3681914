package build

import (
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/graph"
	"github.com/roach88/lumen/internal/ir"
)

// resolveExts are tried in order for extensionless specifiers.
var resolveExts = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}

// usage records which exports of each unit other units refer to.
type usage struct {
	names map[string]map[string]bool
	// all marks units whose whole export list is used, through a
	// namespace import or a star re-export.
	all map[string]bool
	// imported marks units some other unit imports.
	imported map[string]bool
	graph    *graph.Graph[string]
}

func (us *usage) use(path, name string) {
	if us.names[path] == nil {
		us.names[path] = make(map[string]bool)
	}
	us.names[path][name] = true
}

// link resolves imports between units and returns the export usage. It
// can run again after units change.
func link(r *Report) *usage {
	byPath := make(map[string]*Unit, len(r.Units))
	g := graph.New[string]()
	for _, u := range r.Units {
		byPath[norm.NFC.String(u.Path)] = u
		g.AddNode(u.Path)
	}
	us := &usage{
		names:    make(map[string]map[string]bool),
		all:      make(map[string]bool),
		imported: make(map[string]bool),
		graph:    g,
	}

	for _, u := range r.Units {
		s := u.Store
		u.Imports = nil
		for _, stmt := range s.Children(s.Root()) {
			kind := s.Kind(stmt)
			if kind != ir.KindImportDecl && kind != ir.KindExportDecl {
				continue
			}
			spec := s.Str(stmt, ir.AttrSource)
			target, ok := resolve(u.Path, spec, byPath)
			if !ok {
				continue
			}
			if !slices.Contains(u.Imports, target) {
				u.Imports = append(u.Imports, target)
			}
			if target != u.Path {
				us.imported[target] = true
			}
			g.AddEdge(u.Path, target)

			switch {
			case kind == ir.KindImportDecl:
				for _, is := range s.Children(stmt) {
					if name := s.Str(is, ir.AttrImported); name == "*" {
						us.all[target] = true
					} else {
						us.use(target, name)
					}
				}
			case s.Str(stmt, ir.AttrForm) == ir.ExportAll:
				us.all[target] = true
			default:
				for _, es := range s.Children(stmt) {
					us.use(target, s.Str(es, ir.AttrLocal))
				}
			}
		}
		slices.Sort(u.Imports)
		u.Exports = exportedNames(s)
	}

	return us
}

// cycles reports every import cycle of the linked units.
func (us *usage) cycles() diag.List {
	var out diag.List
	for _, c := range us.graph.Cycles() {
		out = append(out, diag.Diagnostic{
			Kind:    diag.SemanticWarning,
			Code:    diag.CodeImportCycle,
			Message: "import cycle: " + c.String(),
			Path:    c.Members[0],
		})
	}
	return out
}

// resolve maps a relative module specifier to a unit of the build. Bare
// specifiers name packages outside the build and never resolve. units is
// keyed by NFC path: file systems such as APFS and HFS+ may hand back
// decomposed names for a specifier written composed.
func resolve(from, spec string, units map[string]*Unit) (string, bool) {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return "", false
	}
	base := filepath.Join(filepath.Dir(from), filepath.FromSlash(spec))
	candidates := []string{base}
	for _, ext := range resolveExts {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range resolveExts {
		candidates = append(candidates, filepath.Join(base, "index"+ext))
	}
	for _, c := range candidates {
		if u, ok := units[norm.NFC.String(c)]; ok {
			return u.Path, true
		}
	}
	return "", false
}

// exportedNames lists the names a unit exports, in source order.
func exportedNames(s *ir.Store) []string {
	var out []string
	for _, stmt := range s.Children(s.Root()) {
		if s.Kind(stmt) != ir.KindExportDecl {
			continue
		}
		switch s.Str(stmt, ir.AttrForm) {
		case ir.ExportDeclaration:
			names, _ := declaredNames(s, s.Child(stmt, 0))
			out = append(out, names...)
		case ir.ExportDefault:
			out = append(out, "default")
		case ir.ExportNamed:
			for _, es := range s.Children(stmt) {
				out = append(out, s.Str(es, ir.AttrExported))
			}
		case ir.ExportAll:
			if name := s.Str(stmt, ir.AttrExported); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// declaredNames returns the names a declaration binds. ok is false when
// some binding is a destructuring pattern or the declaration has no
// runtime binding.
func declaredNames(s *ir.Store, decl ir.Handle) (names []string, ok bool) {
	switch s.Kind(decl) {
	case ir.KindFunctionDecl, ir.KindClassDecl, ir.KindEnumDecl:
		return []string{s.Str(decl, ir.AttrName)}, true
	case ir.KindVariableDecl:
		ok = true
		for _, d := range s.Children(decl) {
			t := s.Child(d, 0)
			if s.Kind(t) != ir.KindIdentifier {
				ok = false
				continue
			}
			names = append(names, s.Str(t, ir.AttrName))
		}
		return names, ok
	}
	return nil, false
}
