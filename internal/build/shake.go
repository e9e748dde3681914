package build

import (
	"context"
	"slices"

	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/optimize"
)

// shake un-exports what no other unit uses in every non-entry unit and
// re-runs the pipeline on the units it changed. Removing code can leave
// imports unused, which frees exports in other units, so shaking relinks
// and repeats until a sweep removes nothing. Units are processed one at a
// time; ctx is checked between them.
func (b *Builder) shake(ctx context.Context, pipeline *optimize.Pipeline, r *Report, us *usage) error {
	entries := make(map[string]bool)
	if len(b.entries) > 0 {
		for _, p := range normalize(b.entries) {
			entries[p] = true
		}
	} else {
		for _, u := range r.Units {
			entries[u.Path] = !us.imported[u.Path]
		}
	}

	for sweep := 1; ; sweep++ {
		changed := false
		for _, u := range r.Units {
			if entries[u.Path] || us.all[u.Path] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			shaken, err := unexport(u.Store, us.names[u.Path])
			if err != nil {
				return err
			}
			if len(shaken) == 0 {
				continue
			}
			stats, diags, err := pipeline.Run(u.Store)
			if err != nil {
				return err
			}
			dropped, err := dropUnusedImports(u.Store)
			if err != nil {
				return err
			}
			changed = true
			u.Shaken = append(u.Shaken, shaken...)
			u.Exports = exportedNames(u.Store)
			u.Stats.Add(stats)
			u.Diagnostics = append(u.Diagnostics, diags.WithPath(u.Path)...).Dedup()
			b.logger.Debug("unit shaken", "path", u.Path, "sweep", sweep, "exports", shaken, "removed", stats.Removed, "imports_dropped", dropped)
		}
		if !changed {
			return nil
		}
		us = link(r)
	}
}

// dropUnusedImports removes import specifiers whose local binding nothing
// in s refers to. The import declaration itself stays so the imported
// unit is still evaluated. It returns the number of specifiers removed.
func dropUnusedImports(s *ir.Store) (int, error) {
	refs := optimize.ReferencedNames(s)
	n := 0
	for _, stmt := range s.Children(s.Root()) {
		if s.Kind(stmt) != ir.KindImportDecl {
			continue
		}
		for _, spec := range slices.Clone(s.Children(stmt)) {
			if refs[s.Str(spec, ir.AttrLocal)] {
				continue
			}
			if _, err := s.Remove(spec); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// unexport turns unused exports into plain declarations and drops unused
// export specifiers. It returns the export names it removed. Re-exports,
// type-only exports and destructured declarations are left alone.
func unexport(s *ir.Store, used map[string]bool) ([]string, error) {
	var shaken []string
	for _, stmt := range slices.Clone(s.Children(s.Root())) {
		if s.Kind(stmt) != ir.KindExportDecl || s.Str(stmt, ir.AttrSource) != "" || s.Str(stmt, ir.AttrKind) == "type" {
			continue
		}
		switch s.Str(stmt, ir.AttrForm) {
		case ir.ExportDeclaration:
			decl := s.Child(stmt, 0)
			names, ok := declaredNames(s, decl)
			if !ok || slices.ContainsFunc(names, func(n string) bool { return used[n] }) {
				continue
			}
			if err := unwrap(s, stmt, decl); err != nil {
				return shaken, err
			}
			shaken = append(shaken, names...)

		case ir.ExportDefault:
			decl := s.Child(stmt, 0)
			named := s.Str(decl, ir.AttrName) != ""
			if used["default"] || !named || (s.Kind(decl) != ir.KindFunctionDecl && s.Kind(decl) != ir.KindClassDecl) {
				continue
			}
			if err := unwrap(s, stmt, decl); err != nil {
				return shaken, err
			}
			shaken = append(shaken, "default")

		case ir.ExportNamed:
			removed := false
			for _, spec := range slices.Clone(s.Children(stmt)) {
				name := s.Str(spec, ir.AttrExported)
				if used[name] {
					continue
				}
				if _, err := s.Remove(spec); err != nil {
					return shaken, err
				}
				shaken = append(shaken, name)
				removed = true
			}
			if removed && len(s.Children(stmt)) == 0 {
				if _, err := s.Remove(stmt); err != nil {
					return shaken, err
				}
			}
		}
	}
	return shaken, nil
}

// unwrap replaces the export statement by the declaration it wraps.
func unwrap(s *ir.Store, stmt, decl ir.Handle) error {
	if err := s.Detach(decl); err != nil {
		return err
	}
	if err := s.Replace(stmt, decl); err != nil {
		return err
	}
	_, err := s.Discard(stmt)
	return err
}
