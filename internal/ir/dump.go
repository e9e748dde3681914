package ir

import (
	"fmt"
	"strings"
)

// Dump renders the tree under the root as indented text. Handles are left
// out, so two stores with the same structure dump identically; Ref
// attributes print the kind of their target.
func (s *Store) Dump() string {
	var b strings.Builder
	s.dump(&b, s.root, 0, false)
	return b.String()
}

// DumpHandles renders every live subtree, orphans included, with handles.
// It is attached to InvariantError.
func (s *Store) DumpHandles() string {
	var b strings.Builder
	for _, h := range s.Handles() {
		n := s.nodes[h]
		if h == s.root || n.Parent == NoHandle || !s.Live(n.Parent) {
			if h != s.root {
				fmt.Fprintf(&b, "orphan ")
			}
			s.dump(&b, h, 0, true)
		}
	}
	return b.String()
}

func (s *Store) dump(b *strings.Builder, h Handle, depth int, handles bool) {
	n := s.Get(h)
	if n == nil {
		fmt.Fprintf(b, "%s<dead #%d>\n", strings.Repeat("  ", depth), h)
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	if handles {
		fmt.Fprintf(b, "#%d ", h)
	}
	b.WriteString(n.Kind.String())
	for _, k := range sortedKeys(n.Attrs) {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		if r, ok := n.Attrs[k].(Ref); ok && !handles {
			b.WriteString("->" + s.Kind(Handle(r)).String())
			continue
		}
		b.WriteString(FormatValue(n.Attrs[k]))
	}
	b.WriteByte('\n')
	for _, c := range n.Children {
		s.dump(b, c, depth+1, handles)
	}
}
