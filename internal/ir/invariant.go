package ir

import (
	"errors"
	"fmt"
	"slices"
)

// InvariantError reports a structural violation of a store. It is the only
// fatal condition in the pipeline, and it carries a dump of the store so the
// offending state can be inspected after the abort.
type InvariantError struct {
	Violations []string
	Dump       string
}

func (e *InvariantError) Error() string {
	if len(e.Violations) == 1 {
		return "ir invariant violated: " + e.Violations[0]
	}
	return fmt.Sprintf("ir invariant violated: %s (and %d more)", e.Violations[0], len(e.Violations)-1)
}

// IsInvariantError checks if an error is an InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// Validate checks the tree invariants:
//   - the root is a live Program node without a parent
//   - every other live node has exactly one live parent and appears exactly
//     once in that parent's child list
//   - every live node is reachable from the root, so the structure is a tree
//   - every Ref attribute names a live node
func (s *Store) Validate() error {
	var v []string
	add := func(format string, args ...any) {
		v = append(v, fmt.Sprintf(format, args...))
	}

	if !s.Live(s.root) {
		add("root #%d is not live", s.root)
		return &InvariantError{Violations: v, Dump: s.DumpHandles()}
	}
	if k := s.nodes[s.root].Kind; k != KindProgram {
		add("root #%d has kind %s, want Program", s.root, k)
	}
	if p := s.nodes[s.root].Parent; p != NoHandle {
		add("root #%d has parent #%d", s.root, p)
	}

	for h := 1; h < len(s.nodes); h++ {
		n := s.nodes[h]
		if n == nil {
			continue
		}
		handle := Handle(h)
		if handle != s.root {
			switch {
			case n.Parent == NoHandle:
				add("#%d (%s) has no parent", h, n.Kind)
			case !s.Live(n.Parent):
				add("#%d (%s) has dead parent #%d", h, n.Kind, n.Parent)
			default:
				count := 0
				for _, c := range s.nodes[n.Parent].Children {
					if c == handle {
						count++
					}
				}
				if count != 1 {
					add("#%d (%s) appears %d times in parent #%d", h, n.Kind, count, n.Parent)
				}
			}
		}
		for _, c := range n.Children {
			if !s.Live(c) {
				add("#%d (%s) has dead child #%d", h, n.Kind, c)
				continue
			}
			if s.nodes[c].Parent != handle {
				add("#%d (%s) lists child #%d whose parent is #%d", h, n.Kind, c, s.nodes[c].Parent)
			}
		}
		for _, key := range sortedKeys(n.Attrs) {
			if r, ok := n.Attrs[key].(Ref); ok && !s.Live(Handle(r)) {
				add("#%d (%s) attribute %q refers to dead node #%d", h, n.Kind, key, uint32(r))
			}
		}
	}

	seen := make(map[Handle]bool, s.live)
	stack := []Handle{s.root}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[h] {
			add("#%d is reachable twice from the root", h)
			continue
		}
		seen[h] = true
		for _, c := range s.Children(h) {
			if s.Live(c) {
				stack = append(stack, c)
			}
		}
	}
	if len(seen) != s.live {
		var lost []Handle
		for _, h := range s.Handles() {
			if !seen[h] {
				lost = append(lost, h)
			}
		}
		slices.Sort(lost)
		add("%d live node(s) unreachable from the root, first #%d", len(lost), lost[0])
	}

	if len(v) == 0 {
		return nil
	}
	return &InvariantError{Violations: v, Dump: s.DumpHandles()}
}
