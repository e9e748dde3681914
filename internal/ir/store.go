package ir

import (
	"fmt"
	"iter"
	"slices"
)

// Handle addresses a node inside one Store. Handles are assigned
// monotonically starting at 1 and are never reused.
type Handle uint32

// NoHandle is the sentinel for "no node", used for the root's parent and
// for detached nodes.
const NoHandle Handle = 0

// Pos is a location in source text. Offset is in bytes; Line and Column are
// 1-based, Column counted in runes.
type Pos struct {
	Offset int `json:"offset" yaml:"offset"`
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open source range [Start, End).
type Span struct {
	Start Pos `json:"start" yaml:"start"`
	End   Pos `json:"end" yaml:"end"`
}

func (s Span) String() string {
	return s.Start.String()
}

// Cover returns the smallest span containing both s and o.
func (s Span) Cover(o Span) Span {
	out := s
	if o.Start.Offset < out.Start.Offset {
		out.Start = o.Start
	}
	if o.End.Offset > out.End.Offset {
		out.End = o.End
	}
	return out
}

// Node is one IR node. Callers read nodes through Store.Get and must not
// mutate Parent or Children directly; use the Store's structural operations.
type Node struct {
	Kind     Kind
	Parent   Handle
	Children []Handle
	Span     Span
	Attrs    map[string]Value
}

// Store is the arena owning every node of a compilation unit.
// A Store is not safe for concurrent mutation; one goroutine owns it at a time.
type Store struct {
	nodes []*Node // indexed by handle; nil once discarded
	root  Handle
	live  int
}

// NewStore creates a store holding only an empty Program root.
func NewStore() *Store {
	s := &Store{nodes: make([]*Node, 1, 64)}
	s.root = s.New(KindProgram, Span{})
	return s
}

// Root returns the Program node.
func (s *Store) Root() Handle { return s.root }

// Len returns the number of live nodes.
func (s *Store) Len() int { return s.live }

// Next returns the handle the next New call will assign.
func (s *Store) Next() Handle { return Handle(len(s.nodes)) }

// New allocates a detached node.
func (s *Store) New(kind Kind, span Span) Handle {
	h := Handle(len(s.nodes))
	s.nodes = append(s.nodes, &Node{Kind: kind, Span: span})
	s.live++
	return h
}

// Live reports whether h names a node that has not been discarded.
func (s *Store) Live(h Handle) bool {
	return h != NoHandle && int(h) < len(s.nodes) && s.nodes[h] != nil
}

// Get returns the node for h, or nil when h is not live.
func (s *Store) Get(h Handle) *Node {
	if !s.Live(h) {
		return nil
	}
	return s.nodes[h]
}

// Kind returns the kind of h, or KindInvalid when h is not live.
func (s *Store) Kind(h Handle) Kind {
	if n := s.Get(h); n != nil {
		return n.Kind
	}
	return KindInvalid
}

// Parent returns the parent of h, or NoHandle.
func (s *Store) Parent(h Handle) Handle {
	if n := s.Get(h); n != nil {
		return n.Parent
	}
	return NoHandle
}

// Children returns the child list of h. The slice is owned by the store.
func (s *Store) Children(h Handle) []Handle {
	if n := s.Get(h); n != nil {
		return n.Children
	}
	return nil
}

// Child returns the i-th child of h, or NoHandle when out of range.
func (s *Store) Child(h Handle, i int) Handle {
	c := s.Children(h)
	if i < 0 || i >= len(c) {
		return NoHandle
	}
	return c[i]
}

// IndexOf returns the position of child in parent's child list, or -1.
func (s *Store) IndexOf(parent, child Handle) int {
	return slices.Index(s.Children(parent), child)
}

// Span returns the source span of h.
func (s *Store) Span(h Handle) Span {
	if n := s.Get(h); n != nil {
		return n.Span
	}
	return Span{}
}

// SetSpan replaces the span of h.
func (s *Store) SetSpan(h Handle, span Span) {
	if n := s.Get(h); n != nil {
		n.Span = span
	}
}

// Append attaches the detached node child as the last child of parent.
func (s *Store) Append(parent, child Handle) error {
	return s.Insert(parent, len(s.Children(parent)), child)
}

// Insert attaches the detached node child at position index of parent.
func (s *Store) Insert(parent Handle, index int, child Handle) error {
	if err := s.checkAttachable(parent, child); err != nil {
		return err
	}
	p := s.nodes[parent]
	if index < 0 || index > len(p.Children) {
		return fmt.Errorf("insert #%d into #%d: index %d out of range", child, parent, index)
	}
	p.Children = slices.Insert(p.Children, index, child)
	s.nodes[child].Parent = parent
	return nil
}

// Replace puts the detached node repl in old's slot. old is left detached
// and live; the caller decides whether to discard it.
func (s *Store) Replace(old, repl Handle) error {
	if !s.Live(old) {
		return fmt.Errorf("replace: #%d is not live", old)
	}
	parent := s.nodes[old].Parent
	if parent == NoHandle {
		return fmt.Errorf("replace: #%d is detached", old)
	}
	if err := s.checkAttachable(parent, repl); err != nil {
		return err
	}
	p := s.nodes[parent]
	i := slices.Index(p.Children, old)
	p.Children[i] = repl
	s.nodes[repl].Parent = parent
	s.nodes[old].Parent = NoHandle
	return nil
}

// Detach removes h from its parent's child list. The subtree stays live.
func (s *Store) Detach(h Handle) error {
	if !s.Live(h) {
		return fmt.Errorf("detach: #%d is not live", h)
	}
	if h == s.root {
		return fmt.Errorf("detach: cannot detach the root")
	}
	n := s.nodes[h]
	if n.Parent == NoHandle {
		return nil
	}
	p := s.nodes[n.Parent]
	if i := slices.Index(p.Children, h); i >= 0 {
		p.Children = slices.Delete(p.Children, i, i+1)
	}
	n.Parent = NoHandle
	return nil
}

// Discard frees the detached subtree rooted at h and returns the number of
// nodes freed. Every handle in the subtree becomes invalid.
func (s *Store) Discard(h Handle) (int, error) {
	if !s.Live(h) {
		return 0, fmt.Errorf("discard: #%d is not live", h)
	}
	if h == s.root {
		return 0, fmt.Errorf("discard: cannot discard the root")
	}
	if s.nodes[h].Parent != NoHandle {
		return 0, fmt.Errorf("discard: #%d is still attached to #%d", h, s.nodes[h].Parent)
	}
	return s.free(h), nil
}

// Remove detaches and discards h.
func (s *Store) Remove(h Handle) (int, error) {
	if err := s.Detach(h); err != nil {
		return 0, err
	}
	return s.Discard(h)
}

func (s *Store) free(h Handle) int {
	n := s.nodes[h]
	count := 1
	for _, c := range n.Children {
		if s.Live(c) {
			count += s.free(c)
		}
	}
	s.nodes[h] = nil
	s.live--
	return count
}

// DiscardOrphans frees every detached subtree whose root handle is at least
// from. Parsers use it to drop partially built nodes after a syntax error.
func (s *Store) DiscardOrphans(from Handle) int {
	freed := 0
	for h := max(from, 1); int(h) < len(s.nodes); h++ {
		n := s.nodes[h]
		if n == nil || h == s.root || n.Parent != NoHandle {
			continue
		}
		freed += s.free(h)
	}
	return freed
}

func (s *Store) checkAttachable(parent, child Handle) error {
	if !s.Live(parent) {
		return fmt.Errorf("attach #%d: parent #%d is not live", child, parent)
	}
	if !s.Live(child) {
		return fmt.Errorf("attach #%d to #%d: child is not live", child, parent)
	}
	if child == s.root {
		return fmt.Errorf("attach: the root cannot become a child")
	}
	if cp := s.nodes[child].Parent; cp != NoHandle {
		return fmt.Errorf("attach #%d to #%d: already attached to #%d", child, parent, cp)
	}
	for a := parent; a != NoHandle; a = s.nodes[a].Parent {
		if a == child {
			return fmt.Errorf("attach #%d to #%d: would create a cycle", child, parent)
		}
	}
	return nil
}

// SetAttr sets an attribute. It is a no-op when h is not live.
func (s *Store) SetAttr(h Handle, key string, v Value) {
	n := s.Get(h)
	if n == nil {
		return
	}
	if n.Attrs == nil {
		n.Attrs = make(map[string]Value, 2)
	}
	n.Attrs[key] = v
}

// DelAttr removes an attribute.
func (s *Store) DelAttr(h Handle, key string) {
	if n := s.Get(h); n != nil {
		delete(n.Attrs, key)
	}
}

// Attr returns the attribute stored under key.
func (s *Store) Attr(h Handle, key string) (Value, bool) {
	n := s.Get(h)
	if n == nil {
		return nil, false
	}
	v, ok := n.Attrs[key]
	return v, ok
}

// Str returns a string attribute, or "" when absent or of another type.
func (s *Store) Str(h Handle, key string) string {
	v, _ := s.Attr(h, key)
	str, _ := v.(String)
	return string(str)
}

// Num returns a number attribute.
func (s *Store) Num(h Handle, key string) (float64, bool) {
	v, _ := s.Attr(h, key)
	n, ok := v.(Number)
	return float64(n), ok
}

// Flag returns a boolean attribute, false when absent.
func (s *Store) Flag(h Handle, key string) bool {
	v, _ := s.Attr(h, key)
	b, _ := v.(Bool)
	return bool(b)
}

// RefAttr returns a handle attribute, NoHandle when absent.
func (s *Store) RefAttr(h Handle, key string) Handle {
	v, _ := s.Attr(h, key)
	r, _ := v.(Ref)
	return Handle(r)
}

// Clone deep-copies the subtree rooted at h with fresh handles. Ref
// attributes pointing inside the subtree are remapped to the copies; refs
// pointing outside are kept. The copy is detached.
func (s *Store) Clone(h Handle) (Handle, error) {
	if !s.Live(h) {
		return NoHandle, fmt.Errorf("clone: #%d is not live", h)
	}
	mapping := make(map[Handle]Handle)
	var copyNode func(src Handle) Handle
	copyNode = func(src Handle) Handle {
		n := s.nodes[src]
		dst := s.New(n.Kind, n.Span)
		mapping[src] = dst
		for _, c := range n.Children {
			cc := copyNode(c)
			s.nodes[cc].Parent = dst
			s.nodes[dst].Children = append(s.nodes[dst].Children, cc)
		}
		return dst
	}
	out := copyNode(h)
	for src, dst := range mapping {
		for k, v := range s.nodes[src].Attrs {
			if r, ok := v.(Ref); ok {
				if m, ok := mapping[Handle(r)]; ok {
					v = Ref(m)
				}
			}
			s.SetAttr(dst, k, v)
		}
	}
	return out, nil
}

// Walk visits the subtree rooted at h in pre-order. Returning false from fn
// skips the node's children. Child lists are snapshotted before descending.
func (s *Store) Walk(h Handle, fn func(Handle) bool) {
	if !s.Live(h) || !fn(h) {
		return
	}
	for _, c := range slices.Clone(s.Children(h)) {
		s.Walk(c, fn)
	}
}

// PostOrder returns the handles of the subtree rooted at h, children first.
func (s *Store) PostOrder(h Handle) []Handle {
	var out []Handle
	var visit func(Handle)
	visit = func(n Handle) {
		for _, c := range s.Children(n) {
			visit(c)
		}
		out = append(out, n)
	}
	if s.Live(h) {
		visit(h)
	}
	return out
}

// Ancestors yields the parents of h, nearest first, ending at the root.
func (s *Store) Ancestors(h Handle) iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for p := s.Parent(h); p != NoHandle; p = s.Parent(p) {
			if !yield(p) {
				return
			}
		}
	}
}

// Handles returns all live handles in ascending order.
func (s *Store) Handles() []Handle {
	out := make([]Handle, 0, s.live)
	for h := 1; h < len(s.nodes); h++ {
		if s.nodes[h] != nil {
			out = append(out, Handle(h))
		}
	}
	return out
}

// SubtreeSize counts the nodes of the subtree rooted at h.
func (s *Store) SubtreeSize(h Handle) int {
	n := 0
	s.Walk(h, func(Handle) bool { n++; return true })
	return n
}

// Assemble rebuilds a store from decoded nodes, keeping their handles.
// next must exceed every handle in nodes. The result is validated.
func Assemble(root, next Handle, nodes map[Handle]*Node) (*Store, error) {
	for h := range nodes {
		if h == NoHandle || h >= next {
			return nil, fmt.Errorf("assemble: handle #%d outside [1, %d)", h, next)
		}
	}
	s := &Store{nodes: make([]*Node, next), root: root}
	for h, n := range nodes {
		s.nodes[h] = n
		s.live++
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
