// Package graph provides the small directed-graph toolkit shared by the
// optimizer and the build orchestrator: reachability marking and strongly
// connected components.
//
// Call graphs between functions and import graphs between units are both
// expressed as Graph values keyed by name or path. Every result is returned
// in sorted order so diagnostics built from it are deterministic.
package graph

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Graph is a directed graph over ordered node keys. The zero value is not
// usable; call New.
type Graph[N cmp.Ordered] struct {
	edges map[N][]N
}

// New returns an empty graph.
func New[N cmp.Ordered]() *Graph[N] {
	return &Graph[N]{edges: make(map[N][]N)}
}

// AddNode ensures n exists, even with no edges.
func (g *Graph[N]) AddNode(n N) {
	if _, ok := g.edges[n]; !ok {
		g.edges[n] = nil
	}
}

// AddEdge adds from -> to, creating both nodes. Duplicate edges are ignored.
func (g *Graph[N]) AddEdge(from, to N) {
	g.AddNode(to)
	if slices.Contains(g.edges[from], to) {
		return
	}
	g.edges[from] = append(g.edges[from], to)
}

// Has reports whether n is a node.
func (g *Graph[N]) Has(n N) bool {
	_, ok := g.edges[n]
	return ok
}

// Nodes returns all nodes in sorted order.
func (g *Graph[N]) Nodes() []N {
	nodes := make([]N, 0, len(g.edges))
	for n := range g.edges {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	return nodes
}

// Successors returns the direct successors of n in insertion order.
func (g *Graph[N]) Successors(n N) []N {
	return slices.Clone(g.edges[n])
}

// HasSelfLoop reports whether n has an edge to itself.
func (g *Graph[N]) HasSelfLoop(n N) bool {
	return slices.Contains(g.edges[n], n)
}

// Reachable marks every node reachable from roots, roots included. Roots
// that are not nodes of the graph are still marked.
func (g *Graph[N]) Reachable(roots ...N) map[N]bool {
	marked := make(map[N]bool, len(roots))
	work := slices.Clone(roots)
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		if marked[n] {
			continue
		}
		marked[n] = true
		for _, s := range g.edges[n] {
			if !marked[s] {
				work = append(work, s)
			}
		}
	}
	return marked
}

// SCCs returns the strongly connected components using Tarjan's algorithm.
// Components come out in reverse topological order (a component appears
// before any component that reaches it); members of each are sorted.
func (g *Graph[N]) SCCs() [][]N {
	var (
		index   = 0
		stack   []N
		indices = make(map[N]int)
		lowlink = make(map[N]int)
		onStack = make(map[N]bool)
		sccs    [][]N
	)

	var strongConnect func(N)
	strongConnect = func(v N) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of a component: pop it.
		if lowlink[v] == indices[v] {
			var scc []N
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, n := range g.Nodes() {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

// Cycle is a strongly connected component that actually loops: more than
// one member, or a single member with a self edge.
type Cycle[N cmp.Ordered] struct {
	Members []N
	// Path walks the cycle from its smallest member back to itself,
	// e.g. [a b a].
	Path []N
}

func (c Cycle[N]) String() string {
	parts := make([]string, len(c.Path))
	for i, n := range c.Path {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, " -> ")
}

// Cycles returns every looping component, ordered by smallest member.
func (g *Graph[N]) Cycles() []Cycle[N] {
	var cycles []Cycle[N]
	for _, scc := range g.SCCs() {
		if len(scc) > 1 || g.HasSelfLoop(scc[0]) {
			cycles = append(cycles, Cycle[N]{Members: scc, Path: g.cyclePath(scc)})
		}
	}
	slices.SortFunc(cycles, func(a, b Cycle[N]) int { return cmp.Compare(a.Members[0], b.Members[0]) })
	return cycles
}

// InCycle reports, for every node, whether it belongs to a cycle.
func (g *Graph[N]) InCycle() map[N]bool {
	out := make(map[N]bool)
	for _, c := range g.Cycles() {
		for _, n := range c.Members {
			out[n] = true
		}
	}
	return out
}

// cyclePath follows edges inside the component from its first member until
// it returns there.
func (g *Graph[N]) cyclePath(scc []N) []N {
	start := scc[0]
	if len(scc) == 1 {
		return []N{start, start}
	}
	members := make(map[N]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	path := []N{start}
	visited := map[N]bool{start: true}
	current := start
	for {
		next, found := current, false
		// Prefer closing the loop, then the smallest unvisited member.
		succ := slices.Clone(g.edges[current])
		slices.Sort(succ)
		for _, s := range succ {
			if s == start && len(path) > 1 {
				next, found = s, true
				break
			}
		}
		if !found {
			for _, s := range succ {
				if members[s] && !visited[s] {
					next, found = s, true
					break
				}
			}
		}
		if !found {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		current = next
	}
}
