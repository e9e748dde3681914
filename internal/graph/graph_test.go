package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyGraph(t *testing.T) {
	g := New[string]()
	assert.Empty(t, g.SCCs())
	assert.Empty(t, g.Cycles())
	assert.Equal(t, map[string]bool{"x": true}, g.Reachable("x"))
}

func TestDAGHasNoCycles(t *testing.T) {
	g := New[string]()
	g.AddEdge("main", "helper")
	g.AddEdge("main", "util")
	g.AddEdge("helper", "util")

	assert.Empty(t, g.Cycles())
	assert.Len(t, g.SCCs(), 3)
	assert.Equal(t, []string{"helper", "main", "util"}, g.Nodes())
}

func TestSCCReverseTopologicalOrder(t *testing.T) {
	g := New[string]()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")

	assert.Equal(t, [][]string{{"c"}, {"b"}, {"a"}}, g.SCCs())
}

func TestSelfLoop(t *testing.T) {
	g := New[string]()
	g.AddEdge("fact", "fact")
	g.AddEdge("main", "fact")

	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"fact"}, cycles[0].Members)
	assert.Equal(t, []string{"fact", "fact"}, cycles[0].Path)
	assert.True(t, g.HasSelfLoop("fact"))
	assert.False(t, g.HasSelfLoop("main"))
}

func TestMutualRecursion(t *testing.T) {
	g := New[string]()
	g.AddEdge("isEven", "isOdd")
	g.AddEdge("isOdd", "isEven")
	g.AddEdge("main", "isEven")

	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"isEven", "isOdd"}, cycles[0].Members)
	assert.Equal(t, []string{"isEven", "isOdd", "isEven"}, cycles[0].Path)
	assert.Equal(t, "isEven -> isOdd -> isEven", cycles[0].String())

	in := g.InCycle()
	assert.True(t, in["isOdd"])
	assert.False(t, in["main"])
}

func TestThreeNodeCyclePath(t *testing.T) {
	g := New[string]()
	g.AddEdge("a.js", "b.js")
	g.AddEdge("b.js", "c.js")
	g.AddEdge("c.js", "a.js")

	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a.js", "b.js", "c.js", "a.js"}, cycles[0].Path)
}

func TestMultipleCyclesSorted(t *testing.T) {
	g := New[int]()
	g.AddEdge(5, 6)
	g.AddEdge(6, 5)
	g.AddEdge(1, 2)
	g.AddEdge(2, 1)
	g.AddEdge(3, 3)

	cycles := g.Cycles()
	require.Len(t, cycles, 3)
	assert.Equal(t, []int{1, 2}, cycles[0].Members)
	assert.Equal(t, []int{3}, cycles[1].Members)
	assert.Equal(t, []int{5, 6}, cycles[2].Members)
}

func TestReachable(t *testing.T) {
	g := New[string]()
	g.AddEdge("main", "used")
	g.AddEdge("used", "deep")
	g.AddEdge("unused", "deep")
	g.AddEdge("deep", "main")
	g.AddNode("island")

	marked := g.Reachable("main")
	assert.True(t, marked["main"])
	assert.True(t, marked["used"])
	assert.True(t, marked["deep"])
	assert.False(t, marked["unused"])
	assert.False(t, marked["island"])
	assert.True(t, g.Has("island"))
}

func TestDuplicateEdgesIgnored(t *testing.T) {
	g := New[string]()
	g.AddEdge("a", "b")
	g.AddEdge("a", "b")
	assert.Equal(t, []string{"b"}, g.Successors("a"))
}
