package pdg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-loop-parallel/pkg/depgraph"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/ir/irtest"
)

func edgeOf(t *testing.T, g *Graph, from, to ir.Value, typ depgraph.DepType) *Edge {
	t.Helper()
	for _, e := range g.EdgesBetween(from, to) {
		if e.Type == typ {
			return e
		}
	}
	return nil
}

func TestPDGBuilderBasic(t *testing.T) {
	l := irtest.Chain()
	g := Build(l.Fn, Options{})

	assert.Equal(t, len(l.Fn.Args)+len(l.Fn.Instructions()), g.NumInternalNodes())

	// def-use chain a -> b -> c -> d
	a, b, c, d := l.Inst("a"), l.Inst("b"), l.Inst("c"), l.Inst("d")
	assert.NotNil(t, edgeOf(t, g, a, b, depgraph.DepTypeData))
	assert.NotNil(t, edgeOf(t, g, b, c, depgraph.DepTypeData))
	assert.NotNil(t, edgeOf(t, g, c, d, depgraph.DepTypeData))

	// The IV update flows back into the PHI over the back edge.
	back := edgeOf(t, g, l.Next, l.IV, depgraph.DepTypeData)
	require.NotNil(t, back)
	assert.True(t, back.LoopCarried)
	fwd := edgeOf(t, g, l.IV, l.Next, depgraph.DepTypeData)
	require.NotNil(t, fwd)
	assert.False(t, fwd.LoopCarried)

	// Arguments feed address computations.
	assert.NotNil(t, edgeOf(t, g, l.Fn.Argument("x"), l.Inst("px"), depgraph.DepTypeData))
}

func TestPDGBuilder_ControlEdges(t *testing.T) {
	l := irtest.Diamond()
	g := Build(l.Fn, Options{})

	bodyBr := l.Body.Terminator()
	require.NotNil(t, bodyBr)

	// then/else are control dependent on the in-body branch.
	assert.NotNil(t, edgeOf(t, g, bodyBr, l.Inst("p"), depgraph.DepTypeControl))
	assert.NotNil(t, edgeOf(t, g, bodyBr, l.Inst("q"), depgraph.DepTypeControl))
	// join post-dominates the branch.
	assert.Nil(t, edgeOf(t, g, bodyBr, l.Inst("r"), depgraph.DepTypeControl))

	// The loop branch controls the body and, around the back edge, itself.
	assert.NotNil(t, edgeOf(t, g, l.Br, l.Inst("v"), depgraph.DepTypeControl))
	assert.NotNil(t, edgeOf(t, g, l.Br, l.Inst("r"), depgraph.DepTypeControl))
	self := edgeOf(t, g, l.Br, l.IV, depgraph.DepTypeControl)
	require.NotNil(t, self)
	assert.True(t, self.LoopCarried)

	// Nothing in the exit block depends on the loop branch.
	for _, inst := range l.Exit.Instrs {
		assert.Nil(t, edgeOf(t, g, l.Br, inst, depgraph.DepTypeControl))
	}
}

func TestPDGBuilder_MemoryEdges(t *testing.T) {
	l := irtest.Diamond()
	g := Build(l.Fn, Options{})
	v, st := l.Inst("v"), l.Inst("st")

	// Distinct arrays: no dependence between the load and the store.
	assert.Nil(t, edgeOf(t, g, v, st, depgraph.DepTypeMemory))
	self := edgeOf(t, g, st, st, depgraph.DepTypeMemory)
	require.NotNil(t, self)
	assert.True(t, self.Must)

	// A pessimistic oracle relates them both ways.
	g = Build(l.Fn, Options{Alias: ir.AliasFunc(func(a, b *ir.Instruction) ir.AliasResult {
		return ir.MayAlias
	})})
	fwd := edgeOf(t, g, v, st, depgraph.DepTypeMemory)
	bwd := edgeOf(t, g, st, v, depgraph.DepTypeMemory)
	require.NotNil(t, fwd)
	require.NotNil(t, bwd)
	assert.False(t, fwd.LoopCarried)
	assert.True(t, bwd.LoopCarried)
	assert.False(t, fwd.Must)
}

func TestLoopSubgraph(t *testing.T) {
	l := irtest.Sum()
	g := Build(l.Fn, Options{})
	lg := LoopSubgraph(g, l.Loop)

	assert.Equal(t, len(l.Loop.Instructions()), lg.NumInternalNodes())
	assert.True(t, lg.IsInternal(l.IV))
	assert.Equal(t, l.IV, lg.EntryNode().Value)

	// n, x and the return that consumes s are visible but external.
	assert.True(t, lg.IsInGraph(l.N))
	assert.False(t, lg.IsInternal(l.N))
	ret := l.Exit.Terminator()
	require.NotNil(t, ret)
	assert.True(t, lg.IsInGraph(ret))
	assert.False(t, lg.IsInternal(ret))
	assert.False(t, lg.IsInGraph(l.Entry.Terminator()))

	fg := FunctionSubgraph(g, l.Fn)
	assert.Equal(t, g.NumInternalNodes(), fg.NumInternalNodes())
	assert.Equal(t, g.NumEdges(), fg.NumEdges())
}

func TestBackwardSlice(t *testing.T) {
	l := irtest.Chain()
	g := Build(l.Fn, Options{})

	slice := BackwardSlice(g, l.Inst("c"), depgraph.DepTypeData)
	// The loop bound only reaches c through control, so n is not included.
	assert.Equal(t, []ir.Value{
		l.Fn.Argument("x"),
		l.IV, l.Inst("px"), l.Inst("a"), l.Inst("b"), l.Inst("c"), l.Next,
	}, slice)

	fwd := ForwardSlice(g, l.Inst("b"), depgraph.DepTypeData)
	assert.Equal(t, []ir.Value{l.Inst("b"), l.Inst("c"), l.Inst("d")}, fwd)
}

func TestGetDependencies(t *testing.T) {
	l := irtest.Chain()
	g := Build(l.Fn, Options{})

	info := GetDependencies(g, l.Inst("d"))
	assert.Len(t, info.DataIn, 2) // c and py
	assert.Empty(t, info.DataOut)
	assert.Len(t, info.ControlIn, 1)
	require.Len(t, info.MemoryIn, 1)
	assert.Same(t, info.MemoryIn[0], info.MemoryOut[0])

	assert.Equal(t, DependencyInfo{}, GetDependencies(g, ir.Const("1", ir.I64)))
}
