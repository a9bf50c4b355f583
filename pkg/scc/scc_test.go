package scc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-loop-parallel/pkg/depgraph"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/pdg"
)

// cycleWithTail builds the PDG of a two-node recurrence {x, y} and a tail
// branch z controlled by x:
//
//	x = phi [0, entry], [y, loop]
//	y = add x, 1
//	z = br
type cycleWithTail struct {
	g       *pdg.Graph
	x, y, z *ir.Instruction
}

func newCycleWithTail() *cycleWithTail {
	fn := ir.NewFunction("f")
	entry := fn.NewBlock("entry")
	loop := fn.NewBlock("loop")
	entry.Branch(loop)

	x := loop.AppendPHI("x", ir.I64, ir.Incoming{Value: ir.Const("0", ir.I64), Block: entry})
	y := loop.Append(ir.OpAdd, "y", ir.I64, x, ir.Const("1", ir.I64))
	x.AddIncoming(y, loop)
	z := loop.Append(ir.OpBr, "z", ir.Void)

	g := depgraph.New[ir.Value]()
	for _, v := range []ir.Value{x, y, z} {
		g.AddNode(v, true)
	}
	g.AddEdge(x, y, depgraph.DepTypeData)
	g.AddEdge(y, x, depgraph.DepTypeData).LoopCarried = true
	g.AddEdge(x, z, depgraph.DepTypeControl)
	return &cycleWithTail{g: g, x: x, y: y, z: z}
}

func nodesOf(g *pdg.Graph, values ...ir.Value) []*pdg.Node {
	out := make([]*pdg.Node, 0, len(values))
	for _, v := range values {
		out = append(out, g.MustFetchNode(v))
	}
	return out
}

func TestSCC_New(t *testing.T) {
	c := newCycleWithTail()
	s := New(c.g, nodesOf(c.g, c.x, c.y))

	assert.Equal(t, 2, s.NumInternalNodes())
	require.Len(t, s.ExternalNodes(), 1)
	assert.Equal(t, ir.Value(c.z), s.ExternalNodes()[0].Value)
	// x->y, y->x, x->z; no duplicate copy of y->x from the incoming pass.
	assert.Equal(t, 3, s.NumEdges())
	assert.True(t, s.Contains(c.x))
	assert.False(t, s.Contains(c.z))
	assert.Equal(t, []*ir.Instruction{c.x, c.y}, s.Instructions())

	// The source graph is not touched.
	assert.Equal(t, 3, c.g.NumEdges())
}

func TestSCC_HasCycle(t *testing.T) {
	c := newCycleWithTail()

	tests := []struct {
		name   string
		values []ir.Value
		want   bool
	}{
		{"two-node recurrence", []ir.Value{c.x, c.y}, true},
		{"lone tail", []ir.Value{c.z}, false},
		// y -> x comes back through the external node y.
		{"cycle through external node", []ir.Value{c.x}, true},
		{"whole graph", []ir.Value{c.x, c.y, c.z}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(c.g, nodesOf(c.g, tt.values...))
			assert.Equal(t, len(tt.values), s.NumInternalNodes())
			assert.Equal(t, tt.want, s.HasCycle())
		})
	}
}

func TestSCC_HasCycle_SelfLoopAndDiamond(t *testing.T) {
	g := depgraph.New[ir.Value]()
	vals := make([]ir.Value, 4)
	for i, name := range []string{"a", "b", "c", "d"} {
		vals[i] = ir.NewArgument(name, ir.I64)
		g.AddNode(vals[i], true)
	}
	// Diamond: reconverging paths are not a cycle.
	g.AddEdge(vals[0], vals[1], depgraph.DepTypeData)
	g.AddEdge(vals[0], vals[2], depgraph.DepTypeData)
	g.AddEdge(vals[1], vals[3], depgraph.DepTypeData)
	g.AddEdge(vals[2], vals[3], depgraph.DepTypeData)

	diamond := New(g, nodesOf(g, vals...))
	assert.False(t, diamond.HasCycle())

	g.AddEdge(vals[3], vals[3], depgraph.DepTypeMemory)
	self := New(g, nodesOf(g, vals[3]))
	assert.True(t, self.HasCycle())

	// Two disjoint pieces; only the second one is cyclic.
	h := depgraph.New[ir.Value]()
	p := []ir.Value{ir.NewArgument("p", ir.I64), ir.NewArgument("q", ir.I64), ir.NewArgument("r", ir.I64)}
	for _, v := range p {
		h.AddNode(v, true)
	}
	h.AddEdge(p[1], p[2], depgraph.DepTypeData)
	h.AddEdge(p[2], p[1], depgraph.DepTypeData)
	assert.True(t, New(h, nodesOf(h, p...)).HasCycle())
}

func TestComponents(t *testing.T) {
	c := newCycleWithTail()
	comps := Components(c.g)

	require.Len(t, comps, 2)
	assert.Equal(t, nodesOf(c.g, c.x, c.y), comps[0])
	assert.Equal(t, nodesOf(c.g, c.z), comps[1])
}

func TestSCC_String(t *testing.T) {
	c := newCycleWithTail()
	s := New(c.g, nodesOf(c.g, c.x, c.y))
	s.ID = 4
	assert.Equal(t, "scc4{x,y}", s.String())
}
