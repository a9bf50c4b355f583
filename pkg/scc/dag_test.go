package scc

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-loop-parallel/pkg/depgraph"
	"github.com/l3aro/go-loop-parallel/pkg/ir/irtest"
	"github.com/l3aro/go-loop-parallel/pkg/pdg"
)

func loopDAG(t *testing.T, l *irtest.Loop) (*pdg.Graph, *DAG) {
	t.Helper()
	require.NotNil(t, l.Loop)
	lg := pdg.LoopSubgraph(pdg.Build(l.Fn, pdg.Options{}), l.Loop)
	return lg, NewDAG(lg)
}

// crossingEdges counts instruction-level edges between internal nodes that
// belong to different components.
func crossingEdges(g *pdg.Graph, d *DAG) int {
	n := 0
	for _, e := range g.Edges() {
		from, to := d.SCCOf(e.Src), d.SCCOf(e.Dst)
		if from != nil && to != nil && from != to {
			n++
		}
	}
	return n
}

func TestDAG_SubEdgePreservation(t *testing.T) {
	for _, l := range []*irtest.Loop{irtest.Chain(), irtest.Sum(), irtest.Diamond(), irtest.Segments(), irtest.EarlyExit()} {
		t.Run(l.Fn.Name, func(t *testing.T) {
			lg, d := loopDAG(t, l)
			assert.Equal(t, crossingEdges(lg, d), d.NumSubEdges())

			// Every internal value belongs to exactly one component.
			total := 0
			for _, s := range d.SCCs() {
				total += s.NumInternalNodes()
			}
			assert.Equal(t, lg.NumInternalNodes(), total)
		})
	}
}

func TestDAG_Chain(t *testing.T) {
	l := irtest.Chain()
	_, d := loopDAG(t, l)

	iv := d.SCCOf(l.IV)
	require.NotNil(t, iv)
	assert.Same(t, iv, d.SCCOf(l.Next))
	assert.Same(t, iv, d.SCCOf(l.Cmp))
	assert.Same(t, iv, d.SCCOf(l.Br))
	assert.True(t, iv.HasCycle())

	a, b := d.SCCOf(l.Inst("a")), d.SCCOf(l.Inst("b"))
	assert.NotSame(t, a, b)
	assert.Contains(t, d.Successors(a), b)
	assert.Contains(t, d.Predecessors(b), a)

	edges := d.EdgesBetween(a, b)
	require.Len(t, edges, 1)
	require.Len(t, edges[0].SubEdges, 1)
	assert.Equal(t, depgraph.DepTypeData, edges[0].Type)

	// The store depends on itself through memory.
	st := d.SCCOf(l.Inst("d"))
	assert.Equal(t, 1, st.NumInternalNodes())
	assert.True(t, st.HasCycle())
}

func TestDAG_TopologicalOrder(t *testing.T) {
	for _, l := range []*irtest.Loop{irtest.Chain(), irtest.Diamond(), irtest.EarlyExit()} {
		t.Run(l.Fn.Name, func(t *testing.T) {
			_, d := loopDAG(t, l)
			order := d.TopologicalOrder()
			require.Len(t, order, d.NumNodes())

			pos := make(map[*SCC]int)
			for i, s := range order {
				pos[s] = i
			}
			depths := d.Depths()
			for _, e := range d.Edges() {
				assert.Less(t, pos[e.Src], pos[e.Dst])
				assert.Less(t, depths[e.Src], depths[e.Dst])
			}
		})
	}
}

func TestDAG_Merge(t *testing.T) {
	l := irtest.Chain()
	_, d := loopDAG(t, l)
	a, b, c := d.SCCOf(l.Inst("a")), d.SCCOf(l.Inst("b")), d.SCCOf(l.Inst("c"))
	before := d.NumNodes()
	subBefore := d.NumSubEdges()

	// a -> b -> c: collapsing a and c would trap b in a cycle.
	_, err := d.Merge([]*SCC{a, c})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMergeCycle))
	assert.Equal(t, before, d.NumNodes())

	merged, err := d.Merge([]*SCC{a, b})
	require.NoError(t, err)
	assert.Equal(t, before-1, d.NumNodes())
	assert.Equal(t, 2, merged.NumInternalNodes())
	assert.Same(t, merged, d.SCCOf(l.Inst("a")))
	assert.Same(t, merged, d.SCCOf(l.Inst("b")))
	assert.Contains(t, d.Successors(merged), c)
	// The a -> b edge is now inside the merged component.
	assert.Equal(t, subBefore-1, d.NumSubEdges())
	assert.False(t, d.IsInGraph(a))

	_, err = d.Merge([]*SCC{a})
	assert.True(t, errors.Is(err, ErrUnknownSCC))
}

func TestDAG_Print(t *testing.T) {
	c := newCycleWithTail()
	d := NewDAG(c.g)

	var sb strings.Builder
	d.Print(&sb, "")
	assert.Contains(t, sb.String(), "SCCs: 2")
	assert.Contains(t, sb.String(), "scc0{x,y}")
	assert.Contains(t, sb.String(), "Edges: 1")
}
