package scc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-loop-parallel/pkg/ir/irtest"
)

func TestTailBranchMerge_CycleWithTail(t *testing.T) {
	c := newCycleWithTail()
	d := NewDAG(c.g)
	require.Equal(t, 2, d.NumNodes())
	assert.True(t, IsTailBranch(d, d.SCCOf(c.z)))
	assert.False(t, IsTailBranch(d, d.SCCOf(c.x)))

	n, err := TailBranchMerge{}.Apply(d)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, d.NumNodes())
	assert.Equal(t, 1, d.Merged())

	n, err = TailBranchMerge{}.Apply(d)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, d.Merged())

	merged := d.SCCOf(c.z)
	assert.Same(t, merged, d.SCCOf(c.x))
	assert.Same(t, merged, d.SCCOf(c.y))
	assert.Equal(t, 3, merged.NumInternalNodes())
	assert.True(t, merged.HasCycle())
	assert.Zero(t, d.NumEdges())
}

func TestTailBranchMerge_Loops(t *testing.T) {
	for _, l := range []*irtest.Loop{irtest.Chain(), irtest.Sum(), irtest.Diamond(), irtest.EarlyExit(), irtest.Segments()} {
		t.Run(l.Fn.Name, func(t *testing.T) {
			_, d := loopDAG(t, l)
			before := d.NumNodes()
			tails := 0
			for _, s := range d.SCCs() {
				if IsTailBranch(d, s) && len(d.Predecessors(s)) > 0 {
					tails++
				}
			}

			n, err := TailBranchMerge{}.Apply(d)
			require.NoError(t, err)
			assert.Equal(t, tails, n)
			assert.Equal(t, before-n, d.NumNodes())

			// Still acyclic: a topological order covers every node.
			assert.Len(t, d.TopologicalOrder(), d.NumNodes())
			for _, s := range d.SCCs() {
				if len(d.Predecessors(s)) > 0 {
					assert.False(t, IsTailBranch(d, s), "tail %v left behind", s)
				}
			}
		})
	}
}

func TestTailBranchMerge_BodyBranchJoinsLoopControl(t *testing.T) {
	l := irtest.Chain()
	_, d := loopDAG(t, l)
	back := l.Latch.Terminator()
	require.NotNil(t, back)
	require.NotSame(t, d.SCCOf(back), d.SCCOf(l.IV))

	_, err := TailBranchMerge{}.Apply(d)
	require.NoError(t, err)
	assert.Same(t, d.SCCOf(back), d.SCCOf(l.IV))
}

func TestNoMerge(t *testing.T) {
	c := newCycleWithTail()
	d := NewDAG(c.g)
	n, err := NoMerge{}.Apply(d)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, d.NumNodes())
	assert.Zero(t, d.Merged())
}
