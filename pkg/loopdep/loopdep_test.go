package loopdep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/ir/irtest"
	"github.com/l3aro/go-loop-parallel/pkg/scc"
)

func TestAnalyze(t *testing.T) {
	l := irtest.Sum()
	info := Analyze(l.Fn, l.Loop, Options{})

	ok, reason := info.CheckShape()
	assert.True(t, ok, reason)
	assert.Equal(t, len(l.Loop.Instructions()), info.LoopPDG.NumInternalNodes())
	assert.Len(t, info.Attrs, info.DAG.NumNodes())
	assert.True(t, info.AttrsOf(info.DAG.SCCOf(l.Inst("s"))).IsReducible)
}

func TestInfo_AttrsAfterMerge(t *testing.T) {
	l := irtest.Chain()
	info := Analyze(l.Fn, l.Loop, Options{})

	_, err := scc.TailBranchMerge{}.Apply(info.DAG)
	require.NoError(t, err)
	merged := info.DAG.SCCOf(l.IV)
	_, cached := info.Attrs[merged]
	assert.False(t, cached)
	assert.True(t, info.AttrsOf(merged).HasIV)

	info.Refresh()
	assert.Len(t, info.Attrs, info.DAG.NumNodes())
}

func TestInfo_CheckShape(t *testing.T) {
	fn := ir.NewFunction("nest")
	entry := fn.NewBlock("entry")
	outer := fn.NewBlock("outer")
	inner := fn.NewBlock("inner")
	latch := fn.NewBlock("latch")
	exit := fn.NewBlock("exit")
	entry.Branch(outer)
	outer.Branch(inner)
	inner.CondBranch(ir.Const("1", ir.I1), inner, latch)
	latch.CondBranch(ir.Const("1", ir.I1), outer, exit)
	exit.Append(ir.OpRet, "", ir.Void)

	loops := ir.FindLoops(fn)
	require.Len(t, loops, 1)

	ok, reason := Analyze(fn, loops[0], Options{}).CheckShape()
	assert.False(t, ok)
	assert.Equal(t, "loop has nested sub-loops", reason)

	ok, reason = Analyze(fn, loops[0].SubLoops[0], Options{}).CheckShape()
	assert.True(t, ok, reason)
}
