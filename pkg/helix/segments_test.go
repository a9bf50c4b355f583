package helix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/ir/irtest"
	"github.com/l3aro/go-loop-parallel/pkg/loopdep"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

func analyze(t *testing.T, l *irtest.Loop) *loopdep.Info {
	t.Helper()
	require.NotNil(t, l.Loop)
	return loopdep.Analyze(l.Fn, l.Loop, loopdep.Options{})
}

// guardedEmit builds `if i == 0 { emit(i) }`, so some iterations never
// enter the segment holding the call.
func guardedEmit() *irtest.Loop {
	l := irtest.Counted("guarded", nil, func(l *irtest.Loop, b *ir.Block) *ir.Block {
		then := l.Fn.NewBlock("then")
		join := l.Fn.NewBlock("join")
		first := b.Append(ir.OpICmp, "first", ir.I1, l.IV, ir.Const("0", ir.I64))
		b.CondBranch(first, then, join)
		emit := then.Append(ir.OpCall, "emit", ir.Void, l.IV)
		emit.Callee = "emit"
		then.Branch(join)
		return join
	})
	l.Exit.Append(ir.OpRet, "", ir.Void)
	return l
}

func segmentOf(segs []*plan.SequentialSegment, inst *ir.Instruction) *plan.SequentialSegment {
	for _, s := range segs {
		if segmentContains(s, inst) {
			return s
		}
	}
	return nil
}

func TestSegments_Fixture(t *testing.T) {
	l := irtest.Segments()
	segs := Segments(analyze(t, l))
	require.Len(t, segs, 2)
	for i, s := range segs {
		assert.Equal(t, i, s.ID)
		assert.Len(t, s.SCCs, 1)
	}

	emit := segmentOf(segs, l.Inst("emit"))
	require.NotNil(t, emit)
	assert.Equal(t, []*ir.Instruction{l.Inst("emit")}, emit.Entries)
	assert.Equal(t, []*ir.Instruction{l.Inst("emit")}, emit.Exits)

	rec := segmentOf(segs, l.Inst("t"))
	require.NotNil(t, rec)
	assert.NotSame(t, emit, rec)
	assert.Equal(t, []*ir.Instruction{l.Inst("t")}, rec.Entries)
	assert.Equal(t, []*ir.Instruction{l.Inst("t.next")}, rec.Exits)
}

func TestSegments_NoneWhenReducible(t *testing.T) {
	assert.Empty(t, Segments(analyze(t, irtest.Sum())))
}

func TestSegments_Chain(t *testing.T) {
	l := irtest.Chain()
	segs := Segments(analyze(t, l))
	require.Len(t, segs, 1)
	assert.Equal(t, []*ir.Instruction{l.Inst("d")}, segs[0].Entries)
	assert.Equal(t, []*ir.Instruction{l.Inst("d")}, segs[0].Exits)
}

func TestIterationFlow(t *testing.T) {
	l := guardedEmit()
	flow := newIterationFlow(l.Loop)
	then, join := l.Fn.Block("then"), l.Fn.Block("join")

	assert.Equal(t, l.Header, flow.blocks[0])
	assert.Len(t, flow.blocks, 4)
	assert.Empty(t, flow.preds(l.Header), "the back edge is not part of an iteration")
	assert.ElementsMatch(t, []*ir.Block{l.Body, then}, flow.preds(join))
	assert.True(t, flow.ends(join))
	assert.False(t, flow.ends(l.Body))

	member := func(inst *ir.Instruction) bool { return inst == l.Inst("emit") }
	assert.True(t, flow.skippable(member, join))
	assert.Equal(t, []*ir.Instruction{l.Inst("emit")}, flow.entries(member))
	assert.Equal(t, []*ir.Instruction{l.Inst("emit")}, flow.exits(member))

	always := func(inst *ir.Instruction) bool { return inst == l.Cmp }
	assert.False(t, flow.skippable(always, join))
}
