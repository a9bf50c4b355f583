package helix

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-loop-parallel/pkg/ir/irtest"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

func TestSynchronize_Segments(t *testing.T) {
	l := irtest.Segments()
	segs := Segments(analyze(t, l))
	sp := Synchronize(l.Loop, segs, 0)

	assert.Equal(t, plan.CacheLineSize, sp.Stride)
	assert.Equal(t, 2, sp.NumSegments)
	assert.Equal(t, 128, sp.ArrayBytes())
	assert.Equal(t, []int{0, 1}, sp.FlagResets)
	assert.Empty(t, sp.IterationEnd, "every iteration runs both segments")

	rec := segmentOf(segs, l.Inst("t"))
	require.NotNil(t, rec)
	waits := sp.WaitsOf(rec.ID)
	require.Len(t, waits, 1)
	assert.Same(t, l.Cmp, waits[0].Before, "waits go after the PHIs")
	assert.Equal(t, rec.ID*64, waits[0].Offset)
	assert.True(t, strings.HasPrefix(waits[0].PreCheck, "header.ss"))
	assert.True(t, strings.HasSuffix(waits[0].WaitBlock, ".wait"))

	signals := sp.SignalsOf(rec.ID)
	require.Len(t, signals, 1)
	assert.Same(t, l.Next, signals[0].Before)

	emit := segmentOf(segs, l.Inst("emit"))
	require.NotNil(t, emit)
	require.Len(t, sp.WaitsOf(emit.ID), 1)
	assert.Same(t, l.Inst("emit"), sp.WaitsOf(emit.ID)[0].Before)
	assert.Same(t, l.Inst("t.next"), sp.SignalsOf(emit.ID)[0].Before)
}

func TestSynchronize_SkippedSegment(t *testing.T) {
	l := guardedEmit()
	segs := Segments(analyze(t, l))
	require.Len(t, segs, 1)

	sp := Synchronize(l.Loop, segs, 16)
	assert.Equal(t, 16, sp.Stride)
	require.Len(t, sp.Waits, 1)
	assert.Equal(t, "then.ss0.check", sp.Waits[0].PreCheck)
	assert.Equal(t, "then.ss0.wait", sp.Waits[0].WaitBlock)

	then := l.Fn.Block("then")
	require.Len(t, sp.Signals, 1)
	assert.Same(t, then.Terminator(), sp.Signals[0].Before)

	require.Len(t, sp.IterationEnd, 1)
	assert.Equal(t, l.Fn.Block("join"), sp.IterationEnd[0].Latch)
	assert.Equal(t, []int{0}, sp.IterationEnd[0].Segments)
}

func TestSynchronize_Print(t *testing.T) {
	l := guardedEmit()
	sp := Synchronize(l.Loop, Segments(analyze(t, l)), 0)
	var sb strings.Builder
	sp.Print(&sb, "")
	out := sb.String()
	assert.Contains(t, out, "Sync: 1 segments, stride 64")
	assert.Contains(t, out, "wait   ss0 @0 before emit")
	assert.Contains(t, out, "pass   [0] at join")
}
