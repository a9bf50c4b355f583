package helix

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-loop-parallel/internal/log"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/ir/irtest"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

func TestHELIX_Chain(t *testing.T) {
	l := irtest.Chain()
	tech := New(DefaultOptions())
	assert.Equal(t, "helix", tech.Name())

	ok, reason := tech.CanApply(analyze(t, l))
	require.True(t, ok, reason)

	p, err := tech.Apply(analyze(t, l))
	require.NoError(t, err)
	assert.Equal(t, "helix", p.Technique)
	require.Len(t, p.Stages, 1)
	assert.Empty(t, p.Queues)

	body := p.Stages[0]
	assert.Equal(t, []*ir.Block{l.Header, l.Body}, body.Blocks)
	assert.Equal(t, []*ir.Block{l.Entry}, body.EntryBlocks)
	require.Len(t, body.ExitEdges, 1)
	assert.Equal(t, l.Exit, body.ExitEdges[0].To)
	for _, inst := range l.Loop.Instructions() {
		assert.True(t, body.Owns(inst), inst.String())
	}

	require.Len(t, p.Segments, 1)
	assert.True(t, segmentContains(p.Segments[0], l.Inst("d")))
	require.NotNil(t, p.Sync)
	assert.Equal(t, 1, p.Sync.NumSegments)

	x, ok := p.Env.SlotOf(l.Fn.Argument("x"))
	require.True(t, ok)
	assert.Contains(t, body.EnvIncoming, x.Index)
}

func TestHELIX_SumReduces(t *testing.T) {
	l := irtest.Sum()
	p, err := New(DefaultOptions()).Apply(analyze(t, l))
	require.NoError(t, err)
	assert.Empty(t, p.Segments)
	assert.Zero(t, p.Sync.NumSegments)

	s, ok := p.Env.SlotOf(l.Inst("s"))
	require.True(t, ok)
	assert.True(t, p.Env.IsReducible(s.Index))
	op, ok := p.Env.ReductionOp(s.Index)
	require.True(t, ok)
	assert.Equal(t, ir.OpAdd, op)

	exit := plan.ExitGlue(p.Stages[0], p.Env)
	require.Len(t, exit, 1)
	assert.Equal(t, plan.GlueReduceEnv, exit[0].Kind)
}

func TestHELIX_Declines(t *testing.T) {
	tech := New(DefaultOptions())
	ok, reason := tech.CanApply(analyze(t, irtest.Segments()))
	assert.False(t, ok)
	assert.Equal(t, "no parallel work outside sequential segments", reason)

	_, err := tech.Apply(analyze(t, irtest.Segments()))
	assert.ErrorIs(t, err, plan.ErrNotParallelizable)
}

func TestHELIX_Logging(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Verbosity = log.VerbosityMaximal
	opts.Logger = log.New(log.LoggerConfig{Level: log.DebugLevel, Stderr: &buf})

	_, err := New(opts).Apply(analyze(t, irtest.Chain()))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "HELIX: create sequential segments")
	assert.Contains(t, buf.String(), "HELIX: segment")
	assert.Contains(t, buf.String(), "Sync: 1 segments")
}

func TestHELIX_Simulate(t *testing.T) {
	info := analyze(t, irtest.Chain())
	p, err := New(DefaultOptions()).Apply(info)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sim := &Simulator{Sync: p.Sync, Threads: 4, Iterations: 10, Path: PlanPath(info.Loop, p.Sync)}
	events, err := sim.Run(ctx)
	require.NoError(t, err)
	assert.NoError(t, Verify(events, p.Sync.NumSegments, 10))
}
