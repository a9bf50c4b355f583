package parallel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-loop-parallel/internal/log"
	"github.com/l3aro/go-loop-parallel/pkg/cache"
	"github.com/l3aro/go-loop-parallel/pkg/dswp"
	"github.com/l3aro/go-loop-parallel/pkg/helix"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/ir/irtest"
	"github.com/l3aro/go-loop-parallel/pkg/loopdep"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

func defaults(t *testing.T, names ...string) []Technique {
	t.Helper()
	techs, err := Techniques(names, TechniqueOptions{DSWP: dswp.DefaultOptions(), HELIX: helix.DefaultOptions()})
	require.NoError(t, err)
	return techs
}

// failing always accepts and then fails with err.
type failing struct{ err error }

func (f failing) Name() string                            { return "failing" }
func (f failing) CanApply(*loopdep.Info) (bool, string)   { return true, "" }
func (f failing) Apply(*loopdep.Info) (*plan.Plan, error) { return nil, f.err }

func TestTechniques(t *testing.T) {
	techs := defaults(t, "dswp", "HELIX")
	require.Len(t, techs, 2)
	assert.Equal(t, "dswp", techs[0].Name())
	assert.Equal(t, "helix", techs[1].Name())

	_, err := Techniques([]string{"doall"}, TechniqueOptions{})
	assert.ErrorIs(t, err, ErrUnknownTechnique)
}

func TestParallelize_FirstApplicableWins(t *testing.T) {
	l := irtest.Chain()
	p := New(Options{Techniques: defaults(t, "dswp", "helix")})
	res, err := p.Parallelize(l.Fn, l.Loop)
	require.NoError(t, err)
	require.True(t, res.Parallelized())
	require.NotNil(t, res.Plan)
	assert.Equal(t, "dswp", res.Report.Technique)
	assert.Empty(t, res.Declined)
}

func TestParallelize_FallsBack(t *testing.T) {
	l := irtest.Sum()
	techs := append([]Technique{declining{}}, defaults(t, "dswp")...)
	res, err := New(Options{Techniques: techs}).Parallelize(l.Fn, l.Loop)
	require.NoError(t, err)
	assert.True(t, res.Parallelized())
	assert.Equal(t, "never", res.Declined["declining"])
	assert.Equal(t, "dswp", res.Report.Technique)
}

type declining struct{}

func (declining) Name() string                            { return "declining" }
func (declining) CanApply(*loopdep.Info) (bool, string)   { return false, "never" }
func (declining) Apply(*loopdep.Info) (*plan.Plan, error) { return nil, errors.New("unreachable") }

func TestParallelize_Declined(t *testing.T) {
	l := irtest.EarlyExit()
	res, err := New(Options{Techniques: defaults(t, "dswp", "helix")}).Parallelize(l.Fn, l.Loop)
	require.NoError(t, err)
	assert.False(t, res.Parallelized())
	assert.Nil(t, res.Plan)
	assert.Contains(t, res.Report.Reason, "helix: no parallel work outside sequential segments")
	assert.Len(t, res.Declined, 2)

	res, err = New(Options{}).Parallelize(l.Fn, l.Loop)
	require.NoError(t, err)
	assert.Equal(t, "no technique configured", res.Report.Reason)
}

func TestParallelize_InvariantViolation(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.LoggerConfig{Level: log.ErrorLevel, Stderr: &buf})
	l := irtest.Chain()

	bad := failing{err: fmt.Errorf("%w: memory edge across stages", plan.ErrInvariantViolation)}
	_, err := New(Options{Techniques: []Technique{bad}, Logger: logger}).Parallelize(l.Fn, l.Loop)
	assert.ErrorIs(t, err, plan.ErrInvariantViolation)
	assert.Contains(t, buf.String(), "invariant violation")

	other := failing{err: errors.New("boom")}
	_, err = New(Options{Techniques: []Technique{other}}).Parallelize(l.Fn, l.Loop)
	assert.EqualError(t, err, "failing on header: boom")
}

func TestParallelize_Cache(t *testing.T) {
	plans, err := cache.OpenPlans(cache.PlanOptions{})
	require.NoError(t, err)
	l := irtest.Chain()
	p := New(Options{Techniques: defaults(t, "dswp"), Cache: plans})

	first, err := p.Parallelize(l.Fn, l.Loop)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := p.Parallelize(l.Fn, l.Loop)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Nil(t, second.Plan)
	assert.Equal(t, first.Report, second.Report)

	other := New(Options{Techniques: defaults(t, "dswp"), Cache: plans, Fingerprint: "force"})
	third, err := other.Parallelize(l.Fn, l.Loop)
	require.NoError(t, err)
	assert.False(t, third.Cached)
}

// twoLoops builds a function with two consecutive counted loops, each
// summing into its own accumulator.
func twoLoops() *ir.Function {
	n := ir.NewArgument("n", ir.I64)
	x := ir.NewArgument("x", ir.Ptr)
	fn := ir.NewFunction("twice", n, x)
	entry := fn.NewBlock("entry")
	h1, b1 := fn.NewBlock("h1"), fn.NewBlock("b1")
	h2, b2 := fn.NewBlock("h2"), fn.NewBlock("b2")
	exit := fn.NewBlock("exit")

	entry.Branch(h1)
	counted := func(h, b, pre, next *ir.Block) {
		i := h.AppendPHI("i."+h.Name, ir.I64, ir.Incoming{Value: ir.Const("0", ir.I64), Block: pre})
		s := h.AppendPHI("s."+h.Name, ir.I64, ir.Incoming{Value: ir.Const("0", ir.I64), Block: pre})
		cmp := h.Append(ir.OpICmp, "cmp."+h.Name, ir.I1, i, n)
		px := b.Append(ir.OpGEP, "px."+h.Name, ir.Ptr, x, i)
		v := b.Append(ir.OpLoad, "v."+h.Name, ir.I64, px)
		sn := b.Append(ir.OpAdd, "sn."+h.Name, ir.I64, s, v)
		in := b.Append(ir.OpAdd, "in."+h.Name, ir.I64, i, ir.Const("1", ir.I64))
		b.Branch(h)
		i.AddIncoming(in, b)
		s.AddIncoming(sn, b)
		h.CondBranch(cmp, b, next)
	}
	counted(h1, b1, entry, h2)
	counted(h2, b2, h1, exit)
	exit.Append(ir.OpRet, "", ir.Void)
	return fn
}

func TestParallelizeAll(t *testing.T) {
	fn := twoLoops()
	loops := ir.FindLoops(fn)
	require.Len(t, loops, 2)

	results, err := New(Options{Techniques: defaults(t, "dswp", "helix")}).ParallelizeAll(context.Background(), fn, loops)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for i, res := range results {
		assert.Same(t, loops[i], res.Loop)
		assert.True(t, res.Parallelized(), res.Report.Reason)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(Options{}).ParallelizeAll(ctx, fn, loops)
	assert.ErrorIs(t, err, context.Canceled)
}
