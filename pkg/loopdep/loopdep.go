// Package loopdep bundles the dependence analyses of one loop: the
// function PDG, the loop PDG, its SCCDAG and the per-SCC attributes.
package loopdep

import (
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/pdg"
	"github.com/l3aro/go-loop-parallel/pkg/scc"
	"github.com/l3aro/go-loop-parallel/pkg/sccattr"
)

// Options configures the analyses.
type Options struct {
	Alias        ir.AliasOracle            // nil means ir.BaseAlias
	Accumulators sccattr.AccumulatorPolicy // nil means sccattr.DefaultAccumulators
}

// Info is everything the parallelization techniques know about a loop.
// It lives for one technique attempt: merging mutates DAG.
type Info struct {
	Function    *ir.Function
	Loop        *ir.Loop
	FunctionPDG *pdg.Graph
	LoopPDG     *pdg.Graph
	DAG         *scc.DAG
	Attrs       map[*scc.SCC]*sccattr.Attrs

	Accumulators sccattr.AccumulatorPolicy
}

// Analyze builds the dependence information of loop inside fn.
func Analyze(fn *ir.Function, loop *ir.Loop, opts Options) *Info {
	acc := opts.Accumulators
	if acc == nil {
		acc = sccattr.DefaultAccumulators
	}
	fg := pdg.Build(fn, pdg.Options{Alias: opts.Alias})
	return FromPDG(fn, loop, fg, acc)
}

// FromPDG builds the loop information from an existing function PDG.
func FromPDG(fn *ir.Function, loop *ir.Loop, fg *pdg.Graph, acc sccattr.AccumulatorPolicy) *Info {
	if acc == nil {
		acc = sccattr.DefaultAccumulators
	}
	lg := pdg.LoopSubgraph(fg, loop)
	d := scc.NewDAG(lg)
	return &Info{
		Function:     fn,
		Loop:         loop,
		FunctionPDG:  fg,
		LoopPDG:      lg,
		DAG:          d,
		Attrs:        sccattr.ComputeAll(d, loop, acc),
		Accumulators: acc,
	}
}

// AttrsOf returns the attributes of s, computing them if s was created by
// a merge after the last refresh.
func (i *Info) AttrsOf(s *scc.SCC) *sccattr.Attrs {
	a, ok := i.Attrs[s]
	if !ok {
		a = sccattr.Compute(s, i.Loop, i.Accumulators)
		i.Attrs[s] = a
	}
	return a
}

// Refresh recomputes the attributes after the DAG changed.
func (i *Info) Refresh() {
	i.Attrs = sccattr.ComputeAll(i.DAG, i.Loop, i.Accumulators)
}

// CheckShape reports whether the loop has a shape the techniques accept.
// A false result carries the reason; it is a status, not an error.
func (i *Info) CheckShape() (bool, string) {
	switch {
	case i.Loop == nil:
		return false, "no loop"
	case len(i.Loop.SubLoops) > 0:
		return false, "loop has nested sub-loops"
	case i.Loop.Preheader() == nil:
		return false, "loop has no single preheader"
	case len(i.Loop.Latches()) == 0:
		return false, "loop has no latch"
	case i.LoopPDG.NumInternalNodes() == 0:
		return false, "loop is empty"
	}
	return true, ""
}
