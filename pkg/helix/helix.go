// Package helix implements HELIX: every thread runs whole iterations of the
// loop, and the components whose order across iterations matters become
// sequential segments guarded by wait and signal points.
package helix

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-loop-parallel/internal/log"
	"github.com/l3aro/go-loop-parallel/pkg/env"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/loopdep"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

// Name is the technique name used in plans and configuration.
const Name = "helix"

// Options configures HELIX.
type Options struct {
	Threads int // Cores the iterations are spread over
	Stride  int // Bytes between two segment slots; 0 means plan.CacheLineSize

	Verbosity log.Verbosity
	Logger    log.Logger
}

// DefaultOptions runs on four threads with cache-line strides.
func DefaultOptions() Options {
	return Options{Threads: 4, Stride: plan.CacheLineSize, Verbosity: log.VerbosityMinimal}
}

// Technique is the HELIX parallelization technique.
type Technique struct {
	opts   Options
	logger log.Logger
}

// New creates a HELIX technique.
func New(opts Options) *Technique {
	return &Technique{opts: opts, logger: log.OrNop(opts.Logger)}
}

func (t *Technique) Name() string { return Name }

// Options returns the configuration the technique was created with.
func (t *Technique) Options() Options { return t.opts }

// CanApply accepts loops with work left to overlap once the sequential
// segments are serialized.
func (t *Technique) CanApply(info *loopdep.Info) (bool, string) {
	if ok, reason := info.CheckShape(); !ok {
		return false, reason
	}
	if parallelWork(info) == 0 {
		if t.opts.Verbosity > log.VerbosityDisabled {
			t.logger.Info("HELIX: loop is fully sequential", "loop", info.Loop.Header.Name)
		}
		return false, "no parallel work outside sequential segments"
	}
	return true, ""
}

// parallelWork counts the components that neither a segment serializes
// nor every thread recomputes.
func parallelWork(info *loopdep.Info) int {
	n := 0
	for _, s := range info.DAG.SCCs() {
		a := info.AttrsOf(s)
		if !a.IsSequential() && !a.IsClonable {
			n++
		}
	}
	return n
}

// Apply builds the HELIX plan: one stage holding the whole body, the
// environment with reducible live-outs, the segments and their
// synchronization.
func (t *Technique) Apply(info *loopdep.Info) (*plan.Plan, error) {
	if ok, reason := t.CanApply(info); !ok {
		return nil, fmt.Errorf("%w: %s", plan.ErrNotParallelizable, reason)
	}
	loop := info.Loop

	p := plan.New(Name, loop)
	body := plan.NewStage(0, info.DAG.TopologicalOrder()...)
	bodyBoundaries(body, loop)
	p.Stages = []*plan.Stage{body}

	p.Env = env.Build(info.LoopPDG, loop)
	for _, slot := range p.Env.LiveOuts() {
		s := info.DAG.SCCOf(slot.Producer)
		if s == nil {
			return nil, fmt.Errorf("%w: live-out %s outside the SCCDAG", plan.ErrInvariantViolation, ir.Label(slot.Producer))
		}
		a := info.AttrsOf(s)
		if !a.IsReducible {
			continue
		}
		if err := p.Env.DesignateReducible(slot.Index, a.Accumulators[0], info.Accumulators); err != nil {
			return nil, err
		}
	}
	maps := p.Env.MapsFor(body.Contains)
	body.EnvIncoming = maps.Incoming
	body.EnvOutgoing = maps.Outgoing

	p.Segments = Segments(info)
	p.Sync = Synchronize(loop, p.Segments, t.opts.Stride)

	if t.opts.Verbosity > log.VerbosityDisabled {
		t.logger.Info("HELIX: create sequential segments", "loop", p.Loop, "segments", len(p.Segments), "threads", t.opts.Threads)
	}
	if t.opts.Verbosity >= log.VerbosityPipeline {
		for _, seg := range p.Segments {
			t.logger.Debug("HELIX: segment", "id", seg.ID, "sccs", fmt.Sprint(seg.SCCs), "entries", len(seg.Entries), "exits", len(seg.Exits))
		}
	}
	if t.opts.Verbosity >= log.VerbosityMaximal {
		var sb strings.Builder
		p.Print(&sb)
		p.Sync.Print(&sb, "  ")
		t.logger.Debug("HELIX: plan\n" + sb.String())
	}
	return p, nil
}

// bodyBoundaries gives the single HELIX stage every loop block, the
// preheader as entry and every edge leaving the loop as exit.
func bodyBoundaries(s *plan.Stage, loop *ir.Loop) {
	for _, b := range loop.Function().Blocks {
		if loop.Contains(b) {
			s.Blocks = append(s.Blocks, b)
		}
	}
	if pre := loop.Preheader(); pre != nil {
		s.EntryBlocks = []*ir.Block{pre}
	}
	for _, b := range s.Blocks {
		for _, succ := range b.Succs {
			if !loop.Contains(succ) {
				s.ExitEdges = append(s.ExitEdges, plan.ExitEdge{From: b, To: succ, PredIndex: succ.PredIndex(b)})
			}
		}
	}
}
