// Package dswp implements Decoupled Software Pipelining: the SCCDAG of a
// loop is cut into pipeline stages connected by queues, each stage running
// on its own core.
package dswp

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-loop-parallel/internal/log"
	"github.com/l3aro/go-loop-parallel/pkg/env"
	"github.com/l3aro/go-loop-parallel/pkg/loopdep"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
	"github.com/l3aro/go-loop-parallel/pkg/queue"
	"github.com/l3aro/go-loop-parallel/pkg/scc"
)

// Name is the technique name used in plans and configuration.
const Name = "dswp"

// Options configures DSWP.
type Options struct {
	Force          bool            // Pipeline even a single stage
	EnableMerging  bool            // Apply MergePolicy before partitioning
	CloneRemovable bool            // Recompute removable components in every stage
	MergePolicy    scc.MergePolicy // nil means scc.TailBranchMerge

	Verbosity log.Verbosity
	Logger    log.Logger
}

// DefaultOptions merges tail branches and clones removable components.
func DefaultOptions() Options {
	return Options{EnableMerging: true, CloneRemovable: true, Verbosity: log.VerbosityMinimal}
}

// Technique is the DSWP parallelization technique.
type Technique struct {
	opts   Options
	logger log.Logger
}

// New creates a DSWP technique.
func New(opts Options) *Technique {
	return &Technique{opts: opts, logger: log.OrNop(opts.Logger)}
}

func (t *Technique) Name() string { return Name }

// CanApply partitions the loop and reports whether the pipeline has more
// than one stage. Partitioning merges components of info.DAG.
func (t *Technique) CanApply(info *loopdep.Info) (bool, string) {
	if ok, reason := info.CheckShape(); !ok {
		return false, reason
	}
	_, ok, reason, err := Partition(info, t.opts)
	if err != nil {
		return false, err.Error()
	}
	if !ok && t.opts.Verbosity > log.VerbosityDisabled {
		t.logger.Info("DSWP: not enough TLP can be extracted", "loop", info.Loop.Header.Name, "reason", reason)
	}
	return ok, reason
}

// Apply builds the pipeline plan: stages, queues and environment.
func (t *Technique) Apply(info *loopdep.Info) (*plan.Plan, error) {
	part, ok, reason, err := Partition(info, t.opts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", plan.ErrNotParallelizable, reason)
	}

	p := plan.New(Name, info.Loop)
	p.Stages = part.Stages

	queues, err := queue.Plan(info.Loop, p.Stages, info.DAG)
	if err != nil {
		return nil, err
	}
	p.Queues = queues

	p.Env = env.Build(info.LoopPDG, info.Loop)
	assignEnvironment(p.Env, p.Stages)

	if t.opts.Verbosity > log.VerbosityDisabled {
		t.logger.Info("DSWP: create pipeline stages", "loop", p.Loop, "stages", len(p.Stages), "queues", len(p.Queues), "merged", part.Merged)
	}
	if t.opts.Verbosity >= log.VerbosityPipeline {
		for _, s := range p.Stages {
			t.logger.Debug("DSWP: stage", "order", s.Order, "sccs", fmt.Sprint(s.SCCs), "clones", len(s.Clones), "blocks", len(s.Blocks))
		}
	}
	if t.opts.Verbosity >= log.VerbosityMaximal {
		var sb strings.Builder
		p.Print(&sb)
		t.logger.Debug("DSWP: plan\n" + sb.String())
	}
	return p, nil
}

// assignEnvironment records the live-in loads and live-out stores of every
// stage. A live-in is loaded by every stage computing one of its
// consumers; a live-out, possibly cloned, is stored by the last stage
// computing it.
func assignEnvironment(e *env.Environment, stages []*plan.Stage) {
	writer := make(map[int]*plan.Stage)
	for _, s := range stages {
		maps := e.MapsFor(s.Contains)
		s.EnvIncoming = maps.Incoming
		s.EnvOutgoing = maps.Outgoing
		for slot := range maps.Outgoing {
			writer[slot] = s
		}
	}
	for _, s := range stages {
		for slot := range s.EnvOutgoing {
			if writer[slot] != s {
				delete(s.EnvOutgoing, slot)
			}
		}
	}
}
