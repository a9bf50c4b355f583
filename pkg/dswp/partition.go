package dswp

import (
	"fmt"
	"sort"

	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/loopdep"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
	"github.com/l3aro/go-loop-parallel/pkg/scc"
)

// Partitioning is the outcome of partitioning one loop into stages.
type Partitioning struct {
	Stages    []*plan.Stage
	Removable []*scc.SCC // Clonable components not given a stage of their own
	Merged    int        // Components removed by merging, on this or an earlier partitioning of the DAG
}

// StageOf returns the stage owning c, or nil.
func (p *Partitioning) StageOf(c *scc.SCC) *plan.Stage {
	for _, s := range p.Stages {
		for _, o := range s.SCCs {
			if o == c {
				return s
			}
		}
	}
	return nil
}

// Partition runs merge, worth-check, stage assignment and boundary
// computation on the SCCDAG of info. A false result with a reason means
// the loop is not worth pipelining; it is not an error.
func Partition(info *loopdep.Info, opts Options) (*Partitioning, bool, string, error) {
	p := &Partitioning{}

	// Step 1: Merge
	if opts.EnableMerging {
		policy := opts.MergePolicy
		if policy == nil {
			policy = scc.TailBranchMerge{}
		}
		if _, err := policy.Apply(info.DAG); err != nil {
			return nil, false, "", fmt.Errorf("merge %s: %w", policy.Name(), err)
		}
	}
	p.Merged = info.DAG.Merged()

	// Step 2: Worth-check
	order := info.DAG.TopologicalOrder()
	removable := make(map[*scc.SCC]bool)
	if opts.CloneRemovable {
		removable = Removable(info, order)
	}
	var partitioned []*scc.SCC
	for _, s := range order {
		if removable[s] {
			p.Removable = append(p.Removable, s)
		} else {
			partitioned = append(partitioned, s)
		}
	}
	if len(partitioned) == 0 {
		return nil, false, "no component left to partition", nil
	}
	if len(partitioned) < 2 && !opts.Force {
		return nil, false, "insufficient thread-level parallelism", nil
	}

	// Step 3: Stage assignment
	var control []*scc.SCC
	for _, s := range p.Removable {
		if len(info.AttrsOf(s).ControlPairs) > 0 {
			control = append(control, s)
		}
	}
	for _, s := range partitioned {
		stage := plan.NewStage(len(p.Stages), s)
		stage.Clones = clonesFor(info, append([]*scc.SCC{s}, control...), removable)
		p.Stages = append(p.Stages, stage)
	}

	// Step 4: Boundary computation
	for _, stage := range p.Stages {
		computeBoundaries(stage, info.Loop)
	}
	return p, true, "", nil
}

// Removable returns the components every stage can recompute instead of
// receiving them: clonable components whose predecessors are all
// removable. order must be topological.
func Removable(info *loopdep.Info, order []*scc.SCC) map[*scc.SCC]bool {
	removable := make(map[*scc.SCC]bool)
	for _, s := range order {
		if !info.AttrsOf(s).IsClonable {
			continue
		}
		ok := true
		for _, pred := range info.DAG.Predecessors(s) {
			if !removable[pred] {
				ok = false
				break
			}
		}
		if ok {
			removable[s] = true
		}
	}
	return removable
}

// clonesFor returns, in ID order, the removable components a stage
// recomputes. roots[0] is the stage's own component; the other roots hold
// a loop exit, which every stage needs to know when to stop. Ancestors are
// followed through removable components only.
func clonesFor(info *loopdep.Info, roots []*scc.SCC, removable map[*scc.SCC]bool) []*scc.SCC {
	seen := make(map[*scc.SCC]bool)
	var out []*scc.SCC
	for _, r := range roots[1:] {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	work := append([]*scc.SCC{}, roots...)
	for len(work) > 0 {
		cur := work[0]
		work = work[1:]
		for _, pred := range info.DAG.Predecessors(cur) {
			if !removable[pred] || seen[pred] {
				continue
			}
			seen[pred] = true
			out = append(out, pred)
			work = append(work, pred)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// computeBoundaries fills the blocks a stage executes, the outside blocks
// that enter them, and the exits it owns the terminator of.
func computeBoundaries(stage *plan.Stage, loop *ir.Loop) {
	inSet := make(map[*ir.Block]bool)
	for _, inst := range stage.Instructions() {
		inSet[inst.Block()] = true
	}

	var fnBlocks []*ir.Block
	if loop != nil {
		fnBlocks = loop.Function().Blocks
	}
	for _, b := range fnBlocks {
		if inSet[b] {
			stage.Blocks = append(stage.Blocks, b)
		}
	}

	entries := make(map[*ir.Block]bool)
	for _, b := range stage.Blocks {
		for _, pred := range b.Preds {
			if !inSet[pred] {
				entries[pred] = true
			}
		}
	}
	for _, b := range fnBlocks {
		if entries[b] {
			stage.EntryBlocks = append(stage.EntryBlocks, b)
		}
	}

	for _, b := range stage.Blocks {
		term := b.Terminator()
		if term == nil || !stage.Contains(term) {
			continue
		}
		for _, succ := range b.Succs {
			if inSet[succ] {
				continue
			}
			stage.ExitEdges = append(stage.ExitEdges, plan.ExitEdge{From: b, To: succ, PredIndex: succ.PredIndex(b)})
		}
	}
}
