package scc

import "github.com/l3aro/go-loop-parallel/pkg/ir"

// MergePolicy decides which components of a DAG to collapse. It returns
// the number of components removed by merging.
type MergePolicy interface {
	Name() string
	Apply(d *DAG) (int, error)
}

// TailBranchMerge folds degenerate tail components into their producer. A
// tail is a single terminator instruction with no outgoing DAG edge: it
// feeds nothing, so a stage of its own would only add queues. The tail
// joins a predecessor one depth level above it; with several candidates
// the one with the lowest ID wins.
type TailBranchMerge struct{}

func (TailBranchMerge) Name() string { return "tail-branch" }

func (TailBranchMerge) Apply(d *DAG) (int, error) {
	depths := d.Depths()

	type fold struct {
		tail   *SCC
		target ir.Value // a value of the target; the target itself may be replaced by earlier merges
	}
	var folds []fold
	for _, s := range d.SCCs() {
		if !IsTailBranch(d, s) {
			continue
		}
		for _, p := range d.Predecessors(s) {
			if depths[p] == depths[s]-1 {
				folds = append(folds, fold{tail: s, target: p.Values()[0]})
				break
			}
		}
	}

	merged := 0
	for _, f := range folds {
		target := d.SCCOf(f.target)
		if _, err := d.Merge([]*SCC{target, f.tail}); err != nil {
			return merged, err
		}
		merged++
	}
	return merged, nil
}

// IsTailBranch reports whether s is a lone terminator with no consumers.
func IsTailBranch(d *DAG, s *SCC) bool {
	if s.NumInternalNodes() != 1 || len(d.OutgoingEdges(s)) != 0 {
		return false
	}
	inst, ok := s.Values()[0].(*ir.Instruction)
	return ok && inst.IsTerminator()
}

// NoMerge leaves the DAG untouched.
type NoMerge struct{}

func (NoMerge) Name() string              { return "none" }
func (NoMerge) Apply(d *DAG) (int, error) { return 0, nil }
