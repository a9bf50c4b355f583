package helix

import (
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

// Step is one synchronization point an iteration reaches.
type Step struct {
	Segment int
	Kind    EventKind
}

// PlanPath returns a simulator path that walks one iteration of loop
// through its control flow and reports the wait and signal points of sp
// in the order they are reached, followed by the passes of the latch the
// iteration ends at.
//
// The d-th branch with several choices takes successor (iteration+d) mod
// the number of choices, so consecutive iterations cover different arms.
// Jumping back to the header counts as a choice of the block that has the
// back edge.
func PlanPath(loop *ir.Loop, sp *plan.SyncPlan) func(iteration int) []Step {
	flow := newIterationFlow(loop)
	waits := make(map[*ir.Instruction][]int)
	for _, w := range sp.Waits {
		waits[w.Before] = append(waits[w.Before], w.Segment)
	}
	signals := make(map[*ir.Instruction][]int)
	for _, s := range sp.Signals {
		signals[s.Before] = append(signals[s.Before], s.Segment)
	}
	passes := make(map[*ir.Block][]int)
	for _, end := range sp.IterationEnd {
		passes[end.Latch] = append(passes[end.Latch], end.Segments...)
	}

	return func(iteration int) []Step {
		var steps []Step
		b, choice := loop.Header, 0
		for b != nil {
			for _, inst := range b.Instrs {
				for _, seg := range waits[inst] {
					steps = append(steps, Step{Segment: seg, Kind: EventWait})
				}
				for _, seg := range signals[inst] {
					steps = append(steps, Step{Segment: seg, Kind: EventSignal})
				}
			}

			next := flow.succs(b)
			if flow.ends(b) {
				next = append(next, nil)
			}
			var to *ir.Block
			if len(next) > 1 {
				to = next[(iteration+choice)%len(next)]
				choice++
			} else if len(next) == 1 {
				to = next[0]
			}
			if to == nil {
				for _, seg := range passes[b] {
					steps = append(steps, Step{Segment: seg, Kind: EventPass})
				}
			}
			b = to
		}
		return steps
	}
}
