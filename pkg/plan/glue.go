package plan

import (
	"fmt"
	"sort"

	"github.com/l3aro/go-loop-parallel/pkg/env"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
)

// GlueKind names one code-generation step around a stage.
type GlueKind string

const (
	GlueLoadEnv        GlueKind = "load-env"         // Read a live-in slot at task entry
	GluePopQueue       GlueKind = "pop-queue"        // Pop before the consumer runs
	GluePushQueue      GlueKind = "push-queue"       // Push after the producer runs
	GlueStoreEnv       GlueKind = "store-env"        // Write a live-out slot at task exit
	GlueReduceEnv      GlueKind = "reduce-env"       // Combine a reducible live-out slot
	GlueStoreExitIndex GlueKind = "store-exit-index" // Record which exit the task took
)

// GlueOp is a code-generation descriptor. Only the fields relevant to Kind
// are set; the rest are -1 or nil.
type GlueOp struct {
	Kind  GlueKind
	Slot  int
	Queue int
	Value ir.Value
	Exit  *ir.Block
	Index int // exit index or switch operand index
}

func (op GlueOp) String() string {
	switch op.Kind {
	case GlueLoadEnv, GlueStoreEnv, GlueReduceEnv:
		return fmt.Sprintf("%s env[%d] %s", op.Kind, op.Slot, ir.Label(op.Value))
	case GluePopQueue, GluePushQueue:
		return fmt.Sprintf("%s q%d %s", op.Kind, op.Queue, ir.Label(op.Value))
	case GlueStoreExitIndex:
		return fmt.Sprintf("%s env[%d] = %d (%s)", op.Kind, op.Slot, op.Index, op.Exit.Name)
	}
	return string(op.Kind)
}

// EntryGlue returns the loads a stage performs before its first
// iteration: one per live-in slot it reads.
func EntryGlue(s *Stage, e *env.Environment) []GlueOp {
	var ops []GlueOp
	for _, slot := range env.SortedSlots(s.EnvIncoming) {
		sl, err := e.Slot(slot)
		if err != nil {
			continue
		}
		ops = append(ops, GlueOp{Kind: GlueLoadEnv, Slot: slot, Queue: -1, Value: sl.Producer, Index: -1})
	}
	return ops
}

// IterationGlue returns the queue operations a stage performs every
// iteration: pops for the values it consumes, then pushes for the values
// it produces, each group in queue order.
func IterationGlue(s *Stage, queues []*Queue) []GlueOp {
	var pops, pushes []GlueOp
	for _, q := range queues {
		switch {
		case q.ToStage == s.Order:
			pops = append(pops, GlueOp{Kind: GluePopQueue, Slot: -1, Queue: q.Index, Value: q.Producer, Index: q.OperandIndex})
		case q.FromStage == s.Order:
			pushes = append(pushes, GlueOp{Kind: GluePushQueue, Slot: -1, Queue: q.Index, Value: q.Producer, Index: q.OperandIndex})
		}
	}
	sort.SliceStable(pops, func(i, j int) bool { return pops[i].Queue < pops[j].Queue })
	sort.SliceStable(pushes, func(i, j int) bool { return pushes[i].Queue < pushes[j].Queue })
	return append(pops, pushes...)
}

// ExitGlue returns the stores a stage performs when it leaves the loop:
// live-out slots (combined when reducible) and the exit-block index for
// every exit edge the stage owns.
func ExitGlue(s *Stage, e *env.Environment) []GlueOp {
	var ops []GlueOp
	exitSlot := e.IndexOfExitBlock()
	for _, slot := range env.SortedSlots(s.EnvOutgoing) {
		if slot == exitSlot {
			continue
		}
		kind := GlueStoreEnv
		if e.IsReducible(slot) {
			kind = GlueReduceEnv
		}
		ops = append(ops, GlueOp{Kind: kind, Slot: slot, Queue: -1, Value: s.EnvOutgoing[slot], Index: -1})
	}
	if exitSlot < 0 {
		return ops
	}
	for _, edge := range s.ExitEdges {
		idx := e.ExitIndex(edge.To)
		if idx < 0 {
			continue
		}
		ops = append(ops, GlueOp{Kind: GlueStoreExitIndex, Slot: exitSlot, Queue: -1, Exit: edge.To, Index: idx})
	}
	return ops
}
