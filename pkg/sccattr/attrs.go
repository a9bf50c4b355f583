// Package sccattr classifies strongly connected components of a loop:
// induction variables, accumulations, clonability and the instruction
// that controls the loop exit.
package sccattr

import (
	"github.com/l3aro/go-loop-parallel/pkg/depgraph"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/scc"
)

// ControlPair associates a conditional terminator that can leave the loop
// with the value it branches on.
type ControlPair struct {
	Condition ir.Value
	Branch    *ir.Instruction
}

// Attrs are the attributes of one SCC with respect to one loop.
type Attrs struct {
	SCC *scc.SCC

	Blocks       []*ir.Block       // Blocks holding at least one internal instruction
	PHIs         []*ir.Instruction // PHI nodes
	Accumulators []*ir.Instruction // Accumulation instructions per the policy
	ControlFlow  []*ir.Instruction // Internal terminators
	ControlPairs []ControlPair     // Loop-exiting conditional branches

	// StronglyConnectedData are internal values joined by a data or memory
	// edge to another internal value; WeaklyConnectedData are the external
	// values such edges connect to.
	StronglyConnectedData []ir.Value
	WeaklyConnectedData   []ir.Value

	HasCycle       bool // The component closes a dependence cycle
	LoopCarried    bool // Some internal edge crosses iterations
	HasMemory      bool // Some internal edge goes through memory
	HasSideEffects bool // Some instruction writes memory or returns
	HasIV          bool // The component is an induction variable
	IsClonable     bool // Safe to recompute in every stage or thread
	IsReducible    bool // Reducible with an associative operator

	policy AccumulatorPolicy
}

// Compute classifies s within loop. A nil policy means DefaultAccumulators.
func Compute(s *scc.SCC, loop *ir.Loop, policy AccumulatorPolicy) *Attrs {
	if policy == nil {
		policy = DefaultAccumulators
	}
	a := &Attrs{SCC: s, policy: policy, HasCycle: s.HasCycle()}

	a.collectInstructions(loop)
	a.collectEdges()
	a.HasIV = a.isInductionVariable(loop)
	a.IsReducible = a.isReducible()
	a.IsClonable = a.isClonable()
	return a
}

// ComputeAll classifies every component of d.
func ComputeAll(d *scc.DAG, loop *ir.Loop, policy AccumulatorPolicy) map[*scc.SCC]*Attrs {
	out := make(map[*scc.SCC]*Attrs, d.NumNodes())
	for _, s := range d.SCCs() {
		out[s] = Compute(s, loop, policy)
	}
	return out
}

func (a *Attrs) collectInstructions(loop *ir.Loop) {
	seenBlocks := make(map[*ir.Block]bool)
	for _, inst := range a.SCC.Instructions() {
		if b := inst.Block(); !seenBlocks[b] {
			seenBlocks[b] = true
			a.Blocks = append(a.Blocks, b)
		}
		if inst.HasSideEffects() {
			a.HasSideEffects = true
		}
		switch {
		case inst.IsPHI():
			a.PHIs = append(a.PHIs, inst)
		case inst.IsTerminator():
			a.ControlFlow = append(a.ControlFlow, inst)
			if inst.Op == ir.OpCondBr && exitsLoop(inst, loop) {
				a.ControlPairs = append(a.ControlPairs, ControlPair{Condition: inst.Condition(), Branch: inst})
			}
		case a.policy.IsAccumulator(inst):
			a.Accumulators = append(a.Accumulators, inst)
		}
	}
}

func exitsLoop(term *ir.Instruction, loop *ir.Loop) bool {
	if loop == nil {
		return false
	}
	for _, s := range term.Block().Succs {
		if !loop.Contains(s) {
			return true
		}
	}
	return false
}

func (a *Attrs) collectEdges() {
	strong := make(map[ir.Value]bool)
	weak := make(map[ir.Value]bool)
	for _, e := range a.SCC.Edges() {
		srcIn, dstIn := a.SCC.IsInternal(e.Src), a.SCC.IsInternal(e.Dst)
		if srcIn && dstIn {
			if e.LoopCarried {
				a.LoopCarried = true
			}
			if e.Type == depgraph.DepTypeMemory {
				a.HasMemory = true
			}
		}
		if e.Type == depgraph.DepTypeControl {
			continue
		}
		switch {
		case srcIn && dstIn:
			addOnce(&a.StronglyConnectedData, strong, e.Src)
			addOnce(&a.StronglyConnectedData, strong, e.Dst)
		case srcIn:
			addOnce(&a.WeaklyConnectedData, weak, e.Dst)
		case dstIn:
			addOnce(&a.WeaklyConnectedData, weak, e.Src)
		}
	}
}

func addOnce(list *[]ir.Value, seen map[ir.Value]bool, v ir.Value) {
	if seen[v] {
		return
	}
	seen[v] = true
	*list = append(*list, v)
}

// isInductionVariable recognizes a header PHI whose value on the back
// edge is the PHI plus or minus a loop-invariant step.
func (a *Attrs) isInductionVariable(loop *ir.Loop) bool {
	if loop == nil || len(a.PHIs) != 1 {
		return false
	}
	phi := a.PHIs[0]
	if phi.Block() != loop.Header {
		return false
	}
	for _, latch := range loop.Latches() {
		v, _ := phi.IncomingValueFor(latch)
		step, ok := v.(*ir.Instruction)
		if !ok || !a.SCC.Contains(step) {
			return false
		}
		if step.Op != ir.OpAdd && step.Op != ir.OpSub {
			return false
		}
		if len(step.Operands) != 2 || step.Operands[0] != ir.Value(phi) {
			return false
		}
		if loop.ContainsValue(step.Operands[1]) {
			return false
		}
	}
	return len(loop.Latches()) > 0
}

// isReducible recognizes a single PHI folded by accumulators of one
// associative operator, with nothing else in the cycle.
func (a *Attrs) isReducible() bool {
	if !a.HasCycle || a.HasIV || a.HasMemory || a.HasSideEffects {
		return false
	}
	if len(a.PHIs) != 1 || len(a.Accumulators) == 0 {
		return false
	}
	if a.SCC.NumInternalNodes() != 1+len(a.Accumulators) {
		return false
	}
	op := a.Accumulators[0].Op
	for _, acc := range a.Accumulators[1:] {
		if acc.Op != op {
			return false
		}
	}
	return true
}

// isClonable accepts induction variables and side-effect-free address or
// comparison plumbing that is cheaper to recompute than to communicate.
func (a *Attrs) isClonable() bool {
	if a.HasMemory || a.HasSideEffects {
		return false
	}
	if a.HasIV {
		return true
	}
	insts := a.SCC.Instructions()
	if len(insts) == 1 && !a.HasCycle {
		switch insts[0].Op {
		case ir.OpGEP, ir.OpCast:
			return true
		}
	}
	for _, inst := range insts {
		switch inst.Op {
		case ir.OpICmp, ir.OpFCmp, ir.OpBr, ir.OpCondBr:
		default:
			return false
		}
	}
	return len(insts) > 0
}

// NumPHIs returns the number of PHIs in the component.
func (a *Attrs) NumPHIs() int { return len(a.PHIs) }

// NumAccumulators returns the number of accumulators in the component.
func (a *Attrs) NumAccumulators() int { return len(a.Accumulators) }

// SinglePHI returns the only PHI of the component, or nil.
func (a *Attrs) SinglePHI() *ir.Instruction {
	if len(a.PHIs) != 1 {
		return nil
	}
	return a.PHIs[0]
}

// SingleAccumulator returns the only accumulator of the component, or nil.
func (a *Attrs) SingleAccumulator() *ir.Instruction {
	if len(a.Accumulators) != 1 {
		return nil
	}
	return a.Accumulators[0]
}

// ContainsPHI reports whether phi is one of the component's PHIs.
func (a *Attrs) ContainsPHI(phi *ir.Instruction) bool {
	for _, p := range a.PHIs {
		if p == phi {
			return true
		}
	}
	return false
}

// ContainsAccumulator reports whether inst is one of the accumulators.
func (a *Attrs) ContainsAccumulator(inst *ir.Instruction) bool {
	for _, acc := range a.Accumulators {
		if acc == inst {
			return true
		}
	}
	return false
}

// SingleInstructionThatControlsLoopExit returns the only loop-exiting
// branch of the component, or nil.
func (a *Attrs) SingleInstructionThatControlsLoopExit() *ControlPair {
	if len(a.ControlPairs) != 1 {
		return nil
	}
	return &a.ControlPairs[0]
}

// ReductionOp returns the operator a reducible component folds with.
func (a *Attrs) ReductionOp() (ir.Opcode, bool) {
	if !a.IsReducible {
		return "", false
	}
	return a.Accumulators[0].Op, true
}

// Identity returns the neutral element of the reduction, if any.
func (a *Attrs) Identity() (string, bool) {
	op, ok := a.ReductionOp()
	if !ok {
		return "", false
	}
	return a.policy.Identity(op)
}

// IsSequential reports whether the component carries an order-sensitive
// dependence across iterations that neither cloning nor reduction removes.
func (a *Attrs) IsSequential() bool {
	return a.LoopCarried && !a.IsClonable && !a.IsReducible
}
