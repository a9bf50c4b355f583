// Package queue plans the communication between pipeline stages. Every
// dependence whose producer and consumer run in different stages becomes
// a single-producer single-consumer queue.
package queue

import (
	"fmt"

	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/pdg"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
	"github.com/l3aro/go-loop-parallel/pkg/scc"
)

type queueKey struct {
	producer ir.Value
	stage    int
	operand  int // -1 except for switch queues
}

// Planner allocates queues for one set of stages.
type Planner struct {
	loop   *ir.Loop
	stages []*plan.Stage
	owner  map[*scc.SCC]*plan.Stage

	queues []*plan.Queue
	byKey  map[queueKey]*plan.Queue
}

// NewPlanner creates a planner for stages partitioning loop.
func NewPlanner(loop *ir.Loop, stages []*plan.Stage) *Planner {
	p := &Planner{
		loop:   loop,
		stages: stages,
		owner:  make(map[*scc.SCC]*plan.Stage),
		byKey:  make(map[queueKey]*plan.Queue),
	}
	for _, s := range stages {
		for _, c := range s.SCCs {
			p.owner[c] = s
		}
	}
	return p
}

// Plan walks every instruction-level edge under the DAG edges of d and
// returns the queues, in allocation order. Push and pop obligations and
// local switches are recorded on the stages.
func Plan(loop *ir.Loop, stages []*plan.Stage, d *scc.DAG) ([]*plan.Queue, error) {
	return NewPlanner(loop, stages).Plan(d)
}

// Plan allocates the queues for d.
func (p *Planner) Plan(d *scc.DAG) ([]*plan.Queue, error) {
	for _, agg := range d.Edges() {
		for _, sub := range agg.SubEdges {
			e, ok := sub.(*pdg.Edge)
			if !ok {
				return nil, fmt.Errorf("%w: sub-edge %s is not an instruction edge", plan.ErrInvariantViolation, sub)
			}
			if err := p.route(agg.Src, agg.Dst, e); err != nil {
				return nil, err
			}
		}
	}
	p.localSwitches()
	return p.queues, nil
}

// route connects e to every stage computing its consumer.
func (p *Planner) route(from, to *scc.SCC, e *pdg.Edge) error {
	for _, dst := range p.stagesComputing(to) {
		if dst.Contains(e.Src) {
			continue
		}
		if e.IsMemory() {
			return fmt.Errorf("%w: memory dependence %s crosses into stage %d", plan.ErrInvariantViolation, e, dst.Order)
		}
		src, ok := p.owner[from]
		if !ok {
			return fmt.Errorf("%w: producer %s has no stage and is not cloned into stage %d",
				plan.ErrInvariantViolation, ir.Label(e.Src), dst.Order)
		}
		p.allocate(src, dst, e)
	}
	return nil
}

func (p *Planner) stagesComputing(c *scc.SCC) []*plan.Stage {
	var out []*plan.Stage
	for _, s := range p.stages {
		if s.HasSCC(c) {
			out = append(out, s)
		}
	}
	return out
}

func (p *Planner) allocate(src, dst *plan.Stage, e *pdg.Edge) {
	key := queueKey{producer: e.Src, stage: dst.Order, operand: -1}
	kind := plan.QueueValue
	typ := e.Src.Type()
	switch {
	case e.IsControl():
		kind = plan.QueueControl
		typ = ir.I1
	case p.isSwitchPHI(e.Dst):
		kind = plan.QueueSwitch
		key.operand = operandIndex(e.Dst.(*ir.Instruction), e.Src)
	}

	q, ok := p.byKey[key]
	if !ok {
		q = &plan.Queue{
			Index:        len(p.queues),
			Kind:         kind,
			Producer:     e.Src,
			Type:         typ,
			ByteLength:   typ.ByteSize(),
			FromStage:    src.Order,
			ToStage:      dst.Order,
			OperandIndex: key.operand,
		}
		p.queues = append(p.queues, q)
		p.byKey[key] = q
		src.PushQueues[e.Src] = append(src.PushQueues[e.Src], q.Index)
	}
	if !containsValue(q.Consumers, e.Dst) {
		q.Consumers = append(q.Consumers, e.Dst)
		dst.PopQueues[e.Dst] = appendOnce(dst.PopQueues[e.Dst], q.Index)
	}
}

// isSwitchPHI reports whether v merges values of several producers inside
// one iteration. Header PHIs merge the entry value with the previous
// iteration and are not switches.
func (p *Planner) isSwitchPHI(v ir.Value) bool {
	phi, ok := v.(*ir.Instruction)
	if !ok || !phi.IsPHI() {
		return false
	}
	if p.loop != nil && phi.Block() == p.loop.Header {
		return false
	}
	producers := 0
	for _, op := range phi.Operands {
		if _, ok := op.(*ir.Instruction); ok {
			producers++
		}
	}
	return producers > 1
}

func operandIndex(phi *ir.Instruction, producer ir.Value) int {
	for i, op := range phi.Operands {
		if op == producer {
			return i
		}
	}
	return -1
}

// localSwitches records, for every switch PHI a stage owns, the operands
// whose producers the stage computes itself.
func (p *Planner) localSwitches() {
	for _, s := range p.stages {
		for _, c := range s.SCCs {
			for _, inst := range c.Instructions() {
				if !p.isSwitchPHI(inst) {
					continue
				}
				ls := plan.LocalSwitch{PHI: inst, Operands: make(map[ir.Value]int)}
				for i, op := range inst.Operands {
					if _, ok := op.(*ir.Instruction); ok && s.Contains(op) {
						ls.Operands[op] = i
					}
				}
				if len(ls.Operands) > 0 {
					s.LocalSwitches = append(s.LocalSwitches, ls)
				}
			}
		}
	}
}

func containsValue(values []ir.Value, v ir.Value) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func appendOnce(list []int, v int) []int {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
