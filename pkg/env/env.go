// Package env lays out the loop environment: the slot array through which
// values cross the boundary of a parallelized loop.
//
// A slot is allocated for every value defined outside the loop and used
// inside it (live-in), and for every value defined inside the loop and
// used after it (live-out). When the loop can leave through more than one
// exit block, one extra slot records which exit was taken.
package env

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/pdg"
	"github.com/l3aro/go-loop-parallel/pkg/sccattr"
)

var (
	// ErrNoSlot is returned when a slot index is out of range.
	ErrNoSlot = errors.New("no such environment slot")

	// ErrNotReducible is returned when a slot cannot be combined with an
	// associative operator.
	ErrNotReducible = errors.New("slot is not reducible")
)

// Slot is one entry of the environment array.
type Slot struct {
	Index    int
	Producer ir.Value // nil for the exit-block slot
	Type     ir.Type

	LiveIn    bool
	LiveOut   bool
	ExitBlock bool // holds the index of the exit block taken

	Reducible   bool
	ReductionOp ir.Opcode
	Identity    string
}

func (s *Slot) String() string {
	switch {
	case s.ExitBlock:
		return fmt.Sprintf("env[%d] exit-block %s", s.Index, s.Type)
	case s.LiveIn:
		return fmt.Sprintf("env[%d] live-in %s %s", s.Index, ir.Label(s.Producer), s.Type)
	}
	str := fmt.Sprintf("env[%d] live-out %s %s", s.Index, ir.Label(s.Producer), s.Type)
	if s.Reducible {
		str += fmt.Sprintf(" reduce(%s, %s)", s.ReductionOp, s.Identity)
	}
	return str
}

// Environment is the slot layout of one loop.
type Environment struct {
	Slots      []*Slot
	ExitBlocks []*ir.Block

	index     map[ir.Value]int
	consumers map[ir.Value][]ir.Value
	exitSlot  int
}

// Build allocates slots for every value crossing the boundary of loop in
// the loop dependence graph lg. External nodes are visited in discovery
// order, so the layout is stable for a given graph.
func Build(lg *pdg.Graph, loop *ir.Loop) *Environment {
	e := &Environment{
		index:     make(map[ir.Value]int),
		consumers: make(map[ir.Value][]ir.Value),
		exitSlot:  -1,
	}

	for _, n := range lg.ExternalNodes() {
		for _, edge := range lg.Outgoing(n) {
			if !edge.IsData() || !lg.IsInternal(edge.Dst) {
				continue
			}
			e.addProducer(edge.Src, true)
			e.addConsumer(edge.Src, edge.Dst)
		}
		for _, edge := range lg.Incoming(n) {
			if !edge.IsData() || !lg.IsInternal(edge.Src) {
				continue
			}
			e.addProducer(edge.Src, false)
			e.addConsumer(edge.Src, edge.Dst)
		}
	}

	if loop != nil {
		e.ExitBlocks = loop.ExitBlocks()
	}
	if len(e.ExitBlocks) > 1 {
		e.exitSlot = len(e.Slots)
		e.Slots = append(e.Slots, &Slot{Index: e.exitSlot, Type: ir.I32, ExitBlock: true})
	}
	return e
}

func (e *Environment) addProducer(v ir.Value, liveIn bool) {
	if _, ok := e.index[v]; ok {
		return
	}
	idx := len(e.Slots)
	e.index[v] = idx
	e.Slots = append(e.Slots, &Slot{
		Index:    idx,
		Producer: v,
		Type:     v.Type(),
		LiveIn:   liveIn,
		LiveOut:  !liveIn,
	})
}

func (e *Environment) addConsumer(producer, consumer ir.Value) {
	for _, c := range e.consumers[producer] {
		if c == consumer {
			return
		}
	}
	e.consumers[producer] = append(e.consumers[producer], consumer)
}

// Size returns the number of slots, the exit-block slot included.
func (e *Environment) Size() int { return len(e.Slots) }

// Slot returns the slot at idx.
func (e *Environment) Slot(idx int) (*Slot, error) {
	if idx < 0 || idx >= len(e.Slots) {
		return nil, fmt.Errorf("%w: %d", ErrNoSlot, idx)
	}
	return e.Slots[idx], nil
}

// SlotOf returns the slot carrying producer.
func (e *Environment) SlotOf(producer ir.Value) (*Slot, bool) {
	idx, ok := e.index[producer]
	if !ok {
		return nil, false
	}
	return e.Slots[idx], true
}

// ConsumersOf returns the users of producer on the other side of the loop
// boundary: internal users for a live-in, external users for a live-out.
func (e *Environment) ConsumersOf(producer ir.Value) []ir.Value {
	return e.consumers[producer]
}

// LiveIns returns the live-in slots in index order.
func (e *Environment) LiveIns() []*Slot {
	return e.filter(func(s *Slot) bool { return s.LiveIn })
}

// LiveOuts returns the live-out slots in index order.
func (e *Environment) LiveOuts() []*Slot {
	return e.filter(func(s *Slot) bool { return s.LiveOut })
}

func (e *Environment) filter(keep func(*Slot) bool) []*Slot {
	var out []*Slot
	for _, s := range e.Slots {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// IndexOfExitBlock returns the exit-block slot, or -1 when the loop has a
// single exit.
func (e *Environment) IndexOfExitBlock() int { return e.exitSlot }

// ExitIndex returns the value the exit-block slot takes when the loop
// leaves through b, or -1.
func (e *Environment) ExitIndex(b *ir.Block) int {
	for i, exit := range e.ExitBlocks {
		if exit == b {
			return i
		}
	}
	return -1
}

// DesignateReducible marks the live-out slot idx as combined with the
// operator of acc rather than last-writer-wins. The policy decides whether
// acc is an accumulation and supplies the identity.
func (e *Environment) DesignateReducible(idx int, acc *ir.Instruction, policy sccattr.AccumulatorPolicy) error {
	s, err := e.Slot(idx)
	if err != nil {
		return err
	}
	if !s.LiveOut {
		return fmt.Errorf("%w: env[%d] is not a live-out", ErrNotReducible, idx)
	}
	if policy == nil {
		policy = sccattr.DefaultAccumulators
	}
	if acc == nil || !policy.IsAccumulator(acc) {
		return fmt.Errorf("%w: env[%d] has no accumulator", ErrNotReducible, idx)
	}
	id, ok := policy.Identity(acc.Op)
	if !ok {
		return fmt.Errorf("%w: %s has no identity", ErrNotReducible, acc.Op)
	}
	s.Reducible = true
	s.ReductionOp = acc.Op
	s.Identity = id
	return nil
}

// IsReducible reports whether slot idx was designated reducible.
func (e *Environment) IsReducible(idx int) bool {
	s, err := e.Slot(idx)
	return err == nil && s.Reducible
}

// ReductionOp returns the operator combining slot idx.
func (e *Environment) ReductionOp(idx int) (ir.Opcode, bool) {
	s, err := e.Slot(idx)
	if err != nil || !s.Reducible {
		return "", false
	}
	return s.ReductionOp, true
}

// Print writes the layout, one slot per line.
func (e *Environment) Print(w io.Writer, prefix string) {
	fmt.Fprintf(w, "%sEnvironment: %d slots\n", prefix, e.Size())
	for _, s := range e.Slots {
		fmt.Fprintf(w, "%s  %s", prefix, s)
		if consumers := e.consumers[s.Producer]; len(consumers) > 0 && !s.ExitBlock {
			names := make([]string, len(consumers))
			for i, c := range consumers {
				names[i] = ir.Label(c)
			}
			sort.Strings(names)
			fmt.Fprintf(w, " -> %v", names)
		}
		fmt.Fprintln(w)
	}
}
