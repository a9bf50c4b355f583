package env

import (
	"sort"

	"github.com/l3aro/go-loop-parallel/pkg/ir"
)

// StageMaps are the environment obligations of one stage or task.
type StageMaps struct {
	Incoming map[int][]ir.Value // slot -> internal consumers loading it at entry
	Outgoing map[int]ir.Value   // slot -> producer storing it at exit
}

// MapsFor computes the obligations of a stage whose instructions satisfy
// member. A live-in slot is incoming for every stage holding one of its
// consumers; a live-out slot is outgoing for the stage computing it. The
// exit-block slot is outgoing for every stage owning a loop-exiting
// terminator.
func (e *Environment) MapsFor(member func(ir.Value) bool) StageMaps {
	m := StageMaps{
		Incoming: make(map[int][]ir.Value),
		Outgoing: make(map[int]ir.Value),
	}
	for _, s := range e.Slots {
		switch {
		case s.LiveIn:
			for _, c := range e.consumers[s.Producer] {
				if member(c) {
					m.Incoming[s.Index] = append(m.Incoming[s.Index], c)
				}
			}
		case s.LiveOut:
			if member(s.Producer) {
				m.Outgoing[s.Index] = s.Producer
			}
		case s.ExitBlock:
			if term := e.exitingTerminator(member); term != nil {
				m.Outgoing[s.Index] = term
			}
		}
	}
	return m
}

func (e *Environment) exitingTerminator(member func(ir.Value) bool) *ir.Instruction {
	for _, exit := range e.ExitBlocks {
		for _, pred := range exit.Preds {
			if term := pred.Terminator(); term != nil && member(term) {
				return term
			}
		}
	}
	return nil
}

// SortedSlots returns the keys of a slot map in ascending order.
func SortedSlots[V any](m map[int]V) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
