package helix

import (
	"fmt"

	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

// Synchronize places the waits and signals of every segment.
//
// Each segment owns the slot at ID*stride of the past array (waited on)
// and of the future array (signaled). A per-segment flag, cleared at the
// header, makes the first entry of an iteration wait and the later ones
// skip the wait. Latches reached by a path that skipped a segment pass its
// token on so the next thread does not wait forever.
func Synchronize(loop *ir.Loop, segments []*plan.SequentialSegment, stride int) *plan.SyncPlan {
	if stride <= 0 {
		stride = plan.CacheLineSize
	}
	sp := &plan.SyncPlan{Stride: stride, NumSegments: len(segments)}
	flow := newIterationFlow(loop)

	for _, seg := range segments {
		sp.FlagResets = append(sp.FlagResets, seg.ID)
		offset := sp.Offset(seg.ID)

		for _, entry := range seg.Entries {
			before := waitPosition(entry)
			sp.Waits = append(sp.Waits, plan.WaitPoint{
				Segment:   seg.ID,
				Before:    before,
				PreCheck:  fmt.Sprintf("%s.ss%d.check", before.Block().Name, seg.ID),
				WaitBlock: fmt.Sprintf("%s.ss%d.wait", before.Block().Name, seg.ID),
				Offset:    offset,
			})
		}
		for _, exit := range seg.Exits {
			sp.Signals = append(sp.Signals, plan.SignalPoint{
				Segment: seg.ID,
				Before:  signalPosition(exit),
				Offset:  offset,
			})
		}
	}

	for _, latch := range loop.Latches() {
		end := plan.IterationEnd{Latch: latch}
		for _, seg := range segments {
			member := func(inst *ir.Instruction) bool { return segmentContains(seg, inst) }
			if flow.skippable(member, latch) {
				end.Segments = append(end.Segments, seg.ID)
			}
		}
		if len(end.Segments) > 0 {
			sp.IterationEnd = append(sp.IterationEnd, end)
		}
	}
	return sp
}

func segmentContains(seg *plan.SequentialSegment, inst *ir.Instruction) bool {
	for _, s := range seg.SCCs {
		if s.Contains(inst) {
			return true
		}
	}
	return false
}

// waitPosition is the instruction a wait goes in front of: the entry
// itself, or the first non-PHI of its block since nothing may precede a
// PHI.
func waitPosition(entry *ir.Instruction) *ir.Instruction {
	if !entry.IsPHI() {
		return entry
	}
	for _, inst := range entry.Block().Instrs {
		if !inst.IsPHI() {
			return inst
		}
	}
	return entry
}

// signalPosition is the instruction a signal goes in front of: the one
// following the segment's last instruction, or that instruction itself
// when it ends its block.
func signalPosition(exit *ir.Instruction) *ir.Instruction {
	instrs := exit.Block().Instrs
	for i, inst := range instrs {
		if inst == exit && i+1 < len(instrs) {
			next := instrs[i+1]
			if exit.IsPHI() {
				return waitPosition(next)
			}
			return next
		}
	}
	return exit
}
