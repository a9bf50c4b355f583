package plan

import (
	"fmt"
	"io"

	"github.com/l3aro/go-loop-parallel/pkg/ir"
)

// CacheLineSize is the default distance between two segment slots of a
// synchronization array.
const CacheLineSize = 64

// WaitPoint is where a thread waits for the previous thread before
// entering a segment. Code generation splits the block before Before into
// a pre-check block testing the segment flag and a wait block that waits,
// sets the flag and falls through.
type WaitPoint struct {
	Segment   int
	Before    *ir.Instruction
	PreCheck  string // name of the block that tests the flag
	WaitBlock string // name of the block that waits
	Offset    int    // byte offset into the past array
}

// SignalPoint is where a thread releases a segment to the next thread.
type SignalPoint struct {
	Segment int
	Before  *ir.Instruction
	Offset  int // byte offset into the future array
}

// IterationEnd lists the segments a latch must pass on when the iteration
// reached it without entering them.
type IterationEnd struct {
	Latch    *ir.Block
	Segments []int
}

// SyncPlan describes the synchronization HELIX injects into the loop body.
type SyncPlan struct {
	Stride       int
	NumSegments  int
	FlagResets   []int // segments whose flag is cleared at the header
	Waits        []WaitPoint
	Signals      []SignalPoint
	IterationEnd []IterationEnd
}

// Offset returns the byte offset of segment id in either array.
func (s *SyncPlan) Offset(id int) int { return id * s.Stride }

// ArrayBytes returns the size of each synchronization array.
func (s *SyncPlan) ArrayBytes() int { return s.NumSegments * s.Stride }

// WaitsOf returns the wait points of segment id.
func (s *SyncPlan) WaitsOf(id int) []WaitPoint {
	var out []WaitPoint
	for _, w := range s.Waits {
		if w.Segment == id {
			out = append(out, w)
		}
	}
	return out
}

// SignalsOf returns the signal points of segment id.
func (s *SyncPlan) SignalsOf(id int) []SignalPoint {
	var out []SignalPoint
	for _, sig := range s.Signals {
		if sig.Segment == id {
			out = append(out, sig)
		}
	}
	return out
}

// Print writes the synchronization points.
func (s *SyncPlan) Print(w io.Writer, prefix string) {
	fmt.Fprintf(w, "%sSync: %d segments, stride %d, %d bytes per array\n", prefix, s.NumSegments, s.Stride, s.ArrayBytes())
	for _, wp := range s.Waits {
		fmt.Fprintf(w, "%s  wait   ss%d @%d before %s (%s -> %s)\n", prefix, wp.Segment, wp.Offset, ir.Label(wp.Before), wp.PreCheck, wp.WaitBlock)
	}
	for _, sp := range s.Signals {
		fmt.Fprintf(w, "%s  signal ss%d @%d before %s\n", prefix, sp.Segment, sp.Offset, ir.Label(sp.Before))
	}
	for _, end := range s.IterationEnd {
		fmt.Fprintf(w, "%s  pass   %v at %s\n", prefix, end.Segments, end.Latch.Name)
	}
}
