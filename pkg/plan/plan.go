// Package plan holds the output of the parallelization techniques: the
// stages, queues, environment layout and synchronization a code generator
// needs to emit the parallel loop.
package plan

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"

	"github.com/l3aro/go-loop-parallel/pkg/env"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/scc"
)

var (
	// ErrInvariantViolation means upstream analysis produced a graph the
	// techniques assume cannot exist, such as a memory dependence between
	// two pipeline stages.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNotParallelizable is returned when a technique is applied to a
	// loop it declined.
	ErrNotParallelizable = errors.New("loop is not parallelizable")
)

// ExitEdge is a control transfer out of a stage.
type ExitEdge struct {
	From      *ir.Block
	To        *ir.Block
	PredIndex int // Index of From in To.Preds
}

// Stage is one pipeline position (DSWP) or the body every thread runs
// (HELIX).
type Stage struct {
	Order  int
	SCCs   []*scc.SCC // Components this stage owns
	Clones []*scc.SCC // Removable components recomputed locally

	Blocks      []*ir.Block
	EntryBlocks []*ir.Block
	ExitEdges   []ExitEdge

	PushQueues    map[ir.Value][]int // producer -> queues it feeds
	PopQueues     map[ir.Value][]int // consumer -> queues it reads
	LocalSwitches []LocalSwitch

	EnvIncoming map[int][]ir.Value // env slot -> consumers
	EnvOutgoing map[int]ir.Value   // env slot -> producer
}

// NewStage creates an empty stage at order.
func NewStage(order int, sccs ...*scc.SCC) *Stage {
	return &Stage{
		Order:       order,
		SCCs:        sccs,
		PushQueues:  make(map[ir.Value][]int),
		PopQueues:   make(map[ir.Value][]int),
		EnvIncoming: make(map[int][]ir.Value),
		EnvOutgoing: make(map[int]ir.Value),
	}
}

// Owns reports whether v belongs to a component the stage owns.
func (s *Stage) Owns(v ir.Value) bool {
	for _, c := range s.SCCs {
		if c.Contains(v) {
			return true
		}
	}
	return false
}

// Contains reports whether the stage computes v, locally cloned or owned.
func (s *Stage) Contains(v ir.Value) bool {
	if s.Owns(v) {
		return true
	}
	for _, c := range s.Clones {
		if c.Contains(v) {
			return true
		}
	}
	return false
}

// HasSCC reports whether c is owned or cloned by the stage.
func (s *Stage) HasSCC(c *scc.SCC) bool {
	for _, o := range s.SCCs {
		if o == c {
			return true
		}
	}
	for _, o := range s.Clones {
		if o == c {
			return true
		}
	}
	return false
}

// Instructions returns every instruction the stage executes, sorted by ID.
func (s *Stage) Instructions() []*ir.Instruction {
	var out []*ir.Instruction
	for _, c := range append(append([]*scc.SCC{}, s.SCCs...), s.Clones...) {
		out = append(out, c.Instructions()...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Stage) String() string {
	return fmt.Sprintf("stage %d %v", s.Order, s.SCCs)
}

// QueueKind tells what a queue carries.
type QueueKind string

const (
	QueueValue   QueueKind = "value"   // A data value
	QueueControl QueueKind = "control" // A branch outcome
	QueueSwitch  QueueKind = "switch"  // One operand of a merge point
)

// Queue is a single-producer single-consumer channel between two stages.
type Queue struct {
	Index      int
	Kind       QueueKind
	Producer   ir.Value
	Consumers  []ir.Value
	Type       ir.Type
	ByteLength int
	FromStage  int
	ToStage    int

	// OperandIndex is the merge operand a switch queue feeds, -1 otherwise.
	OperandIndex int
}

func (q *Queue) String() string {
	s := fmt.Sprintf("q%d %s %s %d->%d %s(%dB)", q.Index, q.Kind, ir.Label(q.Producer), q.FromStage, q.ToStage, q.Type, q.ByteLength)
	if q.OperandIndex >= 0 {
		s += fmt.Sprintf(" operand %d", q.OperandIndex)
	}
	return s
}

// LocalSwitch records how a merge point picks among producers living in
// its own stage.
type LocalSwitch struct {
	PHI      *ir.Instruction
	Operands map[ir.Value]int // producer -> operand index
}

// SequentialSegment is a region threads must run in iteration order.
type SequentialSegment struct {
	ID      int
	SCCs    []*scc.SCC
	Entries []*ir.Instruction // First instructions of the segment on each path
	Exits   []*ir.Instruction // Last instructions of the segment on each path
}

// Plan is the complete output for one loop.
type Plan struct {
	ID        string
	Technique string
	Function  string
	Loop      string // header block name

	Stages   []*Stage
	Queues   []*Queue
	Env      *env.Environment
	Segments []*SequentialSegment
	Sync     *SyncPlan
}

// New creates a plan with a fresh ID.
func New(technique string, loop *ir.Loop) *Plan {
	p := &Plan{ID: uuid.NewString(), Technique: technique}
	if loop != nil {
		p.Loop = loop.Header.Name
		if fn := loop.Function(); fn != nil {
			p.Function = fn.Name
		}
	}
	return p
}

// StageOf returns the stage owning v, or nil.
func (p *Plan) StageOf(v ir.Value) *Stage {
	for _, s := range p.Stages {
		if s.Owns(v) {
			return s
		}
	}
	return nil
}

// QueuesOfKind returns the queues of kind k in index order.
func (p *Plan) QueuesOfKind(k QueueKind) []*Queue {
	var out []*Queue
	for _, q := range p.Queues {
		if q.Kind == k {
			out = append(out, q)
		}
	}
	return out
}

// Print writes a human-readable description of the plan.
func (p *Plan) Print(w io.Writer) {
	fmt.Fprintf(w, "%s plan for %s/%s (%s)\n", p.Technique, p.Function, p.Loop, p.ID)
	for _, s := range p.Stages {
		fmt.Fprintf(w, "  Stage %d: %v", s.Order, s.SCCs)
		if len(s.Clones) > 0 {
			fmt.Fprintf(w, " clones %v", s.Clones)
		}
		fmt.Fprintln(w)
	}
	for _, q := range p.Queues {
		fmt.Fprintf(w, "  %s\n", q)
	}
	for _, seg := range p.Segments {
		fmt.Fprintf(w, "  Segment %d: %v\n", seg.ID, seg.SCCs)
	}
	if p.Env != nil {
		p.Env.Print(w, "  ")
	}
}
