package plan

import (
	"sort"
	"strconv"

	"github.com/l3aro/go-loop-parallel/pkg/env"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/scc"
)

// Report is a name-based view of a plan, or of why a loop has none. It
// refers to values by label only so it can be serialized and cached.
type Report struct {
	ID             string          `json:"id,omitempty" yaml:"id,omitempty" msgpack:"id"`
	Function       string          `json:"function" yaml:"function" msgpack:"function"`
	Loop           string          `json:"loop" yaml:"loop" msgpack:"loop"`
	Technique      string          `json:"technique,omitempty" yaml:"technique,omitempty" msgpack:"technique"`
	Parallelizable bool            `json:"parallelizable" yaml:"parallelizable" msgpack:"parallelizable"`
	Reason         string          `json:"reason,omitempty" yaml:"reason,omitempty" msgpack:"reason"`
	Stages         []StageReport   `json:"stages,omitempty" yaml:"stages,omitempty" msgpack:"stages"`
	Queues         []QueueReport   `json:"queues,omitempty" yaml:"queues,omitempty" msgpack:"queues"`
	Env            []SlotReport    `json:"env,omitempty" yaml:"env,omitempty" msgpack:"env"`
	Segments       []SegmentReport `json:"segments,omitempty" yaml:"segments,omitempty" msgpack:"segments"`
	Sync           *SyncReport     `json:"sync,omitempty" yaml:"sync,omitempty" msgpack:"sync"`
}

// StageReport describes one stage.
type StageReport struct {
	Order         int                 `json:"order" yaml:"order" msgpack:"order"`
	SCCs          []string            `json:"sccs" yaml:"sccs" msgpack:"sccs"`
	Clones        []string            `json:"clones,omitempty" yaml:"clones,omitempty" msgpack:"clones"`
	Blocks        []string            `json:"blocks" yaml:"blocks" msgpack:"blocks"`
	EntryBlocks   []string            `json:"entry_blocks,omitempty" yaml:"entry_blocks,omitempty" msgpack:"entry_blocks"`
	ExitEdges     []ExitEdgeReport    `json:"exit_edges,omitempty" yaml:"exit_edges,omitempty" msgpack:"exit_edges"`
	Push          map[string][]int    `json:"push,omitempty" yaml:"push,omitempty" msgpack:"push"`
	Pop           map[string][]int    `json:"pop,omitempty" yaml:"pop,omitempty" msgpack:"pop"`
	LocalSwitches []LocalSwitchReport `json:"local_switches,omitempty" yaml:"local_switches,omitempty" msgpack:"local_switches"`
	EnvIncoming   map[int][]string    `json:"env_incoming,omitempty" yaml:"env_incoming,omitempty" msgpack:"env_incoming"`
	EnvOutgoing   map[int]string      `json:"env_outgoing,omitempty" yaml:"env_outgoing,omitempty" msgpack:"env_outgoing"`
	Entry         []string            `json:"entry,omitempty" yaml:"entry,omitempty" msgpack:"entry"`
	Iteration     []string            `json:"iteration,omitempty" yaml:"iteration,omitempty" msgpack:"iteration"`
	Exit          []string            `json:"exit,omitempty" yaml:"exit,omitempty" msgpack:"exit"`
}

// ExitEdgeReport describes a control transfer out of a stage.
type ExitEdgeReport struct {
	From      string `json:"from" yaml:"from" msgpack:"from"`
	To        string `json:"to" yaml:"to" msgpack:"to"`
	PredIndex int    `json:"pred_index" yaml:"pred_index" msgpack:"pred_index"`
}

// LocalSwitchReport describes an in-stage merge.
type LocalSwitchReport struct {
	PHI      string         `json:"phi" yaml:"phi" msgpack:"phi"`
	Operands map[string]int `json:"operands" yaml:"operands" msgpack:"operands"`
}

// QueueReport describes one queue.
type QueueReport struct {
	Index        int      `json:"index" yaml:"index" msgpack:"index"`
	Kind         string   `json:"kind" yaml:"kind" msgpack:"kind"`
	Producer     string   `json:"producer" yaml:"producer" msgpack:"producer"`
	Consumers    []string `json:"consumers" yaml:"consumers" msgpack:"consumers"`
	Type         string   `json:"type" yaml:"type" msgpack:"type"`
	ByteLength   int      `json:"byte_length" yaml:"byte_length" msgpack:"byte_length"`
	FromStage    int      `json:"from_stage" yaml:"from_stage" msgpack:"from_stage"`
	ToStage      int      `json:"to_stage" yaml:"to_stage" msgpack:"to_stage"`
	OperandIndex int      `json:"operand_index" yaml:"operand_index" msgpack:"operand_index"`
}

// SlotReport describes one environment slot.
type SlotReport struct {
	Index       int      `json:"index" yaml:"index" msgpack:"index"`
	Value       string   `json:"value,omitempty" yaml:"value,omitempty" msgpack:"value"`
	Type        string   `json:"type" yaml:"type" msgpack:"type"`
	Direction   string   `json:"direction" yaml:"direction" msgpack:"direction"`
	Consumers   []string `json:"consumers,omitempty" yaml:"consumers,omitempty" msgpack:"consumers"`
	Reducible   bool     `json:"reducible,omitempty" yaml:"reducible,omitempty" msgpack:"reducible"`
	ReductionOp string   `json:"reduction_op,omitempty" yaml:"reduction_op,omitempty" msgpack:"reduction_op"`
	Identity    string   `json:"identity,omitempty" yaml:"identity,omitempty" msgpack:"identity"`
}

// SegmentReport describes one sequential segment.
type SegmentReport struct {
	ID      int      `json:"id" yaml:"id" msgpack:"id"`
	SCCs    []string `json:"sccs" yaml:"sccs" msgpack:"sccs"`
	Entries []string `json:"entries" yaml:"entries" msgpack:"entries"`
	Exits   []string `json:"exits" yaml:"exits" msgpack:"exits"`
}

// SyncReport describes the HELIX synchronization.
type SyncReport struct {
	Stride       int      `json:"stride" yaml:"stride" msgpack:"stride"`
	ArrayBytes   int      `json:"array_bytes" yaml:"array_bytes" msgpack:"array_bytes"`
	FlagResets   []int    `json:"flag_resets" yaml:"flag_resets" msgpack:"flag_resets"`
	Waits        []string `json:"waits" yaml:"waits" msgpack:"waits"`
	Signals      []string `json:"signals" yaml:"signals" msgpack:"signals"`
	IterationEnd []string `json:"iteration_end,omitempty" yaml:"iteration_end,omitempty" msgpack:"iteration_end"`
}

// Declined builds the report of a loop no technique could parallelize.
func Declined(loop *ir.Loop, reason string) *Report {
	r := &Report{Reason: reason}
	if loop != nil {
		r.Loop = loop.Header.Name
		if fn := loop.Function(); fn != nil {
			r.Function = fn.Name
		}
	}
	return r
}

// NewReport flattens p.
func NewReport(p *Plan) *Report {
	r := &Report{
		ID:             p.ID,
		Function:       p.Function,
		Loop:           p.Loop,
		Technique:      p.Technique,
		Parallelizable: true,
	}
	for _, s := range p.Stages {
		r.Stages = append(r.Stages, stageReport(s, p))
	}
	for _, q := range p.Queues {
		r.Queues = append(r.Queues, QueueReport{
			Index:        q.Index,
			Kind:         string(q.Kind),
			Producer:     ir.Label(q.Producer),
			Consumers:    labels(q.Consumers),
			Type:         string(q.Type),
			ByteLength:   q.ByteLength,
			FromStage:    q.FromStage,
			ToStage:      q.ToStage,
			OperandIndex: q.OperandIndex,
		})
	}
	if p.Env != nil {
		r.Env = slotReports(p.Env)
	}
	for _, seg := range p.Segments {
		r.Segments = append(r.Segments, SegmentReport{
			ID:      seg.ID,
			SCCs:    sccNames(seg.SCCs),
			Entries: labels(instValues(seg.Entries)),
			Exits:   labels(instValues(seg.Exits)),
		})
	}
	if p.Sync != nil {
		sr := &SyncReport{
			Stride:     p.Sync.Stride,
			ArrayBytes: p.Sync.ArrayBytes(),
			FlagResets: p.Sync.FlagResets,
		}
		for _, w := range p.Sync.Waits {
			sr.Waits = append(sr.Waits, "ss"+strconv.Itoa(w.Segment)+" before "+ir.Label(w.Before))
		}
		for _, s := range p.Sync.Signals {
			sr.Signals = append(sr.Signals, "ss"+strconv.Itoa(s.Segment)+" before "+ir.Label(s.Before))
		}
		for _, end := range p.Sync.IterationEnd {
			for _, id := range end.Segments {
				sr.IterationEnd = append(sr.IterationEnd, "ss"+strconv.Itoa(id)+" at "+end.Latch.Name)
			}
		}
		r.Sync = sr
	}
	return r
}

func stageReport(s *Stage, p *Plan) StageReport {
	sr := StageReport{
		Order:       s.Order,
		SCCs:        sccNames(s.SCCs),
		Clones:      sccNames(s.Clones),
		Blocks:      blockNames(s.Blocks),
		EntryBlocks: blockNames(s.EntryBlocks),
	}
	for _, e := range s.ExitEdges {
		sr.ExitEdges = append(sr.ExitEdges, ExitEdgeReport{From: e.From.Name, To: e.To.Name, PredIndex: e.PredIndex})
	}
	sr.Push = queueMap(s.PushQueues)
	sr.Pop = queueMap(s.PopQueues)
	for _, ls := range s.LocalSwitches {
		ops := make(map[string]int, len(ls.Operands))
		for v, idx := range ls.Operands {
			ops[ir.Label(v)] = idx
		}
		sr.LocalSwitches = append(sr.LocalSwitches, LocalSwitchReport{PHI: ir.Label(ls.PHI), Operands: ops})
	}
	if len(s.EnvIncoming) > 0 {
		sr.EnvIncoming = make(map[int][]string, len(s.EnvIncoming))
		for slot, consumers := range s.EnvIncoming {
			sr.EnvIncoming[slot] = labels(consumers)
		}
	}
	if len(s.EnvOutgoing) > 0 {
		sr.EnvOutgoing = make(map[int]string, len(s.EnvOutgoing))
		for slot, producer := range s.EnvOutgoing {
			sr.EnvOutgoing[slot] = ir.Label(producer)
		}
	}
	if p.Env != nil {
		sr.Entry = opStrings(EntryGlue(s, p.Env))
		sr.Exit = opStrings(ExitGlue(s, p.Env))
	}
	sr.Iteration = opStrings(IterationGlue(s, p.Queues))
	return sr
}

func slotReports(e *env.Environment) []SlotReport {
	out := make([]SlotReport, 0, e.Size())
	for _, s := range e.Slots {
		sr := SlotReport{
			Index:       s.Index,
			Type:        string(s.Type),
			Reducible:   s.Reducible,
			ReductionOp: string(s.ReductionOp),
			Identity:    s.Identity,
		}
		switch {
		case s.ExitBlock:
			sr.Direction = "exit-block"
		case s.LiveIn:
			sr.Direction = "live-in"
		default:
			sr.Direction = "live-out"
		}
		if s.Producer != nil {
			sr.Value = ir.Label(s.Producer)
			sr.Consumers = labels(e.ConsumersOf(s.Producer))
		}
		out = append(out, sr)
	}
	return out
}

func queueMap(m map[ir.Value][]int) map[string][]int {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string][]int, len(m))
	for v, qs := range m {
		out[ir.Label(v)] = append([]int(nil), qs...)
	}
	return out
}

func labels(values []ir.Value) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, ir.Label(v))
	}
	sort.Strings(out)
	return out
}

func instValues(insts []*ir.Instruction) []ir.Value {
	out := make([]ir.Value, len(insts))
	for i, inst := range insts {
		out[i] = inst
	}
	return out
}

func sccNames(sccs []*scc.SCC) []string {
	if len(sccs) == 0 {
		return nil
	}
	out := make([]string, len(sccs))
	for i, s := range sccs {
		out[i] = s.String()
	}
	return out
}

func blockNames(blocks []*ir.Block) []string {
	if len(blocks) == 0 {
		return nil
	}
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Name
	}
	return out
}

func opStrings(ops []GlueOp) []string {
	if len(ops) == 0 {
		return nil
	}
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.String()
	}
	return out
}
