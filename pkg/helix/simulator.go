package helix

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-loop-parallel/internal/log"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

// ErrUnknownSegment is returned when a simulated path names a segment the
// sync plan does not have.
var ErrUnknownSegment = errors.New("unknown sequential segment")

// ErrMisplacedSync is returned when an iteration signals a segment it never
// waited on, re-enters a segment it released, or ends without releasing one.
var ErrMisplacedSync = errors.New("misplaced synchronization")

// EventKind is the kind of a simulator trace event.
type EventKind string

const (
	EventWait   EventKind = "wait"   // the thread received the segment token
	EventSignal EventKind = "signal" // the thread released the token
	EventPass   EventKind = "pass"   // the iteration skipped the segment and forwarded the token
)

// Event is one synchronization step of a simulated run.
type Event struct {
	Seq       int       `json:"seq" yaml:"seq"`
	Thread    int       `json:"thread" yaml:"thread"`
	Iteration int       `json:"iteration" yaml:"iteration"`
	Segment   int       `json:"segment" yaml:"segment"`
	Kind      EventKind `json:"kind" yaml:"kind"`
}

func (e Event) String() string {
	return fmt.Sprintf("#%d t%d i%d %s ss%d", e.Seq, e.Thread, e.Iteration, e.Kind, e.Segment)
}

// Simulator runs a sync plan with goroutines standing in for cores.
// Iteration i runs on thread i % Threads. Each thread owns one token slot
// per segment; waiting receives from its own slot and signaling sends to
// the slot of the next thread, so segment s of iteration i+1 starts only
// after segment s of iteration i ended.
type Simulator struct {
	Sync       *plan.SyncPlan
	Threads    int
	Iterations int

	// Path returns the synchronization points an iteration reaches, in
	// execution order. PlanPath derives one from the plan. nil means every
	// segment waited and signaled once, in ID order.
	Path func(iteration int) []Step

	Logger log.Logger
}

type simulation struct {
	*Simulator
	logger log.Logger
	slots  [][]chan struct{} // [segment][thread]

	mu     sync.Mutex
	events []Event
}

// Run simulates the loop and returns the trace in the order the steps
// happened.
func (s *Simulator) Run(ctx context.Context) ([]Event, error) {
	if s.Sync == nil {
		return nil, errors.New("simulator: no sync plan")
	}
	if s.Threads < 1 {
		return nil, fmt.Errorf("simulator: threads must be at least 1, got %d", s.Threads)
	}
	for i := 0; i < s.Iterations; i++ {
		for _, st := range s.path(i) {
			if st.Segment < 0 || st.Segment >= s.Sync.NumSegments {
				return nil, fmt.Errorf("%w: ss%d in iteration %d", ErrUnknownSegment, st.Segment, i)
			}
		}
	}

	sim := &simulation{Simulator: s, logger: log.OrNop(s.Logger)}
	sim.slots = make([][]chan struct{}, s.Sync.NumSegments)
	for seg := range sim.slots {
		sim.slots[seg] = make([]chan struct{}, s.Threads)
		for t := range sim.slots[seg] {
			sim.slots[seg][t] = make(chan struct{}, 1)
		}
		// iteration 0 runs on thread 0 and must not wait
		sim.slots[seg][0] <- struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	for t := 0; t < s.Threads; t++ {
		g.Go(func() error { return sim.thread(gctx, t) })
	}
	if err := g.Wait(); err != nil {
		return sim.events, err
	}
	return sim.events, nil
}

func (s *Simulator) path(iteration int) []Step {
	if s.Path != nil {
		return s.Path(iteration)
	}
	out := make([]Step, 0, 2*s.Sync.NumSegments)
	for seg := 0; seg < s.Sync.NumSegments; seg++ {
		out = append(out, Step{Segment: seg, Kind: EventWait}, Step{Segment: seg, Kind: EventSignal})
	}
	return out
}

func (sim *simulation) thread(ctx context.Context, t int) error {
	for iter := t; iter < sim.Iterations; iter += sim.Threads {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sim.iteration(ctx, t, iter); err != nil {
			return err
		}
	}
	return nil
}

// iteration runs the steps of one iteration. The entered flags stand in
// for the per-segment flags cleared at the header: a wait on an entered
// segment and a pass of an entered segment do nothing.
func (sim *simulation) iteration(ctx context.Context, t, iter int) error {
	entered := make([]bool, sim.Sync.NumSegments)
	released := make([]bool, sim.Sync.NumSegments)
	for _, st := range sim.path(iter) {
		seg := st.Segment
		switch st.Kind {
		case EventWait:
			if released[seg] {
				return fmt.Errorf("%w: ss%d re-entered after its signal in iteration %d", ErrMisplacedSync, seg, iter)
			}
			if entered[seg] {
				continue
			}
			if err := sim.wait(ctx, t, iter, seg, EventWait); err != nil {
				return err
			}
			entered[seg] = true
		case EventSignal:
			if !entered[seg] {
				return fmt.Errorf("%w: ss%d signaled before its wait in iteration %d", ErrMisplacedSync, seg, iter)
			}
			if released[seg] {
				return fmt.Errorf("%w: ss%d signaled twice in iteration %d", ErrMisplacedSync, seg, iter)
			}
			if err := sim.signal(ctx, t, iter, seg, EventSignal); err != nil {
				return err
			}
			released[seg] = true
		case EventPass:
			if entered[seg] {
				continue
			}
			if err := sim.wait(ctx, t, iter, seg, ""); err != nil {
				return err
			}
			if err := sim.signal(ctx, t, iter, seg, EventPass); err != nil {
				return err
			}
			entered[seg], released[seg] = true, true
		default:
			return fmt.Errorf("simulator: unknown step kind %q", st.Kind)
		}
	}
	for seg, ok := range released {
		if !ok {
			return fmt.Errorf("%w: ss%d never released by iteration %d", ErrMisplacedSync, seg, iter)
		}
	}
	return nil
}

// wait blocks until the previous thread released seg. An empty kind
// receives without recording.
func (sim *simulation) wait(ctx context.Context, t, iter, seg int, kind EventKind) error {
	select {
	case <-sim.slots[seg][t]:
	case <-ctx.Done():
		return fmt.Errorf("thread %d waiting on ss%d in iteration %d: %w", t, seg, iter, ctx.Err())
	}
	if kind != "" {
		sim.record(t, iter, seg, kind)
	}
	return nil
}

func (sim *simulation) signal(ctx context.Context, t, iter, seg int, kind EventKind) error {
	sim.record(t, iter, seg, kind)
	next := (t + 1) % sim.Threads
	select {
	case sim.slots[seg][next] <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sim *simulation) record(t, iter, seg int, kind EventKind) {
	sim.mu.Lock()
	ev := Event{Seq: len(sim.events), Thread: t, Iteration: iter, Segment: seg, Kind: kind}
	sim.events = append(sim.events, ev)
	sim.mu.Unlock()
	sim.logger.Debug("HELIX: simulate", "event", ev.String())
}

// Verify checks that every segment was released iteration by iteration:
// for each segment, iteration i acquires it only after iteration i-1
// signaled or passed it, and exactly once.
func Verify(events []Event, segments, iterations int) error {
	released := make([]int, segments) // next iteration allowed to acquire
	acquired := make([][]bool, segments)
	for i := range acquired {
		acquired[i] = make([]bool, iterations)
	}
	for _, ev := range events {
		if ev.Segment < 0 || ev.Segment >= segments || ev.Iteration < 0 || ev.Iteration >= iterations {
			return fmt.Errorf("%w: %s", ErrUnknownSegment, ev)
		}
		switch ev.Kind {
		case EventWait, EventPass:
			if acquired[ev.Segment][ev.Iteration] {
				return fmt.Errorf("%s: segment acquired twice", ev)
			}
			if released[ev.Segment] != ev.Iteration {
				return fmt.Errorf("%s: iteration %d still owns the segment", ev, released[ev.Segment])
			}
			acquired[ev.Segment][ev.Iteration] = true
			if ev.Kind == EventPass {
				released[ev.Segment]++
			}
		case EventSignal:
			if !acquired[ev.Segment][ev.Iteration] {
				return fmt.Errorf("%s: signal without wait", ev)
			}
			if released[ev.Segment] != ev.Iteration {
				return fmt.Errorf("%s: signaled twice", ev)
			}
			released[ev.Segment]++
		}
	}
	for seg, next := range released {
		if next != iterations {
			return fmt.Errorf("ss%d released %d of %d iterations", seg, next, iterations)
		}
	}
	return nil
}
