package scc

import (
	"container/list"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/l3aro/go-loop-parallel/pkg/depgraph"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/pdg"
)

var (
	// ErrMergeCycle is returned by [DAG.Merge] when collapsing the given
	// components would close a cycle through a component outside the set.
	ErrMergeCycle = errors.New("merge would create a cycle")

	// ErrUnknownSCC is returned by [DAG.Merge] when a component is not a
	// node of the DAG.
	ErrUnknownSCC = errors.New("unknown SCC")
)

// DAG is the condensation of a dependence graph: one node per SCC, one
// edge per ordered pair of SCCs connected by at least one instruction-level
// edge. Each DAG edge carries those instruction-level edges as sub-edges.
type DAG struct {
	*depgraph.Graph[*SCC]

	source *pdg.Graph
	owner  map[ir.Value]*SCC
	nextID int
	merged int
}

// NewDAG condenses the internal nodes of g.
func NewDAG(g *pdg.Graph) *DAG {
	d := &DAG{
		Graph:  depgraph.New[*SCC](),
		source: g,
		owner:  make(map[ir.Value]*SCC),
	}

	for _, comp := range Components(g) {
		s := New(g, comp)
		d.add(s)
	}

	for _, e := range g.Edges() {
		from, ok := d.owner[e.Src]
		if !ok {
			continue
		}
		to, ok := d.owner[e.Dst]
		if !ok || from == to {
			continue
		}
		d.addSubEdge(from, to, e)
	}
	return d
}

func (d *DAG) add(s *SCC) {
	s.ID = d.nextID
	d.nextID++
	d.AddNode(s, true)
	for _, v := range s.Values() {
		d.owner[v] = s
	}
}

// addSubEdge records e under the DAG edge from -> to, creating it if needed.
func (d *DAG) addSubEdge(from, to *SCC, e depgraph.Dependence) {
	agg := d.edge(from, to)
	if agg == nil {
		agg = d.AddEdge(from, to, e.Kind())
	}
	agg.SubEdges = append(agg.SubEdges, e)
	agg.LoopCarried = agg.LoopCarried || e.Carried()
	agg.Type = strongest(agg.Type, e.Kind())
}

// strongest orders dependence types memory > data > control.
func strongest(a, b depgraph.DepType) depgraph.DepType {
	rank := func(t depgraph.DepType) int {
		switch t {
		case depgraph.DepTypeMemory:
			return 2
		case depgraph.DepTypeData:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func (d *DAG) edge(from, to *SCC) *depgraph.Edge[*SCC] {
	edges := d.EdgesBetween(from, to)
	if len(edges) == 0 {
		return nil
	}
	return edges[0]
}

// Source returns the dependence graph the DAG condenses.
func (d *DAG) Source() *pdg.Graph { return d.source }

// Merged returns how many components Merge has removed from the DAG so far.
func (d *DAG) Merged() int { return d.merged }

// SCCs returns the components in ID order.
func (d *DAG) SCCs() []*SCC {
	nodes := d.Nodes()
	out := make([]*SCC, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Value)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SCCOf returns the component that contains v, or nil.
func (d *DAG) SCCOf(v ir.Value) *SCC {
	return d.owner[v]
}

// Successors returns the components s has an edge to, in ID order.
func (d *DAG) Successors(s *SCC) []*SCC {
	var out []*SCC
	for _, e := range d.Outgoing(d.MustFetchNode(s)) {
		out = append(out, e.Dst)
	}
	sortSCCs(out)
	return out
}

// Predecessors returns the components with an edge to s, in ID order.
func (d *DAG) Predecessors(s *SCC) []*SCC {
	var out []*SCC
	for _, e := range d.Incoming(d.MustFetchNode(s)) {
		out = append(out, e.Src)
	}
	sortSCCs(out)
	return out
}

// OutgoingEdges returns the DAG edges leaving s.
func (d *DAG) OutgoingEdges(s *SCC) []*depgraph.Edge[*SCC] {
	return d.Outgoing(d.MustFetchNode(s))
}

// IncomingEdges returns the DAG edges entering s.
func (d *DAG) IncomingEdges(s *SCC) []*depgraph.Edge[*SCC] {
	return d.Incoming(d.MustFetchNode(s))
}

// NumSubEdges returns the number of instruction-level edges aggregated by
// all DAG edges.
func (d *DAG) NumSubEdges() int {
	total := 0
	for _, e := range d.Edges() {
		total += len(e.SubEdges)
	}
	return total
}

// TopologicalOrder returns the components so that every edge goes forward.
// Ready components are taken in ID order.
func (d *DAG) TopologicalOrder() []*SCC {
	indeg := make(map[*SCC]int)
	var ready []*SCC
	for _, s := range d.SCCs() {
		indeg[s] = len(d.IncomingEdges(s))
		if indeg[s] == 0 {
			ready = append(ready, s)
		}
	}

	order := make([]*SCC, 0, len(indeg))
	for len(ready) > 0 {
		s := ready[0]
		ready = ready[1:]
		order = append(order, s)
		for _, succ := range d.Successors(s) {
			indeg[succ]--
			if indeg[succ] == 0 {
				ready = insertSorted(ready, succ)
			}
		}
	}
	return order
}

// Depths returns the longest-path depth of every component; sources have
// depth 0.
func (d *DAG) Depths() map[*SCC]int {
	depth := make(map[*SCC]int)
	for _, s := range d.TopologicalOrder() {
		for _, p := range d.Predecessors(s) {
			if depth[p]+1 > depth[s] {
				depth[s] = depth[p] + 1
			}
		}
	}
	return depth
}

// Merge collapses sccs into a single component and returns it. Edges
// between merged components disappear into the new component; edges to
// the rest of the DAG are inherited with their sub-edges. The merge is
// rejected if it would close a cycle.
func (d *DAG) Merge(sccs []*SCC) (*SCC, error) {
	if len(sccs) == 0 {
		return nil, fmt.Errorf("merge: %w: empty set", ErrUnknownSCC)
	}
	set := make(map[*SCC]bool, len(sccs))
	for _, s := range sccs {
		if !d.IsInGraph(s) {
			return nil, fmt.Errorf("merge %v: %w", s, ErrUnknownSCC)
		}
		set[s] = true
	}
	if len(set) == 1 {
		return sccs[0], nil
	}
	if d.pathLeavesAndReenters(set) {
		return nil, fmt.Errorf("merge %v: %w", sccs, ErrMergeCycle)
	}

	var nodes []*pdg.Node
	for _, s := range sortedSet(set) {
		for _, v := range s.Values() {
			nodes = append(nodes, d.source.MustFetchNode(v))
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	type inherited struct {
		from, to *SCC
		sub      []depgraph.Dependence
	}
	var keep []inherited
	for _, s := range sortedSet(set) {
		for _, e := range d.IncomingEdges(s) {
			if !set[e.Src] {
				keep = append(keep, inherited{from: e.Src, sub: e.SubEdges})
			}
		}
		for _, e := range d.OutgoingEdges(s) {
			if !set[e.Dst] {
				keep = append(keep, inherited{to: e.Dst, sub: e.SubEdges})
			}
		}
	}

	for s := range set {
		d.RemoveNode(s)
	}
	d.merged += len(set) - 1
	merged := New(d.source, nodes)
	d.add(merged)
	for _, k := range keep {
		from, to := k.from, k.to
		if from == nil {
			from = merged
		}
		if to == nil {
			to = merged
		}
		for _, sub := range k.sub {
			d.addSubEdge(from, to, sub)
		}
	}
	return merged, nil
}

// pathLeavesAndReenters reports whether some path starts in set, leaves it
// and comes back.
func (d *DAG) pathLeavesAndReenters(set map[*SCC]bool) bool {
	visited := make(map[*SCC]bool)
	queue := list.New()
	for s := range set {
		for _, succ := range d.Successors(s) {
			if !set[succ] && !visited[succ] {
				visited[succ] = true
				queue.PushBack(succ)
			}
		}
	}
	for queue.Len() > 0 {
		s := queue.Remove(queue.Front()).(*SCC)
		for _, succ := range d.Successors(s) {
			if set[succ] {
				return true
			}
			if !visited[succ] {
				visited[succ] = true
				queue.PushBack(succ)
			}
		}
	}
	return false
}

// Print writes every component followed by the DAG edges.
func (d *DAG) Print(w io.Writer, prefix string) {
	sccs := d.SCCs()
	fmt.Fprintf(w, "%sSCCs: %d\n", prefix, len(sccs))
	for _, s := range sccs {
		fmt.Fprintf(w, "%s%v\n", prefix, s)
		s.Graph.Print(w, prefix+"\t")
	}
	fmt.Fprintf(w, "%sEdges: %d\n", prefix, d.NumEdges())
	for _, e := range d.Edges() {
		fmt.Fprintf(w, "%s\t%s\n", prefix, e)
	}
}

func sortSCCs(sccs []*SCC) {
	sort.Slice(sccs, func(i, j int) bool { return sccs[i].ID < sccs[j].ID })
}

func sortedSet(set map[*SCC]bool) []*SCC {
	out := make([]*SCC, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sortSCCs(out)
	return out
}

func insertSorted(sccs []*SCC, s *SCC) []*SCC {
	i := sort.Search(len(sccs), func(i int) bool { return sccs[i].ID > s.ID })
	sccs = append(sccs, nil)
	copy(sccs[i+1:], sccs[i:])
	sccs[i] = s
	return sccs
}
