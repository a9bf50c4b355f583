package depgraph

import (
	"fmt"
	"io"
	"strings"
)

// Graph is a dependence graph over entities of type T. It owns its nodes
// and edges; every edge's endpoints exist in the same graph and each
// entity maps to at most one node.
type Graph[T comparable] struct {
	nodes []*Node[T]
	index map[T]NodeID
	edges []*Edge[T]
	entry NodeID
}

// New creates an empty graph.
func New[T comparable]() *Graph[T] {
	return &Graph[T]{
		index: make(map[T]NodeID),
		entry: -1,
	}
}

// AddNode returns the node wrapping v, creating it if needed. Adding an
// entity that already has a node returns the existing node unchanged.
func (g *Graph[T]) AddNode(v T, internal bool) *Node[T] {
	if id, ok := g.index[v]; ok {
		return g.nodes[id]
	}
	n := &Node[T]{ID: NodeID(len(g.nodes)), Value: v, Internal: internal}
	g.nodes = append(g.nodes, n)
	g.index[v] = n.ID
	if g.entry < 0 {
		g.entry = n.ID
	}
	return n
}

// FetchNode returns the node wrapping v.
func (g *Graph[T]) FetchNode(v T) (*Node[T], bool) {
	id, ok := g.index[v]
	if !ok {
		return nil, false
	}
	return g.nodes[id], true
}

// MustFetchNode returns the node wrapping v and panics if there is none.
// Asking for an entity outside the graph is a caller bug.
func (g *Graph[T]) MustFetchNode(v T) *Node[T] {
	n, ok := g.FetchNode(v)
	if !ok {
		panic(fmt.Sprintf("depgraph: no node for %v", v))
	}
	return n
}

// FetchOrAddNode returns the node wrapping v, adding it with the given
// internal flag if it does not exist yet.
func (g *Graph[T]) FetchOrAddNode(v T, internal bool) *Node[T] {
	return g.AddNode(v, internal)
}

// Node returns the node with handle id.
func (g *Graph[T]) Node(id NodeID) *Node[T] {
	if id < 0 || int(id) >= len(g.nodes) || g.nodes[id].removed {
		panic(fmt.Sprintf("depgraph: invalid node handle %d", id))
	}
	return g.nodes[id]
}

// IsInGraph reports whether v has a node in g.
func (g *Graph[T]) IsInGraph(v T) bool {
	_, ok := g.index[v]
	return ok
}

// IsInternal reports whether v has an internal node in g.
func (g *Graph[T]) IsInternal(v T) bool {
	n, ok := g.FetchNode(v)
	return ok && n.Internal
}

// SetEntry makes the node of v the graph's entry node.
func (g *Graph[T]) SetEntry(v T) {
	g.entry = g.MustFetchNode(v).ID
}

// EntryNode returns the entry node, or nil for an empty graph.
func (g *Graph[T]) EntryNode() *Node[T] {
	if g.entry < 0 || g.nodes[g.entry].removed {
		return nil
	}
	return g.nodes[g.entry]
}

// AddEdge adds a dependence from -> to. Both entities must already be nodes.
func (g *Graph[T]) AddEdge(from, to T, typ DepType) *Edge[T] {
	src := g.MustFetchNode(from)
	dst := g.MustFetchNode(to)
	e := &Edge[T]{From: src.ID, To: dst.ID, Src: from, Dst: to, Type: typ}
	g.link(e)
	return e
}

// CopyAddEdge copies an edge of another graph into g, adding endpoints
// that are missing as external nodes. The source edge is not modified.
func (g *Graph[T]) CopyAddEdge(e *Edge[T]) *Edge[T] {
	src := g.FetchOrAddNode(e.Src, false)
	dst := g.FetchOrAddNode(e.Dst, false)
	c := &Edge[T]{
		From:        src.ID,
		To:          dst.ID,
		Src:         e.Src,
		Dst:         e.Dst,
		Type:        e.Type,
		Must:        e.Must,
		LoopCarried: e.LoopCarried,
	}
	if len(e.SubEdges) > 0 {
		c.SubEdges = append([]Dependence(nil), e.SubEdges...)
	}
	g.link(c)
	return c
}

func (g *Graph[T]) link(e *Edge[T]) {
	g.edges = append(g.edges, e)
	g.nodes[e.From].out = append(g.nodes[e.From].out, e)
	g.nodes[e.To].in = append(g.nodes[e.To].in, e)
}

// RemoveNode deletes the node of v and every edge touching it. The handle
// is retired and never reused.
func (g *Graph[T]) RemoveNode(v T) {
	n := g.MustFetchNode(v)
	drop := make(map[*Edge[T]]bool, len(n.in)+len(n.out))
	for _, e := range n.out {
		drop[e] = true
	}
	for _, e := range n.in {
		drop[e] = true
	}
	for e := range drop {
		g.RemoveEdge(e)
	}
	n.removed = true
	delete(g.index, v)
	if g.entry == n.ID {
		g.entry = -1
		for _, other := range g.nodes {
			if !other.removed {
				g.entry = other.ID
				break
			}
		}
	}
}

// RemoveEdge deletes e from g.
func (g *Graph[T]) RemoveEdge(e *Edge[T]) {
	g.edges = without(g.edges, e)
	src := g.nodes[e.From]
	src.out = without(src.out, e)
	dst := g.nodes[e.To]
	dst.in = without(dst.in, e)
}

func without[T comparable](edges []*Edge[T], e *Edge[T]) []*Edge[T] {
	out := make([]*Edge[T], 0, len(edges))
	for _, x := range edges {
		if x != e {
			out = append(out, x)
		}
	}
	return out
}

// Nodes returns every live node in handle order.
func (g *Graph[T]) Nodes() []*Node[T] {
	out := make([]*Node[T], 0, len(g.index))
	for _, n := range g.nodes {
		if !n.removed {
			out = append(out, n)
		}
	}
	return out
}

// InternalNodes returns the internal nodes in handle order.
func (g *Graph[T]) InternalNodes() []*Node[T] {
	var out []*Node[T]
	for _, n := range g.nodes {
		if !n.removed && n.Internal {
			out = append(out, n)
		}
	}
	return out
}

// ExternalNodes returns the external nodes in handle order.
func (g *Graph[T]) ExternalNodes() []*Node[T] {
	var out []*Node[T]
	for _, n := range g.nodes {
		if !n.removed && !n.Internal {
			out = append(out, n)
		}
	}
	return out
}

// Values returns the entities of the internal nodes in handle order.
func (g *Graph[T]) Values() []T {
	nodes := g.InternalNodes()
	out := make([]T, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Value)
	}
	return out
}

// Edges returns every edge in insertion order.
func (g *Graph[T]) Edges() []*Edge[T] {
	return g.edges
}

// Outgoing returns the edges leaving n.
func (g *Graph[T]) Outgoing(n *Node[T]) []*Edge[T] {
	return n.out
}

// Incoming returns the edges entering n.
func (g *Graph[T]) Incoming(n *Node[T]) []*Edge[T] {
	return n.in
}

// EdgesBetween returns the edges from -> to.
func (g *Graph[T]) EdgesBetween(from, to T) []*Edge[T] {
	src, ok := g.FetchNode(from)
	if !ok {
		return nil
	}
	var out []*Edge[T]
	for _, e := range src.out {
		if e.Dst == to {
			out = append(out, e)
		}
	}
	return out
}

// NumNodes returns the number of live nodes.
func (g *Graph[T]) NumNodes() int { return len(g.index) }

// NumInternalNodes returns the number of internal nodes.
func (g *Graph[T]) NumInternalNodes() int { return len(g.InternalNodes()) }

// NumEdges returns the number of edges.
func (g *Graph[T]) NumEdges() int { return len(g.edges) }

// Print writes a textual dump of the graph, one line per node and edge.
func (g *Graph[T]) Print(w io.Writer, prefix string) {
	internal := g.InternalNodes()
	external := g.ExternalNodes()
	fmt.Fprintf(w, "%sInternal nodes: %d\n", prefix, len(internal))
	for _, n := range internal {
		fmt.Fprintf(w, "%s\t%v\n", prefix, n)
	}
	fmt.Fprintf(w, "%sExternal nodes: %d\n", prefix, len(external))
	for _, n := range external {
		fmt.Fprintf(w, "%s\t%v\n", prefix, n)
	}
	fmt.Fprintf(w, "%sEdges: %d\n", prefix, len(g.edges))
	for _, e := range g.edges {
		fmt.Fprintf(w, "%s\t%s\n", prefix, e)
	}
}

func (g *Graph[T]) String() string {
	var sb strings.Builder
	g.Print(&sb, "")
	return sb.String()
}
