package depgraph

import (
	"container/list"
	"slices"
)

// CreateSubgraphFromValues builds a new graph whose internal nodes are
// exactly values. Edges among them are copied. When linkToExternal is set,
// edges crossing the boundary are copied too and their outside endpoint
// becomes an external node. Repeated values are taken once. The receiver
// is never modified.
//
// Every value must have a node in g.
func (g *Graph[T]) CreateSubgraphFromValues(values []T, linkToExternal bool) *Graph[T] {
	sub := New[T]()
	for _, v := range values {
		g.MustFetchNode(v)
		sub.AddNode(v, true)
	}

	seen := make(map[T]bool, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		n := g.MustFetchNode(v)
		for _, e := range n.out {
			if !sub.IsInGraph(e.Dst) && !linkToExternal {
				continue
			}
			sub.CopyAddEdge(e)
		}
		for _, e := range n.in {
			// Edges from selected values were copied as outgoing edges.
			if sub.IsInternal(e.Src) {
				continue
			}
			if !linkToExternal {
				continue
			}
			sub.CopyAddEdge(e)
		}
	}
	return sub
}

// ForwardSlice returns every entity reachable from start along outgoing
// edges, start included, in breadth-first order. When types is non-empty
// only edges of those types are followed.
func (g *Graph[T]) ForwardSlice(start T, types ...DepType) []T {
	return g.slice(start, types, func(n *Node[T]) []*Edge[T] { return n.out }, func(e *Edge[T]) NodeID { return e.To })
}

// BackwardSlice returns every entity that reaches start along incoming
// edges, start included, in breadth-first order. When types is non-empty
// only edges of those types are followed.
func (g *Graph[T]) BackwardSlice(start T, types ...DepType) []T {
	return g.slice(start, types, func(n *Node[T]) []*Edge[T] { return n.in }, func(e *Edge[T]) NodeID { return e.From })
}

func (g *Graph[T]) slice(start T, types []DepType, edges func(*Node[T]) []*Edge[T], next func(*Edge[T]) NodeID) []T {
	first, ok := g.FetchNode(start)
	if !ok {
		return nil
	}

	// BFS with visited set to avoid infinite loops
	visited := map[NodeID]bool{first.ID: true}
	queue := list.New()
	queue.PushBack(first)

	var result []T
	for queue.Len() > 0 {
		n := queue.Remove(queue.Front()).(*Node[T])
		result = append(result, n.Value)
		for _, e := range edges(n) {
			if len(types) > 0 && !slices.Contains(types, e.Type) {
				continue
			}
			id := next(e)
			if visited[id] {
				continue
			}
			visited[id] = true
			queue.PushBack(g.nodes[id])
		}
	}
	return result
}
