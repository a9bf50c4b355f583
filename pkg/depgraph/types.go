// Package depgraph defines a generic directed dependence multigraph.
// Nodes wrap program entities and are tagged internal or external to the
// analyzed region; edges carry a dependence type (data, memory, control).
// Nodes and edges live in per-graph arenas and are addressed by stable
// handles, so cyclic graphs never hold owning pointers to each other.
package depgraph

import "fmt"

// NodeID is the stable handle of a node inside one graph.
type NodeID int

// DepType represents the type of dependence in an edge.
type DepType string

const (
	DepTypeData    DepType = "data"    // Def-use dependence
	DepTypeMemory  DepType = "memory"  // Dependence through memory
	DepTypeControl DepType = "control" // Control dependence
)

// Dependence is the type-erased view of an edge from any graph. Coarse
// edges (e.g. between SCCs) aggregate finer ones through this interface.
type Dependence interface {
	Kind() DepType
	Carried() bool
	String() string
}

// Node wraps one entity of type T.
type Node[T comparable] struct {
	ID       NodeID
	Value    T
	Internal bool // Inside the analyzed region

	out     []*Edge[T]
	in      []*Edge[T]
	removed bool
}

func (n *Node[T]) String() string {
	return fmt.Sprint(n.Value)
}

// Edge is a directed dependence from one node to another of the same graph.
// Src and Dst are non-owning back references to the endpoint entities.
type Edge[T comparable] struct {
	From        NodeID       // Source node handle
	To          NodeID       // Destination node handle
	Src         T            // Source entity
	Dst         T            // Destination entity
	Type        DepType      // Type of dependence
	Must        bool         // Memory only: the accesses must alias
	LoopCarried bool         // Dependence crosses loop iterations
	SubEdges    []Dependence // Finer-grained edges this edge aggregates
}

func (e *Edge[T]) Kind() DepType { return e.Type }
func (e *Edge[T]) Carried() bool { return e.LoopCarried }

// IsData reports whether e is a def-use dependence.
func (e *Edge[T]) IsData() bool { return e.Type == DepTypeData }

// IsMemory reports whether e is a memory dependence.
func (e *Edge[T]) IsMemory() bool { return e.Type == DepTypeMemory }

// IsControl reports whether e is a control dependence.
func (e *Edge[T]) IsControl() bool { return e.Type == DepTypeControl }

func (e *Edge[T]) String() string {
	s := fmt.Sprintf("%v -> %v [%s", e.Src, e.Dst, e.Type)
	if e.IsMemory() {
		if e.Must {
			s += ",must"
		} else {
			s += ",may"
		}
	}
	if e.LoopCarried {
		s += ",carried"
	}
	if len(e.SubEdges) > 0 {
		s += fmt.Sprintf(",sub=%d", len(e.SubEdges))
	}
	return s + "]"
}
