package pdg

import (
	"sort"

	"github.com/l3aro/go-loop-parallel/pkg/depgraph"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
)

// BackwardSlice returns the instructions and arguments that may affect v,
// ordered by position in the function (arguments first). When types is
// non-empty only those dependence types are followed.
func BackwardSlice(g *Graph, v ir.Value, types ...depgraph.DepType) []ir.Value {
	if g == nil {
		return nil
	}
	return sortValues(g.BackwardSlice(v, types...))
}

// ForwardSlice returns the instructions that v may affect, ordered by
// position in the function.
func ForwardSlice(g *Graph, v ir.Value, types ...depgraph.DepType) []ir.Value {
	if g == nil {
		return nil
	}
	return sortValues(g.ForwardSlice(v, types...))
}

// GetDependencies returns all dependencies of v, split into incoming and
// outgoing edges per dependence type.
func GetDependencies(g *Graph, v ir.Value) DependencyInfo {
	if g == nil {
		return DependencyInfo{}
	}
	n, ok := g.FetchNode(v)
	if !ok {
		return DependencyInfo{}
	}

	var info DependencyInfo
	for _, e := range g.Incoming(n) {
		switch e.Type {
		case depgraph.DepTypeControl:
			info.ControlIn = append(info.ControlIn, e)
		case depgraph.DepTypeData:
			info.DataIn = append(info.DataIn, e)
		case depgraph.DepTypeMemory:
			info.MemoryIn = append(info.MemoryIn, e)
		}
	}
	for _, e := range g.Outgoing(n) {
		switch e.Type {
		case depgraph.DepTypeControl:
			info.ControlOut = append(info.ControlOut, e)
		case depgraph.DepTypeData:
			info.DataOut = append(info.DataOut, e)
		case depgraph.DepTypeMemory:
			info.MemoryOut = append(info.MemoryOut, e)
		}
	}
	return info
}

// sortValues orders arguments before instructions, instructions by ID.
func sortValues(values []ir.Value) []ir.Value {
	sort.SliceStable(values, func(i, j int) bool {
		return valueRank(values[i]) < valueRank(values[j])
	})
	return values
}

func valueRank(v ir.Value) int {
	if inst, ok := v.(*ir.Instruction); ok {
		return inst.ID
	}
	return -1
}
