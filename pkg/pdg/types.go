// Package pdg defines the Program Dependence Graph over the IR and the
// builders that derive it from a function: data edges from def-use chains,
// memory edges from alias queries, control edges from post-dominance.
package pdg

import (
	"github.com/l3aro/go-loop-parallel/pkg/depgraph"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
)

// Graph is a dependence graph whose nodes are IR values.
type Graph = depgraph.Graph[ir.Value]

// Edge is a dependence between two IR values.
type Edge = depgraph.Edge[ir.Value]

// Node is a PDG node wrapping one IR value.
type Node = depgraph.Node[ir.Value]

// Options configures PDG construction.
type Options struct {
	Alias ir.AliasOracle // Memory disambiguation; nil means ir.BaseAlias
}

// DependencyInfo contains the dependencies of one value, split by
// direction and dependence type.
type DependencyInfo struct {
	ControlIn  []*Edge // Control dependences into the value
	ControlOut []*Edge // Control dependences from the value
	DataIn     []*Edge // Def-use edges into the value
	DataOut    []*Edge // Def-use edges from the value
	MemoryIn   []*Edge // Memory dependences into the value
	MemoryOut  []*Edge // Memory dependences from the value
}
