package pdg

import "github.com/l3aro/go-loop-parallel/pkg/ir"

// FunctionSubgraph restricts g to the arguments and instructions of fn.
func FunctionSubgraph(g *Graph, fn *ir.Function) *Graph {
	values := make([]ir.Value, 0, len(fn.Args))
	for _, a := range fn.Args {
		if g.IsInGraph(a) {
			values = append(values, a)
		}
	}
	for _, inst := range fn.Instructions() {
		if g.IsInGraph(inst) {
			values = append(values, inst)
		}
	}
	return g.CreateSubgraphFromValues(values, true)
}

// LoopSubgraph restricts g to the instructions of loop. Values defined
// outside the loop and used inside it, or the reverse, stay visible as
// external nodes.
func LoopSubgraph(g *Graph, loop *ir.Loop) *Graph {
	insts := loop.Instructions()
	values := make([]ir.Value, 0, len(insts))
	for _, inst := range insts {
		values = append(values, inst)
	}
	lg := g.CreateSubgraphFromValues(values, true)
	if len(insts) > 0 {
		lg.SetEntry(insts[0])
	}
	return lg
}

// SubgraphFromValues restricts g to values, keeping boundary edges.
func SubgraphFromValues(g *Graph, values []ir.Value) *Graph {
	return g.CreateSubgraphFromValues(values, true)
}
