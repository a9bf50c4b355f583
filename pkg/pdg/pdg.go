package pdg

import (
	"github.com/l3aro/go-loop-parallel/pkg/depgraph"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
)

// PDGBuilder builds a Program Dependence Graph for one function.
type PDGBuilder struct {
	fn    *ir.Function
	alias ir.AliasOracle

	dom  *ir.DomTree
	pdom *ir.DomTree
}

// NewPDGBuilder creates a new PDGBuilder for fn.
func NewPDGBuilder(fn *ir.Function, opts Options) *PDGBuilder {
	alias := opts.Alias
	if alias == nil {
		alias = ir.BaseAlias{}
	}
	return &PDGBuilder{fn: fn, alias: alias}
}

// Build constructs the complete PDG of the function. Every instruction and
// every argument becomes an internal node.
func (b *PDGBuilder) Build() *Graph {
	g := depgraph.New[ir.Value]()
	if b.fn == nil {
		return g
	}
	b.dom = ir.Dominators(b.fn)
	b.pdom = ir.PostDominators(b.fn)

	// Step 1: Create nodes for arguments and instructions
	for _, a := range b.fn.Args {
		g.AddNode(a, true)
	}
	for _, inst := range b.fn.Instructions() {
		g.AddNode(inst, true)
	}

	// Step 2: Add data edges from def-use chains
	b.addDataEdges(g)

	// Step 3: Add memory edges between accesses that may alias
	b.addMemoryEdges(g)

	// Step 4: Add control edges from post-dominance
	b.addControlEdges(g)

	return g
}

// Build is a shorthand for NewPDGBuilder(fn, opts).Build().
func Build(fn *ir.Function, opts Options) *Graph {
	return NewPDGBuilder(fn, opts).Build()
}

// addDataEdges adds one def -> use edge per (definition, user) pair. A PHI
// operand flowing in from a block the PHI's block dominates arrives over a
// back edge and is marked loop-carried.
func (b *PDGBuilder) addDataEdges(g *Graph) {
	for _, inst := range b.fn.Instructions() {
		seen := make(map[ir.Value]bool)
		for idx, op := range inst.Operands {
			// Constants never become nodes
			if _, ok := op.(*ir.Constant); ok || op == nil {
				continue
			}
			if !g.IsInGraph(op) || seen[op] {
				continue
			}
			seen[op] = true

			e := g.AddEdge(op, inst, depgraph.DepTypeData)
			if inst.IsPHI() && idx < len(inst.Incoming) {
				e.LoopCarried = b.dom.Dominates(inst.Block(), inst.Incoming[idx])
			}
		}
	}
}

// addMemoryEdges relates every pair of memory accesses the alias oracle
// cannot separate, provided at least one of them writes. Both directions
// are added since either access may run first across iterations; the
// backward one is loop-carried. Writes also depend on themselves.
func (b *PDGBuilder) addMemoryEdges(g *Graph) {
	var accesses []*ir.Instruction
	for _, inst := range b.fn.Instructions() {
		if inst.AccessesMemory() {
			accesses = append(accesses, inst)
		}
	}

	for i, first := range accesses {
		if first.MayWriteMemory() {
			e := g.AddEdge(first, first, depgraph.DepTypeMemory)
			e.Must = b.alias.Alias(first, first) == ir.MustAlias
			e.LoopCarried = true
		}
		for _, second := range accesses[i+1:] {
			if !first.MayWriteMemory() && !second.MayWriteMemory() {
				continue
			}
			res := b.alias.Alias(first, second)
			if res == ir.NoAlias {
				continue
			}
			fwd := g.AddEdge(first, second, depgraph.DepTypeMemory)
			fwd.Must = res == ir.MustAlias
			bwd := g.AddEdge(second, first, depgraph.DepTypeMemory)
			bwd.Must = res == ir.MustAlias
			bwd.LoopCarried = true
		}
	}
}

// addControlEdges applies the Ferrante-Ottenstein-Warren construction: for
// each CFG edge A -> B where B does not post-dominate A, every block on the
// post-dominator tree path from B up to (excluding) ipdom(A) is control
// dependent on A's terminator. Dependences on a block that dominates A
// reach the next iteration and are loop-carried.
func (b *PDGBuilder) addControlEdges(g *Graph) {
	for _, block := range b.fn.Blocks {
		term := block.Terminator()
		if term == nil || len(block.Succs) < 2 {
			continue
		}
		stop := b.pdom.IDom(block)
		seen := make(map[*ir.Instruction]bool)

		for _, succ := range block.Succs {
			if b.pdom.Dominates(succ, block) {
				continue
			}
			for runner := succ; runner != nil && runner != stop; runner = b.pdom.IDom(runner) {
				carried := b.dom.Dominates(runner, block)
				for _, inst := range runner.Instrs {
					if seen[inst] {
						continue
					}
					seen[inst] = true
					e := g.AddEdge(term, inst, depgraph.DepTypeControl)
					e.LoopCarried = carried
				}
			}
		}
	}
}
