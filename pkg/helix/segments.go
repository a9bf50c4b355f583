package helix

import (
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/loopdep"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
	"github.com/l3aro/go-loop-parallel/pkg/scc"
)

// Segments returns one sequential segment per component that carries an
// order-sensitive dependence across iterations, numbered in topological
// order of the SCCDAG.
func Segments(info *loopdep.Info) []*plan.SequentialSegment {
	var out []*plan.SequentialSegment
	for _, s := range info.DAG.TopologicalOrder() {
		if !info.AttrsOf(s).IsSequential() {
			continue
		}
		seg := &plan.SequentialSegment{ID: len(out), SCCs: []*scc.SCC{s}}
		member := func(inst *ir.Instruction) bool { return s.Contains(inst) }
		flow := newIterationFlow(info.Loop)
		seg.Entries = flow.entries(member)
		seg.Exits = flow.exits(member)
		out = append(out, seg)
	}
	return out
}

// iterationFlow is the CFG of one iteration: the loop blocks without back
// edges, in reverse postorder from the header.
type iterationFlow struct {
	loop   *ir.Loop
	blocks []*ir.Block
}

func newIterationFlow(loop *ir.Loop) *iterationFlow {
	f := &iterationFlow{loop: loop}
	seen := make(map[*ir.Block]bool)
	var post []*ir.Block
	var visit func(b *ir.Block)
	visit = func(b *ir.Block) {
		seen[b] = true
		for _, s := range f.succs(b) {
			if !seen[s] {
				visit(s)
			}
		}
		post = append(post, b)
	}
	visit(loop.Header)
	for i := len(post) - 1; i >= 0; i-- {
		f.blocks = append(f.blocks, post[i])
	}
	return f
}

func (f *iterationFlow) succs(b *ir.Block) []*ir.Block {
	var out []*ir.Block
	for _, s := range b.Succs {
		if f.loop.Contains(s) && !f.loop.IsBackEdge(b, s) {
			out = append(out, s)
		}
	}
	return out
}

func (f *iterationFlow) preds(b *ir.Block) []*ir.Block {
	var out []*ir.Block
	for _, p := range b.Preds {
		if f.loop.Contains(p) && !f.loop.IsBackEdge(p, b) {
			out = append(out, p)
		}
	}
	return out
}

// ends reports whether b closes an iteration by jumping back to the header.
func (f *iterationFlow) ends(b *ir.Block) bool {
	for _, s := range b.Succs {
		if f.loop.IsBackEdge(b, s) {
			return true
		}
	}
	return false
}

// clean computes, for every block, whether some path from the header
// reaches the end of the block without running a member instruction.
func (f *iterationFlow) clean(member func(*ir.Instruction) bool, visit func(inst *ir.Instruction, clean bool)) map[*ir.Block]bool {
	out := make(map[*ir.Block]bool)
	for _, b := range f.blocks {
		cur := b == f.loop.Header
		for _, p := range f.preds(b) {
			cur = cur || out[p]
		}
		for _, inst := range b.Instrs {
			if member(inst) {
				if visit != nil {
					visit(inst, cur)
				}
				cur = false
			}
		}
		out[b] = cur
	}
	return out
}

// entries returns the member instructions first reached on some path
// from the header.
func (f *iterationFlow) entries(member func(*ir.Instruction) bool) []*ir.Instruction {
	var out []*ir.Instruction
	f.clean(member, func(inst *ir.Instruction, clean bool) {
		if clean {
			out = append(out, inst)
		}
	})
	return out
}

// exits returns the member instructions last executed on some path that
// completes the iteration. Paths leaving the loop do not complete one.
func (f *iterationFlow) exits(member func(*ir.Instruction) bool) []*ir.Instruction {
	in := make(map[*ir.Block]bool)
	var found []*ir.Instruction
	for i := len(f.blocks) - 1; i >= 0; i-- {
		b := f.blocks[i]
		cur := f.ends(b)
		for _, s := range f.succs(b) {
			cur = cur || in[s]
		}
		for j := len(b.Instrs) - 1; j >= 0; j-- {
			inst := b.Instrs[j]
			if !member(inst) {
				continue
			}
			if cur {
				found = append(found, inst)
			}
			cur = false
		}
		in[b] = cur
	}
	// found is in reverse block order; report it in program order
	for l, r := 0, len(found)-1; l < r; l, r = l+1, r-1 {
		found[l], found[r] = found[r], found[l]
	}
	return found
}

// skippable reports whether some path from the header reaches latch
// without running a member instruction.
func (f *iterationFlow) skippable(member func(*ir.Instruction) bool, latch *ir.Block) bool {
	return f.clean(member, nil)[latch]
}
