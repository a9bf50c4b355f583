package ir

import "sort"

// Loop is a natural loop: a header plus every block that can reach a latch
// without passing through the header.
type Loop struct {
	Header   *Block
	Blocks   []*Block // Member blocks in function order; the header is first
	SubLoops []*Loop
	Parent   *Loop

	members map[*Block]bool
}

// NewLoop creates a loop from its header and member blocks.
func NewLoop(header *Block, blocks ...*Block) *Loop {
	l := &Loop{Header: header, members: map[*Block]bool{header: true}}
	for _, b := range blocks {
		l.members[b] = true
	}
	l.Blocks = l.orderedMembers()
	return l
}

func (l *Loop) orderedMembers() []*Block {
	fn := l.Header.Function()
	out := []*Block{l.Header}
	for _, b := range fn.Blocks {
		if b != l.Header && l.members[b] {
			out = append(out, b)
		}
	}
	return out
}

// Function returns the function that contains the loop.
func (l *Loop) Function() *Function { return l.Header.Function() }

// Contains reports whether b belongs to the loop.
func (l *Loop) Contains(b *Block) bool { return l.members[b] }

// ContainsInstruction reports whether i belongs to a block of the loop.
func (l *Loop) ContainsInstruction(i *Instruction) bool {
	return i != nil && l.members[i.Block()]
}

// ContainsValue reports whether v is an instruction inside the loop.
func (l *Loop) ContainsValue(v Value) bool {
	inst, ok := v.(*Instruction)
	return ok && l.ContainsInstruction(inst)
}

// Instructions returns the loop's instructions in block order.
func (l *Loop) Instructions() []*Instruction {
	var out []*Instruction
	for _, b := range l.Blocks {
		out = append(out, b.Instrs...)
	}
	return out
}

// Latches returns the in-loop predecessors of the header.
func (l *Loop) Latches() []*Block {
	var out []*Block
	for _, p := range l.Header.Preds {
		if l.members[p] {
			out = append(out, p)
		}
	}
	return out
}

// Preheader returns the unique out-of-loop predecessor of the header, or nil.
func (l *Loop) Preheader() *Block {
	var pre *Block
	for _, p := range l.Header.Preds {
		if l.members[p] {
			continue
		}
		if pre != nil {
			return nil
		}
		pre = p
	}
	return pre
}

// ExitBlocks returns the out-of-loop successors of loop blocks, without
// duplicates, in discovery order.
func (l *Loop) ExitBlocks() []*Block {
	seen := make(map[*Block]bool)
	var out []*Block
	for _, b := range l.Blocks {
		for _, s := range b.Succs {
			if l.members[s] || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// IsBackEdge reports whether from -> to is a latch-to-header edge of l.
func (l *Loop) IsBackEdge(from, to *Block) bool {
	return to == l.Header && l.members[from]
}

// Depth returns 1 for an outermost loop.
func (l *Loop) Depth() int {
	d := 1
	for p := l.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// FindLoops returns the outermost natural loops of fn, with nested loops
// attached as sub-loops. Back edges sharing a header form one loop.
func FindLoops(fn *Function) []*Loop {
	dom := Dominators(fn)

	bodies := make(map[*Block]map[*Block]bool)
	var headers []*Block
	for _, b := range fn.Blocks {
		for _, s := range b.Succs {
			if !dom.Dominates(s, b) {
				continue
			}
			body, ok := bodies[s]
			if !ok {
				body = map[*Block]bool{s: true}
				bodies[s] = body
				headers = append(headers, s)
			}
			collectLoopBody(body, b)
		}
	}

	loops := make([]*Loop, 0, len(headers))
	for _, h := range headers {
		l := &Loop{Header: h, members: bodies[h]}
		l.Blocks = l.orderedMembers()
		loops = append(loops, l)
	}

	// Smallest enclosing loop becomes the parent.
	sort.SliceStable(loops, func(i, j int) bool {
		return len(loops[i].members) < len(loops[j].members)
	})
	for i, inner := range loops {
		for _, outer := range loops[i+1:] {
			if outer.members[inner.Header] {
				inner.Parent = outer
				outer.SubLoops = append(outer.SubLoops, inner)
				break
			}
		}
	}

	order := blockIndex(fn.Blocks)
	var top []*Loop
	for _, l := range loops {
		sortLoops(l.SubLoops, order)
		if l.Parent == nil {
			top = append(top, l)
		}
	}
	sortLoops(top, order)
	return top
}

func collectLoopBody(body map[*Block]bool, latch *Block) {
	stack := []*Block{latch}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if body[b] {
			continue
		}
		body[b] = true
		stack = append(stack, b.Preds...)
	}
}

func sortLoops(loops []*Loop, order map[*Block]int) {
	sort.Slice(loops, func(i, j int) bool {
		return order[loops[i].Header] < order[loops[j].Header]
	})
}
