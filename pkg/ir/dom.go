package ir

// DomTree is a dominator or post-dominator tree over the blocks of one
// function. For post-dominators the root is a virtual exit joining every
// block without successors; IDom returns nil for blocks whose immediate
// post-dominator is that virtual exit.
type DomTree struct {
	idom map[*Block]*Block
	// reach records blocks that are reachable from the root; unreachable
	// blocks dominate nothing and are dominated by nothing.
	reach map[*Block]bool
	root  *Block
}

// Dominators computes the dominator tree of fn.
func Dominators(fn *Function) *DomTree {
	blocks := fn.Blocks
	n := len(blocks)
	if n == 0 {
		return &DomTree{idom: map[*Block]*Block{}, reach: map[*Block]bool{}}
	}
	index := blockIndex(blocks)
	succs := func(v int) []int { return indicesOf(blocks[v].Succs, index) }
	preds := func(v int) []int { return indicesOf(blocks[v].Preds, index) }

	idom := computeIDoms(n, 0, succs, preds)
	return newDomTree(blocks, idom, blocks[0], -1)
}

// PostDominators computes the post-dominator tree of fn.
func PostDominators(fn *Function) *DomTree {
	blocks := fn.Blocks
	n := len(blocks)
	if n == 0 {
		return &DomTree{idom: map[*Block]*Block{}, reach: map[*Block]bool{}}
	}
	index := blockIndex(blocks)
	exit := n

	// Reverse the CFG and hang every exiting block off the virtual exit.
	var exits []int
	for i, b := range blocks {
		if len(b.Succs) == 0 {
			exits = append(exits, i)
		}
	}
	succs := func(v int) []int {
		if v == exit {
			return exits
		}
		return indicesOf(blocks[v].Preds, index)
	}
	preds := func(v int) []int {
		if v == exit {
			return nil
		}
		out := indicesOf(blocks[v].Succs, index)
		if len(blocks[v].Succs) == 0 {
			out = append(out, exit)
		}
		return out
	}

	idom := computeIDoms(n+1, exit, succs, preds)
	return newDomTree(blocks, idom, nil, exit)
}

func newDomTree(blocks []*Block, idom []int, root *Block, virtual int) *DomTree {
	t := &DomTree{
		idom:  make(map[*Block]*Block, len(blocks)),
		reach: make(map[*Block]bool, len(blocks)),
		root:  root,
	}
	for i, b := range blocks {
		if idom[i] < 0 {
			continue
		}
		t.reach[b] = true
		if idom[i] == i || idom[i] == virtual {
			continue
		}
		t.idom[b] = blocks[idom[i]]
	}
	return t
}

// IDom returns the immediate (post-)dominator of b, or nil at the root.
func (t *DomTree) IDom(b *Block) *Block {
	return t.idom[b]
}

// Dominates reports whether a (post-)dominates b. Every block dominates itself.
func (t *DomTree) Dominates(a, b *Block) bool {
	if !t.reach[a] || !t.reach[b] {
		return false
	}
	for cur := b; cur != nil; cur = t.idom[cur] {
		if cur == a {
			return true
		}
	}
	return false
}

// computeIDoms implements the Cooper-Harvey-Kennedy iterative algorithm over
// an integer-indexed graph. Unreachable nodes get -1.
func computeIDoms(n, root int, succs, preds func(int) []int) []int {
	rpo := reversePostorder(n, root, succs)
	rpoNum := make([]int, n)
	for i := range rpoNum {
		rpoNum[i] = -1
	}
	for i, v := range rpo {
		rpoNum[v] = i
	}

	idom := make([]int, n)
	for i := range idom {
		idom[i] = -1
	}
	idom[root] = root

	intersect := func(a, b int) int {
		for a != b {
			for rpoNum[a] > rpoNum[b] {
				a = idom[a]
			}
			for rpoNum[b] > rpoNum[a] {
				b = idom[b]
			}
		}
		return a
	}

	for changed := true; changed; {
		changed = false
		for _, v := range rpo[1:] {
			newIdom := -1
			for _, p := range preds(v) {
				if rpoNum[p] < 0 || idom[p] < 0 {
					continue
				}
				if newIdom < 0 {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom)
				}
			}
			if newIdom >= 0 && idom[v] != newIdom {
				idom[v] = newIdom
				changed = true
			}
		}
	}
	return idom
}

func reversePostorder(n, root int, succs func(int) []int) []int {
	visited := make([]bool, n)
	post := make([]int, 0, n)

	type frame struct {
		node int
		next int
	}
	stack := []frame{{node: root}}
	visited[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := succs(top.node)
		if top.next < len(children) {
			child := children[top.next]
			top.next++
			if !visited[child] {
				visited[child] = true
				stack = append(stack, frame{node: child})
			}
			continue
		}
		post = append(post, top.node)
		stack = stack[:len(stack)-1]
	}

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

func blockIndex(blocks []*Block) map[*Block]int {
	index := make(map[*Block]int, len(blocks))
	for i, b := range blocks {
		index[b] = i
	}
	return index
}

func indicesOf(blocks []*Block, index map[*Block]int) []int {
	out := make([]int, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, index[b])
	}
	return out
}
