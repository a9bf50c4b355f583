package scc

import (
	"sort"

	"golang.org/x/tools/container/intsets"

	"github.com/l3aro/go-loop-parallel/pkg/pdg"
)

// Components returns the maximal strongly connected components of the
// internal nodes of g, following only edges between internal nodes. The
// result is in topological order of the condensation (sources first) and
// each component lists its nodes in handle order.
func Components(g *pdg.Graph) [][]*pdg.Node {
	nodes := g.InternalNodes()

	var (
		index   = make(map[*pdg.Node]int, len(nodes))
		lowlink = make(map[*pdg.Node]int, len(nodes))
		stack   []*pdg.Node
		onStack intsets.Sparse
		next    int
		comps   [][]*pdg.Node
	)

	var visit func(n *pdg.Node)
	visit = func(n *pdg.Node) {
		index[n] = next
		lowlink[n] = next
		next++
		stack = append(stack, n)
		onStack.Insert(int(n.ID))

		for _, e := range g.Outgoing(n) {
			w := g.Node(e.To)
			if !w.Internal {
				continue
			}
			if _, seen := index[w]; !seen {
				visit(w)
				lowlink[n] = min(lowlink[n], lowlink[w])
			} else if onStack.Has(int(w.ID)) {
				lowlink[n] = min(lowlink[n], index[w])
			}
		}

		if lowlink[n] != index[n] {
			return
		}
		var comp []*pdg.Node
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack.Remove(int(w.ID))
			comp = append(comp, w)
			if w == n {
				break
			}
		}
		sort.Slice(comp, func(i, j int) bool { return comp[i].ID < comp[j].ID })
		comps = append(comps, comp)
	}

	for _, n := range nodes {
		if _, seen := index[n]; !seen {
			visit(n)
		}
	}

	// Tarjan emits components in reverse topological order.
	for i, j := 0, len(comps)-1; i < j; i, j = i+1, j-1 {
		comps[i], comps[j] = comps[j], comps[i]
	}
	return comps
}
