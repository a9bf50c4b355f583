// Package scc decomposes a dependence graph into strongly connected
// components and condenses them into an acyclic SCC graph (the SCCDAG).
package scc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/l3aro/go-loop-parallel/pkg/depgraph"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/pdg"
)

// SCC is the subgraph induced by one strongly connected component. Its
// internal nodes are the component; external nodes are the dependence
// neighbours outside it, kept so the component's inputs and outputs stay
// locally visible.
type SCC struct {
	*depgraph.Graph[ir.Value]

	// ID is unique within one SCCDAG and follows topological order at
	// construction time.
	ID int
}

// New builds an SCC from nodes of g. The first node becomes the entry;
// callers must not rely on which node that is.
func New(g *pdg.Graph, nodes []*pdg.Node) *SCC {
	s := &SCC{Graph: depgraph.New[ir.Value]()}
	for _, n := range nodes {
		s.AddNode(n.Value, true)
	}

	for _, n := range nodes {
		for _, e := range g.Outgoing(n) {
			s.FetchOrAddNode(e.Dst, false)
			s.CopyAddEdge(e)
		}
		for _, e := range g.Incoming(n) {
			// Edges from internal nodes were copied as outgoing edges.
			if s.IsInternal(e.Src) {
				continue
			}
			s.FetchOrAddNode(e.Src, false)
			s.CopyAddEdge(e)
		}
	}
	return s
}

// HasCycle reports whether the component's graph, external endpoints and
// copied boundary edges included, contains a directed cycle. Every weakly
// connected piece of the node set is visited.
func (s *SCC) HasCycle() bool {
	const (
		white = iota
		gray
		black
	)

	color := make(map[depgraph.NodeID]int)

	var dfs func(n *depgraph.Node[ir.Value]) bool
	dfs = func(n *depgraph.Node[ir.Value]) bool {
		color[n.ID] = gray
		for _, e := range s.Outgoing(n) {
			switch color[e.To] {
			case white:
				if dfs(s.Node(e.To)) {
					return true
				}
			case gray:
				return true
			}
		}
		color[n.ID] = black
		return false
	}

	for _, n := range s.Nodes() {
		if color[n.ID] == white && dfs(n) {
			return true
		}
	}
	return false
}

// Instructions returns the internal instructions of the component in
// function order.
func (s *SCC) Instructions() []*ir.Instruction {
	var out []*ir.Instruction
	for _, v := range s.Values() {
		if inst, ok := v.(*ir.Instruction); ok {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Contains reports whether v is one of the component's internal values.
func (s *SCC) Contains(v ir.Value) bool {
	return s.IsInternal(v)
}

// String names the component by its ID and internal values.
func (s *SCC) String() string {
	insts := s.Instructions()
	names := make([]string, 0, len(insts))
	for _, inst := range insts {
		names = append(names, ir.Label(inst))
	}
	return fmt.Sprintf("scc%d{%s}", s.ID, strings.Join(names, ","))
}
