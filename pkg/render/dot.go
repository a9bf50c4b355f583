// Package render draws SCCDAGs as Graphviz diagrams.
package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/l3aro/go-loop-parallel/pkg/depgraph"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/loopdep"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
	"github.com/l3aro/go-loop-parallel/pkg/scc"
)

// Options configures SCCDAG rendering.
type Options struct {
	// Detailed lists the internal instructions and attributes of each
	// component. When false, only the component ID is shown.
	Detailed bool

	// Plan, when set, groups components into one cluster per stage.
	Plan *plan.Plan
}

// ToDOT converts the SCCDAG of info to Graphviz DOT.
//
// Sequential components are filled red, reducible ones blue and clonable
// ones grey with a dashed outline. Memory edges are dashed, control edges
// dotted and loop-carried edges drawn in red.
func ToDOT(info *loopdep.Info, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph SCCDAG {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"monospace\", fontsize=12];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	order := info.DAG.TopologicalOrder()
	placed := make(map[*scc.SCC]bool)
	if opts.Plan != nil {
		for _, st := range opts.Plan.Stages {
			fmt.Fprintf(&buf, "  subgraph cluster_stage%d {\n", st.Order)
			fmt.Fprintf(&buf, "    label=%q;\n", fmt.Sprintf("%s stage %d", opts.Plan.Technique, st.Order))
			buf.WriteString("    style=\"rounded,dashed\";\n")
			for _, s := range order {
				if st.HasSCC(s) && !placed[s] {
					placed[s] = true
					writeNode(&buf, "    ", s, info, opts.Detailed)
				}
			}
			buf.WriteString("  }\n")
		}
	}
	for _, s := range order {
		if !placed[s] {
			writeNode(&buf, "  ", s, info, opts.Detailed)
		}
	}

	buf.WriteString("\n")
	for _, s := range order {
		for _, e := range info.DAG.OutgoingEdges(s) {
			fmt.Fprintf(&buf, "  %q -> %q [%s];\n", nodeID(e.Src), nodeID(e.Dst), strings.Join(edgeAttrs(e), ", "))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeID(s *scc.SCC) string { return fmt.Sprintf("scc%d", s.ID) }

func writeNode(buf *bytes.Buffer, indent string, s *scc.SCC, info *loopdep.Info, detailed bool) {
	a := info.AttrsOf(s)
	attrs := []string{fmt.Sprintf("label=%q", nodeLabel(s, a.IsSequential(), a.IsReducible, a.IsClonable, detailed))}
	switch {
	case a.IsSequential():
		attrs = append(attrs, "fillcolor=lightcoral")
	case a.IsReducible:
		attrs = append(attrs, "fillcolor=lightblue")
	case a.IsClonable:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	fmt.Fprintf(buf, "%s%q [%s];\n", indent, nodeID(s), strings.Join(attrs, ", "))
}

func nodeLabel(s *scc.SCC, sequential, reducible, clonable, detailed bool) string {
	if !detailed {
		return nodeID(s)
	}
	lines := []string{nodeID(s)}
	for _, inst := range s.Instructions() {
		lines = append(lines, strings.TrimSpace(inst.String()))
	}
	var tags []string
	if sequential {
		tags = append(tags, "sequential")
	}
	if reducible {
		tags = append(tags, "reducible")
	}
	if clonable {
		tags = append(tags, "clonable")
	}
	if len(tags) > 0 {
		lines = append(lines, "["+strings.Join(tags, ", ")+"]")
	}
	return strings.Join(lines, "\n")
}

func edgeAttrs(e *depgraph.Edge[*scc.SCC]) []string {
	var attrs []string
	switch e.Type {
	case depgraph.DepTypeMemory:
		attrs = append(attrs, "style=dashed")
	case depgraph.DepTypeControl:
		attrs = append(attrs, "style=dotted")
	}
	if e.LoopCarried {
		attrs = append(attrs, "color=red")
	}
	if n := len(e.SubEdges); n > 1 {
		attrs = append(attrs, fmt.Sprintf("label=%q", strconv.Itoa(n)))
	}
	if len(attrs) == 0 {
		attrs = append(attrs, "style=solid")
	}
	return attrs
}

// FunctionDOT converts the control flow graph of fn to DOT, highlighting
// the blocks of loop.
func FunctionDOT(fn *ir.Function, loop *ir.Loop) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", fn.Name)
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"monospace\"];\n")
	for _, b := range fn.Blocks {
		attrs := []string{fmt.Sprintf("label=%q", b.Name)}
		if loop != nil && loop.Contains(b) {
			attrs = append(attrs, "fillcolor=lightyellow")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", b.Name, strings.Join(attrs, ", "))
	}
	for _, b := range fn.Blocks {
		for _, s := range b.Succs {
			if loop != nil && loop.IsBackEdge(b, s) {
				fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", b.Name, s.Name)
				continue
			}
			fmt.Fprintf(&buf, "  %q -> %q;\n", b.Name, s.Name)
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one
// that scales.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
