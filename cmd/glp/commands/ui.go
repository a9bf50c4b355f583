package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

var (
	colorCyan   = lipgloss.Color("36")  // Teal - headings
	colorGreen  = lipgloss.Color("35")  // Green - parallelized
	colorYellow = lipgloss.Color("220") // Amber - declined
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleCached      = lipgloss.NewStyle().Foreground(colorGreen)
)

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+styleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

func printDetail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, "  "+styleDim.Render(fmt.Sprintf(format, args...)))
}

func printKeyValue(w io.Writer, key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(14)
	fmt.Fprintln(w, keyStyle.Render(key)+" "+styleValue.Render(value))
}

// printReport writes a human-readable report of one loop.
func printReport(w io.Writer, r *plan.Report, cached bool) {
	title := styleTitle.Render(fmt.Sprintf("%s/%s", r.Function, r.Loop))
	if cached {
		title += " " + styleCached.Render("cached")
	}
	fmt.Fprintln(w, title)
	if !r.Parallelizable {
		printWarning(w, "not parallelized: %s", r.Reason)
		return
	}
	printSuccess(w, "parallelized with %s", r.Technique)

	for _, st := range r.Stages {
		printInfo(w, "stage %d: %s", st.Order, strings.Join(st.SCCs, " "))
		printDetail(w, "blocks %s", strings.Join(st.Blocks, ", "))
		if len(st.Clones) > 0 {
			printDetail(w, "clones %s", strings.Join(st.Clones, " "))
		}
		for _, op := range st.Entry {
			printDetail(w, "entry %s", op)
		}
		for _, op := range st.Iteration {
			printDetail(w, "iteration %s", op)
		}
		for _, op := range st.Exit {
			printDetail(w, "exit %s", op)
		}
	}
	for _, q := range r.Queues {
		printInfo(w, "queue %d (%s, %s): %s %s %s  stage %d %s %d",
			q.Index, q.Kind, q.Type, q.Producer, iconArrow, strings.Join(q.Consumers, ", "),
			q.FromStage, iconArrow, q.ToStage)
	}
	for _, s := range r.Env {
		line := fmt.Sprintf("env %d %s %s %s", s.Index, s.Direction, s.Type, s.Value)
		if s.Reducible {
			line += fmt.Sprintf(" (reduce %s, identity %s)", s.ReductionOp, s.Identity)
		}
		printInfo(w, "%s", line)
	}
	for _, seg := range r.Segments {
		printInfo(w, "segment %d: %s", seg.ID, strings.Join(seg.SCCs, " "))
		printDetail(w, "entries %s", strings.Join(seg.Entries, ", "))
		printDetail(w, "exits %s", strings.Join(seg.Exits, ", "))
	}
	if r.Sync != nil && len(r.Segments) > 0 {
		printInfo(w, "sync array %d bytes, stride %d", r.Sync.ArrayBytes, r.Sync.Stride)
		for _, wt := range r.Sync.Waits {
			printDetail(w, "wait %s", wt)
		}
		for _, sg := range r.Sync.Signals {
			printDetail(w, "signal %s", sg)
		}
		for _, end := range r.Sync.IterationEnd {
			printDetail(w, "iteration end %s", end)
		}
	}
}
