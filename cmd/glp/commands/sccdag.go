package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-loop-parallel/pkg/loopdep"
	"github.com/l3aro/go-loop-parallel/pkg/parallel"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
	"github.com/l3aro/go-loop-parallel/pkg/render"
	"github.com/l3aro/go-loop-parallel/pkg/sccattr"
)

func newSCCDAGCmd() *cobra.Command {
	var (
		loopHeader string
		dotOutput  bool
		svgPath    string
		detailed   bool
		byStage    bool
		cfgOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "sccdag <file> [function]",
		Short: "Show the SCCDAG of a loop",
		Long: `Print the strongly connected components of a loop's dependence graph,
their attributes and the edges between them.

With --plan the components are grouped by the stages of the first technique
that parallelizes the loop. --cfg draws the control flow graph instead.

Examples:
  glp sccdag testdata/sum.yaml
  glp sccdag testdata/kernels.go chain --dot --plan
  glp sccdag testdata/kernels.go clamp --svg clamp.svg --detailed`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if cfgOutput {
				fn, loops, err := loadLoops(args[0], funcArg(args), loopHeader)
				if err != nil {
					return err
				}
				return emitDOT(cmd, render.FunctionDOT(fn, loops[0]), dotOutput, svgPath)
			}

			info, err := analyzeOne(args, loopHeader)
			if err != nil {
				return err
			}
			opts := render.Options{Detailed: detailed}
			if byStage {
				s, err := newSession(cmd)
				if err != nil {
					return err
				}
				techs, err := parallel.Techniques(s.cfg.Techniques, s.cfg.TechniqueOptions(s.logger))
				if err != nil {
					return err
				}
				var p *plan.Plan
				info, p, err = firstPlan(info, techs)
				if err != nil {
					return err
				}
				if p == nil {
					printWarning(cmd.ErrOrStderr(), "no technique parallelizes %s, drawing without stages", info.Loop.Header.Name)
				}
				opts.Plan = p
			}

			if dotOutput || svgPath != "" {
				return emitDOT(cmd, render.ToDOT(info, opts), dotOutput, svgPath)
			}

			fmt.Fprintf(out, "%s\n", styleTitle.Render(fmt.Sprintf("SCCDAG of %s/%s", info.Function.Name, info.Loop.Header.Name)))
			info.DAG.Print(out, "  ")
			fmt.Fprintln(out)
			for _, s := range info.DAG.TopologicalOrder() {
				printKeyValue(out, s.String(), strings.Join(attrTags(info.AttrsOf(s)), ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&loopHeader, "loop", "l", "", "Header block of the loop (default: first loop)")
	cmd.Flags().BoolVar(&dotOutput, "dot", false, "Output Graphviz DOT")
	cmd.Flags().StringVar(&svgPath, "svg", "", "Render to an SVG file")
	cmd.Flags().BoolVarP(&detailed, "detailed", "d", false, "List instructions and attributes in each node")
	cmd.Flags().BoolVar(&byStage, "plan", false, "Group components by the stages of the winning plan")
	cmd.Flags().BoolVar(&cfgOutput, "cfg", false, "Draw the control flow graph of the function instead")
	return cmd
}

// firstPlan applies the first technique that accepts the loop. Each
// technique analyzes the loop afresh since merging rewrites the SCCDAG; the
// returned info is the one the plan was built on.
func firstPlan(info *loopdep.Info, techs []parallel.Technique) (*loopdep.Info, *plan.Plan, error) {
	for _, tech := range techs {
		cur := loopdep.Analyze(info.Function, info.Loop, loopdep.Options{})
		if ok, _ := tech.CanApply(cur); !ok {
			continue
		}
		p, err := tech.Apply(cur)
		if err != nil {
			return nil, nil, err
		}
		return cur, p, nil
	}
	return info, nil, nil
}

func emitDOT(cmd *cobra.Command, dot string, toStdout bool, svgPath string) error {
	if svgPath != "" {
		svg, err := render.RenderSVG(cmd.Context(), dot)
		if err != nil {
			return err
		}
		if err := os.WriteFile(svgPath, svg, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", svgPath, err)
		}
		printSuccess(cmd.ErrOrStderr(), "wrote %s", svgPath)
	}
	if toStdout || svgPath == "" {
		fmt.Fprint(cmd.OutOrStdout(), dot)
	}
	return nil
}

func attrTags(a *sccattr.Attrs) []string {
	var tags []string
	if a.IsSequential() {
		tags = append(tags, "sequential")
	}
	if a.HasIV {
		tags = append(tags, "induction")
	}
	if a.IsReducible {
		tags = append(tags, "reducible")
	}
	if a.IsClonable {
		tags = append(tags, "clonable")
	}
	if a.LoopCarried {
		tags = append(tags, "loop-carried")
	}
	if a.HasMemory {
		tags = append(tags, "memory")
	}
	if len(tags) == 0 {
		tags = append(tags, "independent")
	}
	return tags
}
