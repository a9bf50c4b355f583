package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-loop-parallel/internal/log"
	"github.com/l3aro/go-loop-parallel/internal/scanner"
	"github.com/l3aro/go-loop-parallel/pkg/frontend"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/parallel"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

func newPlanCmd() *cobra.Command {
	var (
		loopHeader string
		techniques []string
		jsonOutput bool
		yamlOutput bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "plan <file|dir> [function]",
		Short: "Plan the parallelization of the loops of a function",
		Long: `Analyze every loop of a function and report the plan of the first
technique that applies to it, or the reason each technique declined.

The input is a YAML IR file or a Go source file. Without a function name the
first function (YAML) or the first function containing a for loop (Go) is used.
Given a directory, every function with a loop in every .go, .yaml and .yml
file below it is planned; .glpignore files exclude paths.

Examples:
  glp plan testdata/sum.yaml
  glp plan testdata/kernels.go chain --technique helix
  glp plan testdata/kernels.go clamp --json
  glp plan ./kernels --technique dswp`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput && yamlOutput {
				return fmt.Errorf("--json and --yaml are mutually exclusive")
			}
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("force") {
				s.cfg.ForceParallelization = force
			}
			if len(techniques) > 0 {
				s.cfg.Techniques = techniques
			}

			techs, err := parallel.Techniques(s.cfg.Techniques, s.cfg.TechniqueOptions(s.logger))
			if err != nil {
				return err
			}
			targets, err := planTargets(args[0], funcArg(args), loopHeader)
			if err != nil {
				return err
			}
			plans, err := s.openCache(cmd)
			if err != nil {
				return err
			}

			progress := log.NewProgress(s.logger)
			p := parallel.New(parallel.Options{
				Techniques:  techs,
				Cache:       plans,
				Fingerprint: s.cfg.Fingerprint(),
				Logger:      s.logger,
			})
			var results []*parallel.Result
			for _, tg := range targets {
				rs, err := p.ParallelizeAll(cmd.Context(), tg.fn, tg.loops)
				if err != nil {
					return err
				}
				results = append(results, rs...)
			}
			if plans != nil {
				if err := plans.Flush(); err != nil {
					s.logger.Warn("failed to persist plan cache", "error", err)
				}
			}
			progress.Done("planned loops", "functions", len(targets), "loops", len(results))

			reports := make([]*plan.Report, len(results))
			for i, r := range results {
				reports[i] = r.Report
			}
			out := cmd.OutOrStdout()
			switch {
			case jsonOutput:
				return writeJSON(out, reports)
			case yamlOutput:
				return writeYAML(out, reports)
			}
			for i, r := range results {
				if i > 0 {
					fmt.Fprintln(out)
				}
				printReport(out, r.Report, r.Cached)
				for _, name := range s.cfg.Techniques {
					if reason, ok := r.Declined[name]; ok && r.Parallelized() {
						printDetail(out, "%s declined: %s", name, reason)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&loopHeader, "loop", "l", "", "Only plan the loop with this header block")
	cmd.Flags().StringSliceVarP(&techniques, "technique", "t", nil, "Techniques to try, in order (overrides config)")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().BoolVar(&yamlOutput, "yaml", false, "Output as YAML")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Parallelize with DSWP even when the pipeline looks unprofitable")
	return cmd
}

// target is one function and the loops of it to plan.
type target struct {
	fn    *ir.Function
	loops []*ir.Loop
}

// planTargets resolves the command input. A file yields one function; a
// directory yields every function with a loop, skipping those without
// the requested header.
func planTargets(path, funcName, header string) ([]target, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		fn, loops, err := loadLoops(path, funcName, header)
		if err != nil {
			return nil, err
		}
		return []target{{fn: fn, loops: loops}}, nil
	}
	if funcName != "" {
		return nil, fmt.Errorf("a function name cannot be combined with directory %s", path)
	}

	files, err := scanner.Scan(path)
	if err != nil {
		return nil, err
	}
	var targets []target
	for _, f := range files {
		names, err := frontend.Functions(f.FullPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		for _, name := range names {
			fn, err := frontend.Load(f.FullPath, name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Path, err)
			}
			var loops []*ir.Loop
			for _, l := range ir.FindLoops(fn) {
				if header == "" || l.Header.Name == header {
					loops = append(loops, l)
				}
			}
			if len(loops) > 0 {
				targets = append(targets, target{fn: fn, loops: loops})
			}
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no loops found under %s", path)
	}
	return targets, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return enc.Close()
}
