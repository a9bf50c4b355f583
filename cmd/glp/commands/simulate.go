package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-loop-parallel/pkg/helix"
)

// simulation is the machine-readable result of `glp simulate`.
type simulation struct {
	Function   string        `json:"function" yaml:"function"`
	Loop       string        `json:"loop" yaml:"loop"`
	Segments   int           `json:"segments" yaml:"segments"`
	Threads    int           `json:"threads" yaml:"threads"`
	Iterations int           `json:"iterations" yaml:"iterations"`
	Verified   bool          `json:"verified" yaml:"verified"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Events     []helix.Event `json:"events,omitempty" yaml:"events,omitempty"`
}

func newSimulateCmd() *cobra.Command {
	var (
		loopHeader string
		threads    int
		iterations int
		jsonOutput bool
		showEvents bool
	)

	cmd := &cobra.Command{
		Use:   "simulate <file> [function]",
		Short: "Simulate the HELIX synchronization of a loop",
		Long: `Plan a loop with HELIX and run its sequential segments on goroutines
standing in for cores, then check that every segment executed in iteration
order. Each iteration walks the loop body, alternating branch arms across
iterations, and performs the waits, signals and latch passes it reaches.

Examples:
  glp simulate testdata/sum.yaml
  glp simulate testdata/kernels.go sum --threads 8 --iterations 64 --events`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threads") {
				threads = s.cfg.HelixThreads
			}
			if !cmd.Flags().Changed("iterations") {
				iterations = s.cfg.SimulateIterations
			}
			if threads < 1 || iterations < 1 {
				return fmt.Errorf("threads and iterations must be positive")
			}

			info, err := analyzeOne(args, loopHeader)
			if err != nil {
				return err
			}
			opts := s.cfg.TechniqueOptions(s.logger).HELIX
			opts.Threads = threads
			tech := helix.New(opts)
			if ok, reason := tech.CanApply(info); !ok {
				return fmt.Errorf("HELIX declined %s: %s", info.Loop.Header.Name, reason)
			}
			p, err := tech.Apply(info)
			if err != nil {
				return err
			}

			sim := &helix.Simulator{
				Sync:       p.Sync,
				Threads:    threads,
				Iterations: iterations,
				Path:       helix.PlanPath(info.Loop, p.Sync),
				Logger:     s.logger,
			}
			events, err := sim.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			res := simulation{
				Function:   p.Function,
				Loop:       p.Loop,
				Segments:   p.Sync.NumSegments,
				Threads:    threads,
				Iterations: iterations,
				Verified:   true,
			}
			verr := helix.Verify(events, p.Sync.NumSegments, iterations)
			if verr != nil {
				res.Verified = false
				res.Error = verr.Error()
			}
			if showEvents || jsonOutput {
				res.Events = events
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := writeJSON(out, res); err != nil {
					return err
				}
				return verr
			}

			fmt.Fprintln(out, styleTitle.Render(fmt.Sprintf("%s/%s", res.Function, res.Loop)))
			printKeyValue(out, "Segments", fmt.Sprint(res.Segments))
			printKeyValue(out, "Threads", fmt.Sprint(res.Threads))
			printKeyValue(out, "Iterations", fmt.Sprint(res.Iterations))
			printKeyValue(out, "Events", fmt.Sprint(len(events)))
			for _, ev := range res.Events {
				printDetail(out, "%s", ev)
			}
			if verr != nil {
				return fmt.Errorf("segment order violated: %w", verr)
			}
			printSuccess(out, "every segment ran in iteration order")
			return nil
		},
	}

	cmd.Flags().StringVarP(&loopHeader, "loop", "l", "", "Header block of the loop (default: first loop)")
	cmd.Flags().IntVarP(&threads, "threads", "n", 0, "Simulated threads (default from config)")
	cmd.Flags().IntVarP(&iterations, "iterations", "i", 0, "Iterations to simulate (default from config)")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().BoolVarP(&showEvents, "events", "e", false, "List every synchronization event")
	return cmd
}
