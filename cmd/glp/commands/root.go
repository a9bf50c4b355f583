// Package commands provides the CLI commands for the glp tool.
package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = NewRootCmd()

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "glp",
		Short: "go-loop-parallel - DSWP and HELIX loop parallelization planner",
		Long: `go-loop-parallel analyzes the dependences of a loop and plans how to run it
in parallel, either as a DSWP pipeline or as HELIX iterations with
sequential segments.

Input is a YAML IR description or a Go source file.

Commands:
  plan        Plan the parallelization of every loop in a function
  sccdag      Show the SCCDAG of a loop (text, DOT or SVG)
  simulate    Run the HELIX synchronization of a loop on simulated threads
  init        Create a configuration file interactively
  cache       Inspect or clear the plan cache

Use "glp [command] --help" for more information about a command.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "Config file path (YAML or TOML)")
	root.PersistentFlags().String("verbosity", "", "Override verbosity (disabled, minimal, pipeline, maximal)")
	root.PersistentFlags().Bool("no-cache", false, "Do not read or write the plan cache")

	root.AddCommand(newPlanCmd())
	root.AddCommand(newSCCDAGCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newCacheCmd())
	return root
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
