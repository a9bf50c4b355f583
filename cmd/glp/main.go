// Package main implements the go-loop-parallel CLI (glp).
// It plans DSWP and HELIX parallelizations of loops, draws their SCCDAGs
// and simulates HELIX synchronization.
package main

import (
	"os"

	"github.com/l3aro/go-loop-parallel/cmd/glp/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.RootCmd.Flags().BoolP("version", "v", false, "Print version information")
	commands.RootCmd.SetVersionTemplate(`glp version {{.Version}}
`)
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version += " (built " + buildTime + ")"
	}

	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
