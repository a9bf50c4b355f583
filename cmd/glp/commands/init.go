package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-loop-parallel/internal/config"
	"github.com/l3aro/go-loop-parallel/internal/log"
	"github.com/l3aro/go-loop-parallel/pkg/dswp"
	"github.com/l3aro/go-loop-parallel/pkg/helix"
)

func newInitCmd() *cobra.Command {
	var (
		global   bool
		defaults bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize glp configuration interactively",
		Long: `Guides you through setting up glp configuration step by step.
Creates a config file with the technique order and the DSWP and HELIX
settings.

With --yes the defaults are written without prompting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			location := "project"
			if global {
				location = "global"
			}
			if !defaults {
				var err error
				if location, err = runInitForm(cfg, location); err != nil {
					return err
				}
			}

			configPath := config.ProjectConfigFilePath()
			if location == "global" {
				configPath = config.GlobalConfigFilePath()
			}

			if _, err := os.Stat(configPath); err == nil && !defaults {
				var overwrite bool
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewConfirm().
							Title("Config file exists").
							Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
							Affirmative("Overwrite").
							Negative("Cancel").
							Value(&overwrite),
					),
				)
				if err := form.Run(); err != nil {
					return fmt.Errorf("interactive prompt failed: %w", err)
				}
				if !overwrite {
					printInfo(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			printConfigPreview(out, configPath, cfg)

			if err := cfg.Save(configPath); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			// Read it back so a broken file is reported now, not on the next run.
			if _, err := config.LoadFromFile(configPath); err != nil {
				return fmt.Errorf("loading saved config: %w", err)
			}
			printSuccess(out, "Configuration saved to: %s", configPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&global, "global", "g", false, "Save to the global config (~/.glp/config.yaml)")
	cmd.Flags().BoolVarP(&defaults, "yes", "y", false, "Write the defaults without prompting")
	return cmd
}

// runInitForm asks for every setting and returns where to save.
func runInitForm(cfg *config.Config, location string) (string, error) {
	order := strings.Join(cfg.Techniques, ",")
	threads := strconv.Itoa(cfg.HelixThreads)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Techniques").
				Description("Which techniques to try on every loop, in order").
				Options(
					huh.NewOption("DSWP, then HELIX", dswp.Name+","+helix.Name),
					huh.NewOption("HELIX, then DSWP", helix.Name+","+dswp.Name),
					huh.NewOption("DSWP only", dswp.Name),
					huh.NewOption("HELIX only", helix.Name),
				).
				Value(&order),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("DSWP - Force parallelization").
				Description("Build pipelines even when one stage holds most of the work?").
				Value(&cfg.ForceParallelization),
			huh.NewConfirm().
				Title("DSWP - Merge SCCs").
				Description("Fold tail branches into their predecessor before partitioning?").
				Value(&cfg.SCCMerging),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("HELIX - Threads").
				Placeholder("4").
				Validate(func(s string) error {
					if n, err := strconv.Atoi(s); err != nil || n <= 0 {
						return fmt.Errorf("enter a positive number")
					}
					return nil
				}).
				Value(&threads),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Verbosity").
				Options(
					huh.NewOption("Disabled", log.VerbosityDisabled.String()),
					huh.NewOption("Minimal", log.VerbosityMinimal.String()),
					huh.NewOption("Pipeline", log.VerbosityPipeline.String()),
					huh.NewOption("Maximal", log.VerbosityMaximal.String()),
				).
				Value(&cfg.Verbosity),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.glp/config.yaml)", "global"),
					huh.NewOption("Project (./.glp/config.yaml)", "project"),
				).
				Value(&location),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("interactive prompt failed: %w", err)
	}

	cfg.Techniques = strings.Split(order, ",")
	cfg.HelixThreads, _ = strconv.Atoi(threads)
	return location, nil
}

func printConfigPreview(w io.Writer, path string, cfg *config.Config) {
	fmt.Fprintln(w, styleTitle.Render("Configuration Preview"))
	printKeyValue(w, "Config path", path)
	printKeyValue(w, "Techniques", strings.Join(cfg.Techniques, ", "))
	printKeyValue(w, "Force", strconv.FormatBool(cfg.ForceParallelization))
	printKeyValue(w, "SCC merging", strconv.FormatBool(cfg.SCCMerging))
	printKeyValue(w, "Threads", strconv.Itoa(cfg.HelixThreads))
	printKeyValue(w, "Stride", strconv.Itoa(cfg.CacheLineStride))
	printKeyValue(w, "Verbosity", cfg.Verbosity)
}
