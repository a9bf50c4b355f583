package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-loop-parallel/pkg/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the plan cache",
	}
	cmd.AddCommand(newCacheStatsCmd(), newCacheClearCmd())
	return cmd
}

func openConfiguredCache(cmd *cobra.Command) (*cache.Plans, string, error) {
	s, err := newSession(cmd)
	if err != nil {
		return nil, "", err
	}
	if s.cfg.CacheDir == "" {
		return nil, "", fmt.Errorf("plan cache is disabled (cache_dir is empty)")
	}
	plans, err := cache.OpenPlans(cache.PlanOptions{Dir: s.cfg.CacheDir, MaxEntries: s.cfg.CacheSize})
	if err != nil {
		return nil, "", fmt.Errorf("opening plan cache: %w", err)
	}
	return plans, s.cfg.CacheDir, nil
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the number and size of cached plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, dir, err := openConfiguredCache(cmd)
			if err != nil {
				return err
			}
			st := plans.Stats()
			out := cmd.OutOrStdout()
			printKeyValue(out, "Directory", dir)
			printKeyValue(out, "Plans", fmt.Sprint(st.Length))
			printKeyValue(out, "Bytes", fmt.Sprint(st.CurrentBytes))
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, dir, err := openConfiguredCache(cmd)
			if err != nil {
				return err
			}
			n := plans.Len()
			if err := plans.Clear(); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "removed %d plans from %s", n, dir)
			return nil
		},
	}
}
