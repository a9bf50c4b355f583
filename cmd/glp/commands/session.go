package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-loop-parallel/internal/config"
	"github.com/l3aro/go-loop-parallel/internal/log"
	"github.com/l3aro/go-loop-parallel/pkg/cache"
	"github.com/l3aro/go-loop-parallel/pkg/frontend"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/loopdep"
)

// session is the configuration and logger shared by one command run.
type session struct {
	cfg    *config.Config
	logger log.Logger
}

func newSession(cmd *cobra.Command) (*session, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if v, _ := cmd.Flags().GetString("verbosity"); v != "" {
		cfg.Verbosity = v
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := log.New(log.LoggerConfig{
		Level:      log.FromVerbosity(cfg.LogVerbosity()),
		JSONOutput: cfg.JSONLogs,
		Stderr:     cmd.ErrOrStderr(),
	})
	return &session{cfg: cfg, logger: logger}, nil
}

// openCache returns the persistent plan cache, or nil when caching is off.
func (s *session) openCache(cmd *cobra.Command) (*cache.Plans, error) {
	if off, _ := cmd.Flags().GetBool("no-cache"); off || s.cfg.CacheDir == "" {
		return nil, nil
	}
	plans, err := cache.OpenPlans(cache.PlanOptions{Dir: s.cfg.CacheDir, MaxEntries: s.cfg.CacheSize})
	if err != nil {
		return nil, fmt.Errorf("opening plan cache: %w", err)
	}
	return plans, nil
}

// loadLoops reads the function and its loops, keeping only the loop whose
// header is named header when one is given.
func loadLoops(path, funcName, header string) (*ir.Function, []*ir.Loop, error) {
	fn, err := frontend.Load(path, funcName)
	if err != nil {
		return nil, nil, err
	}
	loops := ir.FindLoops(fn)
	if len(loops) == 0 {
		return nil, nil, fmt.Errorf("function %s has no loops", fn.Name)
	}
	if header == "" {
		return fn, loops, nil
	}
	for _, l := range loops {
		if l.Header.Name == header {
			return fn, []*ir.Loop{l}, nil
		}
	}
	return nil, nil, fmt.Errorf("no loop with header %q in function %s", header, fn.Name)
}

// analyzeOne loads a single loop and its dependence information. Without
// a header the first loop is used.
func analyzeOne(args []string, header string) (*loopdep.Info, error) {
	fn, loops, err := loadLoops(args[0], funcArg(args), header)
	if err != nil {
		return nil, err
	}
	return loopdep.Analyze(fn, loops[0], loopdep.Options{}), nil
}

func funcArg(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}
