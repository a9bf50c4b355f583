package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-loop-parallel/internal/log"
	"github.com/l3aro/go-loop-parallel/pkg/dswp"
	"github.com/l3aro/go-loop-parallel/pkg/helix"
	"github.com/l3aro/go-loop-parallel/pkg/parallel"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

// Config holds all configuration for glp
type Config struct {
	// Techniques are tried in order on every loop; the first that applies wins
	Techniques []string `yaml:"techniques" toml:"techniques" env:"GLP_TECHNIQUES"`

	// DSWP settings
	ForceParallelization bool `yaml:"force_parallelization" toml:"force_parallelization" env:"GLP_FORCE"`
	SCCMerging           bool `yaml:"scc_merging" toml:"scc_merging" env:"GLP_SCC_MERGING"`
	CloneRemovable       bool `yaml:"clone_removable" toml:"clone_removable" env:"GLP_CLONE_REMOVABLE"`

	// HELIX settings
	HelixThreads    int `yaml:"helix_threads" toml:"helix_threads" env:"GLP_HELIX_THREADS"`
	CacheLineStride int `yaml:"cache_line_stride" toml:"cache_line_stride" env:"GLP_STRIDE"`

	// Simulation settings for `glp simulate`
	SimulateIterations int `yaml:"simulate_iterations" toml:"simulate_iterations" env:"GLP_SIMULATE_ITERATIONS"`

	// Plan cache; an empty directory disables persistence
	CacheDir  string `yaml:"cache_dir" toml:"cache_dir" env:"GLP_CACHE_DIR"`
	CacheSize int    `yaml:"cache_size" toml:"cache_size" env:"GLP_CACHE_SIZE"`

	// Logging
	Verbosity string `yaml:"verbosity" toml:"verbosity" env:"GLP_VERBOSITY"`
	JSONLogs  bool   `yaml:"json_logs" toml:"json_logs" env:"GLP_JSON_LOGS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Techniques:           []string{dswp.Name, helix.Name},
		ForceParallelization: false,
		SCCMerging:           true,
		CloneRemovable:       true,
		HelixThreads:         4,
		CacheLineStride:      plan.CacheLineSize,
		SimulateIterations:   16,
		CacheDir:             defaultCacheDir(),
		CacheSize:            1000,
		Verbosity:            log.VerbosityMinimal.String(),
		JSONLogs:             false,
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".glp", "cache")
	}
	return filepath.Join(home, ".glp", "cache")
}

// GlobalConfigFilePath returns the global config file path (~/.glp/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".glp/config.yaml"
	}
	return filepath.Join(home, ".glp", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.glp/config.yaml)
func ProjectConfigFilePath() string {
	return ".glp/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.glp/config.yaml)
// 3. Global config (~/.glp/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML or TOML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := decode(path, data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode picks the format from the file extension; anything but .toml is
// YAML.
func decode(path string, data []byte, cfg *Config) error {
	var err error
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration to the specified file path, as TOML when
// the path ends in .toml and YAML otherwise.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(c)
		data = []byte(sb.String())
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// env caches the environment on first use, so it is reloaded on every call.
func applyEnvOverrides(cfg *Config) {
	env.Load()
	if env.Has("GLP_TECHNIQUES") {
		cfg.Techniques = splitList(env.Str("GLP_TECHNIQUES"))
	}
	if env.Has("GLP_FORCE") {
		cfg.ForceParallelization = env.Bool("GLP_FORCE")
	}
	if env.Has("GLP_SCC_MERGING") {
		cfg.SCCMerging = env.Bool("GLP_SCC_MERGING")
	}
	if env.Has("GLP_CLONE_REMOVABLE") {
		cfg.CloneRemovable = env.Bool("GLP_CLONE_REMOVABLE")
	}
	if i := env.Int("GLP_HELIX_THREADS", 0); i > 0 {
		cfg.HelixThreads = i
	}
	if i := env.Int("GLP_STRIDE", 0); i > 0 {
		cfg.CacheLineStride = i
	}
	if i := env.Int("GLP_SIMULATE_ITERATIONS", 0); i > 0 {
		cfg.SimulateIterations = i
	}
	if env.Has("GLP_CACHE_DIR") {
		cfg.CacheDir = env.Str("GLP_CACHE_DIR")
	}
	if i := env.Int("GLP_CACHE_SIZE", 0); i > 0 {
		cfg.CacheSize = i
	}
	if v := env.Str("GLP_VERBOSITY"); v != "" {
		cfg.Verbosity = v
	}
	if env.Has("GLP_JSON_LOGS") {
		cfg.JSONLogs = env.Bool("GLP_JSON_LOGS")
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if len(c.Techniques) == 0 {
		return fmt.Errorf("techniques must name at least one technique")
	}
	if _, err := parallel.Techniques(c.Techniques, parallel.TechniqueOptions{}); err != nil {
		return fmt.Errorf("invalid techniques: %w", err)
	}
	if c.HelixThreads <= 0 {
		return fmt.Errorf("helix_threads must be positive")
	}
	if c.CacheLineStride <= 0 || c.CacheLineStride&(c.CacheLineStride-1) != 0 {
		return fmt.Errorf("cache_line_stride must be a positive power of two")
	}
	if c.SimulateIterations <= 0 {
		return fmt.Errorf("simulate_iterations must be positive")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative")
	}
	if _, err := log.ParseVerbosity(c.Verbosity); err != nil {
		return err
	}
	return nil
}

// LogVerbosity returns the parsed verbosity. It assumes Validate passed.
func (c *Config) LogVerbosity() log.Verbosity {
	v, _ := log.ParseVerbosity(c.Verbosity)
	return v
}

// TechniqueOptions translates the configuration into per-technique options
// sharing logger.
func (c *Config) TechniqueOptions(logger log.Logger) parallel.TechniqueOptions {
	v := c.LogVerbosity()
	return parallel.TechniqueOptions{
		DSWP: dswp.Options{
			Force:          c.ForceParallelization,
			EnableMerging:  c.SCCMerging,
			CloneRemovable: c.CloneRemovable,
			Verbosity:      v,
			Logger:         logger,
		},
		HELIX: helix.Options{
			Threads:   c.HelixThreads,
			Stride:    c.CacheLineStride,
			Verbosity: v,
			Logger:    logger,
		},
	}
}

// Fingerprint identifies the settings that change plans, for cache keys.
func (c *Config) Fingerprint() string {
	return fmt.Sprintf("force=%t merge=%t clone=%t threads=%d stride=%d",
		c.ForceParallelization, c.SCCMerging, c.CloneRemovable, c.HelixThreads, c.CacheLineStride)
}
