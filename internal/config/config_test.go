package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/l3aro/go-loop-parallel/internal/log"
)

// isolate points HOME and the working directory at empty temp dirs and
// clears GLP_* variables so layered loading only sees what the test writes.
func isolate(t *testing.T) string {
	t.Helper()
	for _, e := range os.Environ() {
		if name, _, ok := strings.Cut(e, "="); ok && strings.HasPrefix(name, "GLP_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	return home
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"ForceParallelization", cfg.ForceParallelization, false},
		{"SCCMerging", cfg.SCCMerging, true},
		{"CloneRemovable", cfg.CloneRemovable, true},
		{"HelixThreads", cfg.HelixThreads, 4},
		{"CacheLineStride", cfg.CacheLineStride, 64},
		{"SimulateIterations", cfg.SimulateIterations, 16},
		{"CacheSize", cfg.CacheSize, 1000},
		{"Verbosity", cfg.Verbosity, "minimal"},
		{"JSONLogs", cfg.JSONLogs, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if !reflect.DeepEqual(cfg.Techniques, []string{"dswp", "helix"}) {
		t.Errorf("DefaultConfig().Techniques = %v, want [dswp helix]", cfg.Techniques)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() does not validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "helix only",
			mutate:  func(c *Config) { c.Techniques = []string{"HELIX"} },
			wantErr: false,
		},
		{
			name:        "no techniques",
			mutate:      func(c *Config) { c.Techniques = nil },
			wantErr:     true,
			errContains: "at least one technique",
		},
		{
			name:        "unknown technique",
			mutate:      func(c *Config) { c.Techniques = []string{"doall"} },
			wantErr:     true,
			errContains: "unknown technique",
		},
		{
			name:        "zero threads",
			mutate:      func(c *Config) { c.HelixThreads = 0 },
			wantErr:     true,
			errContains: "helix_threads must be positive",
		},
		{
			name:        "stride not a power of two",
			mutate:      func(c *Config) { c.CacheLineStride = 48 },
			wantErr:     true,
			errContains: "power of two",
		},
		{
			name:        "zero iterations",
			mutate:      func(c *Config) { c.SimulateIterations = 0 },
			wantErr:     true,
			errContains: "simulate_iterations",
		},
		{
			name:        "negative cache size",
			mutate:      func(c *Config) { c.CacheSize = -1 },
			wantErr:     true,
			errContains: "cache_size",
		},
		{
			name:        "bad verbosity",
			mutate:      func(c *Config) { c.Verbosity = "loud" },
			wantErr:     true,
			errContains: "unknown verbosity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		content     string
		envVars     map[string]string
		checkCfg    func(*testing.T, *Config)
		wantErr     bool
		errContains string
	}{
		{
			name: "yaml",
			file: "config.yaml",
			content: `
techniques: [helix]
force_parallelization: true
helix_threads: 8
cache_line_stride: 128
verbosity: maximal
`,
			checkCfg: func(t *testing.T, cfg *Config) {
				if !reflect.DeepEqual(cfg.Techniques, []string{"helix"}) {
					t.Errorf("Techniques = %v, want [helix]", cfg.Techniques)
				}
				if !cfg.ForceParallelization {
					t.Errorf("ForceParallelization = false, want true")
				}
				if cfg.HelixThreads != 8 {
					t.Errorf("HelixThreads = %v, want 8", cfg.HelixThreads)
				}
				if cfg.CacheLineStride != 128 {
					t.Errorf("CacheLineStride = %v, want 128", cfg.CacheLineStride)
				}
				if cfg.LogVerbosity() != log.VerbosityMaximal {
					t.Errorf("LogVerbosity() = %v, want maximal", cfg.LogVerbosity())
				}
				if !cfg.SCCMerging {
					t.Errorf("SCCMerging = false, want the default true")
				}
			},
		},
		{
			name: "toml",
			file: "config.toml",
			content: `
techniques = ["dswp"]
scc_merging = false
cache_size = 10
`,
			checkCfg: func(t *testing.T, cfg *Config) {
				if !reflect.DeepEqual(cfg.Techniques, []string{"dswp"}) {
					t.Errorf("Techniques = %v, want [dswp]", cfg.Techniques)
				}
				if cfg.SCCMerging {
					t.Errorf("SCCMerging = true, want false")
				}
				if cfg.CacheSize != 10 {
					t.Errorf("CacheSize = %v, want 10", cfg.CacheSize)
				}
			},
		},
		{
			name:    "env overrides file",
			file:    "config.yaml",
			content: "helix_threads: 8\n",
			envVars: map[string]string{"GLP_HELIX_THREADS": "2", "GLP_TECHNIQUES": "helix, dswp"},
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.HelixThreads != 2 {
					t.Errorf("HelixThreads = %v, want 2", cfg.HelixThreads)
				}
				if !reflect.DeepEqual(cfg.Techniques, []string{"helix", "dswp"}) {
					t.Errorf("Techniques = %v, want [helix dswp]", cfg.Techniques)
				}
			},
		},
		{
			name:        "invalid yaml",
			file:        "config.yaml",
			content:     "helix_threads: [\n",
			wantErr:     true,
			errContains: "failed to parse config file",
		},
		{
			name:        "invalid values",
			file:        "config.yaml",
			content:     "techniques: [doall]\n",
			wantErr:     true,
			errContains: "invalid techniques",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			cfg, err := LoadFromFile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFromFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("LoadFromFile() error = %v, want containing %q", err, tt.errContains)
				}
				return
			}
			tt.checkCfg(t, cfg)
		})
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFromFile() on a missing file should fail")
	}
}

func TestLoadLayers(t *testing.T) {
	home := isolate(t)

	global := DefaultConfig()
	global.HelixThreads = 8
	global.CacheSize = 5
	if err := global.Save(filepath.Join(home, ".glp", "config.yaml")); err != nil {
		t.Fatalf("Save() global failed: %v", err)
	}
	if err := os.MkdirAll(".glp", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ProjectConfigFilePath(), []byte("helix_threads: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GLP_JSON_LOGS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.HelixThreads != 3 {
		t.Errorf("HelixThreads = %d, want the project value 3", cfg.HelixThreads)
	}
	if cfg.CacheSize != 5 {
		t.Errorf("CacheSize = %d, want the global value 5", cfg.CacheSize)
	}
	if !cfg.JSONLogs {
		t.Errorf("JSONLogs = false, want the env value true")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(*testing.T, *Config)
	}{
		{
			name:    "booleans",
			envVars: map[string]string{"GLP_FORCE": "1", "GLP_SCC_MERGING": "false", "GLP_CLONE_REMOVABLE": "no"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.ForceParallelization {
					t.Errorf("ForceParallelization = false, want true")
				}
				if cfg.SCCMerging {
					t.Errorf("SCCMerging = true, want false")
				}
				if cfg.CloneRemovable {
					t.Errorf("CloneRemovable = true, want false")
				}
			},
		},
		{
			name:    "numbers",
			envVars: map[string]string{"GLP_STRIDE": "32", "GLP_SIMULATE_ITERATIONS": "100", "GLP_CACHE_SIZE": "7"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.CacheLineStride != 32 {
					t.Errorf("CacheLineStride = %d, want 32", cfg.CacheLineStride)
				}
				if cfg.SimulateIterations != 100 {
					t.Errorf("SimulateIterations = %d, want 100", cfg.SimulateIterations)
				}
				if cfg.CacheSize != 7 {
					t.Errorf("CacheSize = %d, want 7", cfg.CacheSize)
				}
			},
		},
		{
			name:    "invalid numbers are ignored",
			envVars: map[string]string{"GLP_HELIX_THREADS": "many", "GLP_STRIDE": "-64"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.HelixThreads != 4 {
					t.Errorf("HelixThreads = %d, want 4", cfg.HelixThreads)
				}
				if cfg.CacheLineStride != 64 {
					t.Errorf("CacheLineStride = %d, want 64", cfg.CacheLineStride)
				}
			},
		},
		{
			name:    "strings",
			envVars: map[string]string{"GLP_VERBOSITY": "pipeline", "GLP_CACHE_DIR": "/tmp/glp-cache"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Verbosity != "pipeline" {
					t.Errorf("Verbosity = %q, want pipeline", cfg.Verbosity)
				}
				if cfg.CacheDir != "/tmp/glp-cache" {
					t.Errorf("CacheDir = %q, want /tmp/glp-cache", cfg.CacheDir)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			tt.check(t, cfg)
		})
	}
}

func TestApplyEnvOverridesRereadsEnvironment(t *testing.T) {
	isolate(t)

	t.Setenv("GLP_HELIX_THREADS", "3")
	first := DefaultConfig()
	applyEnvOverrides(first)

	t.Setenv("GLP_HELIX_THREADS", "7")
	second := DefaultConfig()
	applyEnvOverrides(second)

	if first.HelixThreads != 3 {
		t.Errorf("first HelixThreads = %d, want 3", first.HelixThreads)
	}
	if second.HelixThreads != 7 {
		t.Errorf("second HelixThreads = %d, want 7", second.HelixThreads)
	}

	os.Unsetenv("GLP_HELIX_THREADS")
	third := DefaultConfig()
	applyEnvOverrides(third)
	if third.HelixThreads != 4 {
		t.Errorf("HelixThreads after unset = %d, want the default 4", third.HelixThreads)
	}
}

func TestConfigSave(t *testing.T) {
	isolate(t)
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "nested", "dirs", name)

			cfg := DefaultConfig()
			cfg.Techniques = []string{"helix"}
			cfg.HelixThreads = 16
			cfg.CacheDir = ""

			if err := cfg.Save(configPath); err != nil {
				t.Fatalf("Save() failed: %v", err)
			}
			loaded, err := LoadFromFile(configPath)
			if err != nil {
				t.Fatalf("LoadFromFile() failed: %v", err)
			}
			if !reflect.DeepEqual(loaded, cfg) {
				t.Errorf("loaded config = %+v, want %+v", loaded, cfg)
			}
		})
	}
}

func TestTechniqueOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ForceParallelization = true
	cfg.HelixThreads = 6
	cfg.Verbosity = "pipeline"

	opts := cfg.TechniqueOptions(nil)
	if !opts.DSWP.Force || !opts.DSWP.EnableMerging || !opts.DSWP.CloneRemovable {
		t.Errorf("DSWP options = %+v", opts.DSWP)
	}
	if opts.HELIX.Threads != 6 || opts.HELIX.Stride != 64 {
		t.Errorf("HELIX options = %+v", opts.HELIX)
	}
	if opts.DSWP.Verbosity != log.VerbosityPipeline || opts.HELIX.Verbosity != log.VerbosityPipeline {
		t.Errorf("verbosity not propagated: %v %v", opts.DSWP.Verbosity, opts.HELIX.Verbosity)
	}

	other := DefaultConfig()
	if cfg.Fingerprint() == other.Fingerprint() {
		t.Error("Fingerprint() should change with plan-affecting settings")
	}
	other.Verbosity = "maximal"
	if DefaultConfig().Fingerprint() != other.Fingerprint() {
		t.Error("Fingerprint() should ignore verbosity")
	}
}
