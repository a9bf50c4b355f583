package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-loop-parallel/internal/config"
	"github.com/l3aro/go-loop-parallel/pkg/parallel"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

// fixtures returns absolute paths into testdata and moves the test into an
// empty HOME and working directory.
func fixtures(t *testing.T) (sumYAML, kernels, tomlConfig string) {
	t.Helper()
	root, err := filepath.Abs(filepath.Join("..", "..", "..", "testdata"))
	require.NoError(t, err)

	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, "GLP_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return filepath.Join(root, "sum.yaml"), filepath.Join(root, "kernels.go"), filepath.Join(root, "config.toml")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPlan_JSON(t *testing.T) {
	sum, _, _ := fixtures(t)

	out, err := run(t, "plan", sum, "--json", "--no-cache")
	require.NoError(t, err)

	var reports []plan.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, "sum", r.Function)
	assert.Equal(t, "header", r.Loop)
	assert.True(t, r.Parallelizable)
	assert.Equal(t, "dswp", r.Technique)
	assert.Len(t, r.Stages, 2)
	assert.Len(t, r.Queues, 1)
}

func TestPlan_GoSourceYAML(t *testing.T) {
	_, kernels, _ := fixtures(t)

	out, err := run(t, "plan", kernels, "chain", "--technique", "helix", "--yaml", "--no-cache")
	require.NoError(t, err)

	var reports []plan.Report
	require.NoError(t, yaml.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "chain", reports[0].Function)
	assert.Equal(t, "helix", reports[0].Technique)
	assert.Len(t, reports[0].Segments, 1)
	require.NotNil(t, reports[0].Sync)
	assert.Equal(t, 64, reports[0].Sync.Stride)
}

func TestPlan_Text(t *testing.T) {
	sum, _, _ := fixtures(t)

	out, err := run(t, "plan", sum, "--no-cache")
	require.NoError(t, err)
	assert.Contains(t, out, "sum/header")
	assert.Contains(t, out, "parallelized with dswp")
	assert.Contains(t, out, "stage 0")
	assert.Contains(t, out, "stage 1")
	assert.Contains(t, out, "queue 0")
	assert.NotContains(t, out, "cached")
}

func TestPlan_ConfigFile(t *testing.T) {
	sum, _, cfg := fixtures(t)

	out, err := run(t, "plan", sum, "--config", cfg, "--json")
	require.NoError(t, err)
	var reports []plan.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "helix", reports[0].Technique)
}

func TestPlan_CacheRoundTrip(t *testing.T) {
	sum, _, _ := fixtures(t)

	out, err := run(t, "plan", sum)
	require.NoError(t, err)
	assert.NotContains(t, out, "cached")

	out, err = run(t, "plan", sum)
	require.NoError(t, err)
	assert.Contains(t, out, "cached")

	out, err = run(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Plans")
	assert.Contains(t, out, filepath.Join(".glp", "cache"))

	out, err = run(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 plans")

	out, err = run(t, "plan", sum)
	require.NoError(t, err)
	assert.NotContains(t, out, "cached")
}

const dirSource = `package k

func chain(x []int64, y []int64, n int) {
	for i := 0; i < n; i++ {
		y[i] = x[i] + 1
	}
}

func scale(x []float64, n int) {
	for i := 0; i < n; i++ {
		x[i] = x[i] * 2.5
	}
}

func flat(a int) int { return a }
`

func TestPlan_Directory(t *testing.T) {
	sum, _, _ := fixtures(t)
	dir := t.TempDir()
	data, err := os.ReadFile(sum)
	require.NoError(t, err)
	files := map[string]string{
		"ir/sum.yaml":   string(data),
		"k.go":          dirSource,
		"skip/loops.go": "package skip\nfunc f(n int) { for i := 0; i < n; i++ {} }\n",
		".glpignore":    "skip/\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	out, err := run(t, "plan", dir, "--json", "--no-cache")
	require.NoError(t, err)
	var reports []plan.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	var names []string
	for _, r := range reports {
		names = append(names, r.Function)
	}
	assert.Equal(t, []string{"sum", "chain", "scale"}, names)

	_, err = run(t, "plan", dir, "chain", "--no-cache")
	assert.ErrorContains(t, err, "cannot be combined")

	_, err = run(t, "plan", dir, "--loop", "nope", "--no-cache")
	assert.ErrorContains(t, err, "no loops found")
}

func TestPlan_Errors(t *testing.T) {
	sum, kernels, _ := fixtures(t)

	_, err := run(t, "plan", sum, "--technique", "vectorize", "--no-cache")
	assert.ErrorIs(t, err, parallel.ErrUnknownTechnique)

	_, err = run(t, "plan", sum, "--loop", "nope", "--no-cache")
	assert.ErrorContains(t, err, `no loop with header "nope"`)

	_, err = run(t, "plan", sum, "--json", "--yaml")
	assert.ErrorContains(t, err, "mutually exclusive")

	_, err = run(t, "plan", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = run(t, "plan", kernels, "emit", "--no-cache")
	assert.ErrorContains(t, err, "has no loops")

	_, err = run(t, "plan", sum, "--verbosity", "loud")
	assert.Error(t, err)

	_, err = run(t, "plan")
	assert.Error(t, err)
}

func TestSCCDAG(t *testing.T) {
	sum, kernels, _ := fixtures(t)

	out, err := run(t, "sccdag", sum)
	require.NoError(t, err)
	assert.Contains(t, out, "SCCDAG of sum/header")
	assert.Contains(t, out, "reducible")
	assert.Contains(t, out, "induction")

	out, err = run(t, "sccdag", kernels, "chain", "--dot", "--plan")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "digraph SCCDAG {"))
	assert.Contains(t, out, "cluster_stage0")
	assert.Contains(t, out, "cluster_stage3")

	out, err = run(t, "sccdag", sum, "--cfg")
	require.NoError(t, err)
	assert.Contains(t, out, `"body" -> "header" [style=dashed];`)
}

func TestSCCDAG_SVG(t *testing.T) {
	sum, _, _ := fixtures(t)
	path := filepath.Join(t.TempDir(), "sum.svg")

	out, err := run(t, "sccdag", sum, "--svg", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestSimulate(t *testing.T) {
	sum, kernels, _ := fixtures(t)

	out, err := run(t, "simulate", kernels, "chain", "--threads", "2", "--iterations", "8", "--json")
	require.NoError(t, err)
	var res simulation
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "chain", res.Function)
	assert.Equal(t, 1, res.Segments)
	assert.Equal(t, 2, res.Threads)
	assert.True(t, res.Verified)
	assert.Empty(t, res.Error)
	// one wait and one signal per iteration
	assert.Len(t, res.Events, 16)

	out, err = run(t, "simulate", kernels, "chain", "--events")
	require.NoError(t, err)
	assert.Contains(t, out, "every segment ran in iteration order")
	assert.Contains(t, out, "t0 i0 wait ss0")

	out, err = run(t, "simulate", sum)
	require.NoError(t, err)
	assert.Contains(t, out, "Segments")
	assert.Contains(t, out, "every segment ran in iteration order")

	_, err = run(t, "simulate", sum, "--threads", "-1")
	assert.Error(t, err)
}

func TestInit_Defaults(t *testing.T) {
	fixtures(t)

	out, err := run(t, "init", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration Preview")
	assert.Contains(t, out, "dswp, helix")

	cfg, err := config.LoadFromFile(config.ProjectConfigFilePath())
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	_, err = run(t, "init", "--yes", "--global")
	require.NoError(t, err)
	_, err = os.Stat(config.GlobalConfigFilePath())
	assert.NoError(t, err)
}
