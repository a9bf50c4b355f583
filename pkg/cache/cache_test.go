package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

func TestLRU_Basic(t *testing.T) {
	c := New(Options[string]{MaxSize: 3})

	c.Set("a", "value_a")
	c.Set("b", "value_b")
	c.Set("c", "value_c")

	assert.Equal(t, 3, c.Len())

	val, found := c.Get("a")
	require.True(t, found)
	assert.Equal(t, "value_a", val)

	_, found = c.Get("missing")
	assert.False(t, found)
}

func TestLRU_Eviction(t *testing.T) {
	var evicted []string
	c := New(Options[string]{MaxSize: 3, OnEvict: func(key string, _ string) { evicted = append(evicted, key) }})

	c.Set("a", "value_a")
	c.Set("b", "value_b")
	c.Set("c", "value_c")

	// Access 'a' to make it most recently used
	c.Get("a")
	c.Set("d", "value_d")

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, []string{"d", "a", "c"}, c.Keys())
}

func TestLRU_MaxBytes(t *testing.T) {
	c := New(Options[string]{MaxBytes: 25})

	c.Set("a", "1234567890")
	c.Set("b", "1234567890")
	c.Set("c", "1234567890")

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(20), c.Stats().CurrentBytes)
	_, found := c.Get("a")
	assert.False(t, found)
}

func TestLRU_UpdateAndDelete(t *testing.T) {
	c := New(Options[string]{MaxSize: 10})

	c.Set("a", "value1")
	c.Set("a", "value22")
	val, found := c.Get("a")
	require.True(t, found)
	assert.Equal(t, "value22", val)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(7), c.Stats().CurrentBytes)

	c.Set("b", "x")
	c.Delete("a")
	c.Delete("a")
	assert.Equal(t, []string{"b"}, c.Keys())
	assert.Equal(t, int64(1), c.Stats().CurrentBytes)

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Stats().HitCount)
}

func TestLRU_Stats(t *testing.T) {
	c := New(Options[string]{MaxSize: 10})
	c.Set("key1", "value1")
	c.Get("key1")
	c.Get("key2")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.Equal(t, 0.5, stats.HitRate())
	assert.Zero(t, Stats{}.HitRate())
}

func TestLRU_SaveLoad(t *testing.T) {
	c := New(Options[string]{MaxSize: 10})
	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Get("key1")

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	c2 := New(Options[string]{MaxSize: 10})
	require.NoError(t, c2.Load(&buf))
	assert.Equal(t, []string{"key1", "key2"}, c2.Keys())

	val, found := c2.Get("key2")
	require.True(t, found)
	assert.Equal(t, "value2", val)

	assert.Error(t, c2.Load(bytes.NewReader([]byte{0xc1})))
}

func TestLRU_LoadMissingFile(t *testing.T) {
	c := New(Options[string]{MaxSize: 10})
	require.NoError(t, c.LoadFromFile(filepath.Join(t.TempDir(), "nonexistent.cache")))
	assert.Zero(t, c.Len())
}

func TestHashString(t *testing.T) {
	h1 := HashString("hello world")
	h2 := HashString("hello world")
	h3 := HashString("different")

	assert.Equal(t, h1, h2, "same content should produce same hash")
	assert.NotEqual(t, h1, h3, "different content should produce different hash")
	assert.Len(t, h1, 64, "SHA256 hash should be 64 hex characters")
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestPlans_Persistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	p, err := OpenPlans(PlanOptions{Dir: dir})
	require.NoError(t, err)

	report := &plan.Report{
		Function:       "sum",
		Loop:           "header",
		Technique:      "dswp",
		Parallelizable: true,
		Queues:         []plan.QueueReport{{Index: 0, Kind: "value", Producer: "v", Consumers: []string{"s.next"}, Type: "i64", ByteLength: 8, FromStage: 0, ToStage: 1, OperandIndex: -1}},
	}
	key := Key("sum", "header", "dswp")
	p.Put(key, report)
	p.Put("nil", nil)
	assert.Equal(t, 1, p.Len())
	require.NoError(t, p.Flush())
	assert.FileExists(t, filepath.Join(dir, PlanFile))

	reopened, err := OpenPlans(PlanOptions{Dir: dir})
	require.NoError(t, err)
	got, ok := reopened.Get(key)
	require.True(t, ok)
	assert.Equal(t, report, got)

	got.Loop = "changed"
	again, _ := reopened.Get(key)
	assert.Equal(t, "header", again.Loop, "Get returns a copy")

	require.NoError(t, reopened.Clear())
	assert.Zero(t, reopened.Len())
	_, err = os.Stat(filepath.Join(dir, PlanFile))
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, reopened.Clear())
}

func TestPlans_InMemory(t *testing.T) {
	p, err := OpenPlans(PlanOptions{})
	require.NoError(t, err)
	p.Put("k", &plan.Report{Loop: "header"})
	require.NoError(t, p.Flush())
	_, ok := p.Get("k")
	assert.True(t, ok)
	assert.Equal(t, int64(1), p.Stats().HitCount)
}
