package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

// PlanFile is the name of the persisted report cache inside a cache
// directory.
const PlanFile = "plans.msgpack"

// PlanOptions configures a report cache.
type PlanOptions struct {
	Dir        string // Empty keeps the cache in memory only
	MaxEntries int
	MaxBytes   int64
}

// Plans caches parallelization reports by the content they were computed
// from.
type Plans struct {
	lru *LRU[plan.Report]
	dir string
}

// OpenPlans creates a report cache and loads the persisted entries of
// opts.Dir, if any.
func OpenPlans(opts PlanOptions) (*Plans, error) {
	if opts.MaxEntries == 0 {
		opts.MaxEntries = 1000
	}
	p := &Plans{
		lru: New(Options[plan.Report]{MaxSize: opts.MaxEntries, MaxBytes: opts.MaxBytes}),
		dir: opts.Dir,
	}
	if p.dir == "" {
		return p, nil
	}
	if err := p.lru.LoadFromFile(p.path()); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Plans) path() string { return filepath.Join(p.dir, PlanFile) }

// Key hashes the inputs of a parallelization into a cache key.
func Key(parts ...string) string {
	return HashString(strings.Join(parts, "\x00"))
}

// HashString returns the hex SHA-256 of content.
func HashString(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// Get returns a copy of the report cached under key.
func (p *Plans) Get(key string) (*plan.Report, bool) {
	r, ok := p.lru.Get(key)
	if !ok {
		return nil, false
	}
	return &r, true
}

// Put caches r under key.
func (p *Plans) Put(key string, r *plan.Report) {
	if r == nil {
		return
	}
	p.lru.Set(key, *r)
}

// Len returns the number of cached reports.
func (p *Plans) Len() int { return p.lru.Len() }

// Stats returns the cache counters.
func (p *Plans) Stats() Stats { return p.lru.Stats() }

// Flush persists the cache to its directory.
func (p *Plans) Flush() error {
	if p.dir == "" {
		return nil
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	return p.lru.PersistToFile(p.path())
}

// Clear drops every entry and the persisted file.
func (p *Plans) Clear() error {
	p.lru.Clear()
	if p.dir == "" {
		return nil
	}
	if err := os.Remove(p.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}
