// Package scanner finds planner inputs in a file tree. It respects
// .glpignore files with gitignore-style patterns.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// InputKind is the reader an input file needs.
type InputKind string

const (
	KindGo InputKind = "go" // Go source lowered with tree-sitter
	KindIR InputKind = "ir" // YAML function description
)

// DetectKind maps a file extension to its input kind, or "" when the file
// is not an input.
func DetectKind(ext string) InputKind {
	switch strings.ToLower(ext) {
	case ".go":
		return KindGo
	case ".yaml", ".yml":
		return KindIR
	}
	return ""
}

// FileInfo represents a discovered input file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string
	Kind     InputKind
	Size     int64
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip files and directories starting with .
	SkipTests       bool     // Skip Go _test.go files
	DefaultExcludes []string // Directory names never entered
	IgnoreFileName  string
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:      true,
		SkipTests:       true,
		IgnoreFileName:  ".glpignore",
		DefaultExcludes: []string{".git", "vendor", "node_modules", "testdata", "_examples"},
	}
}

// Scanner walks file trees.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts}
}

// Scan returns the inputs under root sorted by path. root may also be a
// single file, which is returned as is when it is an input.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	st, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		kind := DetectKind(filepath.Ext(absRoot))
		if kind == "" {
			return nil, fmt.Errorf("unsupported input file %s", root)
		}
		return []FileInfo{{Path: filepath.Base(absRoot), FullPath: absRoot, Kind: kind, Size: st.Size()}}, nil
	}

	patterns, err := s.loadIgnorePatterns(absRoot)
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if (s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".")) || s.isDefaultExcluded(d.Name()) || matches(rel, true, patterns) {
				return filepath.SkipDir
			}
			nested, err := s.loadIgnorePatterns(path)
			if err == nil {
				for _, p := range nested {
					patterns = append(patterns, p.under(rel))
				}
			}
			return nil
		}

		if s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		kind := DetectKind(filepath.Ext(path))
		if kind == "" || (s.opts.SkipTests && strings.HasSuffix(d.Name(), "_test.go")) {
			return nil
		}
		if matches(rel, false, patterns) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{Path: rel, FullPath: path, Kind: kind, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// loadIgnorePatterns reads the ignore file of dir, if any.
func (s *Scanner) loadIgnorePatterns(dir string) ([]IgnorePattern, error) {
	if s.opts.IgnoreFileName == "" {
		return nil, nil
	}
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, sc.Err()
}

// matches applies patterns in order; a later negation re-includes a path.
func matches(rel string, isDir bool, patterns []IgnorePattern) bool {
	ignored := false
	for _, p := range patterns {
		if p.Match(rel, isDir) {
			ignored = !p.negate
		}
	}
	return ignored
}

// Scan scans root with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
