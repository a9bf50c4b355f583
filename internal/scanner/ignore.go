package scanner

import (
	"path"
	"strings"
)

// IgnorePattern is one gitignore-style line.
type IgnorePattern struct {
	raw      string
	negate   bool // !pattern
	dirOnly  bool // pattern/
	anchored bool // contains a slash before the end, matched from the base
	base     string
	segments []string
}

// ParseIgnorePattern parses a gitignore-style pattern.
func ParseIgnorePattern(line string) IgnorePattern {
	p := IgnorePattern{raw: line}
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.Contains(line, "/") {
		p.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	p.segments = strings.Split(line, "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string { return p.raw }

// IsNegation reports whether the pattern re-includes what it matches.
func (p IgnorePattern) IsNegation() bool { return p.negate }

// under rebases a pattern read from the ignore file of directory dir.
func (p IgnorePattern) under(dir string) IgnorePattern {
	p.base = dir
	return p
}

// Match reports whether rel, a slash-separated path relative to the scan
// root, matches. A path also matches when one of its parent directories
// does.
func (p IgnorePattern) Match(rel string, isDir bool) bool {
	if p.base != "" {
		if !strings.HasPrefix(rel, p.base+"/") {
			return false
		}
		rel = strings.TrimPrefix(rel, p.base+"/")
	}
	parts := strings.Split(rel, "/")
	for end := len(parts); end > 0; end-- {
		// parents of rel are directories
		if p.dirOnly && end == len(parts) && !isDir {
			continue
		}
		if p.matchPrefix(parts[:end]) {
			return true
		}
	}
	return false
}

func (p IgnorePattern) matchPrefix(parts []string) bool {
	if p.anchored {
		return matchSegments(p.segments, parts)
	}
	// unanchored patterns match the last element at any depth
	return matchSegments(p.segments, parts[len(parts)-1:])
}

// matchSegments matches glob segments, with ** spanning any number of
// path elements.
func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], parts[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}
