// Package frontend turns source files into IR functions: YAML function
// descriptions and Go source lowered with tree-sitter.
package frontend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-loop-parallel/pkg/ir"
)

// Load reads the function funcName from path, choosing the reader by file
// extension. YAML files describe a single function and ignore funcName.
func Load(path, funcName string) (*ir.Function, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ir.LoadFunction(path)
	case ".go":
		return LoadGo(path, funcName)
	}
	return nil, fmt.Errorf("unsupported input file %s: want .go, .yaml or .yml", path)
}

// Functions lists the functions of path worth planning: those with at
// least one loop.
func Functions(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		fn, err := ir.LoadFunction(path)
		if err != nil {
			return nil, err
		}
		if len(ir.FindLoops(fn)) == 0 {
			return nil, nil
		}
		return []string{fn.Name}, nil
	case ".go":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", path, err)
		}
		return GoLoopingFunctions(content)
	}
	return nil, fmt.Errorf("unsupported input file %s: want .go, .yaml or .yml", path)
}
