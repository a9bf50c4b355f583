package ir

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FunctionDoc is the YAML description of a function.
//
//	name: sum
//	args: [{name: a, type: ptr}, {name: n, type: i64}]
//	blocks:
//	  - name: entry
//	    instrs:
//	      - {op: br, succs: [header]}
type FunctionDoc struct {
	Name   string     `yaml:"name"`
	Args   []ValueDoc `yaml:"args"`
	Blocks []BlockDoc `yaml:"blocks"`
}

// ValueDoc names a typed value.
type ValueDoc struct {
	Name string `yaml:"name"`
	Type Type   `yaml:"type"`
}

// BlockDoc is the YAML description of a basic block.
type BlockDoc struct {
	Name   string     `yaml:"name"`
	Instrs []InstrDoc `yaml:"instrs"`
}

// InstrDoc is the YAML description of one instruction. Operands name
// arguments or instructions; anything else is read as a constant literal.
type InstrDoc struct {
	Name     string        `yaml:"name,omitempty"`
	Op       Opcode        `yaml:"op"`
	Type     Type          `yaml:"type,omitempty"`
	Operands []string      `yaml:"operands,omitempty"`
	Incoming []IncomingDoc `yaml:"incoming,omitempty"` // PHI only
	Succs    []string      `yaml:"succs,omitempty"`    // Terminators only
	Callee   string        `yaml:"callee,omitempty"`
	Pure     bool          `yaml:"pure,omitempty"`
}

// IncomingDoc is one PHI incoming pair.
type IncomingDoc struct {
	Value string `yaml:"value"`
	Block string `yaml:"block"`
}

// LoadFunction reads a YAML function description from path.
func LoadFunction(path string) (*Function, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read function file %s: %w", path, err)
	}
	fn, err := ParseFunction(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse function file %s: %w", path, err)
	}
	return fn, nil
}

// ParseFunction builds a Function from its YAML description.
func ParseFunction(data []byte) (*Function, error) {
	var doc FunctionDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Build()
}

// Build materializes the description. Instructions are created first so
// operands may refer forward (PHIs usually do).
func (doc *FunctionDoc) Build() (*Function, error) {
	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("function %q has no blocks", doc.Name)
	}

	fn := NewFunction(doc.Name)
	values := make(map[string]Value)
	for _, a := range doc.Args {
		arg := NewArgument(a.Name, a.Type)
		fn.Args = append(fn.Args, arg)
		values[a.Name] = arg
	}
	for _, bd := range doc.Blocks {
		if fn.Block(bd.Name) != nil {
			return nil, fmt.Errorf("duplicate block %q", bd.Name)
		}
		fn.NewBlock(bd.Name)
	}

	insts := make([]*Instruction, 0)
	for bi, bd := range doc.Blocks {
		b := fn.Blocks[bi]
		for _, id := range bd.Instrs {
			typ := id.Type
			if typ == "" {
				typ = Void
			}
			inst := b.Append(id.Op, id.Name, typ)
			inst.Callee = id.Callee
			inst.Pure = id.Pure
			if id.Name != "" {
				if _, dup := values[id.Name]; dup {
					return nil, fmt.Errorf("duplicate value %q", id.Name)
				}
				values[id.Name] = inst
			}
			insts = append(insts, inst)
		}
	}

	resolve := func(name string, typ Type) Value {
		if v, ok := values[name]; ok {
			return v
		}
		return Const(name, literalType(name, typ))
	}

	idx := 0
	for bi, bd := range doc.Blocks {
		b := fn.Blocks[bi]
		for _, id := range bd.Instrs {
			inst := insts[idx]
			idx++
			for _, op := range id.Operands {
				inst.Operands = append(inst.Operands, resolve(op, inst.Type()))
			}
			for _, in := range id.Incoming {
				from := fn.Block(in.Block)
				if from == nil {
					return nil, fmt.Errorf("phi %q: unknown incoming block %q", id.Name, in.Block)
				}
				inst.AddIncoming(resolve(in.Value, inst.Type()), from)
			}
			for _, s := range id.Succs {
				to := fn.Block(s)
				if to == nil {
					return nil, fmt.Errorf("block %q: unknown successor %q", b.Name, s)
				}
				fn.Link(b, to)
			}
		}
	}
	return fn, nil
}

func literalType(lit string, hint Type) Type {
	if hint != Void && hint != "" && hint != I1 {
		return hint
	}
	if _, err := strconv.ParseInt(lit, 0, 64); err == nil {
		return I64
	}
	if _, err := strconv.ParseFloat(lit, 64); err == nil {
		return F64
	}
	return I64
}
