package ir

import (
	"fmt"
	"strings"
)

// Block is a basic block: a straight-line instruction sequence ending in a
// terminator, with explicit predecessor and successor lists.
type Block struct {
	Name   string         // Unique label inside the function
	Instrs []*Instruction // Instructions in program order
	Preds  []*Block       // Predecessor blocks, in link order
	Succs  []*Block       // Successor blocks, in link order

	fn *Function
}

// Function returns the function containing b.
func (b *Block) Function() *Function { return b.fn }

// Terminator returns the last instruction of b if it is a terminator.
func (b *Block) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

// PredIndex returns the position of pred in b's predecessor list, or -1.
func (b *Block) PredIndex(pred *Block) int {
	for i, p := range b.Preds {
		if p == pred {
			return i
		}
	}
	return -1
}

// Append adds a new instruction at the end of b.
func (b *Block) Append(op Opcode, name string, typ Type, operands ...Value) *Instruction {
	inst := &Instruction{
		ID:       b.fn.nextID,
		Op:       op,
		Operands: operands,
		name:     name,
		typ:      typ,
		block:    b,
	}
	b.fn.nextID++
	b.Instrs = append(b.Instrs, inst)
	return inst
}

// Incoming is one (value, predecessor) pair of a PHI.
type Incoming struct {
	Value Value
	Block *Block
}

// AppendPHI adds a PHI node at the end of b's PHI prefix.
func (b *Block) AppendPHI(name string, typ Type, incoming ...Incoming) *Instruction {
	inst := &Instruction{
		ID:    b.fn.nextID,
		Op:    OpPHI,
		name:  name,
		typ:   typ,
		block: b,
	}
	b.fn.nextID++
	for _, in := range incoming {
		inst.AddIncoming(in.Value, in.Block)
	}

	pos := 0
	for pos < len(b.Instrs) && b.Instrs[pos].IsPHI() {
		pos++
	}
	b.Instrs = append(b.Instrs, nil)
	copy(b.Instrs[pos+1:], b.Instrs[pos:])
	b.Instrs[pos] = inst
	return inst
}

// Branch terminates b with an unconditional branch to target.
func (b *Block) Branch(target *Block) *Instruction {
	inst := b.Append(OpBr, "", Void)
	b.fn.Link(b, target)
	return inst
}

// CondBranch terminates b with a two-way branch on cond.
func (b *Block) CondBranch(cond Value, ifTrue, ifFalse *Block) *Instruction {
	inst := b.Append(OpCondBr, "", Void, cond)
	b.fn.Link(b, ifTrue)
	b.fn.Link(b, ifFalse)
	return inst
}

// Function is a list of basic blocks; the first block is the entry.
type Function struct {
	Name   string
	Args   []*Argument
	Blocks []*Block

	nextID int
}

// NewFunction creates an empty function.
func NewFunction(name string, args ...*Argument) *Function {
	return &Function{Name: name, Args: args}
}

// NewBlock appends a new empty block to f.
func (f *Function) NewBlock(name string) *Block {
	b := &Block{Name: name, fn: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Entry returns the entry block, or nil for an empty function.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// Block returns the block named name, or nil.
func (f *Function) Block(name string) *Block {
	for _, b := range f.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Argument returns the argument named name, or nil.
func (f *Function) Argument(name string) *Argument {
	for _, a := range f.Args {
		if a.name == name {
			return a
		}
	}
	return nil
}

// Link adds the control-flow edge from -> to.
func (f *Function) Link(from, to *Block) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

// Instructions returns every instruction of f in block order.
func (f *Function) Instructions() []*Instruction {
	var out []*Instruction
	for _, b := range f.Blocks {
		out = append(out, b.Instrs...)
	}
	return out
}

// Instruction returns the instruction named name, or nil.
func (f *Function) Instruction(name string) *Instruction {
	for _, b := range f.Blocks {
		for _, i := range b.Instrs {
			if i.name == name {
				return i
			}
		}
	}
	return nil
}

// Users returns the instructions of f that use v as an operand.
func (f *Function) Users(v Value) []*Instruction {
	var users []*Instruction
	for _, b := range f.Blocks {
		for _, i := range b.Instrs {
			for _, op := range i.Operands {
				if op == v {
					users = append(users, i)
					break
				}
			}
		}
	}
	return users
}

// String renders f in a compact textual form.
func (f *Function) String() string {
	var sb strings.Builder
	args := make([]string, 0, len(f.Args))
	for _, a := range f.Args {
		args = append(args, fmt.Sprintf("%s %%%s", a.typ, a.name))
	}
	fmt.Fprintf(&sb, "func %s(%s) {\n", f.Name, strings.Join(args, ", "))
	for _, b := range f.Blocks {
		fmt.Fprintf(&sb, "%s:\n", b.Name)
		for _, i := range b.Instrs {
			fmt.Fprintf(&sb, "  %s\n", i)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
