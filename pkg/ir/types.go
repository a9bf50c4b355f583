// Package ir defines the read-only program representation consumed by the
// parallelizer: values, instructions, basic blocks, functions and loops.
// It also carries a small in-memory implementation used by the front ends
// and tests.
package ir

import (
	"fmt"
	"strings"
)

// Type is the semantic type of a value.
type Type string

const (
	Void Type = "void" // No value
	I1   Type = "i1"   // Boolean / branch condition
	I8   Type = "i8"   // Byte
	I32  Type = "i32"  // 32-bit integer
	I64  Type = "i64"  // 64-bit integer
	F32  Type = "f32"  // Single precision float
	F64  Type = "f64"  // Double precision float
	Ptr  Type = "ptr"  // Pointer
)

// ByteSize returns the number of bytes needed to carry a value of type t.
func (t Type) ByteSize() int {
	switch t {
	case I1, I8:
		return 1
	case I32, F32:
		return 4
	case I64, F64, Ptr:
		return 8
	default:
		return 0
	}
}

// Opcode identifies the operation an instruction performs.
type Opcode string

const (
	OpPHI    Opcode = "phi"
	OpAdd    Opcode = "add"
	OpSub    Opcode = "sub"
	OpMul    Opcode = "mul"
	OpDiv    Opcode = "div"
	OpRem    Opcode = "rem"
	OpFAdd   Opcode = "fadd"
	OpFSub   Opcode = "fsub"
	OpFMul   Opcode = "fmul"
	OpFDiv   Opcode = "fdiv"
	OpAnd    Opcode = "and"
	OpOr     Opcode = "or"
	OpXor    Opcode = "xor"
	OpShl    Opcode = "shl"
	OpShr    Opcode = "shr"
	OpICmp   Opcode = "icmp"
	OpFCmp   Opcode = "fcmp"
	OpSelect Opcode = "select"
	OpCast   Opcode = "cast"
	OpGEP    Opcode = "gep"
	OpLoad   Opcode = "load"
	OpStore  Opcode = "store"
	OpCall   Opcode = "call"
	OpBr     Opcode = "br"
	OpCondBr Opcode = "condbr"
	OpRet    Opcode = "ret"
)

// Value is anything an instruction can use as an operand.
type Value interface {
	Name() string
	Type() Type
}

// Argument is a function parameter. Arguments live outside every loop.
type Argument struct {
	name string
	typ  Type
}

// NewArgument creates a function argument.
func NewArgument(name string, typ Type) *Argument {
	return &Argument{name: name, typ: typ}
}

func (a *Argument) Name() string { return a.name }
func (a *Argument) Type() Type   { return a.typ }
func (a *Argument) String() string {
	return "%" + a.name
}

// Constant is an immediate operand. Constants never become graph nodes.
type Constant struct {
	Literal string
	typ     Type
}

// Const creates a constant operand.
func Const(literal string, typ Type) *Constant {
	return &Constant{Literal: literal, typ: typ}
}

func (c *Constant) Name() string   { return c.Literal }
func (c *Constant) Type() Type     { return c.typ }
func (c *Constant) String() string { return c.Literal }

// Instruction is a single operation inside a basic block.
type Instruction struct {
	ID       int      // Position of the instruction in its function
	Op       Opcode   // Operation
	Operands []Value  // Used values, in operand order
	Incoming []*Block // PHI only: incoming block of each operand
	Callee   string   // Call only: called function name
	Pure     bool     // Call only: callee neither reads nor writes memory

	name  string
	typ   Type
	block *Block
}

func (i *Instruction) Name() string { return i.name }
func (i *Instruction) Type() Type   { return i.typ }

// Block returns the basic block that contains i.
func (i *Instruction) Block() *Block { return i.block }

// IsPHI reports whether i merges values flowing from several predecessors.
func (i *Instruction) IsPHI() bool { return i.Op == OpPHI }

// IsTerminator reports whether i ends its basic block.
func (i *Instruction) IsTerminator() bool {
	switch i.Op {
	case OpBr, OpCondBr, OpRet:
		return true
	}
	return false
}

// IsBranch reports whether i transfers control to another block.
func (i *Instruction) IsBranch() bool {
	return i.Op == OpBr || i.Op == OpCondBr
}

// MayReadMemory reports whether i may read memory.
func (i *Instruction) MayReadMemory() bool {
	return i.Op == OpLoad || (i.Op == OpCall && !i.Pure)
}

// MayWriteMemory reports whether i may write memory.
func (i *Instruction) MayWriteMemory() bool {
	return i.Op == OpStore || (i.Op == OpCall && !i.Pure)
}

// AccessesMemory reports whether i reads or writes memory.
func (i *Instruction) AccessesMemory() bool {
	return i.MayReadMemory() || i.MayWriteMemory()
}

// HasSideEffects reports whether executing i twice is observable.
func (i *Instruction) HasSideEffects() bool {
	return i.MayWriteMemory() || i.Op == OpRet
}

// PointerOperand returns the address a load or store accesses, or nil.
func (i *Instruction) PointerOperand() Value {
	switch i.Op {
	case OpLoad:
		if len(i.Operands) > 0 {
			return i.Operands[0]
		}
	case OpStore:
		if len(i.Operands) > 1 {
			return i.Operands[1]
		}
	}
	return nil
}

// Condition returns the branch condition of a conditional branch, or nil.
func (i *Instruction) Condition() Value {
	if i.Op == OpCondBr && len(i.Operands) > 0 {
		return i.Operands[0]
	}
	return nil
}

// IncomingValueFor returns the PHI operand flowing in from block b.
func (i *Instruction) IncomingValueFor(b *Block) (Value, int) {
	for idx, in := range i.Incoming {
		if in == b {
			return i.Operands[idx], idx
		}
	}
	return nil, -1
}

// AddIncoming appends an incoming (value, block) pair to a PHI.
func (i *Instruction) AddIncoming(v Value, from *Block) {
	i.Operands = append(i.Operands, v)
	i.Incoming = append(i.Incoming, from)
}

func (i *Instruction) String() string {
	var sb strings.Builder
	if i.typ != Void && i.name != "" {
		fmt.Fprintf(&sb, "%%%s = ", i.name)
	}
	sb.WriteString(string(i.Op))
	if i.typ != Void {
		sb.WriteString(" " + string(i.typ))
	}
	if i.Callee != "" {
		sb.WriteString(" @" + i.Callee)
	}
	for idx, op := range i.Operands {
		if idx > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(" " + operandString(op))
		if i.IsPHI() && idx < len(i.Incoming) {
			sb.WriteString(" [" + i.Incoming[idx].Name + "]")
		}
	}
	if i.IsBranch() && i.block != nil {
		for _, s := range i.block.Succs {
			sb.WriteString(" ->" + s.Name)
		}
	}
	return sb.String()
}

func operandString(v Value) string {
	if v == nil {
		return "<nil>"
	}
	if _, ok := v.(*Constant); ok {
		return v.Name()
	}
	return "%" + v.Name()
}

// Label returns a printable name for v: its name when it has one, the
// literal for constants, or opcode#ID for anonymous instructions.
func Label(v Value) string {
	if v == nil {
		return "<nil>"
	}
	if v.Name() != "" {
		return v.Name()
	}
	if inst, ok := v.(*Instruction); ok {
		return fmt.Sprintf("%s#%d", inst.Op, inst.ID)
	}
	return "?"
}
