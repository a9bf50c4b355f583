package sccattr

import "github.com/l3aro/go-loop-parallel/pkg/ir"

// AccumulatorPolicy recognizes accumulation instructions and names the
// reduction they perform.
type AccumulatorPolicy interface {
	// IsAccumulator reports whether inst folds a value into a running result.
	IsAccumulator(inst *ir.Instruction) bool
	// Identity returns the neutral element of op, if op is a reduction.
	Identity(op ir.Opcode) (string, bool)
}

// OpSet is an AccumulatorPolicy over a fixed set of associative and
// commutative opcodes, mapped to their identity literal.
type OpSet map[ir.Opcode]string

// DefaultAccumulators recognizes integer and floating point sums and
// products plus the bitwise and, or, xor.
var DefaultAccumulators = OpSet{
	ir.OpAdd:  "0",
	ir.OpFAdd: "0.0",
	ir.OpMul:  "1",
	ir.OpFMul: "1.0",
	ir.OpAnd:  "-1",
	ir.OpOr:   "0",
	ir.OpXor:  "0",
}

func (s OpSet) IsAccumulator(inst *ir.Instruction) bool {
	_, ok := s[inst.Op]
	return ok
}

func (s OpSet) Identity(op ir.Opcode) (string, bool) {
	id, ok := s[op]
	return id, ok
}
