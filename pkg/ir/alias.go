package ir

// AliasResult is the answer of an alias query between two memory operations.
type AliasResult int

const (
	NoAlias AliasResult = iota
	MayAlias
	MustAlias
)

func (r AliasResult) String() string {
	switch r {
	case NoAlias:
		return "no"
	case MayAlias:
		return "may"
	case MustAlias:
		return "must"
	default:
		return "unknown"
	}
}

// AliasOracle answers whether two memory operations may touch the same
// location.
type AliasOracle interface {
	Alias(a, b *Instruction) AliasResult
}

// AliasFunc adapts a function to the AliasOracle interface.
type AliasFunc func(a, b *Instruction) AliasResult

func (f AliasFunc) Alias(a, b *Instruction) AliasResult { return f(a, b) }

// BaseAlias is a conservative oracle over address expressions. Identical
// addresses must alias, addresses derived from the same base object may
// alias, and distinct base objects are assumed disjoint (as with
// restrict-qualified arguments). Impure calls may alias everything.
type BaseAlias struct{}

func (BaseAlias) Alias(a, b *Instruction) AliasResult {
	if !a.AccessesMemory() || !b.AccessesMemory() {
		return NoAlias
	}
	if a.Op == OpCall || b.Op == OpCall {
		return MayAlias
	}

	pa, pb := a.PointerOperand(), b.PointerOperand()
	if pa == nil || pb == nil {
		return MayAlias
	}
	if pa == pb || sameAddress(pa, pb) {
		return MustAlias
	}
	if baseObject(pa) == baseObject(pb) {
		return MayAlias
	}
	return NoAlias
}

// baseObject strips address arithmetic down to the underlying object.
func baseObject(v Value) Value {
	for {
		inst, ok := v.(*Instruction)
		if !ok || inst.Op != OpGEP || len(inst.Operands) == 0 {
			return v
		}
		v = inst.Operands[0]
	}
}

func sameAddress(a, b Value) bool {
	ga, ok := a.(*Instruction)
	if !ok || ga.Op != OpGEP {
		return false
	}
	gb, ok := b.(*Instruction)
	if !ok || gb.Op != OpGEP || len(ga.Operands) != len(gb.Operands) {
		return false
	}
	for i := range ga.Operands {
		if !sameOperand(ga.Operands[i], gb.Operands[i]) {
			return false
		}
	}
	return true
}

func sameOperand(a, b Value) bool {
	if a == b {
		return true
	}
	ca, ok := a.(*Constant)
	if !ok {
		return false
	}
	cb, ok := b.(*Constant)
	return ok && ca.Literal == cb.Literal
}
