// Package irtest builds small canonical loops for tests.
package irtest

import "github.com/l3aro/go-loop-parallel/pkg/ir"

// Loop is a counted loop `for i := 0; i < n; i++ { body }` laid out as
//
//	entry -> header -> body -> ... -> latch -> header
//	         header -> exit
//
// The body callback may add blocks; whatever block it returns becomes the
// latch that increments i and branches back.
type Loop struct {
	Fn     *ir.Function
	Loop   *ir.Loop
	Entry  *ir.Block
	Header *ir.Block
	Body   *ir.Block
	Latch  *ir.Block
	Exit   *ir.Block

	N    *ir.Argument
	IV   *ir.Instruction // i
	Next *ir.Instruction // i + 1
	Cmp  *ir.Instruction // i < n
	Br   *ir.Instruction // header conditional branch

	values map[string]ir.Value
}

// Value returns a named value created by the body callback.
func (l *Loop) Value(name string) ir.Value {
	return l.values[name]
}

// Inst returns a named instruction created by the body callback.
func (l *Loop) Inst(name string) *ir.Instruction {
	v, _ := l.values[name].(*ir.Instruction)
	return v
}

// Counted builds a counted loop. args are added after n.
func Counted(name string, args []*ir.Argument, body func(l *Loop, b *ir.Block) *ir.Block) *Loop {
	n := ir.NewArgument("n", ir.I64)
	fn := ir.NewFunction(name, append([]*ir.Argument{n}, args...)...)
	l := &Loop{Fn: fn, N: n, values: make(map[string]ir.Value)}

	l.Entry = fn.NewBlock("entry")
	l.Header = fn.NewBlock("header")
	l.Body = fn.NewBlock("body")

	l.Entry.Branch(l.Header)
	l.IV = l.Header.AppendPHI("i", ir.I64, ir.Incoming{Value: ir.Const("0", ir.I64), Block: l.Entry})
	l.Cmp = l.Header.Append(ir.OpICmp, "cmp", ir.I1, l.IV, n)

	latch := l.Body
	if body != nil {
		latch = body(l, l.Body)
	}
	l.Latch = latch
	l.Next = latch.Append(ir.OpAdd, "i.next", ir.I64, l.IV, ir.Const("1", ir.I64))
	latch.Branch(l.Header)
	l.IV.AddIncoming(l.Next, latch)

	l.Exit = fn.NewBlock("exit")
	l.Br = l.Header.CondBranch(l.Cmp, l.Body, l.Exit)
	for _, inst := range fn.Instructions() {
		if inst.Name() != "" {
			l.values[inst.Name()] = inst
		}
	}

	loops := ir.FindLoops(fn)
	if len(loops) > 0 {
		l.Loop = loops[0]
	}
	return l
}

// finish terminates the exit block with a return of v (nil for void).
func (l *Loop) finish(v ir.Value) *Loop {
	if v == nil {
		l.Exit.Append(ir.OpRet, "", ir.Void)
	} else {
		l.Exit.Append(ir.OpRet, "", ir.Void, v)
	}
	return l
}

// Chain builds y[i] = x[i]*2 + 1: a load, two arithmetic steps and a
// store forming the dependence chain a -> b -> c -> d.
func Chain() *Loop {
	x := ir.NewArgument("x", ir.Ptr)
	y := ir.NewArgument("y", ir.Ptr)
	l := Counted("chain", []*ir.Argument{x, y}, func(l *Loop, b *ir.Block) *ir.Block {
		px := b.Append(ir.OpGEP, "px", ir.Ptr, x, l.IV)
		a := b.Append(ir.OpLoad, "a", ir.I64, px)
		bb := b.Append(ir.OpMul, "b", ir.I64, a, ir.Const("2", ir.I64))
		c := b.Append(ir.OpAdd, "c", ir.I64, bb, ir.Const("1", ir.I64))
		py := b.Append(ir.OpGEP, "py", ir.Ptr, y, l.IV)
		b.Append(ir.OpStore, "d", ir.Void, c, py)
		return b
	})
	return l.finish(nil)
}

// Sum builds s += x[i] and returns s after the loop.
func Sum() *Loop {
	x := ir.NewArgument("x", ir.Ptr)
	var acc *ir.Instruction
	l := Counted("sum", []*ir.Argument{x}, func(l *Loop, b *ir.Block) *ir.Block {
		acc = l.Header.AppendPHI("s", ir.I64, ir.Incoming{Value: ir.Const("0", ir.I64), Block: l.Entry})
		px := b.Append(ir.OpGEP, "px", ir.Ptr, x, l.IV)
		v := b.Append(ir.OpLoad, "v", ir.I64, px)
		next := b.Append(ir.OpAdd, "s.next", ir.I64, acc, v)
		acc.AddIncoming(next, b)
		return b
	})
	return l.finish(acc)
}

// Segments builds a loop with two independent order-sensitive regions: an
// impure call and a non-associative recurrence t = t / 3.
func Segments() *Loop {
	var t *ir.Instruction
	l := Counted("segments", nil, func(l *Loop, b *ir.Block) *ir.Block {
		emit := b.Append(ir.OpCall, "emit", ir.Void, l.IV)
		emit.Callee = "emit"
		t = l.Header.AppendPHI("t", ir.I64, ir.Incoming{Value: ir.Const("1000", ir.I64), Block: l.Entry})
		next := b.Append(ir.OpDiv, "t.next", ir.I64, t, ir.Const("3", ir.I64))
		t.AddIncoming(next, b)
		return b
	})
	return l.finish(t)
}

// Diamond builds
//
//	v := x[i]
//	if v > 0 { r = v * 2 } else { r = v + 1 }
//	y[i] = r
//
// so the join PHI r is fed by two producers on different paths.
func Diamond() *Loop {
	x := ir.NewArgument("x", ir.Ptr)
	y := ir.NewArgument("y", ir.Ptr)
	l := Counted("diamond", []*ir.Argument{x, y}, func(l *Loop, b *ir.Block) *ir.Block {
		fn := l.Fn
		then := fn.NewBlock("then")
		els := fn.NewBlock("else")
		join := fn.NewBlock("join")

		px := b.Append(ir.OpGEP, "px", ir.Ptr, x, l.IV)
		v := b.Append(ir.OpLoad, "v", ir.I64, px)
		pos := b.Append(ir.OpICmp, "pos", ir.I1, v, ir.Const("0", ir.I64))
		b.CondBranch(pos, then, els)

		p := then.Append(ir.OpMul, "p", ir.I64, v, ir.Const("2", ir.I64))
		then.Branch(join)
		q := els.Append(ir.OpAdd, "q", ir.I64, v, ir.Const("1", ir.I64))
		els.Branch(join)

		r := join.AppendPHI("r", ir.I64,
			ir.Incoming{Value: p, Block: then},
			ir.Incoming{Value: q, Block: els})
		py := join.Append(ir.OpGEP, "py", ir.Ptr, y, l.IV)
		join.Append(ir.OpStore, "st", ir.Void, r, py)
		return join
	})
	return l.finish(nil)
}

// EarlyExit builds a search loop that leaves through either the header or
// a break when x[i] == key, returning the index.
func EarlyExit() *Loop {
	x := ir.NewArgument("x", ir.Ptr)
	key := ir.NewArgument("key", ir.I64)
	var found *ir.Block
	l := Counted("search", []*ir.Argument{x, key}, func(l *Loop, b *ir.Block) *ir.Block {
		found = l.Fn.NewBlock("found")
		latch := l.Fn.NewBlock("latch")
		px := b.Append(ir.OpGEP, "px", ir.Ptr, x, l.IV)
		v := b.Append(ir.OpLoad, "v", ir.I64, px)
		hit := b.Append(ir.OpICmp, "hit", ir.I1, v, key)
		b.CondBranch(hit, found, latch)
		return latch
	})
	found.Append(ir.OpRet, "", ir.Void, l.IV)
	return l.finish(ir.Const("-1", ir.I64))
}
