package frontend

import (
	"errors"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/l3aro/go-loop-parallel/pkg/ir"
)

var (
	// ErrUnsupported is returned for Go constructs the lowering does not
	// model.
	ErrUnsupported = errors.New("unsupported construct")

	// ErrFunctionNotFound is returned when the requested function is not
	// declared in the source.
	ErrFunctionNotFound = errors.New("function not found")
)

// PureFunctions are the callees known to neither read nor write memory,
// with their result type. An empty type means the type of the first
// argument.
var PureFunctions = map[string]ir.Type{
	"len":        ir.I64,
	"cap":        ir.I64,
	"min":        "",
	"max":        "",
	"math.Abs":   ir.F64,
	"math.Sqrt":  ir.F64,
	"math.Exp":   ir.F64,
	"math.Log":   ir.F64,
	"math.Sin":   ir.F64,
	"math.Cos":   ir.F64,
	"math.Floor": ir.F64,
}

// LoadGo reads path and lowers the function funcName.
func LoadGo(path, funcName string) (*ir.Function, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return ParseGo(content, funcName)
}

// ParseGo lowers the function funcName of a Go source file. An empty name
// selects the first function containing a for loop.
//
// The lowering covers scalar locals, slice parameters indexed by a single
// subscript, if/else, counted and condition-only for loops with break and
// continue, returns and calls. Variables are renamed into SSA form; block
// scoping and shadowing are not modeled, and && and || do not
// short-circuit.
func ParseGo(content []byte, funcName string) (*ir.Function, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree := parser.Parse(nil, content)
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, errors.New("syntax error in Go source")
	}
	funcNode := findFunction(root, funcName, content)
	if funcNode == nil {
		if funcName == "" {
			return nil, fmt.Errorf("%w: no function with a for loop", ErrFunctionNotFound)
		}
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, funcName)
	}
	return newLowerer(content).lowerFunction(funcNode)
}

// GoLoopingFunctions lists, in source order, the functions of a Go file
// that contain a for loop.
func GoLoopingFunctions(content []byte) ([]string, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree := parser.Parse(nil, content)
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, errors.New("syntax error in Go source")
	}
	var names []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child != nil && child.Type() == "function_declaration" && containsType(child, "for_statement") {
			names = append(names, nodeText(child.ChildByFieldName("name"), content))
		}
	}
	return names, nil
}

func findFunction(root *sitter.Node, funcName string, content []byte) *sitter.Node {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil || child.Type() != "function_declaration" {
			continue
		}
		name := nodeText(child.ChildByFieldName("name"), content)
		if funcName == "" && containsType(child, "for_statement") {
			return child
		}
		if funcName != "" && name == funcName {
			return child
		}
	}
	return nil
}

// varInfo is what the lowering knows about a variable's Go type.
type varInfo struct {
	typ  ir.Type
	elem ir.Type // element type of slices, arrays and pointers
}

// site is a control transfer into a merge block with the variable
// bindings it carries.
type site struct {
	block *ir.Block
	vars  map[string]ir.Value
}

type loopCtx struct {
	exit      *ir.Block
	latch     *ir.Block
	breaks    []site
	continues []site
}

type lowerer struct {
	content []byte
	fn      *ir.Function
	cur     *ir.Block // nil after a terminator

	vars  map[string]ir.Value
	order []string // variable names in definition order
	info  map[string]varInfo

	names  map[string]int
	temps  int
	blocks map[string]int
	loops  []*loopCtx
}

func newLowerer(content []byte) *lowerer {
	return &lowerer{
		content: content,
		vars:    make(map[string]ir.Value),
		info:    make(map[string]varInfo),
		names:   make(map[string]int),
		blocks:  make(map[string]int),
	}
}

func (l *lowerer) text(n *sitter.Node) string { return nodeText(n, l.content) }

func (l *lowerer) unsupported(n *sitter.Node) error {
	return fmt.Errorf("%w: %s at line %d", ErrUnsupported, n.Type(), n.StartPoint().Row+1)
}

// name returns base for its first use and base.N afterwards.
func (l *lowerer) name(base string) string {
	if base == "" {
		l.temps++
		return fmt.Sprintf("t%d", l.temps)
	}
	n := l.names[base]
	l.names[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s.%d", base, n)
}

func (l *lowerer) newBlock(base string) *ir.Block {
	n := l.blocks[base]
	l.blocks[base] = n + 1
	if n > 0 {
		base = fmt.Sprintf("%s.%d", base, n)
	}
	return l.fn.NewBlock(base)
}

// dropBlock removes a block nothing branches to.
func (l *lowerer) dropBlock(b *ir.Block) {
	kept := l.fn.Blocks[:0]
	for _, other := range l.fn.Blocks {
		if other != b {
			kept = append(kept, other)
		}
	}
	l.fn.Blocks = kept
}

func (l *lowerer) define(name string, v ir.Value, info varInfo) {
	if name == "_" {
		return
	}
	if _, ok := l.vars[name]; !ok {
		l.order = append(l.order, name)
	}
	l.vars[name] = v
	l.info[name] = info
}

func (l *lowerer) snapshot() map[string]ir.Value { return copyVars(l.vars) }

func copyVars(vars map[string]ir.Value) map[string]ir.Value {
	out := make(map[string]ir.Value, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// merge joins the bindings flowing into target. Variables missing from a
// site went out of scope; variables bound differently get a PHI.
func (l *lowerer) merge(target *ir.Block, sites []site) map[string]ir.Value {
	out := make(map[string]ir.Value)
	for _, name := range l.order {
		first, ok := sites[0].vars[name]
		if !ok {
			continue
		}
		same, everywhere := true, true
		for _, s := range sites[1:] {
			v, ok := s.vars[name]
			if !ok {
				everywhere = false
				break
			}
			same = same && v == first
		}
		switch {
		case !everywhere:
		case same:
			out[name] = first
		default:
			phi := target.AppendPHI(l.name(name), first.Type())
			for _, s := range sites {
				phi.AddIncoming(s.vars[name], s.block)
			}
			out[name] = phi
		}
	}
	return out
}

func (l *lowerer) lowerFunction(n *sitter.Node) (*ir.Function, error) {
	var args []*ir.Argument
	var infos []varInfo
	params := n.ChildByFieldName("parameters")
	for i := 0; params != nil && i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.Type() == "comment" {
			continue
		}
		if p.Type() != "parameter_declaration" {
			return nil, l.unsupported(p)
		}
		info, err := l.goType(p.ChildByFieldName("type"))
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(p.NamedChildCount()); j++ {
			if id := p.NamedChild(j); id.Type() == "identifier" {
				args = append(args, ir.NewArgument(l.text(id), info.typ))
				infos = append(infos, info)
			}
		}
	}

	l.fn = ir.NewFunction(l.text(n.ChildByFieldName("name")), args...)
	for i, a := range args {
		l.define(a.Name(), a, infos[i])
		l.names[a.Name()] = 1
	}

	l.cur = l.newBlock("entry")
	if err := l.lowerBlock(n.ChildByFieldName("body")); err != nil {
		return nil, err
	}
	if l.cur != nil {
		l.cur.Append(ir.OpRet, "", ir.Void)
	}
	return l.fn, nil
}

func (l *lowerer) goType(n *sitter.Node) (varInfo, error) {
	if n == nil {
		return varInfo{typ: ir.Void}, nil
	}
	switch n.Type() {
	case "type_identifier":
		if t, ok := basicType(l.text(n)); ok {
			return varInfo{typ: t}, nil
		}
	case "slice_type", "array_type":
		elem, err := l.goType(n.ChildByFieldName("element"))
		if err != nil {
			return varInfo{}, err
		}
		return varInfo{typ: ir.Ptr, elem: elem.typ}, nil
	case "pointer_type":
		elem, err := l.goType(n.NamedChild(0))
		if err != nil {
			return varInfo{}, err
		}
		return varInfo{typ: ir.Ptr, elem: elem.typ}, nil
	}
	return varInfo{}, l.unsupported(n)
}

func basicType(name string) (ir.Type, bool) {
	switch name {
	case "int", "int64", "uint", "uint64", "uintptr":
		return ir.I64, true
	case "int32", "uint32", "rune":
		return ir.I32, true
	case "int8", "uint8", "byte":
		return ir.I8, true
	case "int16", "uint16":
		return ir.I32, true
	case "bool":
		return ir.I1, true
	case "float64":
		return ir.F64, true
	case "float32":
		return ir.F32, true
	}
	return "", false
}

// statements flattens a block into its statements.
func statements(block *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; block != nil && i < int(block.NamedChildCount()); i++ {
		child := block.NamedChild(i)
		switch child.Type() {
		case "comment", "empty_statement":
		case "statement_list":
			out = append(out, statements(child)...)
		default:
			out = append(out, child)
		}
	}
	return out
}

func (l *lowerer) lowerBlock(block *sitter.Node) error {
	for _, stmt := range statements(block) {
		if l.cur == nil {
			return nil
		}
		if err := l.lowerStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) lowerStmt(n *sitter.Node) error {
	switch n.Type() {
	case "short_var_declaration":
		return l.lowerShortVar(n)
	case "assignment_statement":
		op := strings.TrimSuffix(n.ChildByFieldName("operator").Type(), "=")
		lefts, rights := exprList(n.ChildByFieldName("left")), exprList(n.ChildByFieldName("right"))
		if len(lefts) != len(rights) {
			return l.unsupported(n)
		}
		for i := range lefts {
			if err := l.assign(lefts[i], op, rights[i]); err != nil {
				return err
			}
		}
		return nil
	case "inc_statement", "dec_statement":
		op := "+"
		if n.Type() == "dec_statement" {
			op = "-"
		}
		return l.assign(n.NamedChild(0), op, nil)
	case "var_declaration":
		return l.lowerVar(n)
	case "expression_statement":
		e := n.NamedChild(0)
		if e.Type() != "call_expression" {
			return l.unsupported(e)
		}
		_, err := l.lowerCall(e, "", true)
		return err
	case "if_statement":
		return l.lowerIf(n)
	case "for_statement":
		return l.lowerFor(n)
	case "break_statement", "continue_statement":
		return l.lowerJump(n)
	case "return_statement":
		var ops []ir.Value
		if n.NamedChildCount() > 0 {
			vals := exprList(n.NamedChild(0))
			if len(vals) > 1 {
				return l.unsupported(n)
			}
			v, err := l.lowerExpr(vals[0], "")
			if err != nil {
				return err
			}
			ops = append(ops, v)
		}
		l.cur.Append(ir.OpRet, "", ir.Void, ops...)
		l.cur = nil
		return nil
	case "block":
		return l.lowerBlock(n)
	}
	return l.unsupported(n)
}

func (l *lowerer) lowerShortVar(n *sitter.Node) error {
	lefts, rights := exprList(n.ChildByFieldName("left")), exprList(n.ChildByFieldName("right"))
	if len(lefts) != len(rights) {
		return l.unsupported(n)
	}
	for i := range lefts {
		name := l.text(lefts[i])
		v, err := l.lowerExpr(rights[i], name)
		if err != nil {
			return err
		}
		info := varInfo{typ: v.Type()}
		if rights[i].Type() == "identifier" {
			if src, ok := l.info[l.text(rights[i])]; ok {
				info = src
			}
		}
		l.define(name, v, info)
	}
	return nil
}

func (l *lowerer) lowerVar(n *sitter.Node) error {
	for _, spec := range descendants(n, "var_spec") {
		info, err := l.goType(spec.ChildByFieldName("type"))
		if err != nil {
			return err
		}
		var values []*sitter.Node
		if v := spec.ChildByFieldName("value"); v != nil {
			values = exprList(v)
		}
		var names []string
		for i := 0; i < int(spec.NamedChildCount()); i++ {
			if id := spec.NamedChild(i); id.Type() == "identifier" {
				names = append(names, l.text(id))
			}
		}
		for i, name := range names {
			var v ir.Value = ir.Const("0", info.typ)
			if i < len(values) {
				if v, err = l.lowerExpr(values[i], name); err != nil {
					return err
				}
			}
			l.define(name, v, info)
		}
	}
	return nil
}

// assign lowers `lhs op= rhs`; an empty op is plain assignment and a nil
// rhs means the constant 1 (increment and decrement).
func (l *lowerer) assign(lhs *sitter.Node, op string, rhs *sitter.Node) error {
	base := ""
	if lhs.Type() == "identifier" {
		base = l.text(lhs)
		if base == "_" {
			_, err := l.lowerExpr(rhs, "")
			return err
		}
		if _, ok := l.vars[base]; !ok {
			return fmt.Errorf("undefined: %s at line %d", base, lhs.StartPoint().Row+1)
		}
	}

	var v ir.Value
	var err error
	if op == "" {
		v, err = l.lowerExpr(rhs, base)
	} else {
		var cur, r ir.Value
		if cur, err = l.lowerExpr(lhs, ""); err != nil {
			return err
		}
		if rhs == nil {
			r = ir.Const("1", cur.Type())
		} else if r, err = l.lowerExpr(rhs, ""); err != nil {
			return err
		}
		v, err = l.binary(op, cur, r, base, lhs)
	}
	if err != nil {
		return err
	}

	switch lhs.Type() {
	case "identifier":
		l.vars[base] = v
		return nil
	case "index_expression":
		addr, err := l.address(lhs)
		if err != nil {
			return err
		}
		l.cur.Append(ir.OpStore, "", ir.Void, v, addr)
		return nil
	}
	return l.unsupported(lhs)
}

func (l *lowerer) lowerIf(n *sitter.Node) error {
	if init := n.ChildByFieldName("initializer"); init != nil {
		if err := l.lowerStmt(init); err != nil {
			return err
		}
	}
	cond, err := l.lowerExpr(n.ChildByFieldName("condition"), "cond")
	if err != nil {
		return err
	}

	alt := n.ChildByFieldName("alternative")
	then := l.newBlock("then")
	var els *ir.Block
	if alt != nil {
		els = l.newBlock("else")
	}
	join := l.newBlock("join")

	branch := l.cur
	saved := l.snapshot()
	var sites []site
	if els == nil {
		branch.CondBranch(cond, then, join)
		sites = append(sites, site{branch, saved})
	} else {
		branch.CondBranch(cond, then, els)
	}

	l.cur, l.vars = then, copyVars(saved)
	if err := l.lowerBlock(n.ChildByFieldName("consequence")); err != nil {
		return err
	}
	if l.cur != nil {
		l.cur.Branch(join)
		sites = append(sites, site{l.cur, l.vars})
	}

	if els != nil {
		l.cur, l.vars = els, copyVars(saved)
		if alt.Type() == "if_statement" {
			err = l.lowerIf(alt)
		} else {
			err = l.lowerBlock(alt)
		}
		if err != nil {
			return err
		}
		if l.cur != nil {
			l.cur.Branch(join)
			sites = append(sites, site{l.cur, l.vars})
		}
	}

	if len(sites) == 0 {
		l.dropBlock(join)
		l.cur, l.vars = nil, saved
		return nil
	}
	l.cur, l.vars = join, l.merge(join, sites)
	return nil
}

func (l *lowerer) lowerFor(n *sitter.Node) error {
	body := n.ChildByFieldName("body")
	var init, cond, update *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch {
		case child.Type() == "block", child.Type() == "comment":
		case child.Type() == "for_clause":
			init = child.ChildByFieldName("initializer")
			cond = child.ChildByFieldName("condition")
			update = child.ChildByFieldName("update")
		case child.Type() == "range_clause":
			return l.unsupported(child)
		default:
			cond = child
		}
	}

	if init != nil {
		if err := l.lowerStmt(init); err != nil {
			return err
		}
	}
	pre := l.cur
	header := l.newBlock("header")
	bodyBlock := l.newBlock("body")
	var latch *ir.Block
	if hasContinue(body) {
		latch = l.newBlock("latch")
	}
	exit := l.newBlock("exit")
	pre.Branch(header)

	// Variables assigned anywhere in the loop are carried around the back
	// edge by a header PHI.
	l.cur = header
	phis := make(map[string]*ir.Instruction)
	carried := l.assignedIn(body, update)
	for _, name := range carried {
		v := l.vars[name]
		phi := header.AppendPHI(l.name(name), v.Type(), ir.Incoming{Value: v, Block: pre})
		phis[name] = phi
		l.vars[name] = phi
	}

	ctx := &loopCtx{exit: exit, latch: latch}
	var exits []site
	if cond != nil {
		c, err := l.lowerExpr(cond, "cmp")
		if err != nil {
			return err
		}
		header.CondBranch(c, bodyBlock, exit)
		exits = append(exits, site{header, l.snapshot()})
	} else {
		header.Branch(bodyBlock)
	}

	l.loops = append(l.loops, ctx)
	l.cur = bodyBlock
	err := l.lowerBlock(body)
	l.loops = l.loops[:len(l.loops)-1]
	if err != nil {
		return err
	}

	if latch != nil {
		sites := ctx.continues
		if l.cur != nil {
			l.cur.Branch(latch)
			sites = append(sites, site{l.cur, l.vars})
		}
		if len(sites) == 0 {
			l.dropBlock(latch)
			l.cur = nil
		} else {
			l.cur, l.vars = latch, l.merge(latch, sites)
		}
	}
	if l.cur != nil && update != nil {
		if err := l.lowerStmt(update); err != nil {
			return err
		}
	}
	if l.cur != nil {
		l.cur.Branch(header)
		for _, name := range carried {
			phis[name].AddIncoming(l.vars[name], l.cur)
		}
	}

	exits = append(exits, ctx.breaks...)
	if len(exits) == 0 {
		l.dropBlock(exit)
		l.cur = nil
		return nil
	}
	l.cur, l.vars = exit, l.merge(exit, exits)
	return nil
}

func (l *lowerer) lowerJump(n *sitter.Node) error {
	if len(l.loops) == 0 || n.NamedChildCount() > 0 {
		return l.unsupported(n)
	}
	ctx := l.loops[len(l.loops)-1]
	s := site{l.cur, l.snapshot()}
	if n.Type() == "break_statement" {
		l.cur.Branch(ctx.exit)
		ctx.breaks = append(ctx.breaks, s)
	} else {
		l.cur.Branch(ctx.latch)
		ctx.continues = append(ctx.continues, s)
	}
	l.cur = nil
	return nil
}

// assignedIn returns the live variables the nodes assign, in definition
// order.
func (l *lowerer) assignedIn(nodes ...*sitter.Node) []string {
	assigned := make(map[string]bool)
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "assignment_statement":
			for _, lhs := range exprList(n.ChildByFieldName("left")) {
				if lhs.Type() == "identifier" {
					assigned[l.text(lhs)] = true
				}
			}
		case "inc_statement", "dec_statement":
			if id := n.NamedChild(0); id.Type() == "identifier" {
				assigned[l.text(id)] = true
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	for _, n := range nodes {
		visit(n)
	}

	var out []string
	for _, name := range l.order {
		if _, live := l.vars[name]; live && assigned[name] {
			out = append(out, name)
		}
	}
	return out
}

// lowerExpr lowers n into the current block. base names the instruction
// computing the result, if one is created.
func (l *lowerer) lowerExpr(n *sitter.Node, base string) (ir.Value, error) {
	if n == nil {
		return nil, errors.New("missing expression")
	}
	switch n.Type() {
	case "parenthesized_expression":
		return l.lowerExpr(n.NamedChild(0), base)
	case "identifier":
		v, ok := l.vars[l.text(n)]
		if !ok {
			return nil, fmt.Errorf("undefined: %s at line %d", l.text(n), n.StartPoint().Row+1)
		}
		return v, nil
	case "int_literal":
		return ir.Const(l.text(n), ir.I64), nil
	case "float_literal":
		return ir.Const(l.text(n), ir.F64), nil
	case "rune_literal":
		return ir.Const(l.text(n), ir.I32), nil
	case "true":
		return ir.Const("1", ir.I1), nil
	case "false":
		return ir.Const("0", ir.I1), nil
	case "binary_expression":
		left, err := l.lowerExpr(n.ChildByFieldName("left"), "")
		if err != nil {
			return nil, err
		}
		right, err := l.lowerExpr(n.ChildByFieldName("right"), "")
		if err != nil {
			return nil, err
		}
		return l.binary(n.ChildByFieldName("operator").Type(), left, right, base, n)
	case "unary_expression":
		operand, err := l.lowerExpr(n.ChildByFieldName("operand"), "")
		if err != nil {
			return nil, err
		}
		switch n.ChildByFieldName("operator").Type() {
		case "+":
			return operand, nil
		case "-":
			return l.binary("-", ir.Const("0", operand.Type()), operand, base, n)
		case "!":
			return l.binary("^", operand, ir.Const("1", ir.I1), base, n)
		}
	case "index_expression":
		addr, err := l.address(n)
		if err != nil {
			return nil, err
		}
		elem := l.info[l.text(n.ChildByFieldName("operand"))].elem
		if elem == "" {
			elem = ir.I64
		}
		return l.cur.Append(ir.OpLoad, l.name(base), elem, addr), nil
	case "call_expression":
		return l.lowerCall(n, base, false)
	}
	return nil, l.unsupported(n)
}

// address computes the element address of a single-subscript index
// expression on a slice variable.
func (l *lowerer) address(n *sitter.Node) (ir.Value, error) {
	operand := n.ChildByFieldName("operand")
	if operand.Type() != "identifier" {
		return nil, l.unsupported(operand)
	}
	base, err := l.lowerExpr(operand, "")
	if err != nil {
		return nil, err
	}
	if base.Type() != ir.Ptr {
		return nil, fmt.Errorf("%w: indexing non-slice %s", ErrUnsupported, l.text(operand))
	}
	idx, err := l.lowerExpr(n.ChildByFieldName("index"), "")
	if err != nil {
		return nil, err
	}
	return l.cur.Append(ir.OpGEP, l.name(""), ir.Ptr, base, idx), nil
}

var binaryOps = map[string][2]ir.Opcode{ // integer, float
	"+":  {ir.OpAdd, ir.OpFAdd},
	"-":  {ir.OpSub, ir.OpFSub},
	"*":  {ir.OpMul, ir.OpFMul},
	"/":  {ir.OpDiv, ir.OpFDiv},
	"%":  {ir.OpRem, ""},
	"&":  {ir.OpAnd, ""},
	"|":  {ir.OpOr, ""},
	"^":  {ir.OpXor, ""},
	"<<": {ir.OpShl, ""},
	">>": {ir.OpShr, ""},
	"&&": {ir.OpAnd, ""},
	"||": {ir.OpOr, ""},
}

func (l *lowerer) binary(op string, left, right ir.Value, base string, at *sitter.Node) (ir.Value, error) {
	// untyped constants take the type of the other operand
	if c, ok := left.(*ir.Constant); ok {
		if _, both := right.(*ir.Constant); !both {
			left = ir.Const(c.Literal, right.Type())
		}
	}
	if c, ok := right.(*ir.Constant); ok {
		right = ir.Const(c.Literal, left.Type())
	}
	float := left.Type() == ir.F64 || left.Type() == ir.F32

	switch op {
	case "<", "<=", ">", ">=", "==", "!=":
		cmp := ir.OpICmp
		if float {
			cmp = ir.OpFCmp
		}
		return l.cur.Append(cmp, l.name(base), ir.I1, left, right), nil
	}
	ops, ok := binaryOps[op]
	if !ok {
		return nil, fmt.Errorf("%w: operator %s at line %d", ErrUnsupported, op, at.StartPoint().Row+1)
	}
	opcode := ops[0]
	if float {
		opcode = ops[1]
	}
	if opcode == "" {
		return nil, fmt.Errorf("%w: operator %s on %s at line %d", ErrUnsupported, op, left.Type(), at.StartPoint().Row+1)
	}
	return l.cur.Append(opcode, l.name(base), left.Type(), left, right), nil
}

// lowerCall lowers a conversion or a call. A call used as a statement has
// no result.
func (l *lowerer) lowerCall(n *sitter.Node, base string, stmt bool) (ir.Value, error) {
	callee := l.text(n.ChildByFieldName("function"))
	var args []ir.Value
	argList := n.ChildByFieldName("arguments")
	for i := 0; argList != nil && i < int(argList.NamedChildCount()); i++ {
		a := argList.NamedChild(i)
		if a.Type() == "comment" {
			continue
		}
		v, err := l.lowerExpr(a, "")
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	if t, ok := basicType(callee); ok && len(args) == 1 {
		if c, isConst := args[0].(*ir.Constant); isConst {
			return ir.Const(c.Literal, t), nil
		}
		return l.cur.Append(ir.OpCast, l.name(base), t, args[0]), nil
	}

	typ, pure := PureFunctions[callee]
	switch {
	case stmt:
		typ = ir.Void
	case pure && typ == "" && len(args) > 0:
		typ = args[0].Type()
	case typ == "":
		typ = ir.I64
	}
	name := ""
	if !stmt {
		name = l.name(base)
	}
	call := l.cur.Append(ir.OpCall, name, typ, args...)
	call.Callee = callee
	call.Pure = pure
	return call, nil
}

func exprList(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	if n.Type() != "expression_list" {
		return []*sitter.Node{n}
	}
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

func descendants(n *sitter.Node, typ string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == typ {
			out = append(out, child)
			continue
		}
		out = append(out, descendants(child, typ)...)
	}
	return out
}

func containsType(n *sitter.Node, typ string) bool {
	if n == nil {
		return false
	}
	if n.Type() == typ {
		return true
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if containsType(n.NamedChild(i), typ) {
			return true
		}
	}
	return false
}

// hasContinue reports whether a continue targets the loop owning body.
// Nested loops and function literals own their continues.
func hasContinue(n *sitter.Node) bool {
	for i := 0; n != nil && i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "continue_statement":
			return true
		case "for_statement", "func_literal":
			continue
		}
		if hasContinue(child) {
			return true
		}
	}
	return false
}

func nodeText(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if start >= uint32(len(content)) || end > uint32(len(content)) {
		return ""
	}
	return string(content[start:end])
}
