// Package llvmir generates LLVM textual IR using the real llir/llvm
// SSA construction API, rather than hand-formatted IR text: each
// function builds real basic blocks and instructions, mirroring the
// control-flow shape the assembly backends emit with labels and jumps.
package llvmir

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/dytlzl/dynamite-compiler/internal/ast"
	"github.com/dytlzl/dynamite-compiler/internal/types"
)

// Generator walks a Program once, building one llir/llvm module.
type Generator struct {
	prog *ast.Program
	m    *ir.Module

	fn      *ir.Func
	cur     *ir.Block
	allocas map[int]value.Value // local frame offset -> alloca
	globals map[string]*ir.Global
	strs    []*ir.Global
	blockID int

	breaks []breakFrame // stack of enclosing loops' break targets
}

// breakFrame associates a loop's unique label-seed token (ast.Node.Token
// of the While/For that owns it) with the block a `break` inside it
// should jump to.
type breakFrame struct {
	token  int
	target *ir.Block
}

// Generate renders the whole program as LLVM textual IR.
func Generate(prog *ast.Program) string {
	g := &Generator{prog: prog, m: ir.NewModule(), globals: map[string]*ir.Global{}}
	g.declareReservedExternals()
	g.declareStringLiterals()
	g.declareGlobals()
	for _, name := range prog.FuncOrder {
		fn := prog.Funcs[name]
		if fn.Body == nil {
			g.declareFunc(fn)
			continue
		}
		g.genFunction(fn)
	}
	return g.m.String()
}

// llvmType maps the compiler's small type model onto LLVM IR types.
func llvmType(t *types.Type) lltypes.Type {
	switch t.Kind {
	case types.I8:
		return lltypes.I8
	case types.I32:
		return lltypes.I32
	case types.Ptr:
		return lltypes.NewPointer(llvmType(t.Elem))
	case types.Arr:
		return lltypes.NewArray(uint64(t.Len), llvmType(t.Elem))
	default:
		panic(fmt.Sprintf("unexpected type kind %v", t.Kind))
	}
}

func (g *Generator) declareReservedExternals() {
	printf := g.m.NewFunc("printf", lltypes.I32, ir.NewParam("", lltypes.I8Ptr))
	printf.Sig.Variadic = true
	g.m.NewFunc("puts", lltypes.I32, ir.NewParam("", lltypes.I8Ptr))
	g.m.NewFunc("putchar", lltypes.I32, ir.NewParam("", lltypes.I8))
	g.m.NewFunc("exit", lltypes.I32, ir.NewParam("", lltypes.I8))
}

func (g *Generator) declareStringLiterals() {
	for i, s := range g.prog.StringLits {
		data := constant.NewCharArrayFromString(s + "\x00")
		gv := g.m.NewGlobalDef(ast.StrLabel(i), data)
		gv.Immutable = true
		g.strs = append(g.strs, gv)
	}
}

func (g *Generator) declareGlobals() {
	for _, name := range g.prog.GlobalOrder {
		gv := g.prog.Globals[name]
		ty := llvmType(gv.Cty)
		var init constant.Constant
		if gv.Data == nil {
			init = constant.NewZeroInitializer(ty)
		} else {
			init = g.constData(gv.Cty, gv.Data)
		}
		global := g.m.NewGlobalDef(name, init)
		g.globals[name] = global
	}
}

func (g *Generator) constData(t *types.Type, d *ast.GlobalVariableData) constant.Constant {
	if len(d.Elems) > 0 {
		var elems []constant.Constant
		for _, e := range d.Elems {
			elems = append(elems, g.constData(t.Elem, e))
		}
		return constant.NewArray(lltypes.NewArray(uint64(len(elems)), llvmType(t.Elem)), elems...)
	}
	if len(d.Lit) > 0 && d.Lit[0] == '.' {
		// A global initialized from a string literal (e.g. char *p =
		// "abc";): Lit names the interned string's global rather than
		// a decimal value. Decay the [N x i8]* global to i8* via a
		// zero-index GEP, the standard array-to-pointer idiom.
		gv := g.stringLiteralByLabel(d.Lit)
		zero := constant.NewInt(lltypes.I64, 0)
		return constant.NewGetElementPtr(gv.ContentType, gv, zero, zero)
	}
	return constant.NewInt(llvmType(t).(*lltypes.IntType), parseDecimal(d.Lit))
}

func (g *Generator) stringLiteralByLabel(label string) *ir.Global {
	for i, lbl := range stringLabels(len(g.strs)) {
		if lbl == label {
			return g.strs[i]
		}
	}
	panic("undefined string literal " + label)
}

func parseDecimal(s string) int64 {
	var v int64
	neg := false
	i := 0
	if len(s) > 0 && s[0] == '-' {
		neg = true
		i = 1
	}
	for ; i < len(s); i++ {
		v = v*10 + int64(s[i]-'0')
	}
	if neg {
		v = -v
	}
	return v
}

func (g *Generator) declareFunc(fn *ast.Function) *ir.Func {
	params := make([]*ir.Param, len(fn.Cty.Args))
	for i, a := range fn.Cty.Args {
		params[i] = ir.NewParam("", llvmType(a))
	}
	return g.m.NewFunc(fn.Name, llvmType(fn.Cty.Ret), params...)
}

func (g *Generator) genFunction(fn *ast.Function) {
	g.fn = g.declareFunc(fn)
	g.allocas = map[int]value.Value{}
	g.blockID = 0

	entry := g.newBlock("entry")
	g.cur = entry

	for i, p := range fn.Params {
		ptr := g.allocaFor(p.Offset, llvmType(p.Cty))
		g.cur.NewStore(g.fn.Params[i], ptr)
	}

	g.genStmt(fn.Body)

	if g.cur.Term == nil {
		// Fell off the end of a function without an explicit return
		// (e.g. void-like `int main() { ... }` whose last statement
		// wasn't `return`): return a zero of the declared type.
		g.cur.NewRet(constant.NewInt(llvmType(fn.Cty.Ret).(*lltypes.IntType), 0))
	}
}

func (g *Generator) newBlock(hint string) *ir.Block {
	g.blockID++
	return g.fn.NewBlock(fmt.Sprintf("%s.%d", hint, g.blockID))
}

func (g *Generator) allocaFor(offset int, ty lltypes.Type) value.Value {
	if v, ok := g.allocas[offset]; ok {
		return v
	}
	v := g.fn.Blocks[0].NewAlloca(ty)
	g.allocas[offset] = v
	return v
}

// genStmt lowers a statement into the current block, threading new
// blocks through g.cur for control flow. It never touches g.cur once a
// terminator has been placed — callers that keep emitting after an
// unconditional return rely on the dead block being silently dropped.
func (g *Generator) genStmt(n *ast.Node) {
	if g.cur.Term != nil {
		return // unreachable code after a terminator
	}
	switch n.Kind {
	case ast.Block:
		for _, c := range n.Children {
			g.genStmt(c)
		}
	case ast.DefVar:
		if n.Lhs != nil {
			g.genStmt(n.Lhs)
		}
	case ast.Return:
		v := g.genExpr(n.Lhs)
		g.cur.NewRet(v)
	case ast.If:
		g.genIf(n)
	case ast.While:
		g.genWhile(n)
	case ast.For:
		g.genFor(n)
	case ast.Break:
		if target := g.breakTarget(n.Token); target != nil {
			g.cur.NewBr(target)
		}
	default:
		g.genExpr(n)
	}
}

func (g *Generator) pushBreakTarget(token int, target *ir.Block) {
	g.breaks = append(g.breaks, breakFrame{token: token, target: target})
}

func (g *Generator) popBreakTarget(token int) {
	g.breaks = g.breaks[:len(g.breaks)-1]
}

func (g *Generator) breakTarget(token int) *ir.Block {
	for i := len(g.breaks) - 1; i >= 0; i-- {
		if g.breaks[i].token == token {
			return g.breaks[i].target
		}
	}
	return nil
}

func (g *Generator) genIf(n *ast.Node) {
	thenBlk := g.newBlock("if.then")
	endBlk := g.newBlock("if.end")
	elseBlk := endBlk
	if n.Els != nil {
		elseBlk = g.newBlock("if.else")
	}

	cond := g.genExpr(n.Cond)
	g.cur.NewCondBr(g.truthy(cond), thenBlk, elseBlk)

	g.cur = thenBlk
	g.genStmt(n.Then)
	if g.cur.Term == nil {
		g.cur.NewBr(endBlk)
	}

	if n.Els != nil {
		g.cur = elseBlk
		g.genStmt(n.Els)
		if g.cur.Term == nil {
			g.cur.NewBr(endBlk)
		}
	}

	g.cur = endBlk
}

func (g *Generator) genWhile(n *ast.Node) {
	condBlk := g.newBlock("while.cond")
	bodyBlk := g.newBlock("while.body")
	endBlk := g.newBlock("while.end")

	g.cur.NewBr(condBlk)
	g.cur = condBlk
	cond := g.genExpr(n.Cond)
	g.cur.NewCondBr(g.truthy(cond), bodyBlk, endBlk)

	g.cur = bodyBlk
	g.pushBreakTarget(n.Token, endBlk)
	g.genStmt(n.Then)
	g.popBreakTarget(n.Token)
	if g.cur.Term == nil {
		g.cur.NewBr(condBlk)
	}

	g.cur = endBlk
}

func (g *Generator) genFor(n *ast.Node) {
	if n.Ini != nil {
		g.genStmt(n.Ini)
	}
	condBlk := g.newBlock("for.cond")
	bodyBlk := g.newBlock("for.body")
	endBlk := g.newBlock("for.end")

	g.cur.NewBr(condBlk)
	g.cur = condBlk
	if n.Cond != nil {
		cond := g.genExpr(n.Cond)
		g.cur.NewCondBr(g.truthy(cond), bodyBlk, endBlk)
	} else {
		g.cur.NewBr(bodyBlk)
	}

	g.cur = bodyBlk
	g.pushBreakTarget(n.Token, endBlk)
	g.genStmt(n.Then)
	if n.Upd != nil && g.cur.Term == nil {
		g.genStmt(n.Upd)
	}
	g.popBreakTarget(n.Token)
	if g.cur.Term == nil {
		g.cur.NewBr(condBlk)
	}

	g.cur = endBlk
}

// truthy lowers a C-style "nonzero is true" value to an i1 for CondBr.
func (g *Generator) truthy(v value.Value) value.Value {
	zero := zeroOf(v)
	return g.cur.NewICmp(enum.IPredNE, v, zero)
}

func zeroOf(v value.Value) value.Value {
	if it, ok := v.Type().(*lltypes.IntType); ok {
		return constant.NewInt(it, 0)
	}
	return constant.NewInt(lltypes.I64, 0)
}

func (g *Generator) genExpr(n *ast.Node) value.Value {
	switch n.Kind {
	case ast.Num:
		return constant.NewInt(llvmType(n.Cty).(*lltypes.IntType), n.Value)
	case ast.LocalVar:
		ptr := g.allocaFor(n.Offset, llvmType(n.Cty))
		if n.Cty.Kind == types.Arr {
			return ptr
		}
		return g.cur.NewLoad(llvmType(n.Cty), ptr)
	case ast.GlobalVar:
		gv := g.globalValue(n.GlobalName)
		if n.Cty.Kind == types.Arr {
			return g.decayArray(gv)
		}
		return g.cur.NewLoad(llvmType(n.Cty), gv)
	case ast.Addr:
		return g.genAddr(n.Dest)
	case ast.Deref:
		ptr := g.genExpr(n.Lhs)
		return g.cur.NewLoad(llvmType(n.Cty), ptr)
	case ast.Assign:
		ptr := g.genAddr(n.Lhs)
		v := g.genExpr(n.Rhs)
		g.cur.NewStore(v, ptr)
		return v
	case ast.SuffixIncr, ast.SuffixDecr:
		return g.genSuffix(n)
	case ast.CallFunc:
		return g.genCall(n)
	case ast.LogicalAnd, ast.LogicalOr:
		return g.genLogical(n)
	case ast.If:
		return g.genTernary(n)
	case ast.BitNot:
		v := g.genExpr(n.Lhs)
		return g.cur.NewXor(v, constant.NewInt(v.Type().(*lltypes.IntType), -1))
	case ast.Eq, ast.Ne, ast.Lt, ast.Le:
		return g.genCompare(n)
	case ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod, ast.BitAnd, ast.BitOr, ast.BitXor, ast.BitLeft, ast.BitRight:
		return g.genBinop(n)
	default:
		panic(fmt.Sprintf("unexpected node kind %v in expression context", n.Kind))
	}
}

func (g *Generator) genAddr(n *ast.Node) value.Value {
	switch n.Kind {
	case ast.LocalVar:
		return g.allocaFor(n.Offset, llvmType(n.Cty))
	case ast.GlobalVar:
		gv := g.globalValue(n.GlobalName)
		if n.Cty.Kind == types.Arr {
			return g.decayArray(gv)
		}
		return gv
	case ast.Deref:
		return g.genExpr(n.Lhs)
	default:
		panic(fmt.Sprintf("unexpected node kind %v in address context", n.Kind))
	}
}

// decayArray turns an [N x T]* global into a T* value via a zero-index
// GEP, the runtime counterpart of constData's array-to-pointer decay.
func (g *Generator) decayArray(gv value.Value) value.Value {
	global, ok := gv.(*ir.Global)
	if !ok {
		return gv
	}
	zero := constant.NewInt(lltypes.I64, 0)
	return g.cur.NewGetElementPtr(global.ContentType, global, zero, zero)
}

func (g *Generator) globalValue(name string) value.Value {
	if gv, ok := g.globals[name]; ok {
		return gv
	}
	for i, lbl := range stringLabels(len(g.strs)) {
		if lbl == name {
			return g.strs[i]
		}
	}
	panic("undefined global " + name)
}

func stringLabels(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = ast.StrLabel(i)
	}
	return out
}

func (g *Generator) genSuffix(n *ast.Node) value.Value {
	ptr := g.genAddr(n.Lhs)
	old := g.cur.NewLoad(llvmType(n.Cty), ptr)
	step := int64(1)
	if n.Cty.Kind == types.Ptr {
		step = int64(types.SizeOf(types.DestType(n.Cty)))
	}
	delta := constant.NewInt(old.Type().(*lltypes.IntType), step)
	var updated value.Value
	if n.Kind == ast.SuffixIncr {
		updated = g.cur.NewAdd(old, delta)
	} else {
		updated = g.cur.NewSub(old, delta)
	}
	g.cur.NewStore(updated, ptr)
	return old
}

// genCall: the <7-argument cap keeps every call within a handful of SSA
// values; no special-casing is needed beyond the variadic callee case.
func (g *Generator) genCall(n *ast.Node) value.Value {
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		args[i] = g.genExpr(a)
	}
	var callee *ir.Func
	for _, f := range g.m.Funcs {
		if f.Name() == n.GlobalName {
			callee = f
			break
		}
	}
	if callee == nil {
		panic("call to undeclared function " + n.GlobalName)
	}
	return g.cur.NewCall(callee, args...)
}

func (g *Generator) genLogical(n *ast.Node) value.Value {
	lhs := g.genExpr(n.Lhs)
	lhsBool := g.truthy(lhs)
	rhsBlk := g.newBlock("logic.rhs")
	endBlk := g.newBlock("logic.end")
	startBlk := g.cur

	if n.Kind == ast.LogicalAnd {
		g.cur.NewCondBr(lhsBool, rhsBlk, endBlk)
	} else {
		g.cur.NewCondBr(lhsBool, endBlk, rhsBlk)
	}

	g.cur = rhsBlk
	rhs := g.genExpr(n.Rhs)
	rhsBool := g.truthy(rhs)
	rhsEndBlk := g.cur
	g.cur.NewBr(endBlk)

	g.cur = endBlk
	phi := g.cur.NewPhi(
		ir.NewIncoming(lhsBool, startBlk),
		ir.NewIncoming(rhsBool, rhsEndBlk),
	)
	return g.cur.NewZExt(phi, lltypes.I32)
}

func (g *Generator) genTernary(n *ast.Node) value.Value {
	thenBlk := g.newBlock("cond.then")
	elseBlk := g.newBlock("cond.else")
	endBlk := g.newBlock("cond.end")

	cond := g.genExpr(n.Cond)
	g.cur.NewCondBr(g.truthy(cond), thenBlk, elseBlk)

	g.cur = thenBlk
	thenV := g.genExpr(n.Then)
	thenEndBlk := g.cur
	g.cur.NewBr(endBlk)

	g.cur = elseBlk
	elseV := g.genExpr(n.Els)
	elseEndBlk := g.cur
	g.cur.NewBr(endBlk)

	g.cur = endBlk
	return g.cur.NewPhi(
		ir.NewIncoming(thenV, thenEndBlk),
		ir.NewIncoming(elseV, elseEndBlk),
	)
}

func (g *Generator) genCompare(n *ast.Node) value.Value {
	lhs := g.genExpr(n.Lhs)
	rhs := g.genExpr(n.Rhs)
	var pred enum.IPred
	switch n.Kind {
	case ast.Eq:
		pred = enum.IPredEQ
	case ast.Ne:
		pred = enum.IPredNE
	case ast.Lt:
		pred = enum.IPredSLT
	case ast.Le:
		pred = enum.IPredSLE
	}
	cmp := g.cur.NewICmp(pred, lhs, rhs)
	return g.cur.NewZExt(cmp, lltypes.I32)
}

func (g *Generator) genBinop(n *ast.Node) value.Value {
	lhs := g.genExpr(n.Lhs)
	rhs := g.genExpr(n.Rhs)

	if scale := pointerScale(n); scale > 1 {
		rhs = g.cur.NewMul(rhs, constant.NewInt(rhs.Type().(*lltypes.IntType), int64(scale)))
	}

	switch n.Kind {
	case ast.Add:
		return g.cur.NewAdd(lhs, rhs)
	case ast.Sub:
		return g.cur.NewSub(lhs, rhs)
	case ast.Mul:
		return g.cur.NewMul(lhs, rhs)
	case ast.Div:
		return g.cur.NewSDiv(lhs, rhs)
	case ast.Mod:
		return g.cur.NewSRem(lhs, rhs)
	case ast.BitAnd:
		return g.cur.NewAnd(lhs, rhs)
	case ast.BitOr:
		return g.cur.NewOr(lhs, rhs)
	case ast.BitXor:
		return g.cur.NewXor(lhs, rhs)
	case ast.BitLeft:
		return g.cur.NewShl(lhs, rhs)
	case ast.BitRight:
		return g.cur.NewAShr(lhs, rhs)
	default:
		panic("unreachable binop kind")
	}
}

func pointerScale(n *ast.Node) int {
	if n.Kind != ast.Add && n.Kind != ast.Sub {
		return 1
	}
	lt := ast.ResolveType(n.Lhs)
	if !types.IsPointerLike(lt) {
		return 1
	}
	rt := ast.ResolveType(n.Rhs)
	if types.IsPointerLike(rt) {
		return 1
	}
	return types.SizeOf(types.DestType(lt))
}
