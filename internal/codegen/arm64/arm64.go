// Package arm64 generates AArch64 assembly for the AAPCS64 calling
// convention. It mirrors x86's push-the-result/pop-the-operands
// discipline, emulating push/pop on the real SP with the
// "sub sp,sp,#16 / str / ldr / add sp,sp,#16" idiom the teacher's own
// AArch64 backend uses for its binary equivalent, and reserves X9 as the
// scratch register for address arithmetic that doesn't fit the
// two-operand value path (AAPCS64 designates X9-X15 caller-saved temporaries).
package arm64

import (
	"fmt"

	"github.com/dytlzl/dynamite-compiler/internal/ast"
	"github.com/dytlzl/dynamite-compiler/internal/asmtree"
	"github.com/dytlzl/dynamite-compiler/internal/types"
)

var argRegs64 = []string{"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7"}
var argRegs32 = []string{"w0", "w1", "w2", "w3", "w4", "w5", "w6", "w7"}

type Generator struct {
	prog     *ast.Program
	os       asmtree.OS
	out      *asmtree.Node
	retLabel string
}

func Generate(prog *ast.Program, os asmtree.OS) string {
	g := &Generator{prog: prog, os: os}
	asm := asmtree.NewProgram(os)

	for _, name := range prog.GlobalOrder {
		asm.Data.Append(g.globalDecl(prog.Globals[name]))
	}
	for i, s := range prog.StringLits {
		asm.RoDat.Append(asmtree.Label(ast.StrLabel(i)), asmtree.Raw(".asciz "+quote(s)))
	}
	for _, name := range prog.FuncOrder {
		fn := prog.Funcs[name]
		if fn.Body == nil {
			continue
		}
		asm.Text.Append(asmtree.Raw(".globl " + os.Symbol(fn.Name)))
		g.out = asmtree.G()
		g.genFunction(fn)
		asm.Text.Append(g.out)
	}
	return asm.String()
}

func quote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			out = append(out, '\\', '"')
		case '\\':
			out = append(out, '\\', '\\')
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, c)
		}
	}
	out = append(out, '"')
	return string(out)
}

func symbolRef(os asmtree.OS, name string) string {
	if len(name) >= 2 && name[:2] == ".L" {
		return name
	}
	return os.Symbol(name)
}

func (g *Generator) globalDecl(gv *ast.GlobalVariable) *asmtree.Node {
	n := asmtree.G(asmtree.Raw(".globl "+g.os.Symbol(gv.Name)), asmtree.Label(g.os.Symbol(gv.Name)))
	if gv.Data == nil {
		n.Append(asmtree.Raw(fmt.Sprintf(".zero %d", types.SizeOf(gv.Cty))))
		return n
	}
	g.emitInitData(n, gv.Cty, gv.Data)
	return n
}

func (g *Generator) emitInitData(n *asmtree.Node, t *types.Type, d *ast.GlobalVariableData) {
	if len(d.Elems) > 0 {
		for _, e := range d.Elems {
			g.emitInitData(n, t.Elem, e)
		}
		return
	}
	switch types.SizeOf(t) {
	case 1:
		n.Append(asmtree.Raw(".byte " + d.Lit))
	case 4:
		n.Append(asmtree.Raw(".long " + d.Lit))
	default:
		n.Append(asmtree.Raw(".quad " + d.Lit))
	}
}

func (g *Generator) ins(mnemonic string, ops ...string) { g.out.Append(asmtree.I(mnemonic, ops...)) }
func (g *Generator) label(name string)                  { g.out.Append(asmtree.Label(name)) }

// push emulates a stack push with a 16-byte-aligned SP adjustment, the
// same idiom the teacher's binary AArch64 backend assembles by hand.
func (g *Generator) push(reg string) {
	g.ins("sub", "sp", "sp", "#16")
	g.ins("str", reg, "[sp]")
}

func (g *Generator) pop(reg string) {
	g.ins("ldr", reg, "[sp]")
	g.ins("add", "sp", "sp", "#16")
}

const maxRegArgs = 8 // AAPCS64: X0-X7; the <7-argument cap means this never overflows to the stack.

func (g *Generator) genFunction(fn *ast.Function) {
	g.retLabel = ".Lret_" + fn.Name
	g.label(g.os.Symbol(fn.Name))
	frame := alignUp(fn.FrameSize+16, 16) // +16 for the saved fp/lr pair
	g.ins("sub", "sp", "sp", fmt.Sprintf("#%d", frame))
	g.ins("stp", "x29", "x30", fmt.Sprintf("[sp, #%d]", frame-16))
	g.ins("add", "x29", "sp", fmt.Sprintf("#%d", frame-16))

	for i, p := range fn.Params {
		if i >= maxRegArgs {
			break
		}
		g.storeArgToFrame(p, i)
	}

	g.genStmt(fn.Body)

	g.label(g.retLabel)
	g.ins("ldp", "x29", "x30", fmt.Sprintf("[sp, #%d]", frame-16))
	g.ins("add", "sp", "sp", fmt.Sprintf("#%d", frame))
	g.ins("ret")
}

func alignUp(n, align int) int {
	if rem := n % align; rem != 0 {
		return n + (align - rem)
	}
	return n
}

func (g *Generator) storeArgToFrame(p *ast.Node, i int) {
	switch types.SizeOf(p.Cty) {
	case 1, 4:
		g.ins("str", argRegs32[i], fmt.Sprintf("[x29, #-%d]", p.Offset))
	default:
		g.ins("str", argRegs64[i], fmt.Sprintf("[x29, #-%d]", p.Offset))
	}
}

func (g *Generator) genStmt(n *ast.Node) {
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
		g.genExpr(n.Lhs)
		g.pop("x0")
		g.ins("b", g.retLabel)
	case ast.If:
		g.genIf(n)
	case ast.While:
		g.genWhile(n)
	case ast.For:
		g.genFor(n)
	case ast.Break:
		g.ins("b", breakLabelFor(n.Token))
	default:
		g.genExpr(n)
		g.pop("x0")
	}
}

func breakLabelFor(pos int) string { return fmt.Sprintf(".Lbreak_%d", pos) }

func (g *Generator) genIf(n *ast.Node) {
	elseLabel := fmt.Sprintf(".Lelse_%d", n.Token)
	endLabel := fmt.Sprintf(".Lend_%d", n.Token)
	g.genExpr(n.Cond)
	g.pop("x0")
	g.ins("cmp", "x0", "#0")
	if n.Els != nil {
		g.ins("b.eq", elseLabel)
	} else {
		g.ins("b.eq", endLabel)
	}
	g.genStmt(n.Then)
	if n.Els != nil {
		g.ins("b", endLabel)
		g.label(elseLabel)
		g.genStmt(n.Els)
	}
	g.label(endLabel)
}

func (g *Generator) genWhile(n *ast.Node) {
	beginLabel := fmt.Sprintf(".Lbegin_%d", n.Token)
	endLabel := breakLabelFor(n.Token)
	g.label(beginLabel)
	g.genExpr(n.Cond)
	g.pop("x0")
	g.ins("cmp", "x0", "#0")
	g.ins("b.eq", endLabel)
	g.genStmt(n.Then)
	g.ins("b", beginLabel)
	g.label(endLabel)
}

func (g *Generator) genFor(n *ast.Node) {
	beginLabel := fmt.Sprintf(".Lbegin_%d", n.Token)
	endLabel := breakLabelFor(n.Token)
	if n.Ini != nil {
		g.genStmt(n.Ini)
	}
	g.label(beginLabel)
	if n.Cond != nil {
		g.genExpr(n.Cond)
		g.pop("x0")
		g.ins("cmp", "x0", "#0")
		g.ins("b.eq", endLabel)
	}
	g.genStmt(n.Then)
	if n.Upd != nil {
		g.genStmt(n.Upd)
	}
	g.ins("b", beginLabel)
	g.label(endLabel)
}

func (g *Generator) genExpr(n *ast.Node) {
	switch n.Kind {
	case ast.Num:
		g.ins("mov", "x0", fmt.Sprintf("#%d", n.Value))
		g.push("x0")
	case ast.LocalVar, ast.GlobalVar:
		g.genAddr(n)
		g.loadFromAddr(n.Cty)
	case ast.Addr:
		g.genAddr(n.Dest)
	case ast.Deref:
		g.genExpr(n.Lhs)
		g.loadFromAddr(n.Cty)
	case ast.Assign:
		g.genAddr(n.Lhs)
		g.genExpr(n.Rhs)
		g.pop("x1")
		g.pop("x9") // address, scratch
		g.storeToAddr(n.Cty, "x1", "x9")
		g.push("x1")
	case ast.SuffixIncr, ast.SuffixDecr:
		g.genSuffix(n)
	case ast.CallFunc:
		g.genCall(n)
	case ast.LogicalAnd:
		g.genLogicalAnd(n)
	case ast.LogicalOr:
		g.genLogicalOr(n)
	case ast.If:
		g.genTernary(n)
	case ast.BitNot:
		g.genExpr(n.Lhs)
		g.pop("x0")
		g.ins("mvn", "x0", "x0")
		g.push("x0")
	case ast.Eq, ast.Ne, ast.Lt, ast.Le:
		g.genCompare(n)
	case ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod, ast.BitAnd, ast.BitOr, ast.BitXor, ast.BitLeft, ast.BitRight:
		g.genBinop(n)
	default:
		panic(fmt.Sprintf("unexpected node kind %v in expression context", n.Kind))
	}
}

func (g *Generator) genAddr(n *ast.Node) {
	switch n.Kind {
	case ast.LocalVar:
		g.ins("sub", "x9", "x29", fmt.Sprintf("#%d", n.Offset))
		g.push("x9")
	case ast.GlobalVar:
		sym := symbolRef(g.os, n.GlobalName)
		g.ins("adrp", "x9", pageOperand(g.os, sym))
		g.ins("add", "x9", "x9", pageoffOperand(g.os, sym))
		g.push("x9")
	case ast.Deref:
		g.genExpr(n.Lhs)
	default:
		panic(fmt.Sprintf("unexpected node kind %v in address context", n.Kind))
	}
}

// pageOperand/pageoffOperand pick between Linux's ":lo12:" prefix
// relocation and Darwin's "@PAGE"/"@PAGEOFF" suffix relocation for
// ADRP/ADD global addressing — the two assemblers spell the same
// page/page-offset split differently.
func pageOperand(os asmtree.OS, sym string) string {
	if os == asmtree.Darwin {
		return sym + "@PAGE"
	}
	return sym
}

func pageoffOperand(os asmtree.OS, sym string) string {
	if os == asmtree.Darwin {
		return sym + "@PAGEOFF"
	}
	return ":lo12:" + sym
}

func (g *Generator) loadFromAddr(t *types.Type) {
	g.pop("x9")
	switch {
	case t.Kind == types.Arr:
		g.push("x9")
		return
	case types.SizeOf(t) == 1:
		g.ins("ldrsb", "x0", "[x9]")
	case types.SizeOf(t) == 4:
		g.ins("ldrsw", "x0", "[x9]")
	default:
		g.ins("ldr", "x0", "[x9]")
	}
	g.push("x0")
}

func (g *Generator) storeToAddr(t *types.Type, valReg, addrReg string) {
	switch types.SizeOf(t) {
	case 1:
		g.ins("strb", reg32(valReg), fmt.Sprintf("[%s]", addrReg))
	case 4:
		g.ins("str", reg32(valReg), fmt.Sprintf("[%s]", addrReg))
	default:
		g.ins("str", valReg, fmt.Sprintf("[%s]", addrReg))
	}
}

func reg32(r string) string {
	switch r {
	case "x0":
		return "w0"
	case "x1":
		return "w1"
	default:
		return r
	}
}

func (g *Generator) genSuffix(n *ast.Node) {
	g.genAddr(n.Lhs)
	g.pop("x9")
	switch types.SizeOf(n.Cty) {
	case 1:
		g.ins("ldrsb", "x0", "[x9]")
	case 4:
		g.ins("ldrsw", "x0", "[x9]")
	default:
		g.ins("ldr", "x0", "[x9]")
	}
	g.push("x0") // old value is the expression's result
	step := 1
	if n.Cty.Kind == types.Ptr {
		step = types.SizeOf(types.DestType(n.Cty))
	}
	if n.Kind == ast.SuffixIncr {
		g.ins("add", "x0", "x0", fmt.Sprintf("#%d", step))
	} else {
		g.ins("sub", "x0", "x0", fmt.Sprintf("#%d", step))
	}
	g.storeToAddr(n.Cty, "x0", "x9")
}

// genCall fits entirely within X0-X7 since the <7-argument cap keeps
// every call within AAPCS64's eight argument registers; no stack-passed
// arguments are ever generated, for variadic callees included.
func (g *Generator) genCall(n *ast.Node) {
	for _, a := range n.Args {
		g.genExpr(a)
	}
	for i := len(n.Args) - 1; i >= 0; i-- {
		g.pop(argRegs64[i])
	}
	g.ins("bl", symbolRef(g.os, n.GlobalName))
	g.push("x0")
}

func (g *Generator) genLogicalAnd(n *ast.Node) {
	falseLabel := fmt.Sprintf(".Lfalse_%d", n.Token)
	endLabel := fmt.Sprintf(".Lend_%d", n.Token)
	g.genExpr(n.Lhs)
	g.pop("x0")
	g.ins("cmp", "x0", "#0")
	g.ins("b.eq", falseLabel)
	g.genExpr(n.Rhs)
	g.pop("x0")
	g.ins("cmp", "x0", "#0")
	g.ins("b.eq", falseLabel)
	g.ins("mov", "x0", "#1")
	g.ins("b", endLabel)
	g.label(falseLabel)
	g.ins("mov", "x0", "#0")
	g.label(endLabel)
	g.push("x0")
}

func (g *Generator) genLogicalOr(n *ast.Node) {
	trueLabel := fmt.Sprintf(".Ltrue_%d", n.Token)
	endLabel := fmt.Sprintf(".Lend_%d", n.Token)
	g.genExpr(n.Lhs)
	g.pop("x0")
	g.ins("cmp", "x0", "#0")
	g.ins("b.ne", trueLabel)
	g.genExpr(n.Rhs)
	g.pop("x0")
	g.ins("cmp", "x0", "#0")
	g.ins("b.ne", trueLabel)
	g.ins("mov", "x0", "#0")
	g.ins("b", endLabel)
	g.label(trueLabel)
	g.ins("mov", "x0", "#1")
	g.label(endLabel)
	g.push("x0")
}

func (g *Generator) genTernary(n *ast.Node) {
	elseLabel := fmt.Sprintf(".Lelse_%d", n.Token)
	endLabel := fmt.Sprintf(".Lend_%d", n.Token)
	g.genExpr(n.Cond)
	g.pop("x0")
	g.ins("cmp", "x0", "#0")
	g.ins("b.eq", elseLabel)
	g.genExpr(n.Then)
	g.ins("b", endLabel)
	g.label(elseLabel)
	g.genExpr(n.Els)
	g.label(endLabel)
}

func (g *Generator) genCompare(n *ast.Node) {
	g.genExpr(n.Lhs)
	g.genExpr(n.Rhs)
	g.pop("x1")
	g.pop("x0")
	g.ins("cmp", "x0", "x1")
	switch n.Kind {
	case ast.Eq:
		g.ins("cset", "x0", "eq")
	case ast.Ne:
		g.ins("cset", "x0", "ne")
	case ast.Lt:
		g.ins("cset", "x0", "lt")
	case ast.Le:
		g.ins("cset", "x0", "le")
	}
	g.push("x0")
}

func (g *Generator) genBinop(n *ast.Node) {
	g.genExpr(n.Lhs)
	g.genExpr(n.Rhs)
	g.pop("x1")
	g.pop("x0")

	if scaled := pointerScale(n); scaled > 1 {
		g.ins("mov", "x9", fmt.Sprintf("#%d", scaled))
		g.ins("mul", "x1", "x1", "x9")
	}

	switch n.Kind {
	case ast.Add:
		g.ins("add", "x0", "x0", "x1")
	case ast.Sub:
		g.ins("sub", "x0", "x0", "x1")
	case ast.Mul:
		g.ins("mul", "x0", "x0", "x1")
	case ast.Div:
		g.ins("sdiv", "x0", "x0", "x1")
	case ast.Mod:
		g.ins("sdiv", "x9", "x0", "x1")
		g.ins("msub", "x0", "x9", "x1", "x0")
	case ast.BitAnd:
		g.ins("and", "x0", "x0", "x1")
	case ast.BitOr:
		g.ins("orr", "x0", "x0", "x1")
	case ast.BitXor:
		g.ins("eor", "x0", "x0", "x1")
	case ast.BitLeft:
		g.ins("lsl", "x0", "x0", "x1")
	case ast.BitRight:
		g.ins("asr", "x0", "x0", "x1")
	}
	g.push("x0")
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
