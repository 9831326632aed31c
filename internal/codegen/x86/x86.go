// Package x86 generates Intel-syntax x86-64 assembly for the SysV AMD64
// calling convention. It walks the typed AST with the same
// push-the-result/pop-the-operands virtual-stack discipline the teacher's
// byte-emitting CodeGen uses, but builds an asmtree.Program of textual
// instructions instead of raw machine code.
package x86

import (
	"fmt"
	"strings"

	"github.com/dytlzl/dynamite-compiler/internal/ast"
	"github.com/dytlzl/dynamite-compiler/internal/asmtree"
	"github.com/dytlzl/dynamite-compiler/internal/types"
)

var argRegs64 = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
var argRegs32 = []string{"edi", "esi", "edx", "ecx", "r8d", "r9d"}
var argRegs8 = []string{"dil", "sil", "dl", "cl", "r8b", "r9b"}

// Generator holds the per-compilation-unit state a walk over the AST
// accumulates into.
type Generator struct {
	prog *ast.Program
	os   asmtree.OS

	out      *asmtree.Node // current function's instruction stream
	retLabel string        // current function's single return/epilogue label
}

// Generate renders the whole program's x86-64 assembly as text.
func Generate(prog *ast.Program, os asmtree.OS) string {
	g := &Generator{prog: prog, os: os}
	asm := asmtree.NewProgram(os)

	for _, name := range prog.GlobalOrder {
		gv := prog.Globals[name]
		asm.Data.Append(g.globalDecl(gv))
	}
	for i, s := range prog.StringLits {
		asm.RoDat.Append(asmtree.Label(ast.StrLabel(i)), asmtree.Raw(".asciz "+quote(s)))
	}
	for _, name := range prog.FuncOrder {
		fn := prog.Funcs[name]
		if fn.Body == nil {
			continue // declaration only, nothing to emit
		}
		asm.Text.Append(asmtree.Raw(".globl " + os.Symbol(fn.Name)))
		g.out = asmtree.G()
		g.genFunction(fn)
		asm.Text.Append(g.out)
	}
	return asm.String()
}

// symbolRef resolves a GlobalVar's assembler name: string-literal labels
// (ast.StrLabel's ".L" prefix) are compiler-private and never mangled;
// genuine C globals are mangled per the target OS's symbol convention.
func symbolRef(os asmtree.OS, name string) string {
	if strings.HasPrefix(name, ".L") {
		return name
	}
	return os.Symbol(name)
}

func quote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
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

func (g *Generator) globalDecl(gv *ast.GlobalVariable) *asmtree.Node {
	n := asmtree.G(asmtree.Raw(".globl " + g.os.Symbol(gv.Name)), asmtree.Label(g.os.Symbol(gv.Name)))
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

func (g *Generator) ins(mnemonic string, ops ...string) {
	g.out.Append(asmtree.I(mnemonic, ops...))
}
func (g *Generator) label(name string) { g.out.Append(asmtree.Label(name)) }

// genFunction emits prologue, a 16-byte-aligned stack frame, the body,
// and an epilogue shared by every `return`.
func (g *Generator) genFunction(fn *ast.Function) {
	g.retLabel = ".Lret_" + fn.Name
	g.label(g.os.Symbol(fn.Name))
	g.ins("push", "rbp")
	g.ins("mov", "rbp", "rsp")
	frame := alignUp(fn.FrameSize, 16)
	if frame > 0 {
		g.ins("sub", "rsp", fmt.Sprintf("%d", frame))
	}

	for i, p := range fn.Params {
		if i >= len(argRegs64) {
			break
		}
		g.storeArgToFrame(p, i)
	}

	g.genStmt(fn.Body)

	g.label(g.retLabel)
	g.ins("leave")
	g.ins("ret")
}

func alignUp(n, align int) int {
	if rem := n % align; rem != 0 {
		return n + (align - rem)
	}
	return n
}

func (g *Generator) storeArgToFrame(p *ast.Node, argIndex int) {
	switch types.SizeOf(p.Cty) {
	case 1:
		g.ins("mov", fmt.Sprintf("BYTE PTR [rbp-%d]", p.Offset), argRegs8[argIndex])
	case 4:
		g.ins("mov", fmt.Sprintf("DWORD PTR [rbp-%d]", p.Offset), argRegs32[argIndex])
	default:
		g.ins("mov", fmt.Sprintf("QWORD PTR [rbp-%d]", p.Offset), argRegs64[argIndex])
	}
}

// genStmt walks a statement node. The value an expression statement
// pushes is popped here, so a statement leaves the virtual stack as it
// found it.
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
		g.ins("pop", "rax")
		g.ins("jmp", g.retLabel)
	case ast.If:
		g.genIf(n)
	case ast.While:
		g.genWhile(n)
	case ast.For:
		g.genFor(n)
	case ast.Break:
		g.ins("jmp", breakLabelFor(n.Token))
	default:
		g.genExpr(n)
		g.ins("pop", "rax")
	}
}

func breakLabelFor(labelPos int) string {
	return fmt.Sprintf(".Lbreak_%d", labelPos)
}

func (g *Generator) genIf(n *ast.Node) {
	elseLabel := fmt.Sprintf(".Lelse_%d", n.Token)
	endLabel := fmt.Sprintf(".Lend_%d", n.Token)
	g.genExpr(n.Cond)
	g.ins("pop", "rax")
	g.ins("cmp", "rax", "0")
	if n.Els != nil {
		g.ins("je", elseLabel)
	} else {
		g.ins("je", endLabel)
	}
	g.genStmt(n.Then)
	if n.Els != nil {
		g.ins("jmp", endLabel)
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
	g.ins("pop", "rax")
	g.ins("cmp", "rax", "0")
	g.ins("je", endLabel)
	g.genStmt(n.Then)
	g.ins("jmp", beginLabel)
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
		g.ins("pop", "rax")
		g.ins("cmp", "rax", "0")
		g.ins("je", endLabel)
	}
	g.genStmt(n.Then)
	if n.Upd != nil {
		g.genStmt(n.Upd)
	}
	g.ins("jmp", beginLabel)
	g.label(endLabel)
}

// genExpr evaluates an expression and pushes its result (or, for an
// lvalue used as a statement's side effect, pushes the stored value) so
// the virtual stack always has exactly one slot per subexpression.
func (g *Generator) genExpr(n *ast.Node) {
	switch n.Kind {
	case ast.Num:
		g.ins("mov", "rax", fmt.Sprintf("%d", n.Value))
		g.ins("push", "rax")
	case ast.LocalVar:
		g.genAddr(n)
		g.loadFromAddr(n.Cty)
	case ast.GlobalVar:
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
		g.ins("pop", "rax") // value (pushed last)
		g.ins("pop", "rdi") // address
		g.storeToAddr(n.Cty, "rax", "rdi")
		g.ins("push", "rax")
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
		g.ins("pop", "rax")
		g.ins("not", "rax")
		g.ins("push", "rax")
	case ast.Eq, ast.Ne, ast.Lt, ast.Le:
		g.genCompare(n)
	case ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod, ast.BitAnd, ast.BitOr, ast.BitXor, ast.BitLeft, ast.BitRight:
		g.genBinop(n)
	default:
		panic(fmt.Sprintf("unexpected node kind %v in expression context", n.Kind))
	}
}

// genAddr computes an lvalue's address and pushes it in rax.
func (g *Generator) genAddr(n *ast.Node) {
	switch n.Kind {
	case ast.LocalVar:
		g.ins("lea", "rax", fmt.Sprintf("[rbp-%d]", n.Offset))
		g.ins("push", "rax")
	case ast.GlobalVar:
		g.ins("lea", "rax", fmt.Sprintf("[rip+%s]", symbolRef(g.os, n.GlobalName)))
		g.ins("push", "rax")
	case ast.Deref:
		g.genExpr(n.Lhs)
	default:
		panic(fmt.Sprintf("unexpected node kind %v in address context", n.Kind))
	}
}

func (g *Generator) loadFromAddr(t *types.Type) {
	g.ins("pop", "rax")
	switch {
	case t.Kind == types.Arr:
		g.ins("push", "rax") // arrays decay to their own address
		return
	case types.SizeOf(t) == 1:
		g.ins("movsx", "rax", "BYTE PTR [rax]")
	case types.SizeOf(t) == 4:
		g.ins("movsxd", "rax", "DWORD PTR [rax]")
	default:
		g.ins("mov", "rax", "QWORD PTR [rax]")
	}
	g.ins("push", "rax")
}

func (g *Generator) storeToAddr(t *types.Type, valReg, addrReg string) {
	switch types.SizeOf(t) {
	case 1:
		g.ins("mov", fmt.Sprintf("BYTE PTR [%s]", addrReg), byteReg(valReg))
	case 4:
		g.ins("mov", fmt.Sprintf("DWORD PTR [%s]", addrReg), dwordReg(valReg))
	default:
		g.ins("mov", fmt.Sprintf("QWORD PTR [%s]", addrReg), valReg)
	}
}

func byteReg(r string) string {
	switch r {
	case "rax":
		return "al"
	case "rdi":
		return "dil"
	default:
		return r
	}
}

func dwordReg(r string) string {
	switch r {
	case "rax":
		return "eax"
	case "rdi":
		return "edi"
	default:
		return r
	}
}

func (g *Generator) genSuffix(n *ast.Node) {
	g.genAddr(n.Lhs)
	g.ins("pop", "rdi")
	switch types.SizeOf(n.Cty) {
	case 1:
		g.ins("movsx", "rax", "BYTE PTR [rdi]")
	case 4:
		g.ins("movsxd", "rax", "DWORD PTR [rdi]")
	default:
		g.ins("mov", "rax", "QWORD PTR [rdi]")
	}
	g.ins("push", "rax") // old value is the expression's result
	step := 1
	if n.Cty.Kind == types.Ptr {
		step = types.SizeOf(types.DestType(n.Cty))
	}
	if n.Kind == ast.SuffixIncr {
		g.ins("add", "rax", fmt.Sprintf("%d", step))
	} else {
		g.ins("sub", "rax", fmt.Sprintf("%d", step))
	}
	g.storeToAddr(n.Cty, "rax", "rdi")
}

// genCall pads rsp to a 16-byte boundary, evaluates arguments
// left-to-right, pops them right-to-left into the SysV integer argument
// registers, calls, then undoes the padding. The argument cap (<7) means
// every call fits entirely in registers — no stack-passed arguments are
// ever generated.
//
// The virtual stack's own push/pop already nets to zero around the call
// (every pushed arg is popped before `call`), but rsp's value at the
// point of `call` still depends on how many 8-byte slots are live on
// entry to the expression, which genExpr's stack discipline does not
// keep 16-aligned. rdx = (rsp+8) mod 16 is the padding needed so that,
// after `sub rsp, rdx` and the 8-byte `push rdx`, rsp sits on a 16-byte
// boundary at the `call` instruction, as SysV requires — the same
// runtime computation as the original implementation this backend is
// ported from.
func (g *Generator) genCall(n *ast.Node) {
	g.ins("mov", "rax", "rsp")
	g.ins("add", "rax", "8")
	g.ins("mov", "rdi", "16")
	g.ins("cqo")
	g.ins("idiv", "rdi")
	g.ins("sub", "rsp", "rdx")
	g.ins("push", "rdx") // remember the padding so it can be undone below

	for _, a := range n.Args {
		g.genExpr(a)
	}
	for i := len(n.Args) - 1; i >= 0; i-- {
		g.ins("pop", argRegs64[i])
	}
	g.ins("mov", "al", "0") // vararg convention: no SSE args used
	g.ins("call", g.os.Symbol(n.GlobalName))
	g.ins("pop", "rdi")
	g.ins("add", "rsp", "rdi")
	g.ins("push", "rax")
}

func (g *Generator) genLogicalAnd(n *ast.Node) {
	falseLabel := fmt.Sprintf(".Lfalse_%d", n.Token)
	endLabel := fmt.Sprintf(".Lend_%d", n.Token)
	g.genExpr(n.Lhs)
	g.ins("pop", "rax")
	g.ins("cmp", "rax", "0")
	g.ins("je", falseLabel)
	g.genExpr(n.Rhs)
	g.ins("pop", "rax")
	g.ins("cmp", "rax", "0")
	g.ins("je", falseLabel)
	g.ins("mov", "rax", "1")
	g.ins("jmp", endLabel)
	g.label(falseLabel)
	g.ins("mov", "rax", "0")
	g.label(endLabel)
	g.ins("push", "rax")
}

func (g *Generator) genLogicalOr(n *ast.Node) {
	trueLabel := fmt.Sprintf(".Ltrue_%d", n.Token)
	endLabel := fmt.Sprintf(".Lend_%d", n.Token)
	g.genExpr(n.Lhs)
	g.ins("pop", "rax")
	g.ins("cmp", "rax", "0")
	g.ins("jne", trueLabel)
	g.genExpr(n.Rhs)
	g.ins("pop", "rax")
	g.ins("cmp", "rax", "0")
	g.ins("jne", trueLabel)
	g.ins("mov", "rax", "0")
	g.ins("jmp", endLabel)
	g.label(trueLabel)
	g.ins("mov", "rax", "1")
	g.label(endLabel)
	g.ins("push", "rax")
}

func (g *Generator) genTernary(n *ast.Node) {
	elseLabel := fmt.Sprintf(".Lelse_%d", n.Token)
	endLabel := fmt.Sprintf(".Lend_%d", n.Token)
	g.genExpr(n.Cond)
	g.ins("pop", "rax")
	g.ins("cmp", "rax", "0")
	g.ins("je", elseLabel)
	g.genExpr(n.Then)
	g.ins("jmp", endLabel)
	g.label(elseLabel)
	g.genExpr(n.Els)
	g.label(endLabel)
}

func (g *Generator) genCompare(n *ast.Node) {
	g.genExpr(n.Lhs)
	g.genExpr(n.Rhs)
	g.ins("pop", "rdi")
	g.ins("pop", "rax")
	g.ins("cmp", "rax", "rdi")
	switch n.Kind {
	case ast.Eq:
		g.ins("sete", "al")
	case ast.Ne:
		g.ins("setne", "al")
	case ast.Lt:
		g.ins("setl", "al")
	case ast.Le:
		g.ins("setle", "al")
	}
	g.ins("movzx", "rax", "al")
	g.ins("push", "rax")
}

func (g *Generator) genBinop(n *ast.Node) {
	g.genExpr(n.Lhs)
	g.genExpr(n.Rhs)
	g.ins("pop", "rdi")
	g.ins("pop", "rax")

	if scaled := pointerScale(n); scaled > 1 {
		g.ins("imul", "rdi", fmt.Sprintf("%d", scaled))
	}

	switch n.Kind {
	case ast.Add:
		g.ins("add", "rax", "rdi")
	case ast.Sub:
		g.ins("sub", "rax", "rdi")
	case ast.Mul:
		g.ins("imul", "rax", "rdi")
	case ast.Div:
		g.ins("cqo")
		g.ins("idiv", "rdi")
	case ast.Mod:
		g.ins("cqo")
		g.ins("idiv", "rdi")
		g.ins("mov", "rax", "rdx")
	case ast.BitAnd:
		g.ins("and", "rax", "rdi")
	case ast.BitOr:
		g.ins("or", "rax", "rdi")
	case ast.BitXor:
		g.ins("xor", "rax", "rdi")
	case ast.BitLeft:
		g.ins("mov", "rcx", "rdi")
		g.ins("sal", "rax", "cl")
	case ast.BitRight:
		g.ins("mov", "rcx", "rdi")
		g.ins("sar", "rax", "cl")
	}
	g.ins("push", "rax")
}

// pointerScale reports the element size to multiply the non-pointer
// operand by for Add/Sub on a pointer-typed node (the parser has already
// arranged for the pointer operand to sit on the left for Add).
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
		return 1 // pointer difference: left to caller/unsupported scaling
	}
	return types.SizeOf(types.DestType(lt))
}
