// Package parser implements the recursive-descent parser and semantic
// analyzer: tokens -> ast.Program, with lexical scoping, type resolution,
// and compile-time constant evaluation of global initializers.
package parser

import (
	"github.com/dytlzl/dynamite-compiler/internal/ast"
	"github.com/dytlzl/dynamite-compiler/internal/srcerr"
	"github.com/dytlzl/dynamite-compiler/internal/token"
	"github.com/dytlzl/dynamite-compiler/internal/types"
)

const maxArgs = 7 // spec: reject definitions/call sites with >= 7 arguments

type loopFrame struct {
	labelPos int // the For/While token's pos, used to build .Lend<n>
}

// Parser turns a token sequence into a fully typed Program.
type Parser struct {
	toks []token.Token
	pos  int
	sink srcerr.Sink

	prog      *ast.Program
	scopes    *scopeStack
	frameSize int
	loops     []loopFrame
}

func New(toks []token.Token, sink srcerr.Sink) *Parser {
	p := &Parser{toks: toks, sink: sink, prog: ast.NewProgram(), scopes: newScopeStack()}
	seedReservedFunctions(p.scopes)
	return p
}

// Parse runs program := (global_definition)*.
func (p *Parser) Parse() *ast.Program {
	for !p.atEnd() {
		p.parseGlobalDef()
	}
	return p.prog
}

// ---- token-stream helpers ----

func (p *Parser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *Parser) cur() token.Token {
	if p.atEnd() {
		if len(p.toks) == 0 {
			return token.Token{}
		}
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos]
}

func (p *Parser) curPos() int { return p.cur().Pos }

func (p *Parser) advance() token.Token {
	t := p.cur()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *Parser) isSym(sym string) bool {
	t := p.cur()
	return !p.atEnd() && t.Kind == token.Reserved && t.SValue == sym
}

func (p *Parser) acceptSym(sym string) bool {
	if p.isSym(sym) {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) expectSym(sym string) token.Token {
	if !p.isSym(sym) {
		p.sink.Fatal(p.curPos(), "`%s` expected", sym)
		return p.cur()
	}
	return p.advance()
}

func (p *Parser) expectIdent() (string, int) {
	t := p.cur()
	if p.atEnd() || t.Kind != token.Ident {
		p.sink.Fatal(p.curPos(), "identifier expected")
		return "", p.curPos()
	}
	p.pos++
	return t.SValue, t.Pos
}

func (p *Parser) expectNum() int64 {
	t := p.cur()
	if p.atEnd() || t.Kind != token.Num {
		p.sink.Fatal(p.curPos(), "number expected, but got %s", t.SValue)
		return 0
	}
	p.pos++
	return t.IValue
}

// ---- types & declarators ----

// tryBaseType reports whether the current token is "int" or "char" and, if
// so, consumes it.
func (p *Parser) tryBaseType() (*types.Type, bool) {
	if p.isSym("int") {
		p.pos++
		return types.I32Type, true
	}
	if p.isSym("char") {
		p.pos++
		return types.I8Type, true
	}
	return nil, false
}

// declarator parses ('*')* ident ('[' NUM ']')* against a base type and
// returns the declared name and its full type.
func (p *Parser) declarator(base *types.Type) (string, int, *types.Type) {
	t := base
	for p.acceptSym("*") {
		t = types.PtrTo(t)
	}
	name, namePos := p.expectIdent()

	var dims []int
	for p.acceptSym("[") {
		dims = append(dims, int(p.expectNum()))
		p.expectSym("]")
	}
	for i := len(dims) - 1; i >= 0; i-- {
		t = types.ArrOf(t, dims[i])
	}
	return name, namePos, t
}

// ---- global definitions ----

func (p *Parser) parseGlobalDef() {
	base, ok := p.tryBaseType()
	if !ok {
		p.sink.Fatal(p.curPos(), "type expected")
		p.pos++ // resync
		return
	}

	// Peek ahead far enough to distinguish a function definition
	// ("type ident (") from a variable declaration list. Declarators may
	// start with '*', functions never do in this grammar.
	save := p.pos
	if !p.isSym("*") {
		if _, _, isFunc := p.peekIdentThenParen(); isFunc {
			p.parseFunction(base)
			return
		}
	}
	p.pos = save
	p.parseGlobalVarDecls(base)
}

// peekIdentThenParen looks ahead for "ident (" without consuming tokens.
func (p *Parser) peekIdentThenParen() (string, int, bool) {
	if p.atEnd() || p.cur().Kind != token.Ident {
		return "", 0, false
	}
	name := p.cur().SValue
	pos := p.cur().Pos
	if p.pos+1 >= len(p.toks) {
		return name, pos, false
	}
	next := p.toks[p.pos+1]
	if next.Kind == token.Reserved && next.SValue == "(" {
		return name, pos, true
	}
	return "", 0, false
}

func (p *Parser) parseFunction(ret *types.Type) {
	name, namePos := p.expectIdent()
	p.expectSym("(")

	p.scopes.push()
	p.frameSize = 0
	var params []*ast.Node
	var paramTypes []*types.Type
	if !p.isSym(")") {
		for {
			pbase, ok := p.tryBaseType()
			if !ok {
				p.sink.Fatal(p.curPos(), "type expected")
				break
			}
			pname, ppos, pty := p.declarator(pbase)
			if len(params) >= maxArgs-1 {
				p.sink.Fatal(ppos, "count of args must be less than 7")
			}
			offset := p.allocLocal(pty)
			p.scopes.declare(pname, &binding{kind: bindLocal, cty: pty, frameOffset: offset})
			params = append(params, &ast.Node{Kind: ast.LocalVar, Cty: pty, Token: ppos, Offset: offset, GlobalName: pname})
			paramTypes = append(paramTypes, pty)
			if !p.acceptSym(",") {
				break
			}
		}
	}
	p.expectSym(")")

	fnType := types.FuncOf(paramTypes, ret)
	// Declare in the enclosing (outer) scope, which sits just below the
	// function-parameter scope we pushed above.
	outer := p.scopes.scopes[len(p.scopes.scopes)-2]
	outer[name] = &binding{kind: bindStatic, cty: fnType}

	fn := &ast.Function{Name: name, Cty: fnType, Token: namePos, Params: params}

	if p.acceptSym(";") {
		p.scopes.pop()
		p.prog.AddFunc(fn)
		return
	}

	fn.Body = p.parseBlockBody() // re-uses the scope we already pushed
	fn.FrameSize = p.frameSize
	p.scopes.pop()
	p.prog.AddFunc(fn)
}

func (p *Parser) parseGlobalVarDecls(base *types.Type) {
	for {
		name, namePos, cty := p.declarator(base)
		if p.scopes.declaredInInnermost(name) {
			p.sink.Fatal(namePos, "invalid redeclaration")
		}
		p.scopes.declare(name, &binding{kind: bindStatic, cty: cty})

		g := &ast.GlobalVariable{Name: name, Cty: cty}
		if p.acceptSym("=") {
			g.Data = p.parseGlobalData(cty)
		}
		p.prog.AddGlobal(g)

		if !p.acceptSym(",") {
			break
		}
	}
	p.expectSym(";")
}

// parseGlobalData implements global_data := '{' global_data (',' global_data)* '}' | STR | equality
func (p *Parser) parseGlobalData(t *types.Type) *ast.GlobalVariableData {
	if p.acceptSym("{") {
		var elems []*ast.GlobalVariableData
		elem := t.Elem
		if elem == nil {
			elem = t
		}
		if !p.isSym("}") {
			for {
				elems = append(elems, p.parseGlobalData(elem))
				if !p.acceptSym(",") {
					break
				}
			}
		}
		p.expectSym("}")
		return &ast.GlobalVariableData{Elems: elems}
	}

	if p.cur().Kind == token.Str {
		s := p.advance().SValue
		label := p.prog.AddStringLiteral(s)
		return &ast.GlobalVariableData{Lit: label}
	}

	expr := p.parseEquality()
	v, ok := p.evalConst(expr)
	if !ok {
		p.sink.Fatal(expr.Token, "initializer element is not a compile-time constant")
		return &ast.GlobalVariableData{Lit: "0"}
	}
	return &ast.GlobalVariableData{Lit: itoa64(v)}
}

func itoa64(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [24]byte
	i := len(buf)
	if v == 0 {
		i--
		buf[i] = '0'
	}
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// evalConst is the small compile-time-constant interpreter over
// Num, Eq, Ne, Le, Lt, Add, Sub, Mul, Div, Mod.
func (p *Parser) evalConst(n *ast.Node) (int64, bool) {
	switch n.Kind {
	case ast.Num:
		return n.Value, true
	case ast.Eq, ast.Ne, ast.Le, ast.Lt, ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod:
		l, ok1 := p.evalConst(n.Lhs)
		r, ok2 := p.evalConst(n.Rhs)
		if !ok1 || !ok2 {
			return 0, false
		}
		switch n.Kind {
		case ast.Eq:
			return boolToInt(l == r), true
		case ast.Ne:
			return boolToInt(l != r), true
		case ast.Le:
			return boolToInt(l <= r), true
		case ast.Lt:
			return boolToInt(l < r), true
		case ast.Add:
			return l + r, true
		case ast.Sub:
			return l - r, true
		case ast.Mul:
			return l * r, true
		case ast.Div:
			if r == 0 {
				return 0, false
			}
			return l / r, true
		case ast.Mod:
			if r == 0 {
				return 0, false
			}
			return l % r, true
		}
	}
	return 0, false
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// ---- locals & frame layout ----

// allocLocal implements spec §4.4's local-variable layout algorithm:
// bump by size, then pad so the post-alignment offset is a multiple of
// the type's natural alignment.
func (p *Parser) allocLocal(t *types.Type) int {
	p.frameSize += types.SizeOf(t)
	align := types.Align(t)
	if rem := p.frameSize % align; rem != 0 {
		p.frameSize += align - rem
	}
	return p.frameSize
}

// ---- statements ----

func (p *Parser) parseBlockBody() *ast.Node {
	open := p.expectSym("{")
	blk := &ast.Node{Kind: ast.Block, Token: open.Pos}
	for !p.isSym("}") && !p.atEnd() {
		blk.Children = append(blk.Children, p.parseStmt())
	}
	p.expectSym("}")
	return blk
}

func (p *Parser) parseBlock() *ast.Node {
	p.scopes.push()
	blk := p.parseBlockBody()
	p.scopes.pop()
	return blk
}

func (p *Parser) parseStmt() *ast.Node {
	switch {
	case p.isSym("if"):
		return p.parseIf()
	case p.isSym("while"):
		return p.parseWhile()
	case p.isSym("for"):
		return p.parseFor()
	case p.isSym("{"):
		return p.parseBlock()
	case p.isSym("break"):
		pos := p.advance().Pos
		if len(p.loops) == 0 {
			p.sink.Fatal(pos, "unexpected break found")
		}
		p.expectSym(";")
		end := 0
		if len(p.loops) > 0 {
			end = p.loops[len(p.loops)-1].labelPos
		}
		n := &ast.Node{Kind: ast.Break, Token: end}
		return n
	case p.isSym("return"):
		pos := p.advance().Pos
		expr := p.parseExpr()
		p.expectSym(";")
		return &ast.Node{Kind: ast.Return, Token: pos, Lhs: expr}
	default:
		if base, ok := p.tryBaseType(); ok {
			n := p.parseLocalDecl(base)
			p.expectSym(";")
			return n
		}
		expr := p.parseExpr()
		p.expectSym(";")
		return expr
	}
}

func (p *Parser) parseIf() *ast.Node {
	pos := p.advance().Pos
	p.expectSym("(")
	cond := p.parseExpr()
	p.expectSym(")")
	then := p.parseStmt()
	n := &ast.Node{Kind: ast.If, Token: pos, Cond: cond, Then: then}
	if p.acceptSym("else") {
		n.Els = p.parseStmt()
	}
	return n
}

func (p *Parser) parseWhile() *ast.Node {
	pos := p.advance().Pos
	p.expectSym("(")
	cond := p.parseExpr()
	p.expectSym(")")
	p.loops = append(p.loops, loopFrame{labelPos: pos})
	body := p.parseStmt()
	p.loops = p.loops[:len(p.loops)-1]
	return &ast.Node{Kind: ast.While, Token: pos, Cond: cond, Then: body}
}

func (p *Parser) parseFor() *ast.Node {
	pos := p.advance().Pos
	p.expectSym("(")
	p.scopes.push()

	var ini *ast.Node
	if !p.isSym(";") {
		if base, ok := p.tryBaseType(); ok {
			ini = p.parseLocalDecl(base)
		} else {
			ini = p.parseExpr()
		}
	}
	p.expectSym(";")

	var cond *ast.Node
	if !p.isSym(";") {
		cond = p.parseExpr()
	}
	p.expectSym(";")

	var upd *ast.Node
	if !p.isSym(")") {
		upd = p.parseExpr()
	}
	p.expectSym(")")

	p.loops = append(p.loops, loopFrame{labelPos: pos})
	body := p.parseStmt()
	p.loops = p.loops[:len(p.loops)-1]

	p.scopes.pop()
	return &ast.Node{Kind: ast.For, Token: pos, Ini: ini, Cond: cond, Upd: upd, Then: body}
}

// parseLocalDecl handles "type local_decl" for both plain statements and
// the initializer clause of a for-loop; it does not consume the
// trailing ';'.
func (p *Parser) parseLocalDecl(base *types.Type) *ast.Node {
	name, namePos, cty := p.declarator(base)
	if p.scopes.declaredInInnermost(name) {
		p.sink.Fatal(namePos, "invalid redeclaration")
	}
	offset := p.allocLocal(cty)
	p.scopes.declare(name, &binding{kind: bindLocal, cty: cty, frameOffset: offset})
	localNode := func() *ast.Node {
		return &ast.Node{Kind: ast.LocalVar, Cty: cty, Token: namePos, Offset: offset, GlobalName: name}
	}

	def := &ast.Node{Kind: ast.DefVar, Cty: cty, Token: namePos}
	if !p.acceptSym("=") {
		return def
	}

	if cty.Kind == types.Arr {
		def.Lhs = p.parseArrayInitializer(localNode(), cty, 0)
	} else {
		rhs := p.parseEquality()
		def.Lhs = &ast.Node{Kind: ast.Assign, Token: namePos, Lhs: localNode(), Rhs: rhs, Cty: cty}
	}
	return def
}

// parseArrayInitializer desugars "T a[N] = { e0, e1, ... }" into a Block
// of Assign(*(a+i), ei) nodes, recursing for nested array initializers.
func (p *Parser) parseArrayInitializer(base *ast.Node, cty *types.Type, depth int) *ast.Node {
	open := p.expectSym("{")
	blk := &ast.Node{Kind: ast.Block, Token: open.Pos}
	elemType := cty.Elem
	i := 0
	if !p.isSym("}") {
		for {
			idx := &ast.Node{Kind: ast.Num, Value: int64(i), Cty: types.I32Type}
			elemPtr := p.indexExpr(base, idx, open.Pos)
			var elemAssign *ast.Node
			if elemType.Kind == types.Arr {
				inner := p.parseArrayInitializer(elemPtr, elemType, depth+1)
				elemAssign = inner
			} else {
				rhs := p.parseEquality()
				elemAssign = &ast.Node{Kind: ast.Assign, Token: open.Pos, Lhs: elemPtr, Rhs: rhs, Cty: elemType}
			}
			blk.Children = append(blk.Children, elemAssign)
			i++
			if !p.acceptSym(",") {
				break
			}
			if p.isSym("}") {
				break
			}
		}
	}
	p.expectSym("}")
	return blk
}

// indexExpr builds *(base + idx) typed as elemType, i.e. the desugared
// form of base[idx].
func (p *Parser) indexExpr(base *ast.Node, idx *ast.Node, pos int) *ast.Node {
	add := &ast.Node{Kind: ast.Add, Token: pos, Lhs: base, Rhs: idx}
	add.Cty = ast.ResolveType(add)
	return &ast.Node{Kind: ast.Deref, Token: pos, Lhs: add, Dest: add, Cty: types.DestType(add.Cty)}
}

// ---- expressions ----

func (p *Parser) parseExpr() *ast.Node {
	return p.parseAssign()
}

var compoundAssignOps = map[string]ast.Kind{
	"+=": ast.Add, "-=": ast.Sub, "*=": ast.Mul, "/=": ast.Div, "%=": ast.Mod,
	"&=": ast.BitAnd, "|=": ast.BitOr, "^=": ast.BitXor,
	"<<=": ast.BitLeft, ">>=": ast.BitRight,
}

func (p *Parser) parseAssign() *ast.Node {
	lhs := p.parseTernary()
	if p.acceptSym("=") {
		pos := lhs.Token
		rhs := p.parseAssign()
		n := &ast.Node{Kind: ast.Assign, Token: pos, Lhs: lhs, Rhs: rhs}
		n.Cty = ast.ResolveType(n)
		return n
	}
	for sym, kind := range compoundAssignOps {
		if p.isSym(sym) {
			pos := p.advance().Pos
			rhs := p.parseAssign()
			binop := &ast.Node{Kind: kind, Token: pos, Lhs: lhs, Rhs: rhs}
			binop.Cty = ast.ResolveType(binop)
			n := &ast.Node{Kind: ast.Assign, Token: pos, Lhs: lhs, Rhs: binop}
			n.Cty = ast.ResolveType(n)
			return n
		}
	}
	return lhs
}

func (p *Parser) parseTernary() *ast.Node {
	cond := p.parseLogicalOr()
	if p.isSym("?") {
		pos := p.advance().Pos
		then := p.parseLogicalOr()
		p.expectSym(":")
		els := p.parseLogicalOr()
		n := &ast.Node{Kind: ast.If, Token: pos, Cond: cond, Then: then, Els: els}
		n.Cty = ast.ResolveType(then)
		return n
	}
	return cond
}

func (p *Parser) parseLogicalOr() *ast.Node {
	n := p.parseLogicalAnd()
	for p.isSym("||") {
		pos := p.advance().Pos
		rhs := p.parseLogicalAnd()
		n = &ast.Node{Kind: ast.LogicalOr, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
	}
	return n
}

func (p *Parser) parseLogicalAnd() *ast.Node {
	n := p.parseBitOr()
	for p.isSym("&&") {
		pos := p.advance().Pos
		rhs := p.parseBitOr()
		n = &ast.Node{Kind: ast.LogicalAnd, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
	}
	return n
}

func (p *Parser) parseBitOr() *ast.Node {
	n := p.parseBitXor()
	for p.isSym("|") {
		pos := p.advance().Pos
		rhs := p.parseBitXor()
		n = &ast.Node{Kind: ast.BitOr, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
	}
	return n
}

func (p *Parser) parseBitXor() *ast.Node {
	n := p.parseBitAnd()
	for p.isSym("^") {
		pos := p.advance().Pos
		rhs := p.parseBitAnd()
		n = &ast.Node{Kind: ast.BitXor, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
	}
	return n
}

func (p *Parser) parseBitAnd() *ast.Node {
	n := p.parseEquality()
	for p.isSym("&") {
		pos := p.advance().Pos
		rhs := p.parseEquality()
		n = &ast.Node{Kind: ast.BitAnd, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
	}
	return n
}

func (p *Parser) parseEquality() *ast.Node {
	n := p.parseRelational()
	for {
		switch {
		case p.isSym("=="):
			pos := p.advance().Pos
			rhs := p.parseRelational()
			n = &ast.Node{Kind: ast.Eq, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
		case p.isSym("!="):
			pos := p.advance().Pos
			rhs := p.parseRelational()
			n = &ast.Node{Kind: ast.Ne, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
		default:
			return n
		}
	}
}

func (p *Parser) parseRelational() *ast.Node {
	n := p.parseBitShift()
	for {
		switch {
		case p.isSym("<"):
			pos := p.advance().Pos
			rhs := p.parseBitShift()
			n = &ast.Node{Kind: ast.Lt, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
		case p.isSym("<="):
			pos := p.advance().Pos
			rhs := p.parseBitShift()
			n = &ast.Node{Kind: ast.Le, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
		case p.isSym(">"):
			pos := p.advance().Pos
			rhs := p.parseBitShift()
			n = &ast.Node{Kind: ast.Lt, Token: pos, Lhs: rhs, Rhs: n, Cty: types.I32Type}
		case p.isSym(">="):
			pos := p.advance().Pos
			rhs := p.parseBitShift()
			n = &ast.Node{Kind: ast.Le, Token: pos, Lhs: rhs, Rhs: n, Cty: types.I32Type}
		default:
			return n
		}
	}
}

func (p *Parser) parseBitShift() *ast.Node {
	n := p.parseAdd()
	for {
		switch {
		case p.isSym("<<"):
			pos := p.advance().Pos
			rhs := p.parseAdd()
			n = &ast.Node{Kind: ast.BitLeft, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
		case p.isSym(">>"):
			pos := p.advance().Pos
			rhs := p.parseAdd()
			n = &ast.Node{Kind: ast.BitRight, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
		default:
			return n
		}
	}
}

func (p *Parser) parseAdd() *ast.Node {
	n := p.parseMul()
	for {
		switch {
		case p.isSym("+"):
			pos := p.advance().Pos
			rhs := p.parseMul()
			n = p.buildPointerBinop(ast.Add, pos, n, rhs)
		case p.isSym("-"):
			pos := p.advance().Pos
			rhs := p.parseMul()
			n = p.buildPointerBinop(ast.Sub, pos, n, rhs)
		default:
			return n
		}
	}
}

// buildPointerBinop implements the pointer-arithmetic swap and typing
// rule: when lhs has no dest_type but rhs does, swap operands so scaling
// (applied to the non-pointer operand, in codegen) lands on the right side.
func (p *Parser) buildPointerBinop(kind ast.Kind, pos int, lhs, rhs *ast.Node) *ast.Node {
	lhsTy := ast.ResolveType(lhs)
	rhsTy := ast.ResolveType(rhs)
	if kind == ast.Add && !types.IsPointerLike(lhsTy) && types.IsPointerLike(rhsTy) {
		lhs, rhs = rhs, lhs
	}
	n := &ast.Node{Kind: kind, Token: pos, Lhs: lhs, Rhs: rhs}
	n.Cty = ast.ResolveType(n)
	return n
}

func (p *Parser) parseMul() *ast.Node {
	n := p.parseUnary()
	for {
		switch {
		case p.isSym("*"):
			pos := p.advance().Pos
			rhs := p.parseUnary()
			n = &ast.Node{Kind: ast.Mul, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
		case p.isSym("/"):
			pos := p.advance().Pos
			rhs := p.parseUnary()
			n = &ast.Node{Kind: ast.Div, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
		case p.isSym("%"):
			pos := p.advance().Pos
			rhs := p.parseUnary()
			n = &ast.Node{Kind: ast.Mod, Token: pos, Lhs: n, Rhs: rhs, Cty: types.I32Type}
		default:
			return n
		}
	}
}

func (p *Parser) parseUnary() *ast.Node {
	switch {
	case p.isSym("sizeof"):
		pos := p.advance().Pos
		if t, ok := p.trySizeofType(); ok {
			return &ast.Node{Kind: ast.Num, Token: pos, Value: int64(types.SizeOf(t)), Cty: types.I32Type}
		}
		operand := p.parseUnary()
		sz := types.SizeOf(ast.ResolveType(operand))
		return &ast.Node{Kind: ast.Num, Token: pos, Value: int64(sz), Cty: types.I32Type}
	case p.isSym("+"):
		p.advance()
		return p.parseUnary()
	case p.isSym("-"):
		pos := p.advance().Pos
		operand := p.parseUnary()
		zero := &ast.Node{Kind: ast.Num, Token: pos, Value: 0, Cty: types.I32Type}
		return &ast.Node{Kind: ast.Sub, Token: pos, Lhs: zero, Rhs: operand, Cty: types.I32Type}
	case p.isSym("&"):
		pos := p.advance().Pos
		operand := p.parseUnary()
		return &ast.Node{Kind: ast.Addr, Token: pos, Dest: operand, Cty: types.PtrTo(ast.ResolveType(operand))}
	case p.isSym("*"):
		pos := p.advance().Pos
		operand := p.parseUnary()
		return &ast.Node{Kind: ast.Deref, Token: pos, Lhs: operand, Dest: operand, Cty: types.DestType(ast.ResolveType(operand))}
	case p.isSym("~"):
		pos := p.advance().Pos
		operand := p.parseUnary()
		return &ast.Node{Kind: ast.BitNot, Token: pos, Lhs: operand, Cty: types.I32Type}
	case p.isSym("!"):
		pos := p.advance().Pos
		operand := p.parseUnary()
		zero := &ast.Node{Kind: ast.Num, Token: pos, Value: 0, Cty: types.I32Type}
		return &ast.Node{Kind: ast.Eq, Token: pos, Lhs: operand, Rhs: zero, Cty: types.I32Type}
	case p.isSym("++"):
		pos := p.advance().Pos
		operand := p.parseUnary()
		one := &ast.Node{Kind: ast.Num, Token: pos, Value: 1, Cty: types.I32Type}
		add := p.buildPointerBinop(ast.Add, pos, operand, one)
		n := &ast.Node{Kind: ast.Assign, Token: pos, Lhs: operand, Rhs: add}
		n.Cty = ast.ResolveType(n)
		return n
	case p.isSym("--"):
		pos := p.advance().Pos
		operand := p.parseUnary()
		one := &ast.Node{Kind: ast.Num, Token: pos, Value: 1, Cty: types.I32Type}
		sub := &ast.Node{Kind: ast.Sub, Token: pos, Lhs: operand, Rhs: one, Cty: ast.ResolveType(operand)}
		n := &ast.Node{Kind: ast.Assign, Token: pos, Lhs: operand, Rhs: sub}
		n.Cty = ast.ResolveType(n)
		return n
	default:
		return p.parsePrimWithPostfix()
	}
}

// trySizeofType attempts "( 'int'|'char' ('*')* )" and only consumes
// tokens on success, so "sizeof(expr)" still falls through to the
// ordinary unary/paren-expression path.
func (p *Parser) trySizeofType() (*types.Type, bool) {
	save := p.pos
	if !p.acceptSym("(") {
		return nil, false
	}
	base, ok := p.tryBaseType()
	if !ok {
		p.pos = save
		return nil, false
	}
	t := base
	for p.acceptSym("*") {
		t = types.PtrTo(t)
	}
	if !p.acceptSym(")") {
		p.pos = save
		return nil, false
	}
	return t, true
}

func (p *Parser) parsePrimWithPostfix() *ast.Node {
	n := p.parsePrim()
	for {
		switch {
		case p.isSym("("):
			n = p.parseCallArgs(n)
		case p.isSym("["):
			pos := p.advance().Pos
			idx := p.parseExpr()
			p.expectSym("]")
			n = p.indexExpr(n, idx, pos)
		case p.isSym("++"):
			pos := p.advance().Pos
			n = &ast.Node{Kind: ast.SuffixIncr, Token: pos, Lhs: n, Cty: ast.ResolveType(n)}
		case p.isSym("--"):
			pos := p.advance().Pos
			n = &ast.Node{Kind: ast.SuffixDecr, Token: pos, Lhs: n, Cty: ast.ResolveType(n)}
		default:
			return n
		}
	}
}

func (p *Parser) parseCallArgs(callee *ast.Node) *ast.Node {
	pos := p.expectSym("(").Pos
	var args []*ast.Node
	if !p.isSym(")") {
		for {
			args = append(args, p.parseAssign())
			if !p.acceptSym(",") {
				break
			}
		}
	}
	p.expectSym(")")
	if len(args) >= maxArgs {
		p.sink.Fatal(pos, "count of args must be less than 7")
	}
	retType := callee.Cty
	if retType != nil && retType.Kind == types.Func {
		retType = retType.Ret
	}
	return &ast.Node{Kind: ast.CallFunc, Token: pos, GlobalName: callee.GlobalName, Args: args, Cty: retType}
}

func (p *Parser) parsePrim() *ast.Node {
	if p.acceptSym("(") {
		n := p.parseExpr()
		p.expectSym(")")
		return n
	}

	if p.cur().Kind == token.Str {
		t := p.advance()
		label := p.prog.AddStringLiteral(t.SValue)
		gv := &ast.Node{Kind: ast.GlobalVar, Token: t.Pos, GlobalName: label, Cty: types.I8Type}
		return &ast.Node{Kind: ast.Addr, Token: t.Pos, Dest: gv, Cty: types.PtrTo(types.I8Type)}
	}

	if p.cur().Kind == token.Num {
		t := p.advance()
		return &ast.Node{Kind: ast.Num, Token: t.Pos, Value: t.IValue, Cty: types.I32Type}
	}

	if p.cur().Kind == token.Ident {
		t := p.advance()
		b, ok := p.scopes.lookup(t.SValue)
		if !ok {
			p.sink.Fatal(t.Pos, "undefined variable")
			return &ast.Node{Kind: ast.Num, Token: t.Pos, Cty: types.I32Type}
		}
		switch b.kind {
		case bindLocal:
			return &ast.Node{Kind: ast.LocalVar, Token: t.Pos, Offset: b.frameOffset, Cty: b.cty, GlobalName: t.SValue}
		default:
			return &ast.Node{Kind: ast.GlobalVar, Token: t.Pos, GlobalName: t.SValue, Cty: b.cty}
		}
	}

	p.sink.Fatal(p.curPos(), "number expected, but got %s", p.cur().SValue)
	p.pos++
	return &ast.Node{Kind: ast.Num, Cty: types.I32Type}
}
