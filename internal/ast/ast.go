// Package ast defines the compiler's single heterogeneous node type and
// the top-level program structure the parser produces and every code
// generator walks.
package ast

import "github.com/dytlzl/dynamite-compiler/internal/types"

// Kind tags the variant of a Node. One node struct carries a superset of
// optional fields; each kind uses only the subset documented on that
// field's comment in Node.
type Kind int

const (
	Assign Kind = iota
	LocalVar
	GlobalVar
	Add
	Sub
	Mul
	Div
	Mod
	Eq
	Ne
	Lt
	Le
	BitLeft
	BitRight
	BitAnd
	BitXor
	BitOr
	BitNot
	LogicalAnd
	LogicalOr
	Num
	Return
	If
	While
	For
	Break
	Block
	CallFunc
	Addr
	Deref
	DefVar
	SuffixIncr
	SuffixDecr
)

// Node is the compiler's only AST node type. Every child is owned
// exclusively by its parent; there are no parent back-pointers and no
// cycles.
type Node struct {
	Kind  Kind
	Cty   *types.Type // resolved type, set by the parser
	Token int         // source byte position that created this node (label seed); Break: the enclosing loop's position

	Lhs *Node // Assign/binary ops: left operand; Return/Deref/BitNot/SuffixIncr/SuffixDecr: operand; DefVar: initializer (nil if absent)
	Rhs *Node // Assign/binary ops: right operand

	Value int64 // Num: literal value

	Cond *Node // If/While/For: condition
	Then *Node // If: then-branch; While/For: loop body
	Els  *Node // If: else-branch (nil if absent)

	Ini *Node // For: initializer (nil if absent)
	Upd *Node // For: update expression (nil if absent)

	Children []*Node // Block: statement list

	GlobalName string // GlobalVar/CallFunc: symbol name; LocalVar: source name
	Dest       *Node  // Addr: operand whose address is taken; Deref: operand to dereference

	Args []*Node // CallFunc: argument expressions

	Offset int // LocalVar: byte offset from the frame base (non-zero, alignment-padded)
}

// Function is a parsed function: either a definition (Body != nil) or a
// bare declaration establishing a callable signature.
type Function struct {
	Name      string
	Cty       *types.Type // Kind == types.Func
	Token     int
	Params    []*Node // LocalVar nodes, in declaration order
	Body      *Node   // Block, or nil for a declaration without a body
	FrameSize int     // total frame bytes needed by this function's locals
}

// GlobalVariableData is the (possibly nested) initializer of a global.
// Exactly one of Lit/Elems is set.
type GlobalVariableData struct {
	Lit   string // a decimal integer or a ".LstrK" string-literal label reference
	Elems []*GlobalVariableData
}

// GlobalVariable is a parsed top-level variable declaration.
type GlobalVariable struct {
	Name string
	Cty  *types.Type
	Data *GlobalVariableData // nil if uninitialized
}

// Program is the parser's complete output: functions and globals in
// declaration order, plus the string-literal pool (one entry per literal
// occurrence) referenced by synthetic ".LstrK" labels.
type Program struct {
	FuncOrder   []string
	Funcs       map[string]*Function
	GlobalOrder []string
	Globals     map[string]*GlobalVariable
	StringLits  []string
}

func NewProgram() *Program {
	return &Program{
		Funcs:   make(map[string]*Function),
		Globals: make(map[string]*GlobalVariable),
	}
}

func (p *Program) AddFunc(f *Function) {
	if _, exists := p.Funcs[f.Name]; !exists {
		p.FuncOrder = append(p.FuncOrder, f.Name)
	}
	p.Funcs[f.Name] = f
}

func (p *Program) AddGlobal(g *GlobalVariable) {
	if _, exists := p.Globals[g.Name]; !exists {
		p.GlobalOrder = append(p.GlobalOrder, g.Name)
	}
	p.Globals[g.Name] = g
}

// AddStringLiteral appends a string literal to the pool and returns its
// ".LstrK" label. Equal literals are not merged.
func (p *Program) AddStringLiteral(s string) string {
	idx := len(p.StringLits)
	p.StringLits = append(p.StringLits, s)
	return StrLabel(idx)
}

// StrLabel names a compiler-private string-literal constant. The ".L"
// prefix marks it as a local assembler symbol: code generators must
// never apply OS export-symbol mangling (e.g. macOS's leading
// underscore) to a name with this prefix.
func StrLabel(idx int) string {
	return ".Lstr" + itoa(idx)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
