package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dytlzl/dynamite-compiler/internal/ast"
	"github.com/dytlzl/dynamite-compiler/internal/srcerr"
	"github.com/dytlzl/dynamite-compiler/internal/token"
	"github.com/dytlzl/dynamite-compiler/internal/types"
)

func mustParse(t *testing.T, src string) (*ast.Program, *srcerr.RecordingSink) {
	t.Helper()
	sink := &srcerr.RecordingSink{Source: src}
	toks := token.NewLexer(src, sink).Tokenize()
	prog := New(toks, sink).Parse()
	return prog, sink
}

func TestParserSimpleFunction(t *testing.T) {
	prog, sink := mustParse(t, `
int add(int a, int b) {
	return a + b;
}
`)
	require.False(t, sink.HasErrors())
	fn, ok := prog.Funcs["add"]
	require.True(t, ok)
	require.Len(t, fn.Params, 2)
	require.NotNil(t, fn.Body)
	require.Equal(t, ast.Block, fn.Body.Kind)
	require.Len(t, fn.Body.Children, 1)
	require.Equal(t, ast.Return, fn.Body.Children[0].Kind)
}

// TestParserDeterminism is the spec's property #3: parsing the same
// source twice must produce structurally identical trees.
func TestParserDeterminism(t *testing.T) {
	src := `
int g = 3;
int main() {
	int a;
	a = 1;
	while (a < 10) {
		a = a + 1;
		if (a == 5) break;
	}
	return a;
}
`
	p1, s1 := mustParse(t, src)
	p2, s2 := mustParse(t, src)
	require.False(t, s1.HasErrors())
	require.False(t, s2.HasErrors())
	require.Equal(t, p1.Funcs["main"].FrameSize, p2.Funcs["main"].FrameSize)
	require.Equal(t, shape(p1.Funcs["main"].Body), shape(p2.Funcs["main"].Body))
}

// shape flattens a tree to a comparable summary of kinds/offsets/values,
// ignoring pointer identity.
func shape(n *ast.Node) string {
	if n == nil {
		return "."
	}
	s := itoa64(int64(n.Kind)) + "{"
	s += itoa64(n.Value) + "," + itoa64(int64(n.Offset))
	s += "|" + shape(n.Lhs) + "|" + shape(n.Rhs) + "|" + shape(n.Cond)
	s += "|" + shape(n.Then) + "|" + shape(n.Els) + "|" + shape(n.Ini) + "|" + shape(n.Upd)
	for _, c := range n.Children {
		s += "|c:" + shape(c)
	}
	for _, a := range n.Args {
		s += "|a:" + shape(a)
	}
	s += "}"
	return s
}

// TestFrameOffsetAlignment is the spec's property #5: every local's
// offset is a multiple of its own type's alignment, and char packs
// tightly against a preceding byte while an int is realigned to 4.
func TestFrameOffsetAlignment(t *testing.T) {
	prog, sink := mustParse(t, `
int main() {
	char c = 1;
	int n = 2;
	char d = 3;
	return 0;
}
`)
	require.False(t, sink.HasErrors())
	body := prog.Funcs["main"].Body
	var offsets []int
	var ctys []*types.Type
	for _, stmt := range body.Children {
		if stmt.Kind == ast.DefVar {
			// DefVar itself carries no offset; its Assign's LocalVar does.
			offsets = append(offsets, stmt.Lhs.Lhs.Offset)
			ctys = append(ctys, stmt.Cty)
		}
	}
	require.Len(t, ctys, 3)
	// c at offset 1 (size 1, align 1)
	// n must be realigned up to a multiple of 4 after c's offset of 1 -> 8
	// d packs at offset 9 (size 1)
	require.Equal(t, types.I8Type, ctys[0])
	require.Equal(t, types.I32Type, ctys[1])
	require.Equal(t, types.I8Type, ctys[2])
	require.Equal(t, []int{1, 8, 9}, offsets)
	for i, off := range offsets {
		require.Zero(t, off%types.Align(ctys[i]))
	}
}

// TestInitializerSum is the spec's property #7: a fully-specified array
// initializer's element sum is preserved through parsing (here checked
// via the constant-evaluator that backs global initializers).
func TestInitializerSum(t *testing.T) {
	prog, sink := mustParse(t, `
int xs[4] = {1, 2, 3, 4};
`)
	require.False(t, sink.HasErrors())
	g := prog.Globals["xs"]
	require.NotNil(t, g.Data)
	require.Len(t, g.Data.Elems, 4)
	sum := 0
	for i, e := range g.Data.Elems {
		require.Equal(t, itoa64(int64(i+1)), e.Lit)
		sum += i + 1
	}
	require.Equal(t, 10, sum)
}

func TestParserDesugarsLogicalNot(t *testing.T) {
	prog, sink := mustParse(t, `
int main() {
	return !0;
}
`)
	require.False(t, sink.HasErrors())
	ret := prog.Funcs["main"].Body.Children[0]
	require.Equal(t, ast.Return, ret.Kind)
	require.Equal(t, ast.Eq, ret.Lhs.Kind)
}

func TestParserDesugarsCompoundAssign(t *testing.T) {
	prog, sink := mustParse(t, `
int main() {
	int a;
	a = 1;
	a += 2;
	return a;
}
`)
	require.False(t, sink.HasErrors())
	body := prog.Funcs["main"].Body
	assign := body.Children[2]
	require.Equal(t, ast.Assign, assign.Kind)
	require.Equal(t, ast.Add, assign.Rhs.Kind)
}

func TestParserSuffixIncrKeepsOwnKind(t *testing.T) {
	prog, sink := mustParse(t, `
int main() {
	int a;
	a = 1;
	a++;
	return a;
}
`)
	require.False(t, sink.HasErrors())
	body := prog.Funcs["main"].Body
	require.Equal(t, ast.SuffixIncr, body.Children[2].Kind)
}

func TestParserArrayIndexDesugarsToDeref(t *testing.T) {
	prog, sink := mustParse(t, `
int main() {
	int xs[3];
	xs[1] = 5;
	return xs[1];
}
`)
	require.False(t, sink.HasErrors())
	body := prog.Funcs["main"].Body
	assign := body.Children[1]
	require.Equal(t, ast.Assign, assign.Kind)
	require.Equal(t, ast.Deref, assign.Lhs.Kind)
	require.Equal(t, ast.Add, assign.Lhs.Lhs.Kind)
}

// TestBreakLocality is the spec's property #8: break inside nested
// blocks resolves to the innermost enclosing loop, and break outside any
// loop is an error.
func TestBreakLocality(t *testing.T) {
	prog, sink := mustParse(t, `
int main() {
	int i;
	i = 0;
	while (i < 10) {
		if (i == 5) {
			break;
		}
		i = i + 1;
	}
	return i;
}
`)
	require.False(t, sink.HasErrors())
	loop := prog.Funcs["main"].Body.Children[2]
	require.Equal(t, ast.While, loop.Kind)
	brk := loop.Then.Children[0].Then.Children[0]
	require.Equal(t, ast.Break, brk.Kind)
	require.Equal(t, loop.Token, brk.Token)

	_, sink2 := mustParse(t, `
int main() {
	break;
	return 0;
}
`)
	require.True(t, sink2.HasErrors())
}

func TestParserRejectsTooManyArgs(t *testing.T) {
	_, sink := mustParse(t, `
int f(int a, int b, int c, int d, int e, int f, int g) {
	return a;
}
`)
	require.True(t, sink.HasErrors())
}

func TestParserSizeof(t *testing.T) {
	prog, sink := mustParse(t, `
int main() {
	return sizeof(int);
}
`)
	require.False(t, sink.HasErrors())
	ret := prog.Funcs["main"].Body.Children[0]
	require.Equal(t, ast.Num, ret.Lhs.Kind)
	require.Equal(t, int64(4), ret.Lhs.Value)
}
