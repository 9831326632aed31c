package llvmir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dytlzl/dynamite-compiler/internal/parser"
	"github.com/dytlzl/dynamite-compiler/internal/srcerr"
	"github.com/dytlzl/dynamite-compiler/internal/token"
)

func compile(t *testing.T, src string) string {
	t.Helper()
	sink := &srcerr.RecordingSink{Source: src}
	toks := token.NewLexer(src, sink).Tokenize()
	prog := parser.New(toks, sink).Parse()
	require.False(t, sink.HasErrors(), "%v", sink.Reports)
	return Generate(prog)
}

func TestGenerateSimpleFunction(t *testing.T) {
	out := compile(t, `
int add(int a, int b) {
	return a + b;
}
`)
	require.Contains(t, out, "define i32 @add")
	require.Contains(t, out, "alloca")
	require.Contains(t, out, "ret i32")
}

func TestGenerateCallPassesArgsDirectly(t *testing.T) {
	out := compile(t, `
int add(int a, int b) { return a + b; }
int main() { return add(1, 2); }
`)
	require.Contains(t, out, "call i32 @add")
}

func TestGenerateIfProducesThreeBlocks(t *testing.T) {
	out := compile(t, `
int main() {
	int a;
	a = 1;
	if (a == 1) { a = 2; } else { a = 3; }
	return a;
}
`)
	require.Contains(t, out, "if.then")
	require.Contains(t, out, "if.else")
	require.Contains(t, out, "if.end")
}

// TestBreakLocality is the spec's property #8 restated for basic-block
// control flow: break inside a nested loop jumps to its own loop's end
// block, not some other loop's.
func TestBreakLocality(t *testing.T) {
	out := compile(t, `
int main() {
	int i;
	int j;
	i = 0;
	while (i < 3) {
		j = 0;
		while (j < 3) {
			if (j == 1) break;
			j = j + 1;
		}
		i = i + 1;
	}
	return i;
}
`)
	require.Contains(t, out, "while.end")
	// Blocks are numbered in creation order: the outer loop's end block
	// is while.end.4, the inner loop's is while.end.7.
	require.Contains(t, out, "br label %while.end.7")
	require.NotContains(t, out, "br label %while.end.4")
}

func TestGenerateGlobalArrayInitializer(t *testing.T) {
	out := compile(t, `
int xs[3] = {1, 2, 3};
int main() { return xs[0]; }
`)
	require.Contains(t, out, "@xs")
	require.Contains(t, out, "[3 x i32]")
}

func TestGenerateStringLiteralGlobal(t *testing.T) {
	out := compile(t, `
int main() {
	printf("hi\n");
	return 0;
}
`)
	require.Contains(t, out, "@.Lstr0")
	require.Contains(t, out, "call i32 (i8*, ...) @printf")
}

func TestGenerateWhileLoop(t *testing.T) {
	out := compile(t, `
int main() {
	int i;
	i = 0;
	while (i < 10) {
		i = i + 1;
	}
	return i;
}
`)
	require.Contains(t, out, "while.cond")
	require.Contains(t, out, "while.body")
}

func TestGenerateForLoop(t *testing.T) {
	out := compile(t, `
int main() {
	int i;
	int s;
	s = 0;
	for (i = 0; i < 10; i = i + 1) {
		s = s + i;
	}
	return s;
}
`)
	require.Contains(t, out, "for.cond")
	require.Contains(t, out, "for.body")
}
