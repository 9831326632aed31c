package x86

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dytlzl/dynamite-compiler/internal/asmtree"
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
	return Generate(prog, asmtree.Linux)
}

func TestGenerateSimpleFunction(t *testing.T) {
	out := compile(t, `
int add(int a, int b) {
	return a + b;
}
`)
	require.Contains(t, out, ".globl add")
	require.Contains(t, out, "add:")
	require.Contains(t, out, "push rbp")
	require.Contains(t, out, "leave")
	require.Contains(t, out, "ret")
}

func TestGenerateCallLowersIntoArgRegisters(t *testing.T) {
	out := compile(t, `
int add(int a, int b) { return a + b; }
int main() { return add(1, 2); }
`)
	require.Contains(t, out, "call add")
	require.Contains(t, out, "pop rsi")
	require.Contains(t, out, "pop rdi")
}

// TestGenerateCallPadsStackAlignment covers spec §4.6: every call site
// computes and undoes a runtime rsp-mod-16 padding, since the virtual
// stack's 8-byte push/pop can leave rsp off a 16-byte boundary at the
// point of `call`.
func TestGenerateCallPadsStackAlignment(t *testing.T) {
	out := compile(t, `
int f(int a) { return a; }
int main() { printf("%d", f(10)); return 0; }
`)
	require.Contains(t, out, "mov rax, rsp")
	require.Contains(t, out, "idiv rdi")
	require.Contains(t, out, "sub rsp, rdx")
	require.Contains(t, out, "push rdx")
	require.Contains(t, out, "add rsp, rdi")
}

// TestLabelUniqueness is the spec's property #6: two independent
// if-statements in the same function never collide on a label name,
// because labels are seeded from each construct's unique token position.
func TestLabelUniqueness(t *testing.T) {
	out := compile(t, `
int main() {
	int a;
	a = 1;
	if (a == 1) { a = 2; }
	if (a == 2) { a = 3; }
	return a;
}
`)
	labels := extractLabels(out)
	seen := map[string]bool{}
	for _, l := range labels {
		require.False(t, seen[l], "duplicate label %s", l)
		seen[l] = true
	}
}

func extractLabels(asm string) []string {
	var out []string
	for _, line := range strings.Split(asm, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(line, ":") {
			out = append(out, line)
		}
	}
	return out
}

// TestBreakLocality is the spec's property #8: break in a nested block
// jumps to the innermost enclosing loop's end label, and an outer loop's
// end label is distinct from an inner one's.
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
	require.Contains(t, out, "jmp .Lbreak_")
	breakTargets := map[string]bool{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "jmp .Lbreak_") {
			breakTargets[strings.TrimPrefix(line, "jmp ")] = true
		}
	}
	require.Len(t, breakTargets, 1, "break should target exactly the innermost loop's label")

	// The inner loop's end label is emitted before the outer loop's.
	var endLabels []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, ".Lbreak_") && strings.HasSuffix(line, ":") {
			endLabels = append(endLabels, strings.TrimSuffix(line, ":"))
		}
	}
	require.Len(t, endLabels, 2)
	require.NotEqual(t, endLabels[0], endLabels[1])
	require.True(t, breakTargets[endLabels[0]], "break should target the inner loop's end label")
}

func TestGenerateGlobalArrayInitializer(t *testing.T) {
	out := compile(t, `
int xs[3] = {1, 2, 3};
int main() { return xs[0]; }
`)
	require.Contains(t, out, ".long 1")
	require.Contains(t, out, ".long 2")
	require.Contains(t, out, ".long 3")
}

func TestGenerateStringLiteral(t *testing.T) {
	out := compile(t, `
int main() {
	printf("hi\n");
	return 0;
}
`)
	require.Contains(t, out, ".asciz \"hi\\n\"")
	require.Contains(t, out, "call printf")
}

func TestDarwinSymbolMangling(t *testing.T) {
	sink := &srcerr.RecordingSink{Source: "int main() { return 0; }"}
	toks := token.NewLexer("int main() { return 0; }", sink).Tokenize()
	prog := parser.New(toks, sink).Parse()
	out := Generate(prog, asmtree.Darwin)
	require.Contains(t, out, "_main:")
}
