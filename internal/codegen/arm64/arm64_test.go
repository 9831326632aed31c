package arm64

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dytlzl/dynamite-compiler/internal/asmtree"
	"github.com/dytlzl/dynamite-compiler/internal/parser"
	"github.com/dytlzl/dynamite-compiler/internal/srcerr"
	"github.com/dytlzl/dynamite-compiler/internal/token"
)

func compile(t *testing.T, src string, os asmtree.OS) string {
	t.Helper()
	sink := &srcerr.RecordingSink{Source: src}
	toks := token.NewLexer(src, sink).Tokenize()
	prog := parser.New(toks, sink).Parse()
	require.False(t, sink.HasErrors(), "%v", sink.Reports)
	return Generate(prog, os)
}

func TestGenerateSimpleFunctionLinux(t *testing.T) {
	out := compile(t, `
int add(int a, int b) { return a + b; }
`, asmtree.Linux)
	require.Contains(t, out, "add:")
	require.Contains(t, out, "stp x29, x30")
	require.Contains(t, out, "ret")
}

func TestGenerateCallArgRegisters(t *testing.T) {
	out := compile(t, `
int add(int a, int b) { return a + b; }
int main() { return add(1, 2); }
`, asmtree.Linux)
	require.Contains(t, out, "bl add")
	require.Contains(t, out, "ldr x0, [sp]")
	require.Contains(t, out, "ldr x1, [sp]")
}

func TestDarwinGlobalAddressingUsesPageOff(t *testing.T) {
	out := compile(t, `
int g;
int main() { return g; }
`, asmtree.Darwin)
	require.Contains(t, out, "@PAGE")
	require.Contains(t, out, "@PAGEOFF")
	require.Contains(t, out, "_main:")
}

func TestLinuxGlobalAddressingUsesLo12(t *testing.T) {
	out := compile(t, `
int g;
int main() { return g; }
`, asmtree.Linux)
	require.NotContains(t, out, "@PAGE")
	require.Contains(t, out, ":lo12:")
}

func TestBreakLocality(t *testing.T) {
	out := compile(t, `
int main() {
	int i;
	i = 0;
	while (i < 3) {
		if (i == 1) break;
		i = i + 1;
	}
	return i;
}
`, asmtree.Linux)
	require.Contains(t, out, "b .Lbreak_")
	count := strings.Count(out, "b .Lbreak_")
	require.Equal(t, 1, count)
}
