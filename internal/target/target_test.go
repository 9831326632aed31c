package target

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dytlzl/dynamite-compiler/internal/parser"
	"github.com/dytlzl/dynamite-compiler/internal/srcerr"
	"github.com/dytlzl/dynamite-compiler/internal/token"
)

func parseProgram(t *testing.T, src string) *parser.Parser {
	t.Helper()
	sink := &srcerr.RecordingSink{Source: src}
	toks := token.NewLexer(src, sink).Tokenize()
	p := parser.New(toks, sink)
	require.False(t, sink.HasErrors())
	return p
}

func TestGenerateDispatchesToEachBackend(t *testing.T) {
	src := `int main() { return 0; }`

	for _, tc := range []struct {
		name string
		tgt  Target
		want string
	}{
		{"x86-64 linux", Target{Arch: ArchX86_64, OS: OSLinux}, "main:"},
		{"x86-64 darwin", Target{Arch: ArchX86_64, OS: OSDarwin}, "_main:"},
		{"arm64 linux", Target{Arch: ArchARM64, OS: OSLinux}, "main:"},
		{"llvm", Target{Arch: ArchLLVM, OS: OSLinux}, "define i32 @main"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			prog := parseProgram(t, src).Parse()
			out, err := Generate(prog, tc.tgt)
			require.NoError(t, err)
			require.Contains(t, out, tc.want)
		})
	}
}

func TestGenerateRejectsUnknownArch(t *testing.T) {
	prog := parseProgram(t, `int main() { return 0; }`).Parse()
	_, err := Generate(prog, Target{Arch: "mips", OS: OSLinux})
	require.Error(t, err)
}

func TestParseArchAndOS(t *testing.T) {
	a, err := ParseArch("aarch64")
	require.NoError(t, err)
	require.Equal(t, ArchARM64, a)

	o, err := ParseOS("macos")
	require.NoError(t, err)
	require.Equal(t, OSDarwin, o)

	_, err = ParseArch("sparc")
	require.Error(t, err)
}
