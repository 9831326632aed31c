package token

import (
	"strconv"
	"strings"
	"testing"

	"github.com/dytlzl/dynamite-compiler/internal/srcerr"
	"github.com/stretchr/testify/require"
)

func tokenize(t *testing.T, src string) ([]Token, *srcerr.RecordingSink) {
	t.Helper()
	sink := &srcerr.RecordingSink{Source: src}
	lx := NewLexer(src, sink)
	return lx.Tokenize(), sink
}

func TestLexerKeywordsAndIdents(t *testing.T) {
	toks, sink := tokenize(t, "int x = foo;")
	require.False(t, sink.HasErrors())
	require.Len(t, toks, 5)
	require.Equal(t, Reserved, toks[0].Kind)
	require.Equal(t, "int", toks[0].SValue)
	require.Equal(t, Ident, toks[1].Kind)
	require.Equal(t, "x", toks[1].SValue)
	require.Equal(t, Reserved, toks[2].Kind)
	require.Equal(t, "=", toks[2].SValue)
	require.Equal(t, Ident, toks[3].Kind)
	require.Equal(t, Reserved, toks[4].Kind)
	require.Equal(t, ";", toks[4].SValue)
}

func TestLexerLongestMatchOperators(t *testing.T) {
	toks, sink := tokenize(t, "a<<=b")
	require.False(t, sink.HasErrors())
	require.Equal(t, "<<=", toks[1].SValue)
}

func TestLexerNumber(t *testing.T) {
	toks, sink := tokenize(t, "12345")
	require.False(t, sink.HasErrors())
	require.Equal(t, Num, toks[0].Kind)
	require.EqualValues(t, 12345, toks[0].IValue)
}

func TestLexerStringLiteral(t *testing.T) {
	toks, sink := tokenize(t, `"hi\n"`)
	require.False(t, sink.HasErrors())
	require.Equal(t, Str, toks[0].Kind)
	require.Equal(t, "hi\n", toks[0].SValue)
}

func TestLexerCharLiteral(t *testing.T) {
	toks, sink := tokenize(t, `'a'`)
	require.False(t, sink.HasErrors())
	require.Equal(t, Num, toks[0].Kind)
	require.EqualValues(t, 'a', toks[0].IValue)

	toks, sink = tokenize(t, `'\n'`)
	require.False(t, sink.HasErrors())
	require.EqualValues(t, '\n', toks[0].IValue)
}

func TestLexerCharLiteralErrors(t *testing.T) {
	_, sink := tokenize(t, `''`)
	require.True(t, sink.HasErrors())

	_, sink = tokenize(t, `'ab'`)
	require.True(t, sink.HasErrors())
}

func TestLexerLineComment(t *testing.T) {
	toks, sink := tokenize(t, "int x; // trailing comment\nint y;")
	require.False(t, sink.HasErrors())
	require.Len(t, toks, 6)
}

func TestLexerBlockComment(t *testing.T) {
	toks, sink := tokenize(t, "int /* skip\nme */ x;")
	require.False(t, sink.HasErrors())
	require.Len(t, toks, 3)
}

func TestLexerUnterminatedBlockComment(t *testing.T) {
	_, sink := tokenize(t, "int /* never closes")
	require.True(t, sink.HasErrors())
}

func TestLexerPreprocessorLineSkipped(t *testing.T) {
	toks, sink := tokenize(t, "#include <foo.h>\nint x;")
	require.False(t, sink.HasErrors())
	require.Len(t, toks, 3)
}

func TestLexerUnexpectedCharacter(t *testing.T) {
	_, sink := tokenize(t, "int x = @;")
	require.True(t, sink.HasErrors())
}

// TestLexRoundTrip is the spec's property #1: token positions are
// monotonically non-decreasing and every token's source slice, when
// concatenated with single spaces, reproduces a lexically equivalent
// (modulo whitespace) stream.
func TestLexRoundTrip(t *testing.T) {
	src := "int main(){int a=1;return a+2;}"
	toks, sink := tokenize(t, src)
	require.False(t, sink.HasErrors())
	last := -1
	for _, tk := range toks {
		require.GreaterOrEqual(t, tk.Pos, last)
		last = tk.Pos
	}

	var parts []string
	for _, tk := range toks {
		if tk.Kind == Num {
			parts = append(parts, strconv.FormatInt(tk.IValue, 10))
		} else {
			parts = append(parts, tk.SValue)
		}
	}
	toks2, sink2 := tokenize(t, strings.Join(parts, " "))
	require.False(t, sink2.HasErrors())
	require.Len(t, toks2, len(toks))
	for i := range toks {
		require.Equal(t, toks[i].Kind, toks2[i].Kind)
		require.Equal(t, toks[i].SValue, toks2[i].SValue)
		require.Equal(t, toks[i].IValue, toks2[i].IValue)
	}
}
