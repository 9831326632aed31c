package asmtree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSymbolMangling(t *testing.T) {
	require.Equal(t, "main", Linux.Symbol("main"))
	require.Equal(t, "_main", Darwin.Symbol("main"))
}

func TestRenderIndentation(t *testing.T) {
	n := G(Label("main"), I("push", "rbp"), I("mov", "rbp", "rsp"))
	var sb strings.Builder
	n.Render(&sb)
	out := sb.String()
	require.Equal(t, "main:\n\tpush rbp\n\tmov rbp, rsp\n", out)
}

func TestProgramSectionOrdering(t *testing.T) {
	p := NewProgram(Linux)
	p.Text.Append(Label("main"), I("ret"))
	p.Data.Append(Label("g"), Raw(".long 1"))
	out := p.String()
	require.True(t, strings.Index(out, ".data") < strings.Index(out, ".text"))
}

func TestDarwinSectionNames(t *testing.T) {
	p := NewProgram(Darwin)
	p.Text.Append(I("ret"))
	out := p.String()
	require.Contains(t, out, "__TEXT,__text")
}
