// Command minic compiles a single C source file to textual assembly or
// LLVM IR on stdout.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dytlzl/dynamite-compiler/internal/ast"
	"github.com/dytlzl/dynamite-compiler/internal/parser"
	"github.com/dytlzl/dynamite-compiler/internal/srcerr"
	"github.com/dytlzl/dynamite-compiler/internal/target"
	"github.com/dytlzl/dynamite-compiler/internal/token"
)

var (
	debug      bool
	format     string
	targetSpec string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "minic <file>",
		Short:         "Compile a small C subset to x86-64, AArch64, or LLVM IR",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCompile,
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "emit the token list and a one-line summary of each global and function (not the full AST) to stderr before code generation")
	cmd.Flags().StringVarP(&format, "format", "o", "asm", `output format: "asm" or "llvm"`)
	cmd.Flags().StringVar(&targetSpec, "target", "", "target os/arch (e.g. linux/x86-64, darwin/arm64); defaults to host")
	return cmd
}

func runCompile(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	if debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}

	tgt, err := resolveTarget(format, targetSpec)
	if err != nil {
		return err
	}
	log.Debugf("compiling %s for %s/%s", path, tgt.OS, tgt.Arch)

	sink := &srcerr.StderrSink{Source: string(src)}
	toks := token.NewLexer(string(src), sink).Tokenize()
	if debug {
		dumpTokens(log, toks)
	}

	prog := parser.New(toks, sink).Parse()
	if debug {
		dumpProgram(log, prog)
	}

	out, err := target.Generate(prog, tgt)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

// resolveTarget folds -o/--format and --target into one target.Target.
// "-o llvm" always selects the LLVM arch regardless of --target's
// architecture component, since LLVM IR has no separate x86-64/AArch64
// variant at this stage.
func resolveTarget(format, spec string) (target.Target, error) {
	host := target.Host()
	if spec == "" {
		if format == "llvm" {
			host.Arch = target.ArchLLVM
		}
		return host, nil
	}

	osPart, archPart, err := splitTargetSpec(spec)
	if err != nil {
		return target.Target{}, err
	}
	os_, err := target.ParseOS(osPart)
	if err != nil {
		return target.Target{}, err
	}
	arch, err := target.ParseArch(archPart)
	if err != nil {
		return target.Target{}, err
	}
	if format == "llvm" {
		arch = target.ArchLLVM
	}
	return target.Target{OS: os_, Arch: arch}, nil
}

func splitTargetSpec(spec string) (os, arch string, err error) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '/' {
			return spec[:i], spec[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("invalid --target %q: expected os/arch", spec)
}

func dumpTokens(log *logrus.Logger, toks []token.Token) {
	for _, t := range toks {
		log.Debugf("token pos=%d kind=%v ivalue=%d svalue=%q", t.Pos, t.Kind, t.IValue, t.SValue)
	}
}

func dumpProgram(log *logrus.Logger, prog *ast.Program) {
	for _, name := range prog.GlobalOrder {
		log.Debugf("global %s: %s", name, prog.Globals[name].Cty)
	}
	for _, name := range prog.FuncOrder {
		fn := prog.Funcs[name]
		log.Debugf("func %s: %s frame_size=%d body=%v", name, fn.Cty, fn.FrameSize, fn.Body != nil)
	}
}
