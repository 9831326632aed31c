// Package target selects and drives one of the three code generators
// from a requested OS/architecture/format triple. It is the one place
// that knows all three generator packages exist; no other non-test
// package in the module imports more than one of them.
package target

import (
	"fmt"
	"runtime"

	"github.com/dytlzl/dynamite-compiler/internal/asmtree"
	"github.com/dytlzl/dynamite-compiler/internal/ast"
	"github.com/dytlzl/dynamite-compiler/internal/codegen/arm64"
	"github.com/dytlzl/dynamite-compiler/internal/codegen/llvmir"
	"github.com/dytlzl/dynamite-compiler/internal/codegen/x86"
)

// Arch names a target instruction set. LLVM is architecture-independent
// text, so it is its own Arch rather than a flavor of an ISA.
type Arch string

const (
	ArchX86_64 Arch = "x86-64"
	ArchARM64  Arch = "arm64"
	ArchLLVM   Arch = "llvm"
)

// OS names a target operating system, mirroring asmtree.OS but kept as
// its own type so this package doesn't force every caller to import
// asmtree just to name a target.
type OS string

const (
	OSLinux  OS = "linux"
	OSDarwin OS = "darwin"
)

// Target is the fully-resolved (arch, os) pair a Generate call needs.
type Target struct {
	Arch Arch
	OS   OS
}

// Host returns the target matching the compiler's own build, the
// default when the CLI's --target flag is omitted.
func Host() Target {
	os := OSLinux
	if runtime.GOOS == "darwin" {
		os = OSDarwin
	}
	arch := ArchX86_64
	if runtime.GOARCH == "arm64" {
		arch = ArchARM64
	}
	return Target{Arch: arch, OS: os}
}

func (t Target) asmtreeOS() asmtree.OS {
	if t.OS == OSDarwin {
		return asmtree.Darwin
	}
	return asmtree.Linux
}

// Generate dispatches to the concrete generator named by t.Arch. LLVM
// output ignores t.OS: the textual IR is OS-agnostic, and the system
// assembler/linker invoked downstream supplies target-specific details.
func Generate(prog *ast.Program, t Target) (string, error) {
	switch t.Arch {
	case ArchX86_64:
		return x86.Generate(prog, t.asmtreeOS()), nil
	case ArchARM64:
		return arm64.Generate(prog, t.asmtreeOS()), nil
	case ArchLLVM:
		return llvmir.Generate(prog), nil
	default:
		return "", fmt.Errorf("unknown target architecture %q", t.Arch)
	}
}

// ParseArch maps a --target flag's architecture component (including
// "llvm") onto an Arch, defaulting unknown strings to an error rather than
// silently falling back to the host.
func ParseArch(s string) (Arch, error) {
	switch s {
	case "x86-64", "x86_64", "amd64":
		return ArchX86_64, nil
	case "arm64", "aarch64":
		return ArchARM64, nil
	case "llvm":
		return ArchLLVM, nil
	default:
		return "", fmt.Errorf("unsupported architecture %q", s)
	}
}

// ParseOS maps a --target flag's OS component onto an OS.
func ParseOS(s string) (OS, error) {
	switch s {
	case "linux":
		return OSLinux, nil
	case "darwin", "macos":
		return OSDarwin, nil
	default:
		return "", fmt.Errorf("unsupported OS %q", s)
	}
}
