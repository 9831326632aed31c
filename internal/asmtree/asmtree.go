// Package asmtree is the polymorphic assembly-tree abstraction shared by
// the x86-64 and AArch64 backends: each generator builds a tree of
// Inst/Other/Group nodes describing one function or the data segment,
// and this package renders it to the target OS's textual conventions
// instead of the teacher's raw byte-buffer emission.
package asmtree

import "strings"

// OS selects the section-naming and symbol-mangling convention a Program
// renders under.
type OS int

const (
	Linux OS = iota
	Darwin
)

// Symbol mangles a global or function name for the given OS: Mach-O
// requires a leading underscore on every external symbol, ELF does not.
func (o OS) Symbol(name string) string {
	if o == Darwin {
		return "_" + name
	}
	return name
}

// TextSection returns the assembler directive that opens the code section.
func (o OS) TextSection() string {
	if o == Darwin {
		return "__TEXT,__text"
	}
	return ".text"
}

// DataSection returns the assembler directive that opens the writable
// data section.
func (o OS) DataSection() string {
	if o == Darwin {
		return "__DATA,__data"
	}
	return ".data"
}

// CStringSection returns the assembler directive for string-literal
// storage.
func (o OS) CStringSection() string {
	if o == Darwin {
		return "__TEXT,__cstring"
	}
	return ".rodata"
}

// Kind tags the variant of a Node.
type Kind int

const (
	// Inst is a single machine instruction, emitted indented by one tab.
	Inst Kind = iota
	// Other is a verbatim line — a label, directive, or comment — emitted
	// with no leading indentation.
	Other
	// Group is an ordered sequence of child nodes with no textual
	// representation of its own; it exists purely to let a code
	// generator build and splice subtrees (e.g. "the whole then-branch")
	// before the parent knows where they will land.
	Group
)

// Node is the tree's only type: an instruction line, a raw line, or a
// grouping of further nodes.
type Node struct {
	Kind     Kind
	Text     string
	Children []*Node
}

// I builds an instruction node from its mnemonic and operands.
func I(mnemonic string, operands ...string) *Node {
	text := mnemonic
	if len(operands) > 0 {
		text += " " + strings.Join(operands, ", ")
	}
	return &Node{Kind: Inst, Text: text}
}

// Raw builds a verbatim line node (label, directive, comment).
func Raw(text string) *Node {
	return &Node{Kind: Other, Text: text}
}

// Label builds a "name:" line.
func Label(name string) *Node {
	return Raw(name + ":")
}

// G groups a sequence of nodes so callers can build and return a subtree
// before splicing it into a parent.
func G(children ...*Node) *Node {
	return &Node{Kind: Group, Children: children}
}

// Append splices more nodes onto a Group in place; it is a no-op on any
// other Kind.
func (n *Node) Append(more ...*Node) {
	if n.Kind == Group {
		n.Children = append(n.Children, more...)
	}
}

// Render writes the node's textual form into sb, recursing through
// Group children in order.
func (n *Node) Render(sb *strings.Builder) {
	switch n.Kind {
	case Inst:
		sb.WriteByte('\t')
		sb.WriteString(n.Text)
		sb.WriteByte('\n')
	case Other:
		sb.WriteString(n.Text)
		sb.WriteByte('\n')
	case Group:
		for _, c := range n.Children {
			c.Render(sb)
		}
	}
}

// Program is a whole compilation unit's worth of assembly: three
// sections a backend appends to as it walks the program, plus the OS
// convention used to render them.
type Program struct {
	OS    OS
	Text  *Node // Group: function bodies
	Data  *Node // Group: mutable globals
	RoDat *Node // Group: string-literal constants
}

func NewProgram(os OS) *Program {
	return &Program{OS: os, Text: G(), Data: G(), RoDat: G()}
}

// String assembles the full textual program: a data section, a
// read-only/cstring section, then the text section — the order the
// teacher's own ELF/Mach-O writers lay out segments in.
func (p *Program) String() string {
	var sb strings.Builder
	if len(p.Data.Children) > 0 {
		sb.WriteString(".section " + p.OS.DataSection() + "\n")
		p.Data.Render(&sb)
	}
	if len(p.RoDat.Children) > 0 {
		sb.WriteString(".section " + p.OS.CStringSection() + "\n")
		p.RoDat.Render(&sb)
	}
	sb.WriteString(".section " + p.OS.TextSection() + "\n")
	p.Text.Render(&sb)
	return sb.String()
}
