// Package token implements the lexer stage of the compiler: a
// double-array trie for longest-match operator recognition, and a
// tokenizer that turns a source buffer into an ordered token sequence.
package token

// Kind identifies the lexical class of a Token.
type Kind int

const (
	Reserved Kind = iota
	Ident
	Num
	Str
)

func (k Kind) String() string {
	switch k {
	case Reserved:
		return "Reserved"
	case Ident:
		return "Ident"
	case Num:
		return "Num"
	case Str:
		return "Str"
	default:
		return "Unknown"
	}
}

// Token is one lexeme with its source position.
//
// Pos is the byte offset of the token's first character — used both for
// diagnostics and, for If/For/While/LogicalAnd/LogicalOr nodes, as the
// seed for unique per-function branch labels.
type Token struct {
	Kind   Kind
	Pos    int
	IValue int64
	SValue string
}

// reservedWords is the fixed keyword set recognized by the lexer.
var reservedWords = map[string]bool{
	"return": true, "if": true, "else": true, "while": true, "for": true,
	"break": true, "sizeof": true, "int": true, "char": true,
}

// operatorAlphabet is the fixed list of multi-character operators and
// punctuation the trie is built from. Longer forms must be listed so the
// trie can prefer them (the trie itself guarantees longest-match; order
// here doesn't matter for correctness, only for readability).
var operatorAlphabet = []string{
	"<<=", ">>=",
	"<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"++", "--",
	"+", "-", "*", "/", "%",
	"<", ">", "=",
	"&", "|", "^", "~", "!",
	"(", ")", "{", "}", "[", "]",
	",", ";",
	"\"", "'",
	"//", "/*", "*/",
	"#",
}
