package token

import "github.com/dytlzl/dynamite-compiler/internal/srcerr"

// Lexer tokenizes a source buffer left-to-right, driven by a double-array
// trie for operator longest-match. It mirrors the teacher's byte-cursor
// Lexer (src/pos/line/col + peek/advance), generalized to the fixed C
// keyword and operator alphabet of this spec.
type Lexer struct {
	src  []byte
	pos  int
	ops  *trie
	sink srcerr.Sink
}

func NewLexer(source string, sink srcerr.Sink) *Lexer {
	return &Lexer{src: []byte(source), pos: 0, ops: newTrie(operatorAlphabet), sink: sink}
}

func (l *Lexer) atEnd() bool { return l.pos >= len(l.src) }

func (l *Lexer) peek() byte {
	if l.atEnd() {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(offset int) byte {
	p := l.pos + offset
	if p < 0 || p >= len(l.src) {
		return 0
	}
	return l.src[p]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentCont(c byte) bool { return isIdentStart(c) || isDigit(c) }
func isSpace(c byte) bool     { return c == ' ' || c == '\t' || c == '\n' }

// Tokenize consumes the whole buffer and returns the ordered token
// sequence. There is no EOF sentinel: the parser stops when cursor >= len.
func (l *Lexer) Tokenize() []Token {
	var toks []Token
	for !l.atEnd() {
		c := l.peek()

		if isSpace(c) {
			l.pos++
			continue
		}

		if isDigit(c) {
			toks = append(toks, l.lexNumber())
			continue
		}

		if isIdentStart(c) {
			toks = append(toks, l.lexIdent())
			continue
		}

		if tok, skip := l.lexSymbol(); !skip {
			toks = append(toks, tok)
			continue
		}
	}
	return toks
}

func (l *Lexer) lexNumber() Token {
	start := l.pos
	var v int64
	for !l.atEnd() && isDigit(l.peek()) {
		v = v*10 + int64(l.peek()-'0')
		l.pos++
	}
	return Token{Kind: Num, Pos: start, IValue: v}
}

func (l *Lexer) lexIdent() Token {
	start := l.pos
	for !l.atEnd() && isIdentCont(l.peek()) {
		l.pos++
	}
	lexeme := string(l.src[start:l.pos])
	if reservedWords[lexeme] {
		return Token{Kind: Reserved, Pos: start, SValue: lexeme}
	}
	return Token{Kind: Ident, Pos: start, SValue: lexeme}
}

// lexSymbol performs a trie longest-match and dispatches into bracketed
// mode for the symbols that open one. It returns (token, true) when a
// comment/directive was discarded instead of emitting a token.
func (l *Lexer) lexSymbol() (Token, bool) {
	start := l.pos
	n := l.ops.matchedLength(l.src[l.pos:])
	if n == 0 {
		l.sink.Fatal(start, "unexpected character")
		l.pos++ // best-effort resync so a RecordingSink can keep scanning
		return Token{}, true
	}
	lexeme := string(l.src[start : start+n])
	l.pos += n

	switch lexeme {
	case "\"":
		return l.lexStringLiteral(start), false
	case "'":
		return l.lexCharLiteral(start), false
	case "//":
		l.skipUntilNewline()
		return Token{}, true
	case "/*":
		l.skipBlockComment(start)
		return Token{}, true
	case "#":
		l.skipUntilNewline()
		return Token{}, true
	default:
		return Token{Kind: Reserved, Pos: start, SValue: lexeme}, false
	}
}

// lexStringLiteral consumes the payload between quotes, honoring
// backslash escapes, and emits a Str token whose SValue excludes the
// surrounding quotes.
func (l *Lexer) lexStringLiteral(start int) Token {
	var payload []byte
	for {
		if l.atEnd() {
			l.sink.Fatal(start, "unexpected EOF")
			break
		}
		c := l.peek()
		if c == '"' {
			l.pos++
			break
		}
		if c == '\\' {
			l.pos++
			payload = append(payload, decodeEscape(l.peek()))
			l.pos++
			continue
		}
		payload = append(payload, c)
		l.pos++
	}
	return Token{Kind: Str, Pos: start, SValue: string(payload)}
}

// lexCharLiteral decodes a single-byte or two-byte-escape payload into a
// Num token carrying the byte value.
func (l *Lexer) lexCharLiteral(start int) Token {
	if l.atEnd() || l.peek() == '\'' {
		l.sink.Fatal(start, "unexpected character")
		if !l.atEnd() {
			l.pos++
		}
		return Token{Kind: Num, Pos: start}
	}

	var v int64
	if l.peek() == '\\' {
		l.pos++
		v = int64(decodeEscape(l.peek()))
		l.pos++
	} else {
		v = int64(l.peek())
		l.pos++
	}

	if l.atEnd() || l.peek() != '\'' {
		l.sink.Fatal(start, "multi-character character constant")
		// best-effort resync: consume up to the next quote.
		for !l.atEnd() && l.peek() != '\'' {
			l.pos++
		}
	}
	if !l.atEnd() {
		l.pos++ // closing quote
	}
	return Token{Kind: Num, Pos: start, IValue: v}
}

func decodeEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case '\'':
		return '\''
	case '"':
		return '"'
	case '\\':
		return '\\'
	case '0':
		return 0
	default:
		return c
	}
}

func (l *Lexer) skipUntilNewline() {
	for !l.atEnd() && l.peek() != '\n' {
		l.pos++
	}
	// EOF before '\n' is acceptable for both "//" and "#".
}

func (l *Lexer) skipBlockComment(start int) {
	for {
		if l.atEnd() {
			l.sink.Fatal(start, "unexpected EOF")
			return
		}
		if l.peek() == '*' && l.peekAt(1) == '/' {
			l.pos += 2
			return
		}
		l.pos++
	}
}
