package filter

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Lexer tokenizes filter input.
type Lexer struct {
	input   string
	pos     int  // position of ch
	readPos int  // position after ch
	ch      byte // current character under examination
}

// NewLexer creates a new lexer for the input string.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	space := l.skipWhitespace()

	tok := Token{Pos: l.pos, Space: space}

	switch l.ch {
	case '(':
		tok.Type = TokenLParen
	case ')':
		tok.Type = TokenRParen
	case ',':
		tok.Type = TokenComma
	case '*':
		tok.Type = TokenStar
	case ':':
		tok.Type = TokenHas
	case '=':
		tok.Type = TokenEq
	case '!':
		if l.peekChar() != '=' {
			return l.illegal(tok, "expected '=' after '!'")
		}
		l.readChar()
		tok.Type = TokenNeq
	case '<':
		tok.Type = TokenLt
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type = TokenLte
		}
	case '>':
		tok.Type = TokenGt
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type = TokenGte
		}
	case '-':
		if isDigit(l.peekChar()) {
			return l.readNumber(tok)
		}
		tok.Type = TokenMinus
	case '"':
		return l.readString(tok)
	case 0:
		if l.pos < len(l.input) {
			return l.illegal(tok, "unexpected NUL byte")
		}
		tok.Type = TokenEOF
		tok.End = l.pos
		return tok
	default:
		if isLetter(l.ch) {
			return l.readIdentifier(tok)
		}
		if isDigit(l.ch) {
			return l.readNumber(tok)
		}
		return l.illegal(tok, "unexpected character")
	}

	l.readChar()
	tok.End = l.pos
	tok.Literal = l.input[tok.Pos:tok.End]
	return tok
}

// readChar reads the next character and advances position.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// skipWhitespace advances past whitespace and reports whether any was skipped.
func (l *Lexer) skipWhitespace() bool {
	skipped := false
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
		skipped = true
	}
	return skipped
}

func (l *Lexer) illegal(tok Token, msg string) Token {
	r, size := utf8.DecodeRuneInString(l.input[tok.Pos:])
	tok.Type = TokenIllegal
	tok.Literal = string(r)
	tok.End = tok.Pos + max(size, 1)
	tok.Msg = msg
	return tok
}

// readIdentifier reads a dotted path: ident ('.' ident)*, where each ident
// is [A-Za-z][A-Za-z0-9_]*. AND, OR and NOT are not path segments.
func (l *Lexer) readIdentifier(tok Token) Token {
	for {
		for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		if l.ch != '.' || !isLetter(l.peekChar()) {
			break
		}
		l.readChar() // consume '.'
	}
	tok.End = l.pos
	tok.Literal = l.input[tok.Pos:tok.End]
	tok.Type = LookupKeyword(tok.Literal)
	if tok.Type == TokenIdent && strings.Contains(tok.Literal, ".") {
		for _, seg := range strings.Split(tok.Literal, ".") {
			switch LookupKeyword(seg) {
			case TokenAnd, TokenOr, TokenNot:
				tok.Type = TokenIllegal
				tok.Msg = fmt.Sprintf("keyword %s cannot be part of a field path", seg)
				return tok
			}
		}
	}
	return tok
}

// readString reads a double-quoted string with JSON escapes. The token
// literal is the decoded text.
func (l *Lexer) readString(tok Token) Token {
	var b strings.Builder
	l.readChar() // skip opening quote
	for {
		switch l.ch {
		case '"':
			l.readChar()
			tok.End = l.pos
			if !utf8.ValidString(b.String()) {
				tok.Type = TokenIllegal
				tok.Msg = "string is not valid UTF-8"
				tok.Literal = l.input[tok.Pos:tok.End]
				return tok
			}
			tok.Type = TokenString
			tok.Literal = b.String()
			return tok
		case 0:
			if l.pos >= len(l.input) {
				tok.Type = TokenIllegal
				tok.Msg = "unterminated string"
				tok.End = l.pos
				tok.Literal = l.input[tok.Pos:]
				return tok
			}
			b.WriteByte(l.ch)
			l.readChar()
		case '\\':
			escStart := l.pos
			l.readChar()
			if !l.readEscape(&b) {
				bad := Token{Pos: escStart, Space: tok.Space}
				bad.Type = TokenIllegal
				bad.Msg = "invalid escape sequence"
				bad.End = min(l.pos+1, len(l.input))
				bad.Literal = l.input[escStart:bad.End]
				return bad
			}
		default:
			b.WriteByte(l.ch)
			l.readChar()
		}
	}
}

// readEscape decodes the escape whose first character is l.ch.
func (l *Lexer) readEscape(b *strings.Builder) bool {
	switch l.ch {
	case '"', '\\', '/':
		b.WriteByte(l.ch)
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'u':
		r, ok := l.readUnicode()
		if !ok {
			return false
		}
		if utf16.IsSurrogate(r) {
			// a high surrogate must be followed by \uXXXX low surrogate
			if l.peekChar() != '\\' {
				return false
			}
			l.readChar()
			if l.peekChar() != 'u' {
				return false
			}
			l.readChar()
			r2, ok := l.readUnicode()
			if !ok {
				return false
			}
			r = utf16.DecodeRune(r, r2)
			if r == utf8.RuneError {
				return false
			}
		}
		b.WriteRune(r)
	default:
		return false
	}
	l.readChar()
	return true
}

// readUnicode reads the four hex digits after \u, leaving ch on the last digit.
func (l *Lexer) readUnicode() (rune, bool) {
	if l.readPos+4 > len(l.input) {
		return 0, false
	}
	n, err := strconv.ParseUint(l.input[l.readPos:l.readPos+4], 16, 32)
	if err != nil {
		return 0, false
	}
	for range 4 {
		l.readChar()
	}
	return rune(n), true
}

// readNumber reads -?digits(.digits)?([eE][+-]?digits)?.
func (l *Lexer) readNumber(tok Token) Token {
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			if !isDigit(l.ch) {
				return l.illegal(tok, "invalid number")
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	if isLetter(l.ch) || l.ch == '.' || l.ch == '_' {
		return l.illegal(tok, "invalid number")
	}
	tok.Type = TokenNumber
	tok.End = l.pos
	tok.Literal = l.input[tok.Pos:tok.End]
	return tok
}

// isLetter returns true if c is an ASCII letter.
func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isDigit returns true if c is a digit.
func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
