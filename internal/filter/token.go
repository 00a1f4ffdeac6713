// Package filter implements the AIP-160 filter language: lexer, parser,
// canonical rendering and in-memory evaluation.
package filter

// TokenType represents the type of lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdent  // field paths and function names, may contain dots
	TokenString // "quoted"
	TokenNumber // 42, -1.5, 1e3
	TokenStar   // *

	// Delimiters
	TokenLParen // (
	TokenRParen // )
	TokenComma  // ,
	TokenMinus  // - (negation prefix)

	// Comparators
	TokenEq  // =
	TokenNeq // !=
	TokenLt  // <
	TokenLte // <=
	TokenGt  // >
	TokenGte // >=
	TokenHas // :

	// Keywords (case-sensitive)
	TokenAnd   // AND
	TokenOr    // OR
	TokenNot   // NOT
	TokenTrue  // true
	TokenFalse // false
)

// String returns the string representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenIllegal:
		return "ILLEGAL"
	case TokenIdent:
		return "IDENT"
	case TokenString:
		return "STRING"
	case TokenNumber:
		return "NUMBER"
	case TokenStar:
		return "*"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenComma:
		return ","
	case TokenMinus:
		return "-"
	case TokenEq:
		return "="
	case TokenNeq:
		return "!="
	case TokenLt:
		return "<"
	case TokenLte:
		return "<="
	case TokenGt:
		return ">"
	case TokenGte:
		return ">="
	case TokenHas:
		return ":"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenNot:
		return "NOT"
	case TokenTrue:
		return "true"
	case TokenFalse:
		return "false"
	default:
		return "UNKNOWN"
	}
}

// Token is a lexical token.
type Token struct {
	Type    TokenType
	Literal string // raw text, or the decoded value for strings
	Pos     int    // byte offset of the first character
	End     int    // byte offset just past the token
	Space   bool   // whitespace precedes the token
	Msg     string // reason for TokenIllegal
}

var keywords = map[string]TokenType{
	"AND":   TokenAnd,
	"OR":    TokenOr,
	"NOT":   TokenNot,
	"true":  TokenTrue,
	"false": TokenFalse,
}

// LookupKeyword returns the keyword token type for ident, or TokenIdent.
func LookupKeyword(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}

// IsComparator reports whether t is one of = != < <= > >= :.
func (t TokenType) IsComparator() bool {
	return t >= TokenEq && t <= TokenHas
}
