package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF || tok.Type == TokenIllegal {
			return toks
		}
	}
}

func TestLexer_Tokens(t *testing.T) {
	input := `user.age >= 18 AND NOT (a:"x\"y") OR -b != -1.5e3 * true false , < <= > =`
	want := []struct {
		typ TokenType
		lit string
	}{
		{TokenIdent, "user.age"},
		{TokenGte, ">="},
		{TokenNumber, "18"},
		{TokenAnd, "AND"},
		{TokenNot, "NOT"},
		{TokenLParen, "("},
		{TokenIdent, "a"},
		{TokenHas, ":"},
		{TokenString, `x"y`},
		{TokenRParen, ")"},
		{TokenOr, "OR"},
		{TokenMinus, "-"},
		{TokenIdent, "b"},
		{TokenNeq, "!="},
		{TokenNumber, "-1.5e3"},
		{TokenStar, "*"},
		{TokenTrue, "true"},
		{TokenFalse, "false"},
		{TokenComma, ","},
		{TokenLt, "<"},
		{TokenLte, "<="},
		{TokenGt, ">"},
		{TokenEq, "="},
		{TokenEOF, ""},
	}

	toks := lexAll(input)
	require.Len(t, toks, len(want))
	for i, w := range want {
		assert.Equal(t, w.typ, toks[i].Type, "token %d", i)
		assert.Equal(t, w.lit, toks[i].Literal, "token %d", i)
	}
}

func TestLexer_Identifiers(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a_1", "a_1"},
		{"user.display_name", "user.display_name"},
		{"a.and", "a.and"},
		{"a.ANDx", "a.ANDx"},
		{"a.true", "a.true"},
		{"x9.y", "x9.y"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := lexAll(tt.input)
			require.Len(t, toks, 2)
			assert.Equal(t, TokenIdent, toks[0].Type)
			assert.Equal(t, tt.want, toks[0].Literal)
		})
	}
}

func TestLexer_KeywordsAreCaseSensitive(t *testing.T) {
	toks := lexAll("and or not And True")
	for _, tok := range toks[:len(toks)-1] {
		assert.Equal(t, TokenIdent, tok.Type, tok.Literal)
	}
}

func TestLexer_Positions(t *testing.T) {
	toks := lexAll(`ab  = "x"`)
	require.Len(t, toks, 4)

	assert.Equal(t, 0, toks[0].Pos)
	assert.Equal(t, 2, toks[0].End)
	assert.False(t, toks[0].Space)

	assert.Equal(t, 4, toks[1].Pos)
	assert.True(t, toks[1].Space)

	assert.Equal(t, 6, toks[2].Pos)
	assert.Equal(t, 9, toks[2].End)
}

func TestLexer_StringEscapes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"slash\/"`, "slash/"},
		{`"\u00e9"`, "é"},
		{`"\ud83d\ude00"`, "😀"},
		{`"plain ünïcode"`, "plain ünïcode"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := lexAll(tt.input)
			require.Equal(t, TokenString, toks[0].Type, toks[0].Msg)
			assert.Equal(t, tt.want, toks[0].Literal)
		})
	}
}

func TestLexer_Illegal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"unterminated string", `"abc`, "unterminated string"},
		{"bad escape", `"a\qb"`, "invalid escape sequence"},
		{"short unicode", `"\u12"`, "invalid escape sequence"},
		{"lone bang", `a ! b`, "expected '=' after '!'"},
		{"stray char", `a # b`, "unexpected character"},
		{"number suffix", `12ab`, "invalid number"},
		{"invalid utf8", "\"a\xffb\"", "string is not valid UTF-8"},
		{"leading underscore", `_a = 1`, "unexpected character"},
		{"keyword segment", `a.AND = 1`, "keyword AND cannot be part of a field path"},
		{"keyword first segment", `NOT.a`, "keyword NOT cannot be part of a field path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := lexAll(tt.input)
			last := toks[len(toks)-1]
			assert.Equal(t, TokenIllegal, last.Type)
			assert.Equal(t, tt.msg, last.Msg)
		})
	}
}
