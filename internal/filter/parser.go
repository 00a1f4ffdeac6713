package filter

import (
	"strconv"
	"strings"

	"github.com/zjrosen/aipq/internal/log"
	"github.com/zjrosen/aipq/internal/value"
)

// DefaultMaxDepth bounds nesting of groups, negations and function calls.
const DefaultMaxDepth = 32

// Parser parses filter tokens into an AST.
type Parser struct {
	lexer    *Lexer
	current  Token
	peek     Token
	depth    int
	maxDepth int
}

// ParseOption configures a Parser.
type ParseOption func(*Parser)

// WithMaxDepth overrides DefaultMaxDepth. Values below one are ignored.
func WithMaxDepth(n int) ParseOption {
	return func(p *Parser) {
		if n > 0 {
			p.maxDepth = n
		}
	}
}

// NewParser creates a parser for the input.
func NewParser(input string, opts ...ParseOption) *Parser {
	p := &Parser{lexer: NewLexer(input), maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(p)
	}
	// Prime the parser with two tokens
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses filter text. Empty or all-whitespace input yields the empty filter.
func Parse(input string, opts ...ParseOption) (*Filter, error) {
	f, err := NewParser(input, opts...).Parse()
	if err != nil {
		log.Debug(log.CatFilter, "filter parse failed", "error", err)
		return nil, err
	}
	return f, nil
}

// Parse parses the whole input.
func (p *Parser) Parse() (*Filter, error) {
	if p.current.Type == TokenEOF {
		return Empty(), nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	// Should be at EOF now
	if p.current.Type != TokenEOF {
		return nil, p.unexpected("end of filter")
	}

	return &Filter{Root: expr}, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.current = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) unexpected(want string) *SyntaxError {
	switch p.current.Type {
	case TokenIllegal:
		return syntaxErrorf(p.current, "%s %q", p.current.Msg, p.current.Literal)
	case TokenEOF:
		return syntaxErrorf(p.current, "expected %s, got end of input", want)
	default:
		return syntaxErrorf(p.current, "expected %s, got %q", want, p.current.Literal)
	}
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		err := syntaxErrorf(p.current, "nesting deeper than %d", p.maxDepth)
		err.Err = ErrDepthExceeded
		return err
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

// parseExpression parses AND-separated sequences into one conjunction.
// expression = sequence { "AND" sequence }
func (p *Parser) parseExpression() (Expr, error) {
	terms, err := p.parseSequence()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenAnd {
		p.nextToken() // consume AND
		more, err := p.parseSequence()
		if err != nil {
			return nil, err
		}
		terms = append(terms, more...)
	}

	if len(terms) == 1 {
		return terms[0], nil
	}
	return &Conjunction{Terms: terms}, nil
}

// parseSequence parses whitespace-separated factors.
// sequence = factor { WS factor }
func (p *Parser) parseSequence() ([]Expr, error) {
	first, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	factors := []Expr{first}

	for startsFactor(p.current.Type) {
		if !p.current.Space {
			return nil, syntaxErrorf(p.current, "expected whitespace before %q", p.current.Literal)
		}
		next, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		factors = append(factors, next)
	}

	return factors, nil
}

func startsFactor(t TokenType) bool {
	switch t {
	case TokenIdent, TokenString, TokenNumber, TokenStar, TokenTrue, TokenFalse,
		TokenLParen, TokenNot, TokenMinus:
		return true
	}
	return false
}

// parseFactor parses OR-separated terms.
// factor = term { "OR" term }
func (p *Parser) parseFactor() (Expr, error) {
	first, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	if p.current.Type != TokenOr {
		return first, nil
	}

	terms := []Expr{first}
	for p.current.Type == TokenOr {
		p.nextToken() // consume OR
		next, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	return &Disjunction{Terms: terms}, nil
}

// parseTerm parses an optionally negated simple expression.
// term = "NOT" WS simple | "-" simple | simple
func (p *Parser) parseTerm() (Expr, error) {
	switch p.current.Type {
	case TokenNot, TokenMinus:
		minus := p.current.Type == TokenMinus
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()

		p.nextToken() // consume NOT or -
		if !minus && !p.current.Space {
			return nil, syntaxErrorf(p.current, "expected whitespace after NOT")
		}
		expr, err := p.parseSimple()
		if err != nil {
			return nil, err
		}
		return &Negation{Expr: expr, Minus: minus}, nil
	default:
		return p.parseSimple()
	}
}

// parseSimple parses a restriction or a parenthesized composite.
// simple = restriction | composite
func (p *Parser) parseSimple() (Expr, error) {
	if p.current.Type == TokenLParen {
		return p.parseComposite()
	}
	return p.parseRestriction()
}

// parseComposite parses "(" expression ")".
func (p *Parser) parseComposite() (*Composite, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	open := p.current
	p.nextToken() // consume (
	if p.current.Type == TokenRParen {
		return nil, syntaxErrorf(p.current, "empty group")
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.current.Type != TokenRParen {
		if p.current.Type == TokenEOF {
			return nil, &SyntaxError{Msg: "unterminated group", Pos: open.Pos, End: p.current.End}
		}
		return nil, p.unexpected("')'")
	}
	p.nextToken() // consume )
	return &Composite{Expr: expr}, nil
}

// parseRestriction parses a comparable with an optional comparator and argument.
// restriction = comparable [ comparator arg ]
func (p *Parser) parseRestriction() (Expr, error) {
	comp, err := p.parseComparable()
	if err != nil {
		return nil, err
	}

	if !p.current.Type.IsComparator() {
		return &Restriction{Comparable: comp}, nil
	}

	op := comparatorFor(p.current.Type)
	p.nextToken() // consume comparator

	var arg Arg
	if p.current.Type == TokenLParen {
		arg, err = p.parseComposite()
	} else {
		arg, err = p.parseComparable()
	}
	if err != nil {
		return nil, err
	}
	return &Restriction{Comparable: comp, Comparator: op, Arg: arg}, nil
}

// parseComparable parses a name, literal or function call.
// comparable = function | value | name
func (p *Parser) parseComparable() (Comparable, error) {
	tok := p.current
	switch tok.Type {
	case TokenIdent:
		p.nextToken()
		if p.current.Type == TokenLParen && !p.current.Space {
			return p.parseFunction(tok)
		}
		return &Name{Path: tok.Literal}, nil
	case TokenString:
		p.nextToken()
		return &Literal{Value: value.String(tok.Literal)}, nil
	case TokenNumber:
		p.nextToken()
		v, err := parseNumber(tok)
		if err != nil {
			return nil, err
		}
		return &Literal{Value: v}, nil
	case TokenTrue, TokenFalse:
		p.nextToken()
		return &Literal{Value: value.Bool(tok.Type == TokenTrue)}, nil
	case TokenStar:
		p.nextToken()
		return &Literal{Value: value.Any()}, nil
	}
	return nil, p.unexpected("field, value or function")
}

// parseFunction parses the argument list of name(...).
func (p *Parser) parseFunction(name Token) (Comparable, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	p.nextToken() // consume (
	fn := &Function{Name: name.Literal}
	if p.current.Type == TokenRParen {
		p.nextToken()
		return fn, nil
	}

	for {
		arg, err := p.parseComparable()
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, arg)

		switch p.current.Type {
		case TokenComma:
			p.nextToken()
		case TokenRParen:
			p.nextToken()
			return fn, nil
		case TokenEOF:
			return nil, &SyntaxError{Msg: "unterminated function call", Pos: name.Pos, End: p.current.End}
		default:
			return nil, p.unexpected("',' or ')'")
		}
	}
}

func parseNumber(tok Token) (value.Value, error) {
	if !strings.ContainsAny(tok.Literal, ".eE") {
		if i, err := strconv.ParseInt(tok.Literal, 10, 64); err == nil {
			return value.Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		return value.Value{}, syntaxErrorf(tok, "invalid number %q", tok.Literal)
	}
	return value.Float(f), nil
}
