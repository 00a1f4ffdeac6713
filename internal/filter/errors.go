package filter

import (
	"errors"
	"fmt"
)

var (
	// ErrDepthExceeded is returned when groups or negations nest deeper than the parser allows.
	ErrDepthExceeded = errors.New("filter nesting too deep")
	// ErrTypeMismatch is returned when evaluation meets operands of incompatible kinds.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnsupportedFunction is returned for calls to functions outside the allow-list.
	ErrUnsupportedFunction = errors.New("unsupported function")
	// ErrInvalidArgument is returned when a function rejects an argument value.
	ErrInvalidArgument = errors.New("invalid function argument")
)

// SyntaxError reports malformed filter text with the byte span of the offending input.
type SyntaxError struct {
	Msg string
	Pos int
	End int
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

func syntaxErrorf(tok Token, format string, args ...any) *SyntaxError {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Pos: tok.Pos, End: tok.End}
}
