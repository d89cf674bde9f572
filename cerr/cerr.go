// Package cerr defines the single compilation-error family shared by the
// lexer, parser, resolver and codegen passes. Subkinds exist for
// classification only: every kind aborts compilation identically.
package cerr

import (
	"fmt"

	"calculon/position"
)

// Kind classifies an Error for callers that want to react differently to,
// say, a SymbolKind versus a TypeKind failure (the host application, or a
// test asserting on error category).
type Kind int

const (
	Lex Kind = iota
	Syntax
	Symbol
	Type
	IntrinsicType
)

func (k Kind) String() string {
	switch k {
	case Lex:
		return "lex"
	case Syntax:
		return "syntax"
	case Symbol:
		return "symbol"
	case Type:
		return "type"
	case IntrinsicType:
		return "intrinsic-type"
	default:
		return "compilation"
	}
}

// Error is the sole error type compilation can fail with. It always
// carries the position of the offending token or AST node.
type Error struct {
	Kind Kind
	Pos  position.Position
	Msg  string
}

func (e *Error) Error() string {
	return e.Pos.FormatError(e.Msg)
}

// New builds an Error, fmt.Sprintf-ing the message.
func New(kind Kind, pos position.Position, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
