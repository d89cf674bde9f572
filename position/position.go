// Package position provides source coordinates and error-message formatting
// shared by every pass of the compiler, from the lexer through codegen.
package position

import "fmt"

// Position is a source coordinate. File is optional: a signature stream
// and a code stream are compiled from separate readers and may each carry
// their own name (or none, for in-memory strings).
type Position struct {
	File   string
	Line   int
	Column int
}

// String renders the position as "<file>:<line>:<col>", omitting the file
// segment when it is empty.
func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// FormatError renders msg prefixed with the position, matching the
// original implementation's Position::formatError.
func (p Position) FormatError(msg string) string {
	return fmt.Sprintf("%s: %s", p, msg)
}
