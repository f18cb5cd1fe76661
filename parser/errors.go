// Package parser builds an AST out of a token stream by recursive descent.
package parser

import (
	"fmt"

	"github.com/arkscript-lang/ark/token"
)

// SyntaxError is raised when a token does not fit any legal grammar
// production at the point the parser is looking at it.
type SyntaxError struct {
	Pos     token.Position
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: syntax error: %s", e.Pos, e.Message)
}

// ParseError is raised once a production has committed (its keyword or
// opening delimiter has been consumed) but the rest of the form is
// malformed, e.g. a `let` missing its value or an unterminated list.
type ParseError struct {
	Pos     token.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}
