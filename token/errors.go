package token

import "fmt"

// TokenizingError is raised by the lexer on an invalid character or a
// malformed escape sequence inside a string literal. Compile-time errors
// abort the pipeline immediately (see spec §7); the lexer therefore returns
// on the first one instead of collecting a list.
type TokenizingError struct {
	Pos     Position
	Message string
	Snippet string
}

func (e *TokenizingError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("%s: %s\n\t%s", e.Pos, e.Message, e.Snippet)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}
