package compiler

import (
	"fmt"

	"github.com/arkscript-lang/ark/token"
)

// CompilationError reports a codegen-time failure: an illegal n-ary
// operator use, a wrong argument count to a fixed-arity builtin, or a
// symbol/value/page table overflow.
type CompilationError struct {
	Pos     token.Position
	Message string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}
