package macro

import (
	"fmt"

	"github.com/arkscript-lang/ark/token"
)

// MacroProcessingError is raised by anything in the macro expander: a
// malformed definition, an arity mismatch at a call site, a runaway
// recursive expansion, or a compile-time evaluation failure in the
// built-in sub-language.
type MacroProcessingError struct {
	Pos     token.Position
	Message string
}

func (e *MacroProcessingError) Error() string {
	return fmt.Sprintf("%s: macro processing error: %s", e.Pos, e.Message)
}
