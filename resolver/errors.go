package resolver

import (
	"fmt"

	"github.com/arkscript-lang/ark/token"
)

// NameError is raised for an unbound symbol use, a capture of a name that
// is never bound, or the use of a reserved name as a binding target.
type NameError struct {
	Pos        token.Position
	Name       string
	Suggestion string // nearest known name within the edit-distance threshold, if any
	Message    string // overrides the default "unbound variable" wording when set
}

func (e *NameError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Message)
	}
	if e.Suggestion == "" {
		return fmt.Sprintf(`%s: unbound variable error "%s" (variable is used but not defined)`, e.Pos, e.Name)
	}
	return fmt.Sprintf(`%s: unbound variable error "%s" (did you mean "%s"?)`, e.Pos, e.Name, e.Suggestion)
}

// MutabilityError is raised by `set` on an immutable binding, by a `let`
// that redefines a name already bound in the same scope, by an in-place
// mutator on an immutable or self-aliased list, or by a capture that
// reaches a variable defined in an unreachable scope.
type MutabilityError struct {
	Pos     token.Position
	Message string
}

func (e *MutabilityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}
