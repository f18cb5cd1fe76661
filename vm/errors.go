package vm

import "fmt"

// TypeError is raised whenever an operator or builtin receives an argument
// whose Kind does not satisfy its Contract (the expected Kind set spelled
// out in Message).
type TypeError struct {
	Op       string
	Contract string
	Got      string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type error in %s: expected %s, got %s", e.Op, e.Contract, e.Got)
}

// DivisionByZeroError is raised by `/` and `mod` when the divisor is 0.
type DivisionByZeroError struct{ Op string }

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("division by zero in %s", e.Op)
}

// IndexError is raised by AT, POP_LIST and POP_LIST! when the index falls
// outside the list (or string)'s bounds.
type IndexError struct {
	Op          string
	Index, Size int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index error in %s: index %d out of range for size %d", e.Op, e.Index, e.Size)
}

// ScopeError is raised by LOAD_SYMBOL/SET_VAL/DEL/CAPTURE against an
// unbound name, or by GET_FIELD on a field the closure does not hold.
type ScopeError struct {
	Symbol  string
	Message string
}

func (e *ScopeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("scope error: %s (%s)", e.Message, e.Symbol)
	}
	return fmt.Sprintf("scope error: unbound variable %q", e.Symbol)
}

// ModuleError is raised when PLUGIN fails to locate or load a shared
// library, or the library does not expose the expected mapping function.
type ModuleError struct {
	Path    string
	Message string
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module error: %s (%s)", e.Message, e.Path)
}

// AssertionFailed is raised by ASSERT when its condition is falsy.
type AssertionFailed struct{ Message string }

func (e *AssertionFailed) Error() string {
	return fmt.Sprintf("assertion failed: %s", e.Message)
}

// VMError wraps a failure in the machine itself: value stack
// overflow/underflow, a malformed instruction, or a panic recovered out of
// the dispatch loop. Calling a non-callable value is a TypeError instead.
type VMError struct{ Message string }

func (e *VMError) Error() string { return "vm error: " + e.Message }
