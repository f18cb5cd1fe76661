// Package macro implements fixed-point AST rewriting for ArkScript's
// compile-time macro system: constant substitution, function macros with
// spread parameters, and the `$if` conditional, plus a small compile-time
// evaluation sub-language for use inside macro bodies.
//
// Grounded on original_source/src/arkreactor/Compiler/Macros/Processor.cpp
// for the registration/expansion algorithm and the built-in function set,
// and on the teacher's fixed-point relabeling pass in asm/parser.go (a
// second pass re-run over previously-seen state until it stops changing
// anything) for the general shape of "re-apply until fixed point".
package macro

import (
	"github.com/arkscript-lang/ark/ast"
	"github.com/arkscript-lang/ark/internal/container"
	"github.com/arkscript-lang/ark/token"
)

// MaxMacroProcessingDepth bounds both scope nesting and per-node
// re-expansion, guarding against a macro that expands into a call to
// itself with no base case.
const MaxMacroProcessingDepth = 1000

type macroScope struct {
	depth int
	defs  *container.OrderedMap[string, ast.Node]
}

// Expander holds the macro-scope stack and the function-definition
// registry (for `argcount`) across one Expand call.
type Expander struct {
	scopes []*macroScope
	funcs  map[string]ast.Node // function name -> its argument-list node
}

func New() *Expander {
	return &Expander{funcs: make(map[string]ast.Node)}
}

// Expand walks root and returns the AST with every macro definition
// stripped out and every reference to a macro substituted, re-applying
// itself until a fixed point.
func Expand(root ast.Node) (ast.Node, error) {
	return New().Expand(root)
}

func (e *Expander) Expand(root ast.Node) (ast.Node, error) {
	return e.processList(root, 0)
}

func (e *Expander) pushScope(depth int) {
	e.scopes = append(e.scopes, &macroScope{depth: depth, defs: container.NewOrderedMap[string, ast.Node]()})
}

func (e *Expander) popScope() {
	e.scopes = e.scopes[:len(e.scopes)-1]
}

func (e *Expander) currentScope() *macroScope {
	return e.scopes[len(e.scopes)-1]
}

func (e *Expander) lookupMacro(name string) (ast.Node, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if def, ok := e.scopes[i].defs.Get(name); ok {
			return def, true
		}
	}
	return ast.Node{}, false
}

func (e *Expander) deleteNearestMacro(name string) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if _, ok := e.scopes[i].defs.Get(name); ok {
			e.scopes[i].defs.Delete(name)
			return
		}
	}
}

// isMacroOperation reports whether a Macro-kind node is a registration
// site (a definition or `$undef`) rather than a `$if` conditional, which
// is evaluated inline wherever it appears instead of being registered.
func isMacroOperation(node ast.Node) bool {
	children := node.Children()
	return len(children) > 0 && children[0].Kind == ast.Symbol
}

// processList performs one recursive descent over node's children: macro
// operations are registered (or deleted, for `$undef`) and dropped from
// the output; every other child is expanded to a local fixed point, then
// recursed into at depth+1. Scopes are created lazily, only once a macro
// operation is actually seen at a given depth, and popped once this
// call returns.
func (e *Expander) processList(node ast.Node, depth int) (ast.Node, error) {
	if node.Kind != ast.List && node.Kind != ast.Macro {
		return node, nil
	}
	if depth >= MaxMacroProcessingDepth {
		return ast.Node{}, &MacroProcessingError{Pos: node.Pos, Message: "max recursion depth reached; you most likely have a badly defined recursive macro calling itself without a proper exit condition"}
	}

	children := node.Children()
	scopePushed := false
	out := make([]ast.Node, 0, len(children))

	for _, child := range children {
		if child.Kind == ast.Macro && isMacroOperation(child) {
			if !scopePushed {
				e.pushScope(depth)
				scopePushed = true
			}
			if err := e.registerOrUndef(child); err != nil {
				return ast.Node{}, err
			}
			continue
		}

		expanded, err := e.expandFixedPoint(child, 0)
		if err != nil {
			return ast.Node{}, err
		}
		if expanded.Kind == ast.Unused {
			continue
		}

		recursed, err := e.processList(expanded, depth+1)
		if err != nil {
			return ast.Node{}, err
		}
		e.registerFuncDef(recursed)
		out = append(out, recursed)
	}

	if scopePushed {
		e.popScope()
	}
	node.SetChildren(out)
	return node, nil
}

// expandFixedPoint repeatedly applies one macro-expansion step to node
// until it stops changing.
func (e *Expander) expandFixedPoint(node ast.Node, iter int) (ast.Node, error) {
	if iter >= MaxMacroProcessingDepth {
		return ast.Node{}, &MacroProcessingError{Pos: node.Pos, Message: "max recursion depth reached while expanding a macro"}
	}
	next, changed, err := e.applyOnce(node)
	if err != nil {
		return ast.Node{}, err
	}
	if !changed {
		return next, nil
	}
	return e.expandFixedPoint(next, iter+1)
}

// applyOnce performs a single expansion step: a Symbol matching a
// registered constant macro is replaced by its value; a List headed by a
// Symbol matching a registered macro is expanded (constant or function
// shape); a List headed by a built-in name is evaluated; a `$if`
// Macro node is reduced to its chosen branch.
func (e *Expander) applyOnce(node ast.Node) (ast.Node, bool, error) {
	switch node.Kind {
	case ast.Symbol:
		if def, ok := e.lookupMacro(node.Text()); ok {
			children := def.Children()
			if len(children) != 2 {
				return node, false, nil
			}
			return children[1].Clone(), true, nil
		}
		return node, false, nil

	case ast.Macro:
		children := node.Children()
		if len(children) > 0 && children[0].Kind == ast.Keyword && children[0].KeywordID() == token.If {
			branch, err := e.evalMacroIf(node)
			if err != nil {
				return ast.Node{}, false, err
			}
			return branch, true, nil
		}
		return node, false, nil

	case ast.List:
		children := node.Children()
		if len(children) == 0 {
			return node, false, nil
		}
		head := children[0]
		if head.Kind != ast.Symbol {
			return node, false, nil
		}
		if def, ok := e.lookupMacro(head.Text()); ok {
			result, err := e.applyMacroCall(def, children[1:], node.Pos)
			if err != nil {
				return ast.Node{}, false, err
			}
			return result, true, nil
		}
		if isBuiltin(head.Text()) {
			result, err := e.evalBuiltin(node)
			if err != nil {
				return ast.Node{}, false, err
			}
			if head.Text() == "$paste" {
				// $paste hands back its argument exactly as written;
				// reporting this as "changed" would let the fixed-point
				// loop immediately reduce it, defeating the point.
				return result, false, nil
			}
			return result, true, nil
		}
		return node, false, nil

	default:
		return node, false, nil
	}
}

// registerFuncDef remembers `(let|mut|set name (fun (args) body))` so
// that `argcount` can later answer for `name`.
func (e *Expander) registerFuncDef(node ast.Node) {
	if node.Kind != ast.List {
		return
	}
	children := node.Children()
	if len(children) != 3 || children[0].Kind != ast.Keyword {
		return
	}
	switch children[0].KeywordID() {
	case token.Let, token.Mut, token.Set:
	default:
		return
	}
	name := children[1]
	inner := children[2]
	if name.Kind != ast.Symbol || inner.Kind != ast.List {
		return
	}
	innerChildren := inner.Children()
	if len(innerChildren) < 2 || innerChildren[0].Kind != ast.Keyword || innerChildren[0].KeywordID() != token.Fun {
		return
	}
	e.funcs[name.Text()] = innerChildren[1]
}
