package macro

import (
	"fmt"

	"github.com/arkscript-lang/ark/ast"
	"github.com/arkscript-lang/ark/token"
)

// registerOrUndef validates and registers a macro-definition node in the
// current (innermost) scope, or, for `($undef name)`, deletes a macro
// from the nearest scope that defines it.
func (e *Expander) registerOrUndef(node ast.Node) error {
	children := node.Children()
	if len(children) < 2 {
		return &MacroProcessingError{Pos: node.Pos, Message: "invalid macro, missing value"}
	}
	first := children[0]
	if first.Kind != ast.Symbol {
		return &MacroProcessingError{Pos: node.Pos, Message: "can not define a macro without a symbol"}
	}

	if first.Text() == "$undef" {
		second := children[1]
		if second.Kind != ast.Symbol {
			return &MacroProcessingError{Pos: second.Pos, Message: "can not un-define a macro without a name"}
		}
		e.deleteNearestMacro(second.Text())
		return nil
	}

	name := first.Text()
	if _, reserved := token.Keywords[name]; reserved {
		return &MacroProcessingError{Pos: first.Pos, Message: "can not use the reserved keyword `" + name + "' as a macro name"}
	}

	switch len(children) {
	case 2:
		e.currentScope().defs.Set(name, node)
		return nil
	case 3:
		argsNode := children[1]
		if argsNode.Kind != ast.List {
			return &MacroProcessingError{Pos: argsNode.Pos, Message: "invalid macro argument's list"}
		}
		if err := validateMacroParams(argsNode); err != nil {
			return err
		}
		e.currentScope().defs.Set(name, node)
		return nil
	default:
		return &MacroProcessingError{Pos: node.Pos, Message: "invalid macro, missing value"}
	}
}

func validateMacroParams(argsNode ast.Node) error {
	hadSpread := false
	for _, p := range argsNode.Children() {
		if p.Kind != ast.Symbol && p.Kind != ast.Spread {
			return &MacroProcessingError{Pos: p.Pos, Message: "invalid macro argument's list, expected symbols"}
		}
		if p.Kind == ast.Spread {
			if hadSpread {
				return &MacroProcessingError{Pos: p.Pos, Message: "invalid macro, multiple spreads detected in argument list but only one is allowed"}
			}
			hadSpread = true
		} else if hadSpread {
			return &MacroProcessingError{Pos: p.Pos, Message: "invalid macro, a spread should mark the end of an argument list, but found another argument: " + p.Text()}
		}
	}
	return nil
}

// applyMacroCall expands a call site against a registered macro
// definition: a constant macro substitutes its value as the new call
// head (so `(alias 1 2)` becomes `(<alias's value> 1 2)`); a function
// macro binds parameters — including a single trailing spread, which
// collects the remaining arguments into a `(list ...)`-shaped node — and
// substitutes them into its body.
func (e *Expander) applyMacroCall(def ast.Node, callArgs []ast.Node, pos token.Position) (ast.Node, error) {
	children := def.Children()
	name := children[0].Text()

	if len(children) == 2 {
		head := children[1].Clone()
		out := make([]ast.Node, 0, len(callArgs)+1)
		out = append(out, head)
		out = append(out, callArgs...)
		return ast.NewList(ast.List, pos, out...), nil
	}

	params := children[1].Children()
	body := children[2]

	spreadIdx := -1
	for i, p := range params {
		if p.Kind == ast.Spread {
			spreadIdx = i
			break
		}
	}

	bindings := make(map[string]ast.Node, len(params))
	if spreadIdx == -1 {
		if len(callArgs) != len(params) {
			return ast.Node{}, &MacroProcessingError{Pos: pos, Message: fmt.Sprintf("macro `%s' expected %d argument(s), got %d", name, len(params), len(callArgs))}
		}
		for i, p := range params {
			bindings[p.Text()] = callArgs[i]
		}
	} else {
		if len(callArgs) < spreadIdx {
			return ast.Node{}, &MacroProcessingError{Pos: pos, Message: fmt.Sprintf("macro `%s' expected at least %d argument(s), got %d", name, spreadIdx, len(callArgs))}
		}
		for i := 0; i < spreadIdx; i++ {
			bindings[params[i].Text()] = callArgs[i]
		}
		rest := make([]ast.Node, 0, len(callArgs)-spreadIdx+1)
		rest = append(rest, ast.NewSymbol("list", pos))
		rest = append(rest, callArgs[spreadIdx:]...)
		bindings[params[spreadIdx].Text()] = ast.NewList(ast.List, pos, rest...)
	}

	return substitute(body, bindings), nil
}

// substitute performs the depth-first unifying walk: Symbol leaves are
// replaced by their bound value, and a Spread node appearing directly as
// a list element is expanded into the spliced contents of its bound
// `(list ...)`-shaped value.
func substitute(node ast.Node, bindings map[string]ast.Node) ast.Node {
	switch node.Kind {
	case ast.Symbol:
		if v, ok := bindings[node.Text()]; ok {
			return v.Clone()
		}
		return node
	case ast.List, ast.Macro, ast.Field:
		children := node.Children()
		out := make([]ast.Node, 0, len(children))
		for _, c := range children {
			if c.Kind == ast.Spread {
				if v, ok := bindings[c.Text()]; ok {
					vc := v.Children()
					if len(vc) > 0 {
						out = append(out, vc[1:]...)
					}
					continue
				}
			}
			out = append(out, substitute(c, bindings))
		}
		n := node
		n.SetChildren(out)
		return n
	default:
		return node
	}
}
