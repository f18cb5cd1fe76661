package macro

import (
	"strconv"

	"github.com/arkscript-lang/ark/ast"
	"github.com/arkscript-lang/ark/token"
)

var builtins = map[string]bool{
	"+": true, "-": true, "*": true, "/": true,
	"=": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"and": true, "or": true, "not": true,
	"len": true, "empty?": true, "head": true, "tail": true, "@": true,
	"symcat": true, "argcount": true, "$repr": true, "$paste": true,
}

func isBuiltin(name string) bool { return builtins[name] }

// evalArg reduces an argument of a built-in to a fixed point before the
// built-in inspects it; every built-in except $repr and $paste needs a
// concrete value, not a further-reducible expression.
func (e *Expander) evalArg(n ast.Node) (ast.Node, error) {
	return e.expandFixedPoint(n, 0)
}

// evalBuiltin evaluates one of the compile-time sub-language's built-in
// calls. node is the full `(name arg...)` List.
func (e *Expander) evalBuiltin(node ast.Node) (ast.Node, error) {
	children := node.Children()
	name := children[0].Text()
	args := children[1:]
	pos := node.Pos

	// $repr and $paste operate on the unevaluated argument: reflection
	// and "pass through as-is" would be meaningless on a reduced value.
	switch name {
	case "$repr":
		if len(args) != 1 {
			return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "$repr expects exactly 1 argument"}
		}
		return ast.NewString(args[0].Repr(), pos), nil
	case "$paste":
		if len(args) != 1 {
			return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "$paste expects exactly 1 argument"}
		}
		return args[0], nil
	}

	switch name {
	case "+", "-", "*", "/":
		return e.evalArith(name, args, pos)
	case "=", "!=", "<", ">", "<=", ">=":
		return e.evalCompare(name, args, pos)
	case "and", "or":
		return e.evalLogical(name, args, pos)
	case "not":
		if len(args) != 1 {
			return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "not expects exactly 1 argument"}
		}
		v, err := e.evalArg(args[0])
		if err != nil {
			return ast.Node{}, err
		}
		truthy, err := isTruthy(v)
		if err != nil {
			return ast.Node{}, err
		}
		return boolNode(!truthy, pos), nil
	case "len", "empty?", "head", "tail":
		return e.evalListUnary(name, args, pos)
	case "@":
		return e.evalIndex(args, pos)
	case "symcat":
		return e.evalSymcat(args, pos)
	case "argcount":
		return e.evalArgcount(args, pos)
	}
	return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "unknown compile-time function `" + name + "'"}
}

func (e *Expander) evalArith(name string, args []ast.Node, pos token.Position) (ast.Node, error) {
	if len(args) == 0 {
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: name + " expects at least 1 argument"}
	}
	vals := make([]float64, len(args))
	for i, a := range args {
		v, err := e.evalArg(a)
		if err != nil {
			return ast.Node{}, err
		}
		if v.Kind != ast.Number {
			return ast.Node{}, &MacroProcessingError{Pos: pos, Message: name + " requires Number operands"}
		}
		vals[i] = v.Number()
	}
	if len(vals) == 1 {
		if name == "-" {
			return ast.NewNumber(-vals[0], pos), nil
		}
		return ast.NewNumber(vals[0], pos), nil
	}
	result := vals[0]
	for _, v := range vals[1:] {
		switch name {
		case "+":
			result += v
		case "-":
			result -= v
		case "*":
			result *= v
		case "/":
			if v == 0 {
				return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "division by zero in compile-time expression"}
			}
			result /= v
		}
	}
	return ast.NewNumber(result, pos), nil
}

func (e *Expander) evalCompare(name string, args []ast.Node, pos token.Position) (ast.Node, error) {
	if len(args) != 2 {
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: name + " expects exactly 2 arguments"}
	}
	a, err := e.evalArg(args[0])
	if err != nil {
		return ast.Node{}, err
	}
	b, err := e.evalArg(args[1])
	if err != nil {
		return ast.Node{}, err
	}

	var cmp int
	switch {
	case a.Kind == ast.Number && b.Kind == ast.Number:
		cmp = compareFloat(a.Number(), b.Number())
	case a.Kind == ast.String && b.Kind == ast.String:
		cmp = compareString(a.Text(), b.Text())
	default:
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: name + " requires two Numbers or two Strings"}
	}

	var result bool
	switch name {
	case "=":
		result = cmp == 0
	case "!=":
		result = cmp != 0
	case "<":
		result = cmp < 0
	case ">":
		result = cmp > 0
	case "<=":
		result = cmp <= 0
	case ">=":
		result = cmp >= 0
	}
	return boolNode(result, pos), nil
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (e *Expander) evalLogical(name string, args []ast.Node, pos token.Position) (ast.Node, error) {
	if len(args) < 2 {
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "interpreting a `" + name + "' chain with " + strconv.Itoa(len(args)) + " argument(s), expected at least 2"}
	}
	for _, a := range args {
		v, err := e.evalArg(a)
		if err != nil {
			return ast.Node{}, err
		}
		truthy, err := isTruthy(v)
		if err != nil {
			return ast.Node{}, err
		}
		if name == "and" && !truthy {
			return boolNode(false, pos), nil
		}
		if name == "or" && truthy {
			return boolNode(true, pos), nil
		}
	}
	return boolNode(name == "and", pos), nil
}

// asList requires n to reduce to a `(list ...)`-shaped node, the macro
// sub-language's only collection representation (produced by `[...]`
// sugar and spread binding alike).
func asList(n ast.Node, pos token.Position, context string) ([]ast.Node, error) {
	children := n.Children()
	if n.Kind != ast.List || len(children) == 0 || children[0].Kind != ast.Symbol || children[0].Text() != "list" {
		return nil, &MacroProcessingError{Pos: pos, Message: context + " requires a list value"}
	}
	return children[1:], nil
}

func (e *Expander) evalListUnary(name string, args []ast.Node, pos token.Position) (ast.Node, error) {
	if len(args) != 1 {
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "when expanding `" + name + "' inside a macro, expected 1 argument, got " + strconv.Itoa(len(args))}
	}
	v, err := e.evalArg(args[0])
	if err != nil {
		return ast.Node{}, err
	}
	elems, err := asList(v, pos, name)
	if err != nil {
		return ast.Node{}, err
	}
	switch name {
	case "len":
		return ast.NewNumber(float64(len(elems)), pos), nil
	case "empty?":
		return boolNode(len(elems) == 0, pos), nil
	case "head":
		if len(elems) == 0 {
			return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "head of an empty list"}
		}
		return elems[0], nil
	case "tail":
		rest := make([]ast.Node, 0, len(elems))
		rest = append(rest, ast.NewSymbol("list", pos))
		if len(elems) > 0 {
			rest = append(rest, elems[1:]...)
		}
		return ast.NewList(ast.List, pos, rest...), nil
	}
	return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "unreachable"}
}

func (e *Expander) evalIndex(args []ast.Node, pos token.Position) (ast.Node, error) {
	if len(args) != 2 {
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "@ expects exactly 2 arguments"}
	}
	listVal, err := e.evalArg(args[0])
	if err != nil {
		return ast.Node{}, err
	}
	elems, err := asList(listVal, pos, "@")
	if err != nil {
		return ast.Node{}, err
	}
	idxVal, err := e.evalArg(args[1])
	if err != nil {
		return ast.Node{}, err
	}
	if idxVal.Kind != ast.Number {
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "@ requires a Number index"}
	}
	idx := int(idxVal.Number())
	if idx < 0 || idx >= len(elems) {
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "index out of range"}
	}
	return elems[idx], nil
}

func (e *Expander) evalSymcat(args []ast.Node, pos token.Position) (ast.Node, error) {
	if len(args) < 2 {
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "symcat expects at least 2 arguments"}
	}
	first, err := e.evalArg(args[0])
	if err != nil {
		return ast.Node{}, err
	}
	if first.Kind != ast.Symbol {
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "symcat expects its first argument to be a Symbol"}
	}
	out := first.Text()
	for _, a := range args[1:] {
		v, err := e.evalArg(a)
		if err != nil {
			return ast.Node{}, err
		}
		switch v.Kind {
		case ast.Number:
			out += strconv.FormatFloat(v.Number(), 'g', -1, 64)
		case ast.String, ast.Symbol:
			out += v.Text()
		default:
			return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "symcat expects a Number, String or Symbol"}
		}
	}
	return ast.NewSymbol(out, pos), nil
}

func (e *Expander) evalArgcount(args []ast.Node, pos token.Position) (ast.Node, error) {
	if len(args) != 1 {
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "argcount expects exactly 1 argument"}
	}
	sym := args[0]
	if sym.Kind != ast.Symbol {
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "argcount expects a Symbol naming a known function"}
	}
	argsNode, ok := e.funcs[sym.Text()]
	if !ok {
		return ast.Node{}, &MacroProcessingError{Pos: pos, Message: "argcount: unbound function `" + sym.Text() + "'"}
	}
	return ast.NewNumber(float64(len(argsNode.Children())), pos), nil
}

// evalMacroIf reduces a `$if` Macro node to the AST of its chosen
// branch (or to an Unused placeholder, dropped by the caller, when the
// condition is false and no else branch was given).
func (e *Expander) evalMacroIf(node ast.Node) (ast.Node, error) {
	children := node.Children()
	condVal, err := e.evalArg(children[1])
	if err != nil {
		return ast.Node{}, err
	}
	truthy, err := isTruthy(condVal)
	if err != nil {
		return ast.Node{}, err
	}
	if truthy {
		return children[2], nil
	}
	if len(children) > 3 && children[3].Kind != ast.Unused {
		return children[3], nil
	}
	return ast.NewUnused(node.Pos), nil
}

// isTruthy implements the expand-time truthiness table: true is truthy,
// false and nil are falsy, a non-zero Number is truthy, a non-empty
// String is truthy, everything else (including an unreduced List) is
// falsy. A Spread can never be assigned a truth value.
func isTruthy(node ast.Node) (bool, error) {
	switch node.Kind {
	case ast.Symbol:
		switch node.Text() {
		case "true":
			return true, nil
		case "false", "nil":
			return false, nil
		}
		return false, nil
	case ast.Number:
		return node.Number() != 0, nil
	case ast.String:
		return len(node.Text()) > 0, nil
	case ast.Spread:
		return false, &MacroProcessingError{Pos: node.Pos, Message: "can not determine the truth value of a spread"}
	default:
		return false, nil
	}
}

func boolNode(b bool, pos token.Position) ast.Node {
	if b {
		return ast.NewSymbol("true", pos)
	}
	return ast.NewSymbol("false", pos)
}
