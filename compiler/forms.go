package compiler

import (
	"fmt"
	"strings"

	"github.com/arkscript-lang/ark/ast"
	"github.com/arkscript-lang/ark/token"
	"github.com/arkscript-lang/ark/value"
)

// compileList lowers a parenthesized form: a keyword-headed special form,
// a direct tail self-call (lowered to a single JUMP back to the top of
// the current page), an operator/builtin application, or a generic call.
func (c *Compiler) compileList(node ast.Node, tail, wantValue bool) (bool, error) {
	children := node.Children()
	if len(children) == 0 {
		return false, nil
	}
	head := children[0]

	if head.Kind == ast.Keyword {
		return c.compileKeywordForm(node, children, head.KeywordID(), tail, wantValue)
	}

	if tail && head.Kind == ast.Symbol && c.isSelfRecursiveCall(head.Text()) {
		for _, arg := range children[1:] {
			if err := c.compileForm(arg, false, true); err != nil {
				return false, err
			}
		}
		c.page().emit(Jump, 0)
		return true, nil
	}

	if head.Kind == ast.Symbol {
		if op, ok := operatorOps[head.Text()]; ok {
			return true, c.compileOperatorForm(node, head.Text(), op, children[1:])
		}
	}

	return true, c.compileGenericCall(head, children[1:])
}

func (c *Compiler) isSelfRecursiveCall(name string) bool {
	if len(c.funcNames) == 0 {
		return false
	}
	top := c.funcNames[len(c.funcNames)-1]
	return top != "" && top == name
}

func (c *Compiler) compileKeywordForm(node ast.Node, children []ast.Node, kw token.KeywordID, tail, wantValue bool) (bool, error) {
	switch kw {
	case token.Let, token.Mut, token.Set:
		return false, c.compileBinding(node, children, kw)

	case token.Del:
		if len(children) < 2 {
			return false, nil
		}
		idx, err := c.internSymbol(children[1].Text())
		if err != nil {
			return false, err
		}
		c.page().emit(Del, idx)
		return false, nil

	case token.Fun:
		return true, c.compileFun(node, "")

	case token.If:
		return wantValue, c.compileIf(children, tail, wantValue)

	case token.While:
		return false, c.compileWhile(children)

	case token.Import:
		return false, c.compileImport(children)

	case token.Begin:
		return wantValue, c.compileBegin(children[1:], tail, wantValue)

	default:
		return false, &CompilationError{Pos: node.Pos, Message: fmt.Sprintf("unhandled keyword form %q", kw.String())}
	}
}

// compileBinding lowers `let`/`mut`/`set`. A `let`/`mut` whose value is a
// literal `fun` form is compiled via compileFun directly (rather than
// through the generic compileForm path) so the bound name is available
// for direct-self-recursion detection inside the function's own body.
func (c *Compiler) compileBinding(node ast.Node, children []ast.Node, kw token.KeywordID) error {
	if len(children) < 2 {
		return &CompilationError{Pos: node.Pos, Message: "binding form is missing its target name"}
	}
	// A field-qualified target (only reachable for let/mut; the parser
	// rejects it for set) has no plain symbol to bind to at this pass,
	// same tolerance resolver.visitLetMutSet applies.
	if children[1].Kind != ast.Symbol {
		if len(children) > 2 {
			return c.compileForm(children[2], false, false)
		}
		return nil
	}
	name := children[1].Text()

	var err error
	if kw != token.Set && len(children) > 2 && isFunForm(children[2]) {
		err = c.compileFun(children[2], name)
	} else if len(children) > 2 {
		err = c.compileForm(children[2], false, true)
	} else {
		c.pushNil(node.Pos)
	}
	if err != nil {
		return err
	}

	idx, err := c.internSymbol(name)
	if err != nil {
		return err
	}
	switch kw {
	case token.Let, token.Mut:
		c.page().emit(Store, idx)
	case token.Set:
		c.page().emit(SetVal, idx)
	}
	return nil
}

func isFunForm(node ast.Node) bool {
	if node.Kind != ast.List {
		return false
	}
	children := node.Children()
	return len(children) > 0 && children[0].Kind == ast.Keyword && children[0].KeywordID() == token.Fun
}

func (c *Compiler) compileIf(children []ast.Node, tail, wantValue bool) error {
	if len(children) < 3 {
		return &CompilationError{Message: "if requires a condition and a then-branch"}
	}
	if err := c.compileForm(children[1], false, true); err != nil {
		return err
	}
	thenIdx := c.page().emit(PopJumpIfTrue, 0)

	if len(children) > 3 && children[3].Kind != ast.Unused {
		if err := c.compileForm(children[3], tail, wantValue); err != nil {
			return err
		}
	} else if wantValue {
		c.pushNil(children[0].Pos)
	}
	endIdx := c.page().emit(Jump, 0)

	c.page().patch(thenIdx, c.page().here())
	if err := c.compileForm(children[2], tail, wantValue); err != nil {
		return err
	}
	c.page().patch(endIdx, c.page().here())
	return nil
}

func (c *Compiler) compileWhile(children []ast.Node) error {
	if len(children) < 3 {
		return &CompilationError{Message: "while requires a condition and a body"}
	}
	top := c.page().here()
	if err := c.compileForm(children[1], false, true); err != nil {
		return err
	}
	endIdx := c.page().emit(PopJumpIfFalse, 0)
	if err := c.compileForm(children[2], false, false); err != nil {
		return err
	}
	c.page().emit(Jump, top)
	c.page().patch(endIdx, c.page().here())
	return nil
}

// compileImport records the imported plugin's path (its segments joined
// with "/") both in Program.Plugins and as a PLUGIN instruction carrying
// the interned path's symbol index.
func (c *Compiler) compileImport(children []ast.Node) error {
	if len(children) < 2 {
		return nil
	}
	segs := children[1].Children()
	names := make([]string, len(segs))
	for i, s := range segs {
		names[i] = s.Text()
	}
	path := strings.Join(names, "/")
	c.plugins = append(c.plugins, path)

	idx, err := c.internSymbol(path)
	if err != nil {
		return err
	}
	c.page().emit(Plugin, idx)
	return nil
}

// compileFun lowers a `fun` form into a new Page. Capture parameters
// (`&cap`) emit a CAPTURE word in the enclosing page (copying the named
// binding into the closure's saved scope) and are not part of the
// callee's call-argument prologue; positional parameters are, bound by a
// STORE per parameter emitted in reverse order so popping the call stack
// top-down assigns them left to right. selfName, when non-empty, is the
// name this fun was just bound under, enabling direct-self-recursion
// detection (compileList's isSelfRecursiveCall) inside its own body.
func (c *Compiler) compileFun(node ast.Node, selfName string) error {
	children := node.Children()
	var params []ast.Node
	if len(children) > 1 {
		params = children[1].Children()
	}

	for _, p := range params {
		if p.Kind == ast.Capture {
			idx, err := c.internSymbol(p.Text())
			if err != nil {
				return err
			}
			c.page().emit(Capture, idx)
		}
	}

	newPage := &Page{}
	c.pages = append(c.pages, newPage)
	newIdx := len(c.pages) - 1
	outerPage := c.current
	c.current = newIdx
	c.funcNames = append(c.funcNames, selfName)

	var positional []string
	for _, p := range params {
		switch p.Kind {
		case ast.Symbol, ast.Spread:
			positional = append(positional, p.Text())
		}
	}
	for i := len(positional) - 1; i >= 0; i-- {
		idx, err := c.internSymbol(positional[i])
		if err != nil {
			c.funcNames = c.funcNames[:len(c.funcNames)-1]
			c.current = outerPage
			return err
		}
		newPage.emit(Store, idx)
	}

	var bodyErr error
	if len(children) > 2 {
		bodyErr = c.compileForm(children[2], true, true)
	} else {
		c.pushNil(node.Pos)
	}
	newPage.emit(Ret, 0)

	c.funcNames = c.funcNames[:len(c.funcNames)-1]
	c.current = outerPage
	if bodyErr != nil {
		return bodyErr
	}

	pageIdx, err := c.internConst(value.PageAddr(uint16(newIdx)), fmt.Sprintf("page:%d", newIdx))
	if err != nil {
		return err
	}
	c.page().emit(MakeClosure, pageIdx)
	return nil
}

// compileOperatorForm lowers an operator or dedicated-opcode builtin
// call. List-shaped operators (list/append/concat/append!/concat!/pop/
// pop!) carry their operand count in the instruction's arg field;
// arithmetic/logical chainables fold pairwise with TOS accumulation;
// everything else in operatorOps is fixed-arity.
func (c *Compiler) compileOperatorForm(node ast.Node, name string, op Op, args []ast.Node) error {
	if listCountOps[name] {
		for _, a := range args {
			if err := c.compileForm(a, false, true); err != nil {
				return err
			}
		}
		if len(args) > 0xFFFF {
			return &CompilationError{Pos: node.Pos, Message: fmt.Sprintf("`%s` takes too many operands", name)}
		}
		c.page().emit(op, uint16(len(args)))
		return nil
	}

	if arithChainable[name] {
		if len(args) < 2 {
			return &CompilationError{Pos: node.Pos, Message: fmt.Sprintf("operator `%s` needs at least 2 arguments", name)}
		}
		if err := c.compileForm(args[0], false, true); err != nil {
			return err
		}
		for _, a := range args[1:] {
			if err := c.compileForm(a, false, true); err != nil {
				return err
			}
			c.page().emit(op, 0)
		}
		return nil
	}

	if arity, ok := fixedArity[name]; ok && len(args) != arity {
		return &CompilationError{Pos: node.Pos, Message: fmt.Sprintf("operator `%s` takes exactly %d argument(s), got %d", name, arity, len(args))}
	}
	for _, a := range args {
		if err := c.compileForm(a, false, true); err != nil {
			return err
		}
	}
	c.page().emit(op, 0)
	return nil
}

func (c *Compiler) compileGenericCall(head ast.Node, args []ast.Node) error {
	if err := c.compileForm(head, false, true); err != nil {
		return err
	}
	for _, a := range args {
		if err := c.compileForm(a, false, true); err != nil {
			return err
		}
	}
	if len(args) > 0xFFFF {
		return &CompilationError{Pos: head.Pos, Message: "too many arguments in call"}
	}
	c.page().emit(Call, uint16(len(args)))
	return nil
}
