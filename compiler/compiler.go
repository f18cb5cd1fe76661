// Package compiler lowers a macro-expanded, name-resolved AST into
// paged bytecode: one Page per `fun` body plus the top-level page,
// interned symbol/value tables, and the list of imported plugin paths.
//
// Grounded on _examples/db47h-ngaro/vm/opcodes.go's opcode-table shape
// and asm/parser.go's single-pass assembler structure, generalized from
// assembling Forth mnemonics to lowering an s-expression AST.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/arkscript-lang/ark/ast"
	"github.com/arkscript-lang/ark/token"
	"github.com/arkscript-lang/ark/value"
	"github.com/pkg/errors"
)

// Program is everything the bytecode serializer needs: the compiled
// pages, the interned symbol and value tables, and the plugin paths
// encountered along the way.
type Program struct {
	Symbols []string
	Values  []value.Value
	Pages   []*Page
	Plugins []string
}

// Compile lowers root (the macro-expanded, resolved program AST) into a
// Program.
func Compile(root ast.Node) (*Program, error) {
	c := &Compiler{
		symbols: newSymbolTable(),
		values:  newValueTable(),
	}
	c.pages = append(c.pages, &Page{})

	children := root.Children()
	if len(children) > 0 && children[0].Kind == ast.Keyword && children[0].KeywordID() == token.Begin {
		children = children[1:]
	}
	if err := c.compileBegin(children, false, true); err != nil {
		return nil, err
	}
	c.page().emit(Ret, 0)

	return &Program{
		Symbols: c.symbols.names,
		Values:  c.values.values,
		Pages:   c.pages,
		Plugins: c.plugins,
	}, nil
}

// Compiler carries the in-progress pages and interning tables across one
// Compile call.
type Compiler struct {
	symbols *symbolTable
	values  *valueTable
	pages   []*Page
	current int

	plugins []string

	// funcNames is the stack of names the fun currently being compiled was
	// bound under (from `(let name (fun ...))`/`(mut name (fun ...))`),
	// used to detect direct self-recursion for tail-call optimization.
	// A fun compiled anonymously or via any other binding form pushes "".
	funcNames []string
}

func (c *Compiler) page() *Page { return c.pages[c.current] }

func (c *Compiler) internSymbol(name string) (uint16, error) {
	idx, err := c.symbols.intern(name)
	if err != nil {
		return 0, errors.Wrapf(err, "interning symbol %q", name)
	}
	return idx, nil
}

func (c *Compiler) internConst(v value.Value, key string) (uint16, error) {
	idx, err := c.values.intern(v, key)
	if err != nil {
		return 0, errors.Wrapf(err, "interning constant %s", key)
	}
	return idx, nil
}

// compileBegin compiles a sequence of forms: every form but the last is
// compiled for effect only (its value, if any, is popped); the last form
// is compiled per wantValue/tail, matching how its enclosing context
// will use this sequence's result.
func (c *Compiler) compileBegin(forms []ast.Node, tail, wantValue bool) error {
	if len(forms) == 0 {
		if wantValue {
			c.pushNil(token.Position{})
		}
		return nil
	}
	for _, form := range forms[:len(forms)-1] {
		if err := c.compileForm(form, false, false); err != nil {
			return err
		}
	}
	return c.compileForm(forms[len(forms)-1], tail, wantValue)
}

// pushNil loads the pre-bound global "nil" binding. Nil/true/false are
// not representable in the value table's NUMBER/STRING/FUNC tags (spec
// §6 defines exactly those three), so like every other builtin constant
// they are reached through LOAD_SYMBOL against a name the VM's global
// scope pre-populates, not through LOAD_CONST.
func (c *Compiler) pushNil(token.Position) {
	idx, err := c.internSymbol("nil")
	if err != nil {
		return
	}
	c.page().emit(LoadSymbol, idx)
}

// compileForm lowers one AST node. tail marks whether this form occupies
// the tail position of the function currently being compiled (only
// meaningful for detecting direct self-recursion); wantValue marks
// whether the caller needs a value left on the stack afterward. After
// compileForm returns (with no error), exactly one value sits on the
// stack beyond what was there before if wantValue is true, and none if
// wantValue is false.
func (c *Compiler) compileForm(node ast.Node, tail, wantValue bool) error {
	produced, err := c.compileFormValue(node, tail, wantValue)
	if err != nil {
		return err
	}
	if produced && !wantValue {
		c.page().emit(Pop, 0)
	} else if !produced && wantValue {
		c.pushNil(node.Pos)
	}
	return nil
}

// compileFormValue does the actual lowering and reports whether it left a
// value on the stack. Statement-shaped forms (let/mut/set/del/while/
// import) report false, so compileForm pushes a nil when wantValue is set; a
// direct tail self-call reports true without the caller needing to act
// on it, since the emitted JUMP never falls through to the wrapper logic
// at all (compileList returns early in that case).
func (c *Compiler) compileFormValue(node ast.Node, tail, wantValue bool) (bool, error) {
	switch node.Kind {
	case ast.Number:
		idx, err := c.internConst(value.Number(node.Number()), "n:"+strconv.FormatFloat(node.Number(), 'g', -1, 64))
		if err != nil {
			return false, err
		}
		c.page().emit(LoadConst, idx)
		return true, nil

	case ast.String:
		idx, err := c.internConst(value.String(node.Text()), "s:"+node.Text())
		if err != nil {
			return false, err
		}
		c.page().emit(LoadConst, idx)
		return true, nil

	case ast.Symbol:
		return true, c.compileSymbolLoad(node)

	case ast.Field:
		return true, c.compileFieldLoad(node)

	case ast.Unused:
		return false, nil

	case ast.List:
		return c.compileList(node, tail, wantValue)

	default:
		return false, &CompilationError{Pos: node.Pos, Message: fmt.Sprintf("can not compile a bare %s node", node.Kind)}
	}
}

// compileSymbolLoad lowers a bare identifier reference. `true`/`false`/
// `nil` are pre-bound global names rather than value-table literals (see
// pushNil) so they fall through to the same LOAD_SYMBOL path as any
// other variable reference.
func (c *Compiler) compileSymbolLoad(node ast.Node) error {
	name := node.Text()
	if id, ok := stdlibIndex[name]; ok {
		c.page().emit(Builtin, id)
		return nil
	}
	idx, err := c.internSymbol(name)
	if err != nil {
		return err
	}
	c.page().emit(LoadSymbol, idx)
	return nil
}

// compileFieldLoad lowers a dotted field access (`a.b.c`): load the base
// symbol, then a GET_FIELD per remaining segment, carrying that
// segment's interned name as the instruction's arg.
func (c *Compiler) compileFieldLoad(node ast.Node) error {
	segs := node.Children()
	if len(segs) == 0 {
		c.pushNil(node.Pos)
		return nil
	}
	if err := c.compileSymbolLoad(segs[0]); err != nil {
		return err
	}
	for _, seg := range segs[1:] {
		idx, err := c.internSymbol(seg.Text())
		if err != nil {
			return err
		}
		c.page().emit(GetField, idx)
	}
	return nil
}
