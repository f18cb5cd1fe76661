package parser

import (
	"testing"

	"github.com/arkscript-lang/ark/ast"
	"github.com/arkscript-lang/ark/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) (ast.Node, []ast.Import) {
	t.Helper()
	toks, err := token.New(src, "test.ark").Tokenize()
	require.NoError(t, err)
	root, imports, err := Parse(toks, "test.ark")
	require.NoError(t, err)
	return root, imports
}

func TestParseTopLevelIsBeginList(t *testing.T) {
	root, _ := parse(t, "(let x 1)")
	require.Equal(t, ast.List, root.Kind)
	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, ast.Keyword, children[0].Kind)
	assert.Equal(t, token.Begin, children[0].KeywordID())
}

func TestParseLetMutSet(t *testing.T) {
	root, _ := parse(t, "(let x 1) (mut y 2) (set x 3)")
	forms := root.Children()[1:]
	require.Len(t, forms, 3)
	assert.Equal(t, token.Let, forms[0].Children()[0].KeywordID())
	assert.Equal(t, "x", forms[0].Children()[1].Text())
	assert.Equal(t, token.Mut, forms[1].Children()[0].KeywordID())
	assert.Equal(t, token.Set, forms[2].Children()[0].KeywordID())
}

func TestParseSetForbidsFieldAccess(t *testing.T) {
	toks, err := token.New("(set obj.field 1)", "t.ark").Tokenize()
	require.NoError(t, err)
	_, _, err = Parse(toks, "t.ark")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set forbids field access")
}

func TestParseIfWithAndWithoutElse(t *testing.T) {
	root, _ := parse(t, "(if true 1 2) (if true 1)")
	forms := root.Children()[1:]
	require.Len(t, forms[0].Children(), 4)
	require.Len(t, forms[1].Children(), 4)
	assert.Equal(t, ast.Unused, forms[1].Children()[3].Kind)
}

func TestParseFunWithCaptures(t *testing.T) {
	root, _ := parse(t, "(fun (a b &c) (+ a b))")
	fn := root.Children()[1]
	assert.Equal(t, token.Fun, fn.Children()[0].KeywordID())
	args := fn.Children()[1].Children()
	require.Len(t, args, 3)
	assert.Equal(t, ast.Symbol, args[0].Kind)
	assert.Equal(t, ast.Capture, args[2].Kind)
}

func TestParseCaptureMustBeLast(t *testing.T) {
	toks, err := token.New("(fun (&c a) a)", "t.ark").Tokenize()
	require.NoError(t, err)
	_, _, err = Parse(toks, "t.ark")
	require.Error(t, err)
}

func TestParseBracketAndBraceSugar(t *testing.T) {
	root, _ := parse(t, "[1 2 3] {1 2}")
	forms := root.Children()[1:]
	assert.Equal(t, "list", forms[0].Children()[0].Text())
	assert.Equal(t, token.Begin, forms[1].Children()[0].KeywordID())
}

func TestParseQuoteShorthand(t *testing.T) {
	root, _ := parse(t, "'x (quote y)")
	forms := root.Children()[1:]
	assert.Equal(t, "quote", forms[0].Children()[0].Text())
	assert.Equal(t, "x", forms[0].Children()[1].Text())
	assert.Equal(t, "quote", forms[1].Children()[0].Text())
}

func TestParseImportQualifiedGlobAndSelective(t *testing.T) {
	root, imports := parse(t, "(import math.trig) (import math.trig.*) (import math.trig sin cos)")
	require.Len(t, imports, 3)
	assert.Equal(t, []string{"math", "trig"}, imports[0].Package)
	assert.True(t, imports[0].Qualified())
	assert.True(t, imports[1].Glob)
	assert.Equal(t, []string{"sin", "cos"}, imports[2].Symbols)

	forms := root.Children()[1:]
	assert.Equal(t, token.Import, forms[0].Children()[0].KeywordID())
}

func TestParseDel(t *testing.T) {
	root, _ := parse(t, "(del x)")
	form := root.Children()[1]
	assert.Equal(t, token.Del, form.Children()[0].KeywordID())
	assert.Equal(t, "x", form.Children()[1].Text())
}

func TestParseMacroDefConstantAndFunction(t *testing.T) {
	root, _ := parse(t, "($ PI 3.14) ($ square (x) (* x x))")
	forms := root.Children()[1:]
	assert.Equal(t, ast.Macro, forms[0].Kind)
	assert.Equal(t, "PI", forms[0].Children()[0].Text())
	assert.Equal(t, ast.Macro, forms[1].Kind)
	assert.Equal(t, "square", forms[1].Children()[0].Text())
	assert.Len(t, forms[1].Children()[1].Children(), 1)
}

func TestParseMacroDefRejectsDuplicateAndMisplacedSpread(t *testing.T) {
	toks, err := token.New("($ f (a a) a)", "t.ark").Tokenize()
	require.NoError(t, err)
	_, _, err = Parse(toks, "t.ark")
	require.Error(t, err)

	toks, err = token.New("($ f (...rest a) a)", "t.ark").Tokenize()
	require.NoError(t, err)
	_, _, err = Parse(toks, "t.ark")
	require.Error(t, err)
}

func TestParseMacroIf(t *testing.T) {
	root, _ := parse(t, "($if true 1 2)")
	form := root.Children()[1]
	assert.Equal(t, ast.Macro, form.Kind)
	assert.Equal(t, token.If, form.Children()[0].KeywordID())
}

func TestParseUndefProducesMacroNode(t *testing.T) {
	root, _ := parse(t, "($undef PI)")
	form := root.Children()[1]
	assert.Equal(t, ast.Macro, form.Kind)
	assert.Equal(t, "$undef", form.Children()[0].Text())
}

func TestParseMacroCallShorthand(t *testing.T) {
	root, _ := parse(t, "!{square 4}")
	form := root.Children()[1]
	assert.Equal(t, ast.List, form.Kind)
	assert.Equal(t, "square", form.Children()[0].Text())
}

func TestParseOperatorHeadAndEmptyArgs(t *testing.T) {
	root, _ := parse(t, "(+) (+ 1 2)")
	forms := root.Children()[1:]
	assert.Len(t, forms[0].Children(), 1)
	assert.Equal(t, "+", forms[0].Children()[0].Text())
	assert.Len(t, forms[1].Children(), 3)
}

func TestParseFreeFloatingOperatorRejected(t *testing.T) {
	toks, err := token.New("+", "t.ark").Tokenize()
	require.NoError(t, err)
	_, _, err = Parse(toks, "t.ark")
	require.Error(t, err)
}

func TestParseFieldAccess(t *testing.T) {
	root, _ := parse(t, "obj.a.b")
	form := root.Children()[1]
	assert.Equal(t, ast.Field, form.Kind)
	require.Len(t, form.Children(), 3)
	assert.Equal(t, "obj", form.Children()[0].Text())
	assert.Equal(t, "a", form.Children()[1].Text())
	assert.Equal(t, "b", form.Children()[2].Text())
}

func TestParseLeadingCommentAttachesToNextForm(t *testing.T) {
	root, _ := parse(t, "# a doc comment\n(let x 1)")
	form := root.Children()[1]
	assert.Equal(t, "a doc comment", form.CommentBefore)
	assert.Empty(t, form.CommentAfter)
}

func TestParseTrailingCommentAttachesToPrecedingForm(t *testing.T) {
	root, _ := parse(t, "(let x 1) # inline note\n(let y 2)")
	forms := root.Children()[1:]
	assert.Equal(t, "inline note", forms[0].CommentAfter)
	assert.Empty(t, forms[1].CommentBefore)
}
