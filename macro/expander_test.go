package macro_test

import (
	"testing"

	"github.com/arkscript-lang/ark/ast"
	"github.com/arkscript-lang/ark/macro"
	"github.com/arkscript-lang/ark/parser"
	"github.com/arkscript-lang/ark/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expand(t *testing.T, src string) ast.Node {
	t.Helper()
	toks, err := token.New(src, "test.ark").Tokenize()
	require.NoError(t, err)
	root, _, err := parser.Parse(toks, "test.ark")
	require.NoError(t, err)
	out, err := macro.Expand(root)
	require.NoError(t, err)
	return out
}

// expandErr returns whichever stage (tokenizing, parsing, or macro
// expansion) first produces an error, since some malformed-macro shapes
// (a reserved name, a misplaced spread) are already rejected by the
// parser before the expander ever sees them.
func expandErr(t *testing.T, src string) error {
	t.Helper()
	toks, err := token.New(src, "test.ark").Tokenize()
	require.NoError(t, err)
	root, _, err := parser.Parse(toks, "test.ark")
	if err != nil {
		return err
	}
	_, err = macro.Expand(root)
	return err
}

func forms(root ast.Node) []ast.Node {
	return root.Children()[1:]
}

func TestExpandConstantMacro(t *testing.T) {
	root := expand(t, "($ PI 3) (let x PI)")
	fs := forms(root)
	require.Len(t, fs, 1)
	letForm := fs[0]
	assert.Equal(t, token.Let, letForm.Children()[0].KeywordID())
	assert.Equal(t, ast.Number, letForm.Children()[2].Kind)
	assert.Equal(t, float64(3), letForm.Children()[2].Number())
}

func TestExpandFunctionMacroNoSpread(t *testing.T) {
	root := expand(t, "($ square (x) (* x x)) (let y (square 4))")
	fs := forms(root)
	require.Len(t, fs, 1)
	call := fs[0].Children()[2]
	assert.Equal(t, ast.Number, call.Kind)
	assert.Equal(t, float64(16), call.Number())
}

func TestExpandFunctionMacroWithSpread(t *testing.T) {
	root := expand(t, "($ countArgs (...rest) (len rest)) (let n (countArgs 1 2 3))")
	fs := forms(root)
	require.Len(t, fs, 1)
	call := fs[0].Children()[2]
	assert.Equal(t, ast.Number, call.Kind)
	assert.Equal(t, float64(3), call.Number())
}

func TestExpandUndefRemovesMacro(t *testing.T) {
	root := expand(t, "($ X 1) ($undef X) (let y X)")
	fs := forms(root)
	require.Len(t, fs, 1)
	letForm := fs[0]
	assert.Equal(t, ast.Symbol, letForm.Children()[2].Kind)
	assert.Equal(t, "X", letForm.Children()[2].Text())
}

func TestExpandMacroIfWithElse(t *testing.T) {
	root := expand(t, "($if true (let a 1) (let a 2))")
	fs := forms(root)
	require.Len(t, fs, 1)
	assert.Equal(t, token.Let, fs[0].Children()[0].KeywordID())
	assert.Equal(t, float64(1), fs[0].Children()[2].Number())
}

func TestExpandMacroIfNoElseFalseDropsForm(t *testing.T) {
	root := expand(t, "($if false (let a 1)) (let b 2)")
	fs := forms(root)
	require.Len(t, fs, 1)
	assert.Equal(t, "b", fs[0].Children()[1].Text())
}

func TestExpandMacroCallShorthand(t *testing.T) {
	root := expand(t, "($ double (x) (* x 2)) (let y !{double 5})")
	fs := forms(root)
	require.Len(t, fs, 1)
	assert.Equal(t, float64(10), fs[0].Children()[2].Number())
}

func TestExpandNestedFixedPoint(t *testing.T) {
	root := expand(t, "($ A 1) ($ B (+ A 1)) (let y B)")
	fs := forms(root)
	require.Len(t, fs, 1)
	assert.Equal(t, float64(2), fs[0].Children()[2].Number())
}

func TestExpandBuiltinArithmeticAndComparison(t *testing.T) {
	root := expand(t, "($ X (+ 1 2 3)) ($ Y (< X 10)) (let a X) (let b Y)")
	fs := forms(root)
	require.Len(t, fs, 2)
	assert.Equal(t, float64(6), fs[0].Children()[2].Number())
	assert.Equal(t, "true", fs[1].Children()[2].Text())
}

func TestExpandBuiltinListOps(t *testing.T) {
	root := expand(t, "($ L [1 2 3]) ($ H (head L)) ($ T (len (tail L))) (let a H) (let b T)")
	fs := forms(root)
	require.Len(t, fs, 2)
	assert.Equal(t, float64(1), fs[0].Children()[2].Number())
	assert.Equal(t, float64(2), fs[1].Children()[2].Number())
}

func TestExpandSymcat(t *testing.T) {
	root := expand(t, "($ name (symcat foo 1)) (let foo1 name)")
	fs := forms(root)
	require.Len(t, fs, 1)
	assert.Equal(t, ast.Symbol, fs[0].Children()[2].Kind)
	assert.Equal(t, "foo1", fs[0].Children()[2].Text())
}

func TestExpandArgcount(t *testing.T) {
	root := expand(t, "(let f (fun (a b c) a)) ($ N (argcount f)) (let n N)")
	fs := forms(root)
	require.Len(t, fs, 2)
	assert.Equal(t, float64(3), fs[1].Children()[2].Number())
}

func TestExpandRepr(t *testing.T) {
	root := expand(t, "($ R ($repr (+ 1 2))) (let s R)")
	fs := forms(root)
	require.Len(t, fs, 1)
	assert.Equal(t, ast.String, fs[0].Children()[2].Kind)
	assert.Equal(t, "(+ 1 2)", fs[0].Children()[2].Text())
}

func TestExpandPasteDoesNotReduce(t *testing.T) {
	root := expand(t, "($ P ($paste (+ 1 2))) (let s P)")
	fs := forms(root)
	require.Len(t, fs, 1)
	v := fs[0].Children()[2]
	assert.Equal(t, ast.List, v.Kind)
	assert.Equal(t, "+", v.Children()[0].Text())
}

func TestExpandFunctionMacroArityMismatch(t *testing.T) {
	err := expandErr(t, "($ square (x) (* x x)) (let y (square 1 2))")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 1 argument")
}

func TestExpandMacroReservedNameRejected(t *testing.T) {
	err := expandErr(t, "($ if 1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved keyword")
}

func TestExpandSpreadMustBeLast(t *testing.T) {
	err := expandErr(t, "($ f (...a b) a)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be at the end")
}

func TestExpandDivisionByZero(t *testing.T) {
	err := expandErr(t, "($ X (/ 1 0)) (let y X)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}
