package compiler_test

import (
	"testing"

	"github.com/arkscript-lang/ark/compiler"
	"github.com/arkscript-lang/ark/parser"
	"github.com/arkscript-lang/ark/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileSrc(t *testing.T, src string) *compiler.Program {
	t.Helper()
	toks, err := token.New(src, "test.ark").Tokenize()
	require.NoError(t, err)
	root, _, err := parser.Parse(toks, "test.ark")
	require.NoError(t, err)
	prog, err := compiler.Compile(root)
	require.NoError(t, err)
	return prog
}

func opNames(page *compiler.Page) []string {
	names := make([]string, len(page.Words))
	for i, w := range page.Words {
		names[i] = w.Op.String()
	}
	return names
}

func TestCompileNumberLiteral(t *testing.T) {
	prog := compileSrc(t, "42")
	assert.Equal(t, []string{"LOAD_CONST", "RET"}, opNames(prog.Pages[0]))
}

func TestCompileLetBindsSymbol(t *testing.T) {
	prog := compileSrc(t, "(let x 1)")
	assert.Contains(t, prog.Symbols, "x")
	assert.Equal(t, []string{"LOAD_CONST", "STORE", "LOAD_SYMBOL", "RET"}, opNames(prog.Pages[0]))
}

func TestCompileArithmeticChain(t *testing.T) {
	prog := compileSrc(t, "(+ 1 2 3)")
	ops := opNames(prog.Pages[0])
	assert.Equal(t, []string{"LOAD_CONST", "LOAD_CONST", "ADD", "LOAD_CONST", "ADD", "RET"}, ops)
}

func TestCompileBinaryOperatorExactArity(t *testing.T) {
	_, err := compileOrErr(t, "(> 1 2 3)")
	require.Error(t, err)
}

func TestCompileComparisonIsFixedArity(t *testing.T) {
	prog := compileSrc(t, "(let r (> 1 2))")
	ops := opNames(prog.Pages[0])
	assert.Contains(t, ops, "GT")
}

func TestCompileIfProducesBranchOpcodes(t *testing.T) {
	prog := compileSrc(t, "(if true 1 2)")
	ops := opNames(prog.Pages[0])
	assert.Contains(t, ops, "POP_JUMP_IF_TRUE")
	assert.Contains(t, ops, "JUMP")
}

func TestCompileIfWithoutElsePushesNilForWantedValue(t *testing.T) {
	prog := compileSrc(t, "(let r (if false 1))")
	ops := opNames(prog.Pages[0])
	assert.Contains(t, ops, "POP_JUMP_IF_TRUE")
	// The missing else branch loads the pre-bound nil before jumping past the then-branch.
	assert.Equal(t, []string{"LOAD_SYMBOL", "POP_JUMP_IF_TRUE", "LOAD_SYMBOL", "JUMP"}, ops[:4])
	assert.Contains(t, prog.Symbols, "nil")
}

func TestCompileFunCreatesNewPageAndClosure(t *testing.T) {
	prog := compileSrc(t, "(let f (fun (a b) (+ a b)))")
	require.Len(t, prog.Pages, 2)
	ops := opNames(prog.Pages[0])
	assert.Contains(t, ops, "MAKE_CLOSURE")

	body := opNames(prog.Pages[1])
	assert.Equal(t, "STORE", body[0])
	assert.Equal(t, "STORE", body[1])
	assert.Equal(t, "RET", body[len(body)-1])
}

func TestCompileFunCaptureEmitsCaptureInEnclosingPage(t *testing.T) {
	prog := compileSrc(t, "(let x 1) (let f (fun (&x) x))")
	ops := opNames(prog.Pages[0])
	assert.Contains(t, ops, "CAPTURE")
}

func TestCompileDirectSelfRecursionLowersToJump(t *testing.T) {
	prog := compileSrc(t, "(let loop (fun (n) (if (<= n 0) n (loop (- n 1)))))")
	require.Len(t, prog.Pages, 2)
	body := opNames(prog.Pages[1])
	assert.Contains(t, body, "JUMP")
}

func TestCompileListLiteralCarriesCountInArg(t *testing.T) {
	prog := compileSrc(t, "(let l (list 1 2 3))")
	found := false
	for _, w := range prog.Pages[0].Words {
		if w.Op.String() == "LIST" {
			found = true
			assert.EqualValues(t, 3, w.Arg)
		}
	}
	assert.True(t, found)
}

func TestCompileBuiltinCallUsesDedicatedOpcode(t *testing.T) {
	prog := compileSrc(t, `(print "hi")`)
	ops := opNames(prog.Pages[0])
	assert.Contains(t, ops, "BUILTIN")
}

func TestCompileGenericCallEmitsCall(t *testing.T) {
	prog := compileSrc(t, "(let f (fun (a) a)) (f 1)")
	ops := opNames(prog.Pages[0])
	assert.Contains(t, ops, "CALL")
}

func TestCompileImportRecordsPluginPath(t *testing.T) {
	prog := compileSrc(t, "(import foo.bar.*)")
	assert.Contains(t, prog.Plugins, "foo/bar")
	ops := opNames(prog.Pages[0])
	assert.Contains(t, ops, "PLUGIN")
}

func TestCompileWhileLoopsBack(t *testing.T) {
	prog := compileSrc(t, "(mut i 0) (while (< i 3) (set i (+ i 1)))")
	ops := opNames(prog.Pages[0])
	assert.Contains(t, ops, "POP_JUMP_IF_FALSE")
}

func TestCompileDuplicateLiteralsShareConstantSlot(t *testing.T) {
	prog := compileSrc(t, "(let a 5) (let b 5)")
	count := 0
	for _, v := range prog.Values {
		if v.Kind.String() == "Number" && v.Number() == 5 {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func compileOrErr(t *testing.T, src string) (*compiler.Program, error) {
	t.Helper()
	toks, err := token.New(src, "test.ark").Tokenize()
	require.NoError(t, err)
	root, _, err := parser.Parse(toks, "test.ark")
	require.NoError(t, err)
	return compiler.Compile(root)
}
