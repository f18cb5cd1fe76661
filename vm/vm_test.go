package vm_test

import (
	"bytes"
	"testing"

	"github.com/arkscript-lang/ark/bytecode"
	"github.com/arkscript-lang/ark/compiler"
	"github.com/arkscript-lang/ark/parser"
	"github.com/arkscript-lang/ark/token"
	"github.com/arkscript-lang/ark/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, src string, opts ...vm.Option) (string, *bytes.Buffer) {
	t.Helper()
	toks, err := token.New(src, "test.ark").Tokenize()
	require.NoError(t, err)
	root, _, err := parser.Parse(toks, "test.ark")
	require.NoError(t, err)
	prog, err := compiler.Compile(root)
	require.NoError(t, err)
	data, err := bytecode.Encode(prog, 1)
	require.NoError(t, err)
	bc, err := bytecode.Decode(data)
	require.NoError(t, err)

	var out bytes.Buffer
	allOpts := append([]vm.Option{vm.Stdout(&out)}, opts...)
	result, _, err := vm.RunProgram(bc, ".", allOpts...)
	require.NoError(t, err)
	return result.String(), &out
}

func TestRunNumberLiteral(t *testing.T) {
	result, _ := run(t, "42")
	assert.Equal(t, "42", result)
}

func TestRunArithmeticChain(t *testing.T) {
	result, _ := run(t, "(+ 1 2 3)")
	assert.Equal(t, "6", result)
}

func TestRunLetAndReference(t *testing.T) {
	result, _ := run(t, "(let x 10) (* x 2)")
	assert.Equal(t, "20", result)
}

func TestRunIfBranches(t *testing.T) {
	result, _ := run(t, `(if (> 2 1) "yes" "no")`)
	assert.Equal(t, "yes", result)
}

func TestRunFunctionCall(t *testing.T) {
	result, _ := run(t, "(let square (fun (n) (* n n))) (square 7)")
	assert.Equal(t, "49", result)
}

func TestRunDirectSelfRecursionDoesNotOverflow(t *testing.T) {
	result, _ := run(t, `
		(let countdown (fun (n)
			(if (<= n 0)
				0
				(countdown (- n 1)))))
		(countdown 100000)`)
	assert.Equal(t, "0", result)
}

func TestRunClosureCapturesByReference(t *testing.T) {
	result, _ := run(t, `
		(let counter 0)
		(let incr (fun (&counter) {
			(set counter (+ counter 1))
			counter }))
		(incr)
		(incr)
		(incr)`)
	assert.Equal(t, "3", result)
}

func TestRunWhileLoop(t *testing.T) {
	result, _ := run(t, `
		(let i 0)
		(let acc 0)
		(while (< i 5) {
			(set acc (+ acc i))
			(set i (+ i 1)) })
		acc`)
	assert.Equal(t, "10", result)
}

func TestRunListOperations(t *testing.T) {
	result, _ := run(t, `(len (append (list 1 2) 3 4))`)
	assert.Equal(t, "4", result)
}

func TestRunDivisionByZeroError(t *testing.T) {
	toks, err := token.New("(/ 1 0)", "test.ark").Tokenize()
	require.NoError(t, err)
	root, _, err := parser.Parse(toks, "test.ark")
	require.NoError(t, err)
	prog, err := compiler.Compile(root)
	require.NoError(t, err)
	data, err := bytecode.Encode(prog, 1)
	require.NoError(t, err)
	bc, err := bytecode.Decode(data)
	require.NoError(t, err)
	_, _, err = vm.RunProgram(bc, ".")
	require.Error(t, err)
}

func TestRunAtNegativeIndexWrapsFromEnd(t *testing.T) {
	result, _ := run(t, `(let lst (list 1 2 3)) (@ lst -1)`)
	assert.Equal(t, "3", result)
}

func TestRunAtNegativeIndexWrapsOnString(t *testing.T) {
	result, _ := run(t, `(@ "abc" -1)`)
	assert.Equal(t, "c", result)
}

func TestRunPopListNegativeIndexWraps(t *testing.T) {
	result, _ := run(t, `(pop (list 1 2 3) -1)`)
	assert.Equal(t, "(1 2)", result)
}

func TestRunPrintWritesToStdout(t *testing.T) {
	_, out := run(t, `(print "hello")`)
	assert.Equal(t, "hello\n", out.String())
}
