package bytecode_test

import (
	"testing"

	"github.com/arkscript-lang/ark/bytecode"
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

func TestEncodeDecodeRoundTrip(t *testing.T) {
	prog := compileSrc(t, "(let f (fun (a b) (+ a b))) (f 1 2)")
	data, err := bytecode.Encode(prog, 1700000000)
	require.NoError(t, err)

	bc, err := bytecode.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, prog.Symbols, bc.Symbols)
	require.Len(t, bc.Pages, len(prog.Pages))
	for i, page := range prog.Pages {
		// decoded pages always carry the appended terminal HALT.
		assert.Equal(t, len(page.Words)+1, len(bc.Pages[i].Words))
	}
}

func TestEncodeStampsMagicAndVersion(t *testing.T) {
	prog := compileSrc(t, "1")
	data, err := bytecode.Encode(prog, 42)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'r', 'k', 0x00}, data[0:4])
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	prog := compileSrc(t, "1")
	data, err := bytecode.Encode(prog, 1)
	require.NoError(t, err)
	data[0] = 'x'
	_, err = bytecode.Decode(data)
	require.Error(t, err)
}

func TestDecodeRejectsCorruptedHash(t *testing.T) {
	prog := compileSrc(t, "1")
	data, err := bytecode.Encode(prog, 1)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	_, err = bytecode.Decode(data)
	require.Error(t, err)
	var fmtErr *bytecode.FormatError
	require.ErrorAs(t, err, &fmtErr)
}

func TestEncodeAppendsTerminalHalt(t *testing.T) {
	prog := compileSrc(t, "1")
	data, err := bytecode.Encode(prog, 1)
	require.NoError(t, err)
	bc, err := bytecode.Decode(data)
	require.NoError(t, err)
	last := bc.Pages[0].Words[len(bc.Pages[0].Words)-1]
	assert.Equal(t, compiler.Halt, last.Op)
}

func TestEncodeEmptyPageBecomesSingleNop(t *testing.T) {
	prog := &compiler.Program{
		Symbols: nil,
		Values:  nil,
		Pages:   []*compiler.Page{{}},
	}
	data, err := bytecode.Encode(prog, 1)
	require.NoError(t, err)
	bc, err := bytecode.Decode(data)
	require.NoError(t, err)
	require.Len(t, bc.Pages[0].Words, 1)
	assert.Equal(t, compiler.Nop, bc.Pages[0].Words[0].Op)
}

func TestEncodeDecodePreservesNumberAndStringConstants(t *testing.T) {
	prog := compileSrc(t, `(let x 3.5) (let s "hello")`)
	data, err := bytecode.Encode(prog, 1)
	require.NoError(t, err)
	bc, err := bytecode.Decode(data)
	require.NoError(t, err)

	var sawNumber, sawString bool
	for _, v := range bc.Values {
		if v.Kind.String() == "Number" && v.Number() == 3.5 {
			sawNumber = true
		}
		if v.Kind.String() == "String" && v.Str() == "hello" {
			sawString = true
		}
	}
	assert.True(t, sawNumber)
	assert.True(t, sawString)
}
