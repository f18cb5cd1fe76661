package importsolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkscript-lang/ark/ast"
	"github.com/arkscript-lang/ark/token"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveSplicesSourceModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "math.ark", "(let pi 3)")
	entry := writeFile(t, dir, "main.ark", "(import math) (let x pi)")

	root, err := New().Resolve(entry)
	require.NoError(t, err)

	forms := root.Children()[1:]
	require.Len(t, forms, 2)
	assert.Equal(t, token.Let, forms[0].Children()[0].KeywordID())
	assert.Equal(t, "pi", forms[0].Children()[1].Text())
}

func TestResolveHandlesCycleAsNoOp(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ark", "(import b) (let a_val 1)")
	writeFile(t, dir, "b.ark", "(import a) (let b_val 2)")
	entry := writeFile(t, dir, "main.ark", "(import a)")

	root, err := New().Resolve(entry)
	require.NoError(t, err)
	assert.NotNil(t, root.Children())
}

func TestResolveMissingModuleReturnsModuleError(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "main.ark", "(import nope)")

	_, err := New().Resolve(entry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestResolveSearchesLibraryPaths(t *testing.T) {
	libDir := t.TempDir()
	writeFile(t, libDir, "util.ark", "(let helper 1)")

	mainDir := t.TempDir()
	entry := writeFile(t, mainDir, "main.ark", "(import util)")

	root, err := New(libDir).Resolve(entry)
	require.NoError(t, err)

	forms := root.Children()[1:]
	require.Len(t, forms, 1)
	assert.Equal(t, ast.List, forms[0].Kind)
}
