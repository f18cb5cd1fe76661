package resolver_test

import (
	"testing"

	"github.com/arkscript-lang/ark/parser"
	"github.com/arkscript-lang/ark/resolver"
	"github.com/arkscript-lang/ark/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveSrc(t *testing.T, src string) error {
	t.Helper()
	toks, err := token.New(src, "test.ark").Tokenize()
	require.NoError(t, err)
	root, _, err := parser.Parse(toks, "test.ark")
	require.NoError(t, err)
	return resolver.Resolve(root)
}

func TestResolveLetThenUse(t *testing.T) {
	assert.NoError(t, resolveSrc(t, "(let x 1) (let y x)"))
}

func TestResolveUnboundVariable(t *testing.T) {
	err := resolveSrc(t, "(let y x)")
	require.Error(t, err)
	var nameErr *resolver.NameError
	require.ErrorAs(t, err, &nameErr)
	assert.Equal(t, "x", nameErr.Name)
}

func TestResolveUnboundVariableSuggestsClosestName(t *testing.T) {
	err := resolveSrc(t, "(let counter 1) (let y coutner)")
	require.Error(t, err)
	var nameErr *resolver.NameError
	require.ErrorAs(t, err, &nameErr)
	assert.Equal(t, "counter", nameErr.Suggestion)
}

func TestResolveRedeclareWithLetInSameScopeFails(t *testing.T) {
	err := resolveSrc(t, "(let x 1) (let x 2)")
	require.Error(t, err)
	var mutErr *resolver.MutabilityError
	require.ErrorAs(t, err, &mutErr)
	assert.Contains(t, mutErr.Error(), "redefine variable")
}

func TestResolveMutRedeclareAllowed(t *testing.T) {
	assert.NoError(t, resolveSrc(t, "(mut x 1) (mut x 2)"))
}

func TestResolveSetOnImmutableFails(t *testing.T) {
	err := resolveSrc(t, "(let x 1) (set x 2)")
	require.Error(t, err)
	var mutErr *resolver.MutabilityError
	require.ErrorAs(t, err, &mutErr)
	assert.Contains(t, mutErr.Error(), "set the constant")
}

func TestResolveSetOnMutableSucceeds(t *testing.T) {
	assert.NoError(t, resolveSrc(t, "(mut x 1) (set x 2)"))
}

func TestResolveSetOnUnboundFails(t *testing.T) {
	err := resolveSrc(t, "(set x 2)")
	require.Error(t, err)
	var nameErr *resolver.NameError
	require.ErrorAs(t, err, &nameErr)
}

func TestResolveFunArgsScopedToBody(t *testing.T) {
	assert.NoError(t, resolveSrc(t, "(let f (fun (a b) (+ a b)))"))
}

func TestResolveFunCaptureOfBoundOuterSucceeds(t *testing.T) {
	assert.NoError(t, resolveSrc(t, "(let x 1) (let f (fun (&x) x))"))
}

func TestResolveFunCaptureOfUnboundFails(t *testing.T) {
	err := resolveSrc(t, "(let f (fun (&x) x))")
	require.Error(t, err)
	var nameErr *resolver.NameError
	require.ErrorAs(t, err, &nameErr)
}

func TestResolveReservedNameAsLetTargetFails(t *testing.T) {
	err := resolveSrc(t, "(let and 1)")
	require.Error(t, err)
	var nameErr *resolver.NameError
	require.ErrorAs(t, err, &nameErr)
	assert.Contains(t, nameErr.Error(), "reserved identifier")
}

func TestResolveAppendInPlaceOnImmutableFails(t *testing.T) {
	err := resolveSrc(t, "(let a [1 2]) (append! a 3)")
	require.Error(t, err)
	var mutErr *resolver.MutabilityError
	require.ErrorAs(t, err, &mutErr)
	assert.Contains(t, mutErr.Error(), "modify the constant list")
}

func TestResolveAppendInPlaceOnMutableSucceeds(t *testing.T) {
	assert.NoError(t, resolveSrc(t, "(mut a [1 2]) (append! a 3)"))
}

func TestResolveAppendInPlaceSelfAliasFails(t *testing.T) {
	err := resolveSrc(t, "(mut a [1 2]) (append! a a)")
	require.Error(t, err)
	var mutErr *resolver.MutabilityError
	require.ErrorAs(t, err, &mutErr)
	assert.Contains(t, mutErr.Error(), "to itself")
}

func TestResolveBuiltinsAreNotFlaggedUnbound(t *testing.T) {
	assert.NoError(t, resolveSrc(t, "(let a [1 2]) (print (head a)) (let b (and true false))"))
}

func TestResolveSelectiveImportExemptsQualifiedUse(t *testing.T) {
	assert.NoError(t, resolveSrc(t, "(import mymod foo) (let x mymod:foo)"))
}

func TestResolveMultipleUnboundNamesReportedTogether(t *testing.T) {
	err := resolveSrc(t, "(let y a) (let z b)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}
