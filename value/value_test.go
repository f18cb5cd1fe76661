package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	assert.True(t, Number(0).Truthy(), "a zero Number is truthy, only Nil/False are falsy")
	assert.True(t, String("").Truthy())
	assert.False(t, Nil.Truthy())
	assert.False(t, False.Truthy())
	assert.True(t, True.Truthy())
}

func TestEqualAcrossKinds(t *testing.T) {
	assert.True(t, Equal(Number(1), Number(1)))
	assert.False(t, Equal(Number(1), String("1")))
	assert.True(t, Equal(List([]Value{Number(1), String("a")}), List([]Value{Number(1), String("a")})))
	assert.False(t, Equal(List([]Value{Number(1)}), List([]Value{Number(1), Number(2)})))
}

func TestDerefChain(t *testing.T) {
	n := Number(42)
	r1 := Ref(&n)
	r2 := Ref(&r1)
	require.Equal(t, KindReference, r2.Kind)
	assert.Equal(t, float64(42), r2.Deref().Number())
}

func TestScopeInsertionOrder(t *testing.T) {
	s := NewScope(nil)
	s.Set(3, Number(1))
	s.Set(1, Number(2))
	s.Set(3, Number(9))
	require.Equal(t, 2, s.Len())
	id, v := s.At(0)
	assert.Equal(t, uint16(3), id)
	assert.Equal(t, float64(9), v.Number())
	id, v = s.At(1)
	assert.Equal(t, uint16(1), id)
	assert.Equal(t, float64(2), v.Number())
}

func TestScopePtrStableAcrossGrowth(t *testing.T) {
	s := NewScope(nil)
	s.Set(1, Number(1))
	ptr, ok := s.Ptr(1)
	require.True(t, ok)
	for i := uint16(2); i < 64; i++ {
		s.Set(i, Number(float64(i)))
	}
	assert.Equal(t, float64(1), ptr.Number(), "a pointer taken before further Set calls must still observe later writes through Set")
	s.Set(1, Number(100))
	assert.Equal(t, float64(100), ptr.Number())
}

func TestScopeDel(t *testing.T) {
	s := NewScope(nil)
	s.Set(1, Number(1))
	s.Set(2, Number(2))
	require.True(t, s.Del(1))
	require.False(t, s.Del(1))
	_, ok := s.Get(1)
	assert.False(t, ok)
	v, ok := s.Get(2)
	require.True(t, ok)
	assert.Equal(t, float64(2), v.Number())
}
