package abstract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchOverloads(t *testing.T) {
	u := NewUniverse()
	intOf := u.Instantiate(u.Int)
	strOf := u.Instantiate(u.Str)
	iterOf := u.Instantiate(u.Iterator)

	rng := &Signature{Name: "range", Overloads: []Overload{
		{Params: []Value{intOf}, Return: iterOf},
		{Params: []Value{intOf, intOf}, Return: iterOf},
	}}

	t.Run("first overload", func(t *testing.T) {
		ret, merr := rng.Match([]Value{intOf}, UnionOptions{})
		require.Nil(t, merr)
		assert.Equal(t, iterOf, ret)
	})

	t.Run("second overload", func(t *testing.T) {
		ret, merr := rng.Match([]Value{intOf, intOf}, UnionOptions{})
		require.Nil(t, merr)
		assert.Equal(t, iterOf, ret)
	})

	t.Run("arity failure", func(t *testing.T) {
		_, merr := rng.Match([]Value{intOf, intOf, intOf, intOf}, UnionOptions{})
		require.NotNil(t, merr)
		assert.Equal(t, MatchArity, merr.Failure)
		assert.Equal(t, 4, merr.Got)
	})

	t.Run("type failure", func(t *testing.T) {
		_, merr := rng.Match([]Value{strOf}, UnionOptions{})
		require.NotNil(t, merr)
		assert.Equal(t, MatchType, merr.Failure)
		assert.Equal(t, 0, merr.ArgIndex)
	})
}

func TestMatchSubclassInstance(t *testing.T) {
	u := NewUniverse()
	intOf := u.Instantiate(u.Int)
	boolOf := u.Instantiate(u.Bool)

	bitLen := &Signature{Name: "int.bit_length", Overloads: []Overload{
		{Params: []Value{intOf}, Return: intOf},
	}}

	// bool derives from int, so a bool receiver is acceptable.
	ret, merr := bitLen.Match([]Value{boolOf}, UnionOptions{})
	require.Nil(t, merr)
	assert.Equal(t, intOf, ret)
}

func TestMatchUnknownAndUnsolvableArgs(t *testing.T) {
	u := NewUniverse()
	intOf := u.Instantiate(u.Int)

	sig := &Signature{Name: "f", Overloads: []Overload{
		{Params: []Value{intOf}, Return: intOf},
	}}

	for _, arg := range []Value{Unknown, Unsolvable} {
		ret, merr := sig.Match([]Value{arg}, UnionOptions{})
		require.Nil(t, merr, "%s must match any parameter", arg)
		assert.Equal(t, intOf, ret)
	}
}

func TestMatchUnionArg(t *testing.T) {
	u := NewUniverse()
	intOf := u.Instantiate(u.Int)
	strOf := u.Instantiate(u.Str)

	sig := &Signature{Name: "f", Overloads: []Overload{
		{Params: []Value{intOf}, Return: intOf},
	}}

	t.Run("one option suffices", func(t *testing.T) {
		arg := MakeUnion(UnionOptions{}, intOf, strOf)
		ret, merr := sig.Match([]Value{arg}, UnionOptions{})
		require.Nil(t, merr)
		assert.Equal(t, intOf, ret)
	})

	t.Run("no option fails", func(t *testing.T) {
		arg := MakeUnion(UnionOptions{}, strOf, u.None)
		_, merr := sig.Match([]Value{arg}, UnionOptions{})
		require.NotNil(t, merr)
		assert.Equal(t, MatchType, merr.Failure)
	})
}

func TestMatchTypeParam(t *testing.T) {
	u := NewUniverse()
	strOf := u.Instantiate(u.Str)
	tp := &TypeParam{Name: "T"}

	abs := &Signature{Name: "abs", Overloads: []Overload{
		{Params: []Value{tp}, Return: tp},
	}}

	t.Run("identity", func(t *testing.T) {
		ret, merr := abs.Match([]Value{strOf}, UnionOptions{})
		require.Nil(t, merr)
		assert.Equal(t, strOf, ret, "T must resolve to the observed argument")
	})

	t.Run("unknown observation", func(t *testing.T) {
		ret, merr := abs.Match([]Value{Unknown}, UnionOptions{})
		require.Nil(t, merr)
		assert.Equal(t, Unknown, ret)
	})
}

func TestSubclass(t *testing.T) {
	u := NewUniverse()
	assert.True(t, Subclass(u.Bool, u.Int))
	assert.True(t, Subclass(u.Int, u.Object))
	assert.True(t, Subclass(u.Int, u.Int))
	assert.False(t, Subclass(u.Int, u.Bool))
	assert.False(t, Subclass(u.Str, u.Int))
}
