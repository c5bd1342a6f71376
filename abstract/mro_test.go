package abstract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(mro []*Class) []string {
	out := make([]string, len(mro))
	for i, c := range mro {
		out[i] = c.Name
	}
	return out
}

func TestLinearizeSingleInheritance(t *testing.T) {
	u := NewUniverse()
	a := u.NewClass("A")
	b := u.NewClass("B", a)

	mro, err := Linearize(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "object"}, names(mro))
}

func TestLinearizeDiamond(t *testing.T) {
	u := NewUniverse()
	a := u.NewClass("A")
	b := u.NewClass("B", a)
	c := u.NewClass("C", a)
	d := u.NewClass("D", b, c)

	mro, err := Linearize(d)
	require.NoError(t, err)
	// C3 keeps both bases ahead of the shared ancestor.
	assert.Equal(t, []string{"D", "B", "C", "A", "object"}, names(mro))
}

func TestLinearizeDeterministic(t *testing.T) {
	build := func() []string {
		u := NewUniverse()
		a := u.NewClass("A")
		b := u.NewClass("B", a)
		c := u.NewClass("C", a)
		d := u.NewClass("D", b, c)
		e := u.NewClass("E", d, c)
		mro, err := Linearize(e)
		require.NoError(t, err)
		return names(mro)
	}

	first := build()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, build(), "MRO must be identical across runs")
	}
}

func TestLinearizeInconsistent(t *testing.T) {
	u := NewUniverse()
	a := u.NewClass("A")
	b := u.NewClass("B", a)
	// C requires A before B and B before A at once.
	c := u.NewClass("C", a, b)

	_, err := Linearize(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "C")

	// The failure is cached, not recomputed into a different answer.
	_, err2 := Linearize(c)
	assert.Equal(t, err, err2)
}

func TestLinearizeBoolThroughInt(t *testing.T) {
	u := NewUniverse()
	mro, err := Linearize(u.Bool)
	require.NoError(t, err)
	assert.Equal(t, []string{"bool", "int", "object"}, names(mro))
}
