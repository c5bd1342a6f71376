package typegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pytype "github.com/LaudateCorpus1/pytype"
	"github.com/LaudateCorpus1/pytype/abstract"
	"github.com/LaudateCorpus1/pytype/cfg"
)

// linearGraph builds three blocks in a straight line.
func linearGraph(t *testing.T) *cfg.Graph {
	t.Helper()
	g, err := cfg.Build(&pytype.Code{Name: "linear3", Instrs: []pytype.Instr{
		{Op: pytype.OpNop},
		{Op: pytype.OpJump, Target: 2},
		{Op: pytype.OpNop},
		{Op: pytype.OpJump, Target: 4},
		{Op: pytype.OpLoadConst, Const: nil},
		{Op: pytype.OpReturnValue},
	}})
	require.NoError(t, err)
	require.Len(t, g.Blocks, 3)
	return g
}

func TestNewVariableIDs(t *testing.T) {
	p := NewProgram()
	a := p.NewVariable("a")
	b := p.NewVariable("b")

	assert.Equal(t, 0, a.ID)
	assert.Equal(t, 1, b.ID)
	assert.Equal(t, []*Variable{a, b}, p.Variables)
}

func TestAddBindingDedup(t *testing.T) {
	u := abstract.NewUniverse()
	g := linearGraph(t)
	p := NewProgram()
	v := p.NewVariable("x")

	intOf := u.Instantiate(u.Int)
	b1 := v.AddBinding(intOf, g.Blocks[0])
	b2 := v.AddBinding(intOf, g.Blocks[0])
	assert.Same(t, b1, b2, "same value at the same point must merge")
	assert.Len(t, v.Bindings, 1)

	b3 := v.AddBinding(intOf, g.Blocks[1])
	assert.NotSame(t, b1, b3, "a different point is a different binding")

	b4 := v.AddBinding(u.Instantiate(u.Str), g.Blocks[0])
	assert.NotSame(t, b1, b4, "a different value is a different binding")
	assert.Len(t, v.Bindings, 3)
}

func TestAddBindingMergesSourceSets(t *testing.T) {
	u := abstract.NewUniverse()
	g := linearGraph(t)
	p := NewProgram()

	src1 := p.NewVariable("a").AddBinding(u.Instantiate(u.Int), g.Blocks[0])
	src2 := p.NewVariable("b").AddBinding(u.Instantiate(u.Str), g.Blocks[0])

	v := p.NewVariable("x")
	b := v.AddBinding(u.Instantiate(u.Bool), g.Blocks[1], []*Binding{src1})
	require.Len(t, b.SourceSets, 1)

	// New disjunct accumulates.
	v.AddBinding(u.Instantiate(u.Bool), g.Blocks[1], []*Binding{src2})
	assert.Len(t, b.SourceSets, 2)

	// Re-adding a known set (in any member order) is a no-op.
	v.AddBinding(u.Instantiate(u.Bool), g.Blocks[1], []*Binding{src2, src1})
	v.AddBinding(u.Instantiate(u.Bool), g.Blocks[1], []*Binding{src1, src2})
	assert.Len(t, b.SourceSets, 3, "one new set for {src1,src2}, its reordering is the same set")
}

func TestValuesOrder(t *testing.T) {
	u := abstract.NewUniverse()
	g := linearGraph(t)
	p := NewProgram()
	v := p.NewVariable("x")

	v.AddBinding(u.Instantiate(u.Int), g.Blocks[0])
	v.AddBinding(u.Instantiate(u.Str), g.Blocks[1])

	vals := v.Values()
	require.Len(t, vals, 2)
	assert.Equal(t, u.Instantiate(u.Int), vals[0])
	assert.Equal(t, u.Instantiate(u.Str), vals[1])
}

func TestDerivedFrom(t *testing.T) {
	u := abstract.NewUniverse()
	g := linearGraph(t)
	p := NewProgram()

	origin := p.NewVariable("x").AddBinding(u.Instantiate(u.Int), g.Blocks[0])
	mid := p.NewVariable("y").AddBinding(u.Instantiate(u.Int), g.Blocks[1], []*Binding{origin})
	leaf := p.NewVariable("z").AddBinding(u.Instantiate(u.Bool), g.Blocks[2], []*Binding{mid})
	other := p.NewVariable("w").AddBinding(u.Instantiate(u.Str), g.Blocks[1])

	assert.True(t, leaf.derivedFrom(origin, map[*Binding]bool{}), "derivation is transitive")
	assert.True(t, mid.derivedFrom(origin, map[*Binding]bool{}))
	assert.False(t, other.derivedFrom(origin, map[*Binding]bool{}))
	assert.False(t, origin.derivedFrom(leaf, map[*Binding]bool{}), "derivation is directed")
}
