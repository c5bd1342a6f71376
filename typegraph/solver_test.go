package typegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pytype "github.com/LaudateCorpus1/pytype"
	"github.com/LaudateCorpus1/pytype/abstract"
	"github.com/LaudateCorpus1/pytype/cfg"
)

// diamondGraph builds the four-block if/else shape:
//
//	b0 (cond) -> b1 (then), b2 (else); b1, b2 -> b3 (join)
func diamondGraph(t *testing.T) *cfg.Graph {
	t.Helper()
	g, err := cfg.Build(&pytype.Code{Name: "diamond", Instrs: []pytype.Instr{
		{Op: pytype.OpLoadName, Name: "cond"},
		{Op: pytype.OpPopJumpIfFalse, Target: 4},
		{Op: pytype.OpNop},
		{Op: pytype.OpJump, Target: 5},
		{Op: pytype.OpNop},
		{Op: pytype.OpLoadConst, Const: nil},
		{Op: pytype.OpReturnValue},
	}})
	require.NoError(t, err)
	require.Len(t, g.Blocks, 4)
	return g
}

func TestQueryUnconditional(t *testing.T) {
	u := abstract.NewUniverse()
	g := diamondGraph(t)
	p := NewProgram()
	s := NewSolver(g, nil, SolverLimits{})

	v := p.NewVariable("x")
	bThen := v.AddBinding(u.Instantiate(u.Int), g.Blocks[1])
	bElse := v.AddBinding(u.Instantiate(u.Str), g.Blocks[2])

	join := g.Blocks[3]
	assert.True(t, s.Query(bThen, join, nil), "then-binding reaches the join")
	assert.True(t, s.Query(bElse, join, nil), "else-binding reaches the join")
	assert.True(t, s.Query(bThen, g.Blocks[1], nil), "visible at its own point")
	assert.False(t, s.Query(bThen, g.Blocks[2], nil), "no path from then to else")
}

func TestQueryShadowing(t *testing.T) {
	u := abstract.NewUniverse()
	g, err := cfg.Build(&pytype.Code{Name: "linear3", Instrs: []pytype.Instr{
		{Op: pytype.OpNop},
		{Op: pytype.OpJump, Target: 2},
		{Op: pytype.OpNop},
		{Op: pytype.OpJump, Target: 4},
		{Op: pytype.OpLoadConst, Const: nil},
		{Op: pytype.OpReturnValue},
	}})
	require.NoError(t, err)
	p := NewProgram()
	s := NewSolver(g, nil, SolverLimits{})

	v := p.NewVariable("x")
	first := v.AddBinding(u.Instantiate(u.Int), g.Blocks[0])
	second := v.AddBinding(u.Instantiate(u.Str), g.Blocks[1])

	last := g.Blocks[2]
	assert.False(t, s.Query(first, last, nil),
		"the reassignment on the only path shadows the first binding")
	assert.True(t, s.Query(second, last, nil))

	// A derived binding does not shadow its origin.
	p2 := NewProgram()
	s2 := NewSolver(g, nil, SolverLimits{})
	w := p2.NewVariable("y")
	origin := w.AddBinding(u.Instantiate(u.Int), g.Blocks[0])
	w.AddBinding(u.Instantiate(u.Int), g.Blocks[1], []*Binding{origin})
	assert.True(t, s2.Query(origin, last, nil),
		"a binding derived from the original does not block it")
}

func TestQuerySourceSets(t *testing.T) {
	u := abstract.NewUniverse()
	g := diamondGraph(t)
	p := NewProgram()
	s := NewSolver(g, nil, SolverLimits{})

	src := p.NewVariable("x")
	bThen := src.AddBinding(u.Instantiate(u.Int), g.Blocks[1])

	dep := p.NewVariable("y")
	// Created in the else block, conditional on a binding only the then
	// block produces: the source can never hold there.
	impossible := dep.AddBinding(u.Instantiate(u.Bool), g.Blocks[2], []*Binding{bThen})
	assert.False(t, s.Query(impossible, g.Blocks[3], nil),
		"a binding whose every source set is unsatisfiable is invisible")

	// The same dependency placed at the join is fine.
	possible := dep.AddBinding(u.Instantiate(u.Bool), g.Blocks[3], []*Binding{bThen})
	assert.True(t, s.Query(possible, g.Blocks[3], nil))
}

func TestQueryDisjunction(t *testing.T) {
	u := abstract.NewUniverse()
	g := diamondGraph(t)
	p := NewProgram()
	s := NewSolver(g, nil, SolverLimits{})

	x := p.NewVariable("x")
	bThen := x.AddBinding(u.Instantiate(u.Int), g.Blocks[1])
	bElse := x.AddBinding(u.Instantiate(u.Str), g.Blocks[2])

	// y at the join holds if x came from either branch.
	y := p.NewVariable("y")
	merged := y.AddBinding(u.Instantiate(u.Bool), g.Blocks[3],
		[]*Binding{bThen}, []*Binding{bElse})
	assert.True(t, s.Query(merged, g.Blocks[3], nil))
	require.Len(t, merged.SourceSets, 2)
}

func TestQueryAssumptions(t *testing.T) {
	u := abstract.NewUniverse()
	g := diamondGraph(t)
	p := NewProgram()
	s := NewSolver(g, nil, SolverLimits{})

	x := p.NewVariable("x")
	bThen := x.AddBinding(u.Instantiate(u.Int), g.Blocks[1])

	y := p.NewVariable("y")
	dep := y.AddBinding(u.Instantiate(u.Bool), g.Blocks[2], []*Binding{bThen})

	assert.False(t, s.Query(dep, g.Blocks[3], nil))
	assert.True(t, s.Query(dep, g.Blocks[3], []*Binding{bThen}),
		"assuming the source holds flips the answer")
}

func TestQueryCacheHits(t *testing.T) {
	u := abstract.NewUniverse()
	g := diamondGraph(t)
	p := NewProgram()
	cache := NewQueryCache()
	s := NewSolver(g, cache, SolverLimits{})

	v := p.NewVariable("x")
	b := v.AddBinding(u.Instantiate(u.Int), g.Blocks[1])

	first := s.Query(b, g.Blocks[3], nil)
	require.Equal(t, 0, cache.Hits)
	require.Equal(t, 1, cache.Misses)

	second := s.Query(b, g.Blocks[3], nil)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.Hits, "the repeated query must be served from cache")
}

func TestQueryAssumptionOrderIrrelevant(t *testing.T) {
	u := abstract.NewUniverse()
	g := diamondGraph(t)
	p := NewProgram()
	cache := NewQueryCache()
	s := NewSolver(g, cache, SolverLimits{})

	x := p.NewVariable("x")
	a := x.AddBinding(u.Instantiate(u.Int), g.Blocks[1])
	b := x.AddBinding(u.Instantiate(u.Str), g.Blocks[2])

	y := p.NewVariable("y")
	dep := y.AddBinding(u.Instantiate(u.Bool), g.Blocks[3], []*Binding{a, b})

	s.Query(dep, g.Blocks[3], []*Binding{a, b})
	hits := cache.Hits
	s.Query(dep, g.Blocks[3], []*Binding{b, a})
	assert.Equal(t, hits+1, cache.Hits, "assumption order must not change the cache key")
}

func TestVisibleValues(t *testing.T) {
	u := abstract.NewUniverse()
	g := diamondGraph(t)
	p := NewProgram()
	s := NewSolver(g, nil, SolverLimits{})

	v := p.NewVariable("x")
	v.AddBinding(u.Instantiate(u.Int), g.Blocks[1])
	v.AddBinding(u.Instantiate(u.Str), g.Blocks[2])

	atJoin := s.VisibleValues(v, g.Blocks[3])
	require.Len(t, atJoin, 2, "both branch values survive to the join")

	atThen := s.VisibleValues(v, g.Blocks[1])
	require.Len(t, atThen, 1)
	assert.Equal(t, u.Instantiate(u.Int), atThen[0])
}
