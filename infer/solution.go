package infer

import (
	"fmt"
	"strings"

	"github.com/LaudateCorpus1/pytype/abstract"
	"github.com/LaudateCorpus1/pytype/cfg"
	"github.com/speakeasy-api/openapi/sequencedmap"
)

// Solution is the inferred view of the whole run: one FuncSolution per
// interpreted (function, argument shape), in first-interpretation order.
// The module body is always first.
type Solution struct {
	Funcs []*FuncSolution
}

// Func returns the first solution for the named function, if any.
func (s *Solution) Func(name string) (*FuncSolution, bool) {
	for _, f := range s.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// FuncSolution holds the inferred types for one interpretation of one
// code object.
type FuncSolution struct {
	Name string
	// Returns is the union of the values returned on every path, or the
	// None instance when no path returns.
	Returns abstract.Value
	// Blocks holds the locals as seen at the exit of each interpreted
	// block, in block order. Unreached blocks are absent.
	Blocks []*PointSolution
}

// Exit returns the locals at the function's exit points: the union, per
// name, over every interpreted block that ends the function.
func (f *FuncSolution) Exit() *PointSolution {
	if len(f.Blocks) == 0 {
		return &PointSolution{Locals: sequencedmap.New[string, abstract.Value]()}
	}
	return f.Blocks[len(f.Blocks)-1]
}

// TypeOf returns the inferred value of a local at the function's last
// interpreted point.
func (f *FuncSolution) TypeOf(name string) (abstract.Value, bool) {
	return f.Exit().Locals.Get(name)
}

// PointSolution is the inferred state at the exit of one block.
type PointSolution struct {
	Block  *cfg.Block
	Locals *sequencedmap.Map[string, abstract.Value]
}

func (p *PointSolution) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:", p.Block)
	for name, v := range p.Locals.All() {
		fmt.Fprintf(&sb, " %s=%s", name, v)
	}
	return sb.String()
}

// solution materializes the analysis into plain values, reading each
// variable through the reachability solver at its block.
func (a *analysis) solution(ret abstract.Value) *FuncSolution {
	f := &FuncSolution{Name: a.name, Returns: ret}
	if f.Returns == nil {
		f.Returns = a.env.universe.None
	}
	for _, b := range a.graph.Blocks {
		locals, ok := a.outLocals[b]
		if !ok {
			continue
		}
		ps := &PointSolution{Block: b, Locals: sequencedmap.New[string, abstract.Value]()}
		for name, v := range locals.All() {
			if v == nil {
				continue // deleted
			}
			val := a.valueOf(v, b)
			if val == nil {
				val = abstract.Unsolvable
			}
			ps.Locals.Set(name, val)
		}
		f.Blocks = append(f.Blocks, ps)
	}
	return f
}
