// Package typegraph records every value the interpreter infers as an
// immutable Binding on a Variable and answers visibility queries over the
// control-flow graph: "can this binding still hold at that program point,
// assuming these other bindings hold?". The graph only ever grows; new
// knowledge adds bindings, it never rewrites old ones.
package typegraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/LaudateCorpus1/pytype/abstract"
	"github.com/LaudateCorpus1/pytype/cfg"
)

// Program owns the variables and bindings of one analysis run. IDs are
// assigned in creation order, which makes every downstream iteration
// deterministic.
type Program struct {
	nextVarID  int
	nextBindID int
	Variables  []*Variable
}

func NewProgram() *Program {
	return &Program{}
}

// NewVariable creates an empty variable. Name is for diagnostics only;
// identity is the ID.
func (p *Program) NewVariable(name string) *Variable {
	v := &Variable{ID: p.nextVarID, Name: name, program: p}
	p.nextVarID++
	p.Variables = append(p.Variables, v)
	return v
}

// Variable is a named storage slot. It accumulates bindings over the run;
// each binding records one value the slot may hold, where that knowledge
// was created, and under which conditions it holds.
type Variable struct {
	ID       int
	Name     string
	Bindings []*Binding

	program *Program
}

func (v *Variable) String() string {
	return fmt.Sprintf("v%d(%s)", v.ID, v.Name)
}

// AddBinding records that v may hold value at point, conditional on the
// given source sets (each set a conjunction, multiple sets a disjunction).
// Adding the same (value, point) pair again merges the new source sets
// into the existing binding instead of growing the graph: this is what
// lets loop re-interpretation converge.
func (v *Variable) AddBinding(value abstract.Value, point *cfg.Block, sourceSets ...[]*Binding) *Binding {
	fp := abstract.Fingerprint(value)
	for _, b := range v.Bindings {
		if b.Point == point && b.valueFP == fp {
			b.mergeSourceSets(sourceSets)
			return b
		}
	}
	b := &Binding{
		ID:       v.program.nextBindID,
		Variable: v,
		Value:    value,
		Point:    point,
		valueFP:  fp,
	}
	v.program.nextBindID++
	b.mergeSourceSets(sourceSets)
	v.Bindings = append(v.Bindings, b)
	return b
}

// Values returns the value of every binding, in creation order. This is
// the unfiltered view; see Solver.VisibleValues for the view at a point.
func (v *Variable) Values() []abstract.Value {
	out := make([]abstract.Value, len(v.Bindings))
	for i, b := range v.Bindings {
		out[i] = b.Value
	}
	return out
}

// Binding is the immutable record that Variable held Value at Point.
// SourceSets encode path sensitivity: the binding is live only when, for
// at least one set, every binding in that set holds simultaneously.
// No source sets means the binding is unconditional.
type Binding struct {
	ID         int
	Variable   *Variable
	Value      abstract.Value
	Point      *cfg.Block
	SourceSets [][]*Binding

	valueFP   string
	sourceFPs map[string]bool
}

func (b *Binding) String() string {
	return fmt.Sprintf("b%d(%s=%s@%s)", b.ID, b.Variable.Name, b.Value, b.Point)
}

// mergeSourceSets appends sets not already present (set order inside a
// conjunction is irrelevant, so sets are compared canonically).
func (b *Binding) mergeSourceSets(sets [][]*Binding) {
	for _, set := range sets {
		fp := sourceSetFP(set)
		if b.sourceFPs == nil {
			b.sourceFPs = make(map[string]bool, 2)
		}
		if b.sourceFPs[fp] {
			continue
		}
		b.sourceFPs[fp] = true
		b.SourceSets = append(b.SourceSets, set)
	}
}

// sourceSetFP canonicalizes a conjunction: sorted member IDs, so the same
// set in any order has one fingerprint.
func sourceSetFP(set []*Binding) string {
	ids := make([]int, len(set))
	for i, b := range set {
		ids[i] = b.ID
	}
	sort.Ints(ids)
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", id)
	}
	return sb.String()
}

// derivedFrom reports whether origin appears in b's transitive source
// closure. A binding derived from origin does not shadow it.
func (b *Binding) derivedFrom(origin *Binding, seen map[*Binding]bool) bool {
	if b == origin {
		return true
	}
	if seen[b] {
		return false
	}
	seen[b] = true
	for _, set := range b.SourceSets {
		for _, src := range set {
			if src.derivedFrom(origin, seen) {
				return true
			}
		}
	}
	return false
}
