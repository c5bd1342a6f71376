package infer

import (
	"fmt"

	"github.com/LaudateCorpus1/pytype/abstract"
	"github.com/LaudateCorpus1/pytype/cfg"
	"github.com/LaudateCorpus1/pytype/typegraph"
	"github.com/speakeasy-api/openapi/sequencedmap"
)

// frameState is the abstract machine state flowing into one block: the
// operand stack and the locals, both holding typegraph variables rather
// than values. Knowledge about what a variable holds lives in its
// bindings; the state only tracks which variable currently occupies each
// slot.
type frameState struct {
	stack  []*typegraph.Variable
	locals *sequencedmap.Map[string, *typegraph.Variable]

	// mergedStack[i] / mergedLocals[name] mark slots owned by this join
	// point: their variable was created here to merge differing
	// predecessor variables, and later-arriving predecessors paste into
	// it instead of re-merging.
	mergedStack  []bool
	mergedLocals map[string]bool
}

func newFrameState() *frameState {
	return &frameState{
		locals:       sequencedmap.New[string, *typegraph.Variable](),
		mergedLocals: make(map[string]bool),
	}
}

// fork copies the state for execution or for propagation along one edge.
// Merge ownership stays with the stored in-state, so forks never mark
// merged slots.
func (st *frameState) fork() *frameState {
	out := &frameState{
		stack:        append([]*typegraph.Variable(nil), st.stack...),
		locals:       sequencedmap.New[string, *typegraph.Variable](),
		mergedStack:  make([]bool, len(st.stack)),
		mergedLocals: make(map[string]bool),
	}
	for name, v := range st.locals.All() {
		out.locals.Set(name, v)
	}
	return out
}

func (st *frameState) push(v *typegraph.Variable) {
	st.stack = append(st.stack, v)
}

func (st *frameState) pop() (*typegraph.Variable, error) {
	if len(st.stack) == 0 {
		return nil, fmt.Errorf("operand stack underflow")
	}
	v := st.stack[len(st.stack)-1]
	st.stack = st.stack[:len(st.stack)-1]
	return v, nil
}

func (st *frameState) peek() (*typegraph.Variable, error) {
	if len(st.stack) == 0 {
		return nil, fmt.Errorf("operand stack underflow")
	}
	return st.stack[len(st.stack)-1], nil
}

// mergeInto folds an incoming edge state into the stored in-state of a
// block. Reports whether anything was learned (new state, new variable, or
// new bindings on a merge variable) so the caller knows to requeue the
// block. Stack depth is an invariant of the instruction stream; a mismatch
// is a fatal inconsistency.
func (a *analysis) mergeInto(at *cfg.Block, existing **frameState, incoming *frameState) (bool, error) {
	if *existing == nil {
		*existing = incoming.fork()
		return true, nil
	}
	cur := *existing
	if len(cur.stack) != len(incoming.stack) {
		return false, fmt.Errorf("operand stack depth mismatch at %s: %d vs %d",
			at, len(cur.stack), len(incoming.stack))
	}

	changed := false
	for i := range cur.stack {
		if cur.stack[i] == incoming.stack[i] {
			continue
		}
		if cur.mergedStack[i] {
			if a.paste(cur.stack[i], incoming.stack[i], at) {
				changed = true
			}
			continue
		}
		mv := a.env.program.NewVariable(cur.stack[i].Name)
		a.paste(mv, cur.stack[i], at)
		a.paste(mv, incoming.stack[i], at)
		cur.stack[i] = mv
		cur.mergedStack[i] = true
		changed = true
	}

	for name, inVar := range incoming.locals.All() {
		curVar, ok := cur.locals.Get(name)
		if !ok {
			cur.locals.Set(name, inVar)
			changed = true
			continue
		}
		if curVar == inVar {
			continue
		}
		if cur.mergedLocals[name] {
			if a.paste(curVar, inVar, at) {
				changed = true
			}
			continue
		}
		mv := a.env.program.NewVariable(name)
		a.paste(mv, curVar, at)
		a.paste(mv, inVar, at)
		cur.locals.Set(name, mv)
		cur.mergedLocals[name] = true
		changed = true
	}

	return changed, nil
}

// paste copies every binding of src onto dst at the given point, each new
// binding derived from the original through a singleton source set. This
// is how a join point expresses "dst is src's value if control came
// through src's branch": disjunction across predecessors, conjunction
// within each pasted binding's sources.
func (a *analysis) paste(dst, src *typegraph.Variable, at *cfg.Block) bool {
	before := graphSize(dst)
	for _, b := range src.Bindings {
		dst.AddBinding(b.Value, at, []*typegraph.Binding{b})
	}
	return graphSize(dst) != before
}

// graphSize is the monotone knowledge measure used for convergence: the
// binding count plus the total source-set count of a variable only ever
// grows, so equality means nothing was learned.
func graphSize(v *typegraph.Variable) int {
	n := len(v.Bindings)
	for _, b := range v.Bindings {
		n += len(b.SourceSets)
	}
	return n
}

// valueOf reads the union of every value v may hold at the given point.
func (a *analysis) valueOf(v *typegraph.Variable, at *cfg.Block) abstract.Value {
	vals := a.solver.VisibleValues(v, at)
	return abstract.MakeUnion(a.env.opts.unionOptions(), vals...)
}

func (a *analysis) bindingsOf(v *typegraph.Variable, at *cfg.Block) []*typegraph.Binding {
	return a.solver.VisibleBindings(v, at)
}

// sourceCombos builds the OR-of-ANDs source sets for a computed result:
// one conjunction per combination of operand bindings. Beyond the cap the
// result is left unconditional; precision degrades, soundness does not.
const maxSourceCombos = 16

func sourceCombos(operands ...[]*typegraph.Binding) [][]*typegraph.Binding {
	total := 1
	for _, ops := range operands {
		if len(ops) == 0 {
			continue
		}
		total *= len(ops)
		if total > maxSourceCombos {
			return nil
		}
	}
	combos := [][]*typegraph.Binding{{}}
	for _, ops := range operands {
		if len(ops) == 0 {
			continue
		}
		next := make([][]*typegraph.Binding, 0, len(combos)*len(ops))
		for _, c := range combos {
			for _, b := range ops {
				nc := make([]*typegraph.Binding, len(c), len(c)+1)
				copy(nc, c)
				next = append(next, append(nc, b))
			}
		}
		combos = next
	}
	if len(combos) == 1 && len(combos[0]) == 0 {
		return nil
	}
	return combos
}
