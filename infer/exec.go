package infer

import (
	"fmt"

	pytype "github.com/LaudateCorpus1/pytype"
	"github.com/LaudateCorpus1/pytype/abstract"
	"github.com/LaudateCorpus1/pytype/cfg"
	"github.com/LaudateCorpus1/pytype/typegraph"
	"github.com/speakeasy-api/openapi/sequencedmap"
)

// analysis drives one interpretation of one code object. Loop bodies are
// revisited until their value sets converge; the whole structure is
// re-created for each call-summary refinement pass.
type analysis struct {
	env    *env
	name   string
	code   *pytype.Code
	graph  *cfg.Graph
	solver *typegraph.Solver

	inStates  map[*cfg.Block]*frameState
	outLocals map[*cfg.Block]*sequencedmap.Map[string, *typegraph.Variable]
	visits    map[*cfg.Block]int
	clamped   map[*cfg.Block]bool

	// tempVars reuses one result variable per instruction offset across
	// loop passes, so re-interpretation accumulates bindings on the same
	// variable instead of growing the graph without bound.
	tempVars    map[int]*typegraph.Variable
	handlerVars map[*cfg.Block]*typegraph.Variable

	retVals []abstract.Value
}

// edgeState pairs one outgoing edge with the machine state flowing along it.
type edgeState struct {
	edge  *cfg.Edge
	state *frameState
}

// analyzeCode interprets one code object with the given argument values
// and returns the union of its return values (nil when no path returns).
func (e *env) analyzeCode(key summaryKey, name string, code *pytype.Code, args []abstract.Value) (abstract.Value, error) {
	graph, err := e.graphFor(code)
	if err != nil {
		return nil, err
	}

	a := &analysis{
		env:   e,
		name:  name,
		code:  code,
		graph: graph,
		solver: typegraph.NewSolver(graph, e.cache, typegraph.SolverLimits{
			MaxDepth:  e.opts.MaxQueryDepth,
			MaxPasses: e.opts.MaxQueryPasses,
		}),
		inStates:    make(map[*cfg.Block]*frameState, len(graph.Blocks)),
		outLocals:   make(map[*cfg.Block]*sequencedmap.Map[string, *typegraph.Variable], len(graph.Blocks)),
		visits:      make(map[*cfg.Block]int, len(graph.Blocks)),
		clamped:     make(map[*cfg.Block]bool),
		tempVars:    make(map[int]*typegraph.Variable, len(code.Instrs)),
		handlerVars: make(map[*cfg.Block]*typegraph.Variable),
	}
	e.registerAnalysis(key, a)

	entry := newFrameState()
	for i, p := range code.Params {
		v := e.program.NewVariable(p)
		val := abstract.Unknown
		if i < len(args) && args[i] != nil {
			val = args[i]
		}
		v.AddBinding(val, graph.Entry)
		entry.locals.Set(p, v)
	}
	a.inStates[graph.Entry] = entry

	e.logger.With(map[string]any{"func": name, "blocks": len(graph.Blocks)}).
		Debugf("interpreting")

	pending := map[*cfg.Block]bool{graph.Entry: true}
	for len(pending) > 0 {
		b := nextPending(graph, pending)
		delete(pending, b)

		if !e.spendFuel(name, b) {
			a.finalizeUnsolvable(b)
			for _, nb := range graph.Blocks {
				if pending[nb] {
					a.finalizeUnsolvable(nb)
				}
			}
			break
		}

		a.visits[b]++
		if b.HasBackIn() && a.visits[b] > e.opts.MaxLoopIterations {
			if !a.clamped[b] {
				a.clamped[b] = true
				a.clampLoop(b)
				e.reportLimit(name, b, fmt.Sprintf("loop did not converge within %d iterations, widened to Unknown",
					e.opts.MaxLoopIterations))
			}
			continue
		}

		// Handler edges see the state as it was on entry: a raise can
		// happen before any instruction of the block completes.
		if err := a.propagateExcept(b, pending); err != nil {
			return nil, &AbortError{Func: name, Reason: "invariant violation", Err: err}
		}

		st := a.inStates[b].fork()
		outs, err := a.runBlock(b, st)
		if err != nil {
			return nil, &AbortError{Func: name, Reason: "invariant violation", Err: err}
		}
		a.outLocals[b] = snapshotLocals(st.locals)

		for _, es := range outs {
			in := a.inStates[es.edge.To]
			changed, err := a.mergeInto(es.edge.To, &in, es.state)
			if err != nil {
				return nil, &AbortError{Func: name, Reason: "invariant violation", Err: err}
			}
			a.inStates[es.edge.To] = in
			if changed {
				pending[es.edge.To] = true
			}
		}
	}

	if len(a.retVals) == 0 {
		return nil, nil
	}
	return abstract.MakeUnion(e.opts.unionOptions(), a.retVals...), nil
}

// nextPending picks the lowest-numbered pending block: deterministic and,
// since blocks are numbered in offset order, roughly topological.
func nextPending(g *cfg.Graph, pending map[*cfg.Block]bool) *cfg.Block {
	for _, b := range g.Blocks {
		if pending[b] {
			return b
		}
	}
	return nil
}

func snapshotLocals(locals *sequencedmap.Map[string, *typegraph.Variable]) *sequencedmap.Map[string, *typegraph.Variable] {
	out := sequencedmap.New[string, *typegraph.Variable]()
	for name, v := range locals.All() {
		out.Set(name, v)
	}
	return out
}

// clampLoop widens the loop-carried variables of a non-converging header:
// every merge variable owned by the header gets an Unknown binding, which
// absorbs whatever the next pass would have added.
func (a *analysis) clampLoop(b *cfg.Block) {
	st := a.inStates[b]
	if st == nil {
		return
	}
	for i, merged := range st.mergedStack {
		if merged {
			st.stack[i].AddBinding(abstract.Unknown, b)
		}
	}
	for name, v := range st.locals.All() {
		if st.mergedLocals[name] {
			v.AddBinding(abstract.Unknown, b)
		}
	}
}

// finalizeUnsolvable marks every local of an interrupted block Unsolvable
// at the point the budget ran out, so consumers see a complete (if
// degraded) solution rather than a hole. Called for the block that tripped
// the budget and for every block still waiting in the worklist.
func (a *analysis) finalizeUnsolvable(b *cfg.Block) {
	st := a.inStates[b]
	if st == nil {
		return
	}
	for _, v := range collectLocals(st) {
		v.AddBinding(abstract.Unsolvable, b)
	}
	a.outLocals[b] = snapshotLocals(st.locals)
}

func collectLocals(st *frameState) []*typegraph.Variable {
	out := make([]*typegraph.Variable, 0, st.locals.Len())
	for _, v := range st.locals.All() {
		out = append(out, v)
	}
	return out
}

func (a *analysis) propagateExcept(b *cfg.Block, pending map[*cfg.Block]bool) error {
	for _, e := range b.Out {
		if e.Kind != cfg.EdgeExcept {
			continue
		}
		handler := e.To
		hv, ok := a.handlerVars[handler]
		if !ok {
			hv = a.env.program.NewVariable("<exception>")
			hv.AddBinding(abstract.Unknown, handler)
			a.handlerVars[handler] = hv
		}
		hs := a.inStates[b].fork()
		hs.stack = []*typegraph.Variable{hv}
		hs.mergedStack = []bool{false}

		in := a.inStates[handler]
		changed, err := a.mergeInto(handler, &in, hs)
		if err != nil {
			return err
		}
		a.inStates[handler] = in
		if changed {
			pending[handler] = true
		}
	}
	return nil
}

// runBlock interprets every instruction of the block against st and
// returns the states flowing out along each non-exception edge. The block
// structure guarantees jumps only occur as the final instruction.
func (a *analysis) runBlock(b *cfg.Block, st *frameState) ([]*edgeState, error) {
	instrs := b.Instrs()
	for idx := range instrs {
		in := instrs[idx]
		off := b.Start + idx
		last := idx == len(instrs)-1

		if in.Op.IsJump() || in.Op == pytype.OpReturnValue || in.Op == pytype.OpRaise {
			if !last {
				return nil, fmt.Errorf("control transfer %s not at block end (offset %d)", in.Op, off)
			}
			return a.execTransfer(b, st, in, off)
		}
		if err := a.execStraight(b, st, in, off); err != nil {
			return nil, err
		}
	}

	// Plain fallthrough.
	var outs []*edgeState
	for _, e := range b.Out {
		if e.Kind == cfg.EdgeFall {
			outs = append(outs, &edgeState{edge: e, state: st})
		}
	}
	return outs, nil
}

// execTransfer handles the block-terminating control instructions and
// assigns the proper state to each outgoing edge.
func (a *analysis) execTransfer(b *cfg.Block, st *frameState, in pytype.Instr, off int) ([]*edgeState, error) {
	normalEdges := func() []*cfg.Edge {
		var out []*cfg.Edge
		for _, e := range b.Out {
			if e.Kind != cfg.EdgeExcept {
				out = append(out, e)
			}
		}
		return out
	}

	switch in.Op {
	case pytype.OpJump:
		var outs []*edgeState
		for _, e := range normalEdges() {
			outs = append(outs, &edgeState{edge: e, state: st})
		}
		return outs, nil

	case pytype.OpPopJumpIfFalse, pytype.OpPopJumpIfTrue:
		if _, err := st.pop(); err != nil {
			return nil, err
		}
		var outs []*edgeState
		for _, e := range normalEdges() {
			outs = append(outs, &edgeState{edge: e, state: st.fork()})
		}
		return outs, nil

	case pytype.OpForIter:
		if _, err := st.peek(); err != nil {
			return nil, err
		}
		var outs []*edgeState
		for _, e := range normalEdges() {
			switch e.Kind {
			case cfg.EdgeFall:
				// Loop body: the yielded element joins the stack. Element
				// types are not tracked through iterators, so it is Unknown.
				body := st.fork()
				elem := a.bindTemp(off, "<iter-elem>", abstract.Unknown, b)
				body.push(elem)
				outs = append(outs, &edgeState{edge: e, state: body})
			default:
				// Exhaustion: the iterator is consumed.
				exit := st.fork()
				if _, err := exit.pop(); err != nil {
					return nil, err
				}
				outs = append(outs, &edgeState{edge: e, state: exit})
			}
		}
		return outs, nil

	case pytype.OpReturnValue:
		v, err := st.pop()
		if err != nil {
			return nil, err
		}
		a.retVals = append(a.retVals, a.valueOf(v, b))
		return nil, nil

	case pytype.OpRaise:
		if _, err := st.pop(); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("unexpected transfer opcode %s", in.Op)
	}
}

// execStraight handles every non-control instruction.
func (a *analysis) execStraight(b *cfg.Block, st *frameState, in pytype.Instr, off int) error {
	u := a.env.universe
	switch in.Op {
	case pytype.OpNop:

	case pytype.OpPopTop:
		_, err := st.pop()
		return err

	case pytype.OpDupTop:
		v, err := st.peek()
		if err != nil {
			return err
		}
		st.push(v)

	case pytype.OpRotTwo:
		if len(st.stack) < 2 {
			return fmt.Errorf("operand stack underflow")
		}
		n := len(st.stack)
		st.stack[n-1], st.stack[n-2] = st.stack[n-2], st.stack[n-1]

	case pytype.OpLoadConst:
		st.push(a.bindTemp(off, "<const>", u.ConstValue(in.Const), b))

	case pytype.OpLoadFast:
		v, ok := st.locals.Get(in.Name)
		if !ok || v == nil {
			a.report(UndefinedName, b, in, nil, "name %s is not defined", in.Name)
			v = a.bindTemp(off, in.Name, abstract.Unsolvable, b)
		}
		st.push(v)

	case pytype.OpStoreFast:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.locals.Set(in.Name, a.storeAs(in.Name, v, b, off))
		delete(st.mergedLocals, in.Name)

	case pytype.OpDeleteFast:
		if _, ok := st.locals.Get(in.Name); !ok {
			a.report(UndefinedName, b, in, nil, "name %s is not defined", in.Name)
			return nil
		}
		st.locals.Set(in.Name, nil)

	case pytype.OpLoadName:
		st.push(a.loadName(st, b, in, off))

	case pytype.OpStoreName:
		v, err := st.pop()
		if err != nil {
			return err
		}
		stored := a.storeAs(in.Name, v, b, off)
		st.locals.Set(in.Name, stored)
		delete(st.mergedLocals, in.Name)
		// The module-level view of the name accumulates every assignment:
		// other frames read it flow-insensitively.
		gv, ok := a.env.globals.Get(in.Name)
		if !ok {
			gv = a.env.program.NewVariable(in.Name)
			a.env.globals.Set(in.Name, gv)
		}
		for _, sb := range stored.Bindings {
			gv.AddBinding(sb.Value, b)
		}

	case pytype.OpLoadAttr:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(a.loadAttr(v, b, in, off))

	case pytype.OpStoreAttr:
		// obj.attr = value: per-instance attribute state is not modeled;
		// the write is accepted and dropped.
		if _, err := st.pop(); err != nil {
			return err
		}
		if _, err := st.pop(); err != nil {
			return err
		}
		a.env.logger.Debugf("store_attr %s dropped (instance attributes are not tracked)", in.Name)

	case pytype.OpBinarySubscr:
		idx, err := st.pop()
		if err != nil {
			return err
		}
		obj, err := st.pop()
		if err != nil {
			return err
		}
		st.push(a.subscript(obj, idx, b, in, off))

	case pytype.OpBinaryOp:
		r, err := st.pop()
		if err != nil {
			return err
		}
		l, err := st.pop()
		if err != nil {
			return err
		}
		st.push(a.binaryOp(pytype.BinOp(in.Arg), l, r, b, in, off))

	case pytype.OpCompareOp:
		if _, err := st.pop(); err != nil {
			return err
		}
		if _, err := st.pop(); err != nil {
			return err
		}
		st.push(a.bindTemp(off, "<cmp>", u.Instantiate(u.Bool), b))

	case pytype.OpUnaryNot:
		if _, err := st.pop(); err != nil {
			return err
		}
		st.push(a.bindTemp(off, "<not>", u.Instantiate(u.Bool), b))

	case pytype.OpUnaryNeg:
		v, err := st.pop()
		if err != nil {
			return err
		}
		st.push(a.unaryNeg(v, b, in, off))

	case pytype.OpBuildList, pytype.OpBuildTuple, pytype.OpBuildMap:
		return a.buildContainer(st, b, in, off)

	case pytype.OpGetIter:
		if _, err := st.pop(); err != nil {
			return err
		}
		st.push(a.bindTemp(off, "<iter>", u.Instantiate(u.Iterator), b))

	case pytype.OpMakeFunction:
		code, ok := in.Const.(*pytype.Code)
		if !ok {
			return fmt.Errorf("make_function at offset %d without code constant", off)
		}
		fn := a.functionValue(code)
		st.push(a.bindTemp(off, code.Name, fn, b))

	case pytype.OpCallFunction:
		return a.execCall(st, b, in, off)

	default:
		if a.env.opts.StrictMode {
			return fmt.Errorf("no semantics for opcode %s", in.Op)
		}
		a.env.logger.Warnf("no semantics for opcode %s at offset %d, result degraded to Unknown", in.Op, off)
		st.push(a.bindTemp(off, "<unsupported>", abstract.Unknown, b))
	}
	return nil
}

// storeAs materializes a store: a fresh variable version for the name,
// with one binding per visible binding of the stored value, each derived
// from its origin. Re-executions of the same store reuse the variable so
// loop passes converge.
func (a *analysis) storeAs(name string, v *typegraph.Variable, b *cfg.Block, off int) *typegraph.Variable {
	stored := a.temp(off, name)
	for _, src := range a.bindingsOf(v, b) {
		stored.AddBinding(src.Value, b, []*typegraph.Binding{src})
	}
	if len(stored.Bindings) == 0 {
		// The stored value has no visible binding (degenerate flow);
		// record the failure rather than an empty variable.
		stored.AddBinding(abstract.Unsolvable, b)
	}
	return stored
}

func (a *analysis) loadName(st *frameState, b *cfg.Block, in pytype.Instr, off int) *typegraph.Variable {
	if v, ok := st.locals.Get(in.Name); ok && v != nil {
		return v
	}
	// Module-level names flow in flow-insensitively: a function body sees
	// the union of everything ever assigned to the global.
	if gv, ok := a.env.globals.Get(in.Name); ok && gv != nil {
		val := abstract.MakeUnion(a.env.opts.unionOptions(), gv.Values()...)
		return a.bindTemp(off, in.Name, val, b)
	}
	if bv, ok := a.env.builtins.Get(in.Name); ok {
		return a.bindTemp(off, in.Name, bv, b)
	}
	a.report(UndefinedName, b, in, nil, "name %s is not defined", in.Name)
	return a.bindTemp(off, in.Name, abstract.Unsolvable, b)
}

// loadAttr resolves obj.attr per possible receiver value, recording one
// UnresolvedAttribute per failing member while the succeeding members
// carry the result.
func (a *analysis) loadAttr(obj *typegraph.Variable, b *cfg.Block, in pytype.Instr, off int) *typegraph.Variable {
	srcs := a.bindingsOf(obj, b)
	recv := a.valueOf(obj, b)

	var parts []abstract.Value
	for _, opt := range abstract.Options(recv) {
		r, res := abstract.Attribute(opt, in.Name)
		if res == abstract.AttrMissing {
			a.report(UnresolvedAttribute, b, in, []abstract.Value{opt},
				"no attribute %s on %s", in.Name, opt)
			parts = append(parts, abstract.Unsolvable)
			continue
		}
		parts = append(parts, r)
	}
	val := abstract.MakeUnion(a.env.opts.unionOptions(), parts...)
	if val == nil {
		val = abstract.Unsolvable
	}
	return a.bindTemp(off, in.Name, val, b, sourceCombos(srcs)...)
}

func (a *analysis) subscript(obj, idx *typegraph.Variable, b *cfg.Block, in pytype.Instr, off int) *typegraph.Variable {
	objSrcs := a.bindingsOf(obj, b)
	idxSrcs := a.bindingsOf(idx, b)
	objVal := a.valueOf(obj, b)
	idxVal := a.valueOf(idx, b)

	var parts []abstract.Value
	for _, opt := range abstract.Options(objVal) {
		switch {
		case abstract.IsUnknown(opt):
			parts = append(parts, abstract.Unknown)
		case abstract.IsUnsolvable(opt):
			parts = append(parts, abstract.Unsolvable)
		default:
			getter, res := abstract.Attribute(opt, "__getitem__")
			if res == abstract.AttrMissing {
				a.report(UnresolvedAttribute, b, in, []abstract.Value{opt},
					"%s is not subscriptable (no __getitem__)", opt)
				parts = append(parts, abstract.Unsolvable)
				continue
			}
			r, err := a.callValue(getter, []abstract.Value{idxVal}, b, in)
			if err != nil {
				parts = append(parts, abstract.Unsolvable)
				continue
			}
			parts = append(parts, r)
		}
	}
	val := abstract.MakeUnion(a.env.opts.unionOptions(), parts...)
	if val == nil {
		val = abstract.Unsolvable
	}
	return a.bindTemp(off, "<subscr>", val, b, sourceCombos(objSrcs, idxSrcs)...)
}

func (a *analysis) unaryNeg(v *typegraph.Variable, b *cfg.Block, in pytype.Instr, off int) *typegraph.Variable {
	srcs := a.bindingsOf(v, b)
	val := a.valueOf(v, b)
	u := a.env.universe

	var parts []abstract.Value
	for _, opt := range abstract.Options(val) {
		switch {
		case abstract.IsUnknown(opt):
			parts = append(parts, abstract.Unknown)
		case abstract.IsUnsolvable(opt):
			parts = append(parts, abstract.Unsolvable)
		case instanceOf(opt, u.Int) || instanceOf(opt, u.Float):
			parts = append(parts, opt)
		default:
			a.report(IncompatibleUnion, b, in, []abstract.Value{opt},
				"bad operand for unary -: %s", opt)
			parts = append(parts, abstract.Unsolvable)
		}
	}
	res := abstract.MakeUnion(a.env.opts.unionOptions(), parts...)
	if res == nil {
		res = abstract.Unsolvable
	}
	return a.bindTemp(off, "<neg>", res, b, sourceCombos(srcs)...)
}

func (a *analysis) buildContainer(st *frameState, b *cfg.Block, in pytype.Instr, off int) error {
	n := in.Arg
	if in.Op == pytype.OpBuildMap {
		n *= 2
	}
	elems := make([]*typegraph.Variable, n)
	for i := n - 1; i >= 0; i-- {
		v, err := st.pop()
		if err != nil {
			return err
		}
		elems[i] = v
	}

	u := a.env.universe
	var cls *abstract.Class
	switch in.Op {
	case pytype.OpBuildList:
		cls = u.List
	case pytype.OpBuildTuple:
		cls = u.Tuple
	default:
		cls = u.Dict
	}

	// A build of pure constants folds into one unconditional binding;
	// otherwise the container is conditional on its element bindings.
	srcLists := make([][]*typegraph.Binding, 0, n)
	allConst := true
	for _, el := range elems {
		bs := a.bindingsOf(el, b)
		srcLists = append(srcLists, bs)
		for _, sb := range bs {
			if len(sb.SourceSets) > 0 {
				allConst = false
			}
		}
	}
	var sources [][]*typegraph.Binding
	if !allConst {
		sources = sourceCombos(srcLists...)
	}
	st.push(a.bindTemp(off, "<build>", u.Instantiate(cls), b, sources...))
	return nil
}

// functionValue caches the callable wrapper per nested code object so two
// executions of the same make_function yield the same value.
func (a *analysis) functionValue(code *pytype.Code) abstract.Value {
	if fn, ok := a.env.functionCache[code]; ok {
		return fn
	}
	fn := a.env.universe.NewFunction(code.Name, code)
	a.env.functionCache[code] = fn
	return fn
}

func instanceOf(v abstract.Value, cls *abstract.Class) bool {
	inst, ok := v.(*abstract.Instance)
	if !ok {
		return false
	}
	return abstract.Subclass(inst.Of, cls)
}

// temp returns the per-instruction result variable, creating it on first
// use.
func (a *analysis) temp(off int, name string) *typegraph.Variable {
	if v, ok := a.tempVars[off]; ok {
		return v
	}
	v := a.env.program.NewVariable(name)
	a.tempVars[off] = v
	return v
}

func (a *analysis) bindTemp(off int, name string, val abstract.Value, b *cfg.Block, sources ...[]*typegraph.Binding) *typegraph.Variable {
	v := a.temp(off, name)
	v.AddBinding(val, b, sources...)
	return v
}

func (a *analysis) report(kind ErrorKind, b *cfg.Block, in pytype.Instr, snapshot []abstract.Value, format string, args ...any) {
	a.env.recorder.record(Error{
		Kind:     kind,
		Func:     a.name,
		Block:    b,
		Line:     in.Line,
		Col:      in.Col,
		Message:  fmt.Sprintf(format, args...),
		Snapshot: snapshot,
	})
}
