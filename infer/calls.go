package infer

import (
	pytype "github.com/LaudateCorpus1/pytype"
	"github.com/LaudateCorpus1/pytype/abstract"
	"github.com/LaudateCorpus1/pytype/cfg"
	"github.com/LaudateCorpus1/pytype/typegraph"
)

// execCall pops the arguments and the callee off the operand stack,
// dispatches per callee option, and pushes the union of the results.
func (a *analysis) execCall(st *frameState, b *cfg.Block, in pytype.Instr, off int) error {
	args := make([]*typegraph.Variable, in.Arg)
	for i := in.Arg - 1; i >= 0; i-- {
		v, err := st.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}
	callee, err := st.pop()
	if err != nil {
		return err
	}

	argVals := make([]abstract.Value, len(args))
	srcLists := make([][]*typegraph.Binding, 0, len(args)+1)
	srcLists = append(srcLists, a.bindingsOf(callee, b))
	for i, av := range args {
		argVals[i] = a.valueOf(av, b)
		srcLists = append(srcLists, a.bindingsOf(av, b))
	}

	calleeVal := a.valueOf(callee, b)
	var parts []abstract.Value
	for _, opt := range abstract.Options(calleeVal) {
		r, err := a.callValue(opt, argVals, b, in)
		if err != nil {
			return err
		}
		parts = append(parts, r)
	}
	res := abstract.MakeUnion(a.env.opts.unionOptions(), parts...)
	if res == nil {
		res = abstract.Unsolvable
	}
	st.push(a.bindTemp(off, "<call>", res, b, sourceCombos(srcLists...)...))
	return nil
}

// callValue applies one non-union callee value to the given arguments.
// Errors returned here are fatal interpreter faults; language-level call
// problems are recorded on the error recorder and degrade the result.
func (a *analysis) callValue(callee abstract.Value, args []abstract.Value, b *cfg.Block, in pytype.Instr) (abstract.Value, error) {
	switch c := callee.(type) {
	case *abstract.Function:
		return a.callFunction(c, args, b, in)

	case *abstract.BoundMethod:
		bound := make([]abstract.Value, 0, len(args)+1)
		bound = append(bound, c.Recv)
		bound = append(bound, args...)
		return a.callValue(c.Fn, bound, b, in)

	case *abstract.ExternalFunction:
		return a.callExternal(c, args, b, in), nil

	case *abstract.Class:
		return a.construct(c, args, b, in)

	case *abstract.Instance:
		callAttr, res := abstract.Attribute(c, "__call__")
		if res == abstract.AttrMissing {
			a.report(UnresolvedAttribute, b, in, []abstract.Value{c},
				"%s object is not callable", c)
			return abstract.Unsolvable, nil
		}
		return a.callValue(callAttr, args, b, in)

	default:
		switch {
		case abstract.IsUnknown(callee):
			return abstract.Unknown, nil
		case abstract.IsUnsolvable(callee):
			return abstract.Unsolvable, nil
		default:
			a.report(UnresolvedAttribute, b, in, []abstract.Value{callee},
				"%s is not callable", callee)
			return abstract.Unsolvable, nil
		}
	}
}

// construct models cls(args): the result is the interned instance of cls,
// and when the class declares an __init__ of its own its body is
// interpreted with the instance bound so its errors surface.
func (a *analysis) construct(cls *abstract.Class, args []abstract.Value, b *cfg.Block, in pytype.Instr) (abstract.Value, error) {
	inst := a.env.universe.Instantiate(cls)

	init, res := abstract.Attribute(cls, "__init__")
	if res == abstract.AttrFound {
		withSelf := make([]abstract.Value, 0, len(args)+1)
		withSelf = append(withSelf, inst)
		withSelf = append(withSelf, args...)
		if _, err := a.callValue(init, withSelf, b, in); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// callFunction interprets a user function through the summary cache.
// Summaries are keyed by (code object, argument shape): the first call
// with a given shape interprets the body, every later one is a lookup.
//
// Recursion is broken with a provisional summary: while a key is being
// interpreted, re-entrant calls for the same key receive the current
// tentative return (Unsolvable on the first pass). If the tentative value
// was consumed, the body is re-interpreted with the refined return until
// the result fingerprint stabilizes or the unroll budget runs out.
func (a *analysis) callFunction(fn *abstract.Function, args []abstract.Value, b *cfg.Block, in pytype.Instr) (abstract.Value, error) {
	e := a.env
	if len(args) != len(fn.Code.Params) {
		a.report(WrongArgumentCount, b, in, args,
			"%s takes %d arguments, got %d", fn.Name, len(fn.Code.Params), len(args))
		return abstract.Unsolvable, nil
	}

	key := summaryKey{code: fn.Code, argsFP: argsFingerprint(args)}
	if s, ok := e.summaries[key]; ok {
		if s.provisional {
			s.used = true
			return s.ret, nil
		}
		return s.ret, nil
	}

	if e.callDepth >= e.opts.MaxCallDepth {
		e.reportLimit(a.name, b, "call depth limit reached, result is Unsolvable")
		return abstract.Unsolvable, nil
	}

	s := &callSummary{ret: abstract.Unsolvable, provisional: true}
	e.summaries[key] = s

	var ret abstract.Value
	for pass := 0; ; pass++ {
		s.used = false
		e.callDepth++
		r, err := e.analyzeCode(key, fn.Name, fn.Code, args)
		e.callDepth--
		if err != nil {
			delete(e.summaries, key)
			return nil, err
		}
		if r == nil {
			// No path returns: the function falls off the end and yields
			// None.
			r = e.universe.None
		}
		ret = r
		if !s.used || abstract.Fingerprint(ret) == abstract.Fingerprint(s.ret) {
			break
		}
		if pass+1 >= e.opts.MaxUnrollCount {
			e.reportLimit(fn.Name, b, "recursive call did not stabilize, return widened")
			ret = abstract.MakeUnion(e.opts.unionOptions(), ret, abstract.Unsolvable)
			break
		}
		s.ret = ret
	}

	s.ret = ret
	s.provisional = false
	s.used = false
	return ret, nil
}

// callExternal applies an overlay-declared callable. A few builtins have
// semantics beyond what a signature can express and are special-cased by
// qualified name.
func (a *analysis) callExternal(ext *abstract.ExternalFunction, args []abstract.Value, b *cfg.Block, in pytype.Instr) abstract.Value {
	switch ext.QName {
	case "type":
		if len(args) == 1 {
			if inst, ok := args[0].(*abstract.Instance); ok {
				return inst.Of
			}
			return abstract.Unknown
		}
	case "getattr":
		// The attribute name is a runtime string; the result cannot be
		// pinned down statically.
		if len(args) == 2 || len(args) == 3 {
			return abstract.Unknown
		}
	}

	if ext.Sig == nil {
		return abstract.Unknown
	}
	ret, merr := ext.Sig.Match(args, a.env.opts.unionOptions())
	if merr != nil {
		kind := IncompatibleUnion
		if merr.Failure == abstract.MatchArity {
			kind = WrongArgumentCount
		}
		a.report(kind, b, in, args, "%s", merr.Error())
		return abstract.Unsolvable
	}
	return ret
}
