package infer

import (
	pytype "github.com/LaudateCorpus1/pytype"
	"github.com/LaudateCorpus1/pytype/abstract"
	"github.com/LaudateCorpus1/pytype/cfg"
	"github.com/LaudateCorpus1/pytype/typegraph"
)

// binaryOp evaluates l <op> r pairwise over the operand unions. Numeric
// promotion follows the analyzed language: int op int is int except true
// division, mixing in a float gives float, and a handful of sequence
// forms (str+str, str*int, list+list, tuple+tuple) are recognized.
// Incompatible pairs record IncompatibleUnion and contribute Unsolvable.
func (a *analysis) binaryOp(op pytype.BinOp, l, r *typegraph.Variable, b *cfg.Block, in pytype.Instr, off int) *typegraph.Variable {
	lSrcs := a.bindingsOf(l, b)
	rSrcs := a.bindingsOf(r, b)
	lVal := a.valueOf(l, b)
	rVal := a.valueOf(r, b)

	var parts []abstract.Value
	for _, lo := range abstract.Options(lVal) {
		for _, ro := range abstract.Options(rVal) {
			parts = append(parts, a.binaryOpPair(op, lo, ro, b, in))
		}
	}
	res := abstract.MakeUnion(a.env.opts.unionOptions(), parts...)
	if res == nil {
		res = abstract.Unsolvable
	}
	return a.bindTemp(off, "<binop>", res, b, sourceCombos(lSrcs, rSrcs)...)
}

func (a *analysis) binaryOpPair(op pytype.BinOp, lo, ro abstract.Value, b *cfg.Block, in pytype.Instr) abstract.Value {
	if abstract.IsUnsolvable(lo) || abstract.IsUnsolvable(ro) {
		return abstract.Unsolvable
	}
	if abstract.IsUnknown(lo) || abstract.IsUnknown(ro) {
		return abstract.Unknown
	}

	u := a.env.universe
	lInt, rInt := instanceOf(lo, u.Int), instanceOf(ro, u.Int)
	lFloat, rFloat := instanceOf(lo, u.Float), instanceOf(ro, u.Float)

	switch {
	case lInt && rInt:
		if op == pytype.BinDiv {
			return u.Instantiate(u.Float)
		}
		return u.Instantiate(u.Int)
	case (lInt || lFloat) && (rInt || rFloat):
		return u.Instantiate(u.Float)
	}

	switch op {
	case pytype.BinAdd:
		switch {
		case instanceOf(lo, u.Str) && instanceOf(ro, u.Str):
			return u.Instantiate(u.Str)
		case instanceOf(lo, u.Bytes) && instanceOf(ro, u.Bytes):
			return u.Instantiate(u.Bytes)
		case instanceOf(lo, u.List) && instanceOf(ro, u.List):
			return u.Instantiate(u.List)
		case instanceOf(lo, u.Tuple) && instanceOf(ro, u.Tuple):
			return u.Instantiate(u.Tuple)
		}
	case pytype.BinMul:
		// Sequence repetition, in either operand order.
		seq, n := lo, ro
		if instanceOf(lo, u.Int) {
			seq, n = ro, lo
		}
		if instanceOf(n, u.Int) {
			switch {
			case instanceOf(seq, u.Str):
				return u.Instantiate(u.Str)
			case instanceOf(seq, u.Bytes):
				return u.Instantiate(u.Bytes)
			case instanceOf(seq, u.List):
				return u.Instantiate(u.List)
			case instanceOf(seq, u.Tuple):
				return u.Instantiate(u.Tuple)
			}
		}
	case pytype.BinMod:
		// "%s" % x style formatting.
		if instanceOf(lo, u.Str) {
			return u.Instantiate(u.Str)
		}
	}

	a.report(IncompatibleUnion, b, in, []abstract.Value{lo, ro},
		"unsupported operand types for %s: %s and %s", op, lo, ro)
	return abstract.Unsolvable
}
