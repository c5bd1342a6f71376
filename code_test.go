package pytype

import "testing"

func TestOpcodeString(t *testing.T) {
	cases := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "nop"},
		{OpLoadConst, "load_const"},
		{OpPopJumpIfFalse, "pop_jump_if_false"},
		{OpCallFunction, "call_function"},
		{Opcode(999), "opcode(999)"},
	}
	for _, c := range cases {
		if got := c.op.String(); got != c.want {
			t.Errorf("Opcode(%d).String() = %q, want %q", int(c.op), got, c.want)
		}
	}
}

func TestParseOpcode(t *testing.T) {
	for op := OpNop; op <= OpCallFunction; op++ {
		got, ok := ParseOpcode(op.String())
		if !ok {
			t.Fatalf("ParseOpcode(%q) not found", op.String())
		}
		if got != op {
			t.Errorf("ParseOpcode(%q) = %v, want %v", op.String(), got, op)
		}
	}
	if _, ok := ParseOpcode("no_such_op"); ok {
		t.Error("ParseOpcode accepted an unknown mnemonic")
	}
}

func TestOpcodePredicates(t *testing.T) {
	if !OpForIter.IsJump() {
		t.Error("for_iter must count as a jump (it targets the loop exit)")
	}
	if OpReturnValue.IsJump() {
		t.Error("return_value is not a jump")
	}
	for _, op := range []Opcode{OpJump, OpReturnValue, OpRaise} {
		if !op.IsTerminal() {
			t.Errorf("%s must be terminal", op)
		}
	}
	if OpPopJumpIfFalse.IsTerminal() {
		t.Error("pop_jump_if_false falls through, it is not terminal")
	}
	if !OpLoadAttr.CanRaise() {
		t.Error("load_attr can raise")
	}
	if OpDupTop.CanRaise() {
		t.Error("dup_top cannot raise")
	}
}

func TestInstrString(t *testing.T) {
	cases := []struct {
		in   Instr
		want string
	}{
		{Instr{Op: OpJump, Target: 7}, "jump -> 7"},
		{Instr{Op: OpLoadFast, Name: "x"}, "load_fast x"},
		{Instr{Op: OpLoadConst, Const: int64(3)}, "load_const 3"},
		{Instr{Op: OpBinaryOp, Arg: int(BinAdd)}, "binary_op +"},
		{Instr{Op: OpCompareOp, Arg: int(CmpLe)}, "compare_op <="},
		{Instr{Op: OpPopTop}, "pop_top"},
	}
	for _, c := range cases {
		if got := c.in.String(); got != c.want {
			t.Errorf("Instr.String() = %q, want %q", got, c.want)
		}
	}
}
