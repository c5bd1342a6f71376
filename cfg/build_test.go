package cfg

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	pytype "github.com/LaudateCorpus1/pytype"
)

// linear: x = 1; return None
func linearCode() *pytype.Code {
	return &pytype.Code{Name: "linear", Instrs: []pytype.Instr{
		{Op: pytype.OpLoadConst, Const: int64(1)},
		{Op: pytype.OpStoreName, Name: "x"},
		{Op: pytype.OpLoadConst, Const: nil},
		{Op: pytype.OpReturnValue},
	}}
}

// diamond: x = 1 if cond else "a"; return x
//
//	0: load_name cond
//	1: pop_jump_if_false -> 4
//	2: load_const 1
//	3: jump -> 5
//	4: load_const "a"
//	5: store_name x
//	6: load_name x
//	7: return_value
func diamondCode() *pytype.Code {
	return &pytype.Code{Name: "diamond", Instrs: []pytype.Instr{
		{Op: pytype.OpLoadName, Name: "cond"},
		{Op: pytype.OpPopJumpIfFalse, Target: 4},
		{Op: pytype.OpLoadConst, Const: int64(1)},
		{Op: pytype.OpJump, Target: 5},
		{Op: pytype.OpLoadConst, Const: "a"},
		{Op: pytype.OpStoreName, Name: "x"},
		{Op: pytype.OpLoadName, Name: "x"},
		{Op: pytype.OpReturnValue},
	}}
}

// loop: while i: i = i + 1, with the back edge on the final jump.
//
//	0: load_const 0
//	1: store_name i
//	2: load_name i
//	3: pop_jump_if_false -> 9
//	4: load_name i
//	5: load_const 1
//	6: binary_op +
//	7: store_name i
//	8: jump -> 2
//	9: load_const None
//	10: return_value
func loopCode() *pytype.Code {
	return &pytype.Code{Name: "loop", Instrs: []pytype.Instr{
		{Op: pytype.OpLoadConst, Const: int64(0)},
		{Op: pytype.OpStoreName, Name: "i"},
		{Op: pytype.OpLoadName, Name: "i"},
		{Op: pytype.OpPopJumpIfFalse, Target: 9},
		{Op: pytype.OpLoadName, Name: "i"},
		{Op: pytype.OpLoadConst, Const: int64(1)},
		{Op: pytype.OpBinaryOp, Arg: int(pytype.BinAdd)},
		{Op: pytype.OpStoreName, Name: "i"},
		{Op: pytype.OpJump, Target: 2},
		{Op: pytype.OpLoadConst, Const: nil},
		{Op: pytype.OpReturnValue},
	}}
}

func TestBuildLinear(t *testing.T) {
	g, err := Build(linearCode())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(g.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d:\n%s", len(g.Blocks), g.Dump())
	}
	b := g.Entry
	if b.Start != 0 || b.End != 4 {
		t.Errorf("entry block spans [%d,%d), want [0,4)", b.Start, b.End)
	}
	if len(b.Out) != 0 {
		t.Errorf("return block must have no successors, got %d", len(b.Out))
	}
}

func TestBuildDiamond(t *testing.T) {
	g, err := Build(diamondCode())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Blocks: [0,2) cond, [2,4) then, [4,5) else, [5,8) join.
	wantStarts := []int{0, 2, 4, 5}
	var gotStarts []int
	for _, b := range g.Blocks {
		gotStarts = append(gotStarts, b.Start)
	}
	if diff := cmp.Diff(wantStarts, gotStarts); diff != "" {
		t.Fatalf("block starts mismatch (-want +got):\n%s\n%s", diff, g.Dump())
	}

	cond := g.Blocks[0]
	if len(cond.Out) != 2 {
		t.Fatalf("cond block should have 2 successors, got %d", len(cond.Out))
	}
	// Successor 0 is the fallthrough (condition true), successor 1 the branch.
	if cond.Out[0].Kind != EdgeFall || cond.Out[0].To.Start != 2 {
		t.Errorf("successor 0 should fall through to offset 2, got %s->%d",
			cond.Out[0].Kind, cond.Out[0].To.Start)
	}
	if cond.Out[1].Kind != EdgeBranch || cond.Out[1].To.Start != 4 {
		t.Errorf("successor 1 should branch to offset 4, got %s->%d",
			cond.Out[1].Kind, cond.Out[1].To.Start)
	}

	join := g.Blocks[3]
	if len(join.In) != 2 {
		t.Errorf("join block should have 2 predecessors, got %d", len(join.In))
	}
}

func TestBuildLoopBackEdge(t *testing.T) {
	g, err := Build(loopCode())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	header := g.Containing(2)
	if header == nil {
		t.Fatalf("no block contains the loop header:\n%s", g.Dump())
	}
	if !header.HasBackIn() {
		t.Errorf("loop header must have an incoming back edge:\n%s", g.Dump())
	}

	var backEdges int
	for _, b := range g.Blocks {
		for _, e := range b.Out {
			if e.Kind == EdgeBack {
				backEdges++
				if e.To != header {
					t.Errorf("back edge targets %s, want the header %s", e.To, header)
				}
			}
		}
	}
	if backEdges != 1 {
		t.Errorf("expected exactly 1 back edge, got %d:\n%s", backEdges, g.Dump())
	}
}

func TestBuildForIterSuccessorOrder(t *testing.T) {
	// 0: load_name xs / 1: get_iter / 2: for_iter -> 5 / 3: pop_top /
	// 4: jump -> 2 / 5: load_const None / 6: return
	code := &pytype.Code{Name: "iter", Instrs: []pytype.Instr{
		{Op: pytype.OpLoadName, Name: "xs"},
		{Op: pytype.OpGetIter},
		{Op: pytype.OpForIter, Target: 5},
		{Op: pytype.OpPopTop},
		{Op: pytype.OpJump, Target: 2},
		{Op: pytype.OpLoadConst, Const: nil},
		{Op: pytype.OpReturnValue},
	}}
	g, err := Build(code)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	iter := g.Containing(2)
	if len(iter.Out) != 2 {
		t.Fatalf("for_iter block should have 2 successors, got %d:\n%s", len(iter.Out), g.Dump())
	}
	if iter.Out[0].Kind != EdgeFall || iter.Out[0].To.Start != 3 {
		t.Errorf("successor 0 must be the loop body at offset 3")
	}
	if iter.Out[1].To.Start != 5 {
		t.Errorf("successor 1 must be the exhaustion exit at offset 5")
	}
}

func TestBuildHandlerEdges(t *testing.T) {
	// 0: load_name risky / 1: call_function / 2: pop_top / 3: jump -> 6
	// 4: pop_top (handler) / 5: jump -> 6 / 6: load_const None / 7: return
	code := &pytype.Code{
		Name: "try",
		Instrs: []pytype.Instr{
			{Op: pytype.OpLoadName, Name: "risky"},
			{Op: pytype.OpCallFunction, Arg: 0},
			{Op: pytype.OpPopTop},
			{Op: pytype.OpJump, Target: 6},
			{Op: pytype.OpPopTop},
			{Op: pytype.OpJump, Target: 6},
			{Op: pytype.OpLoadConst, Const: nil},
			{Op: pytype.OpReturnValue},
		},
		Handlers: []pytype.ExceptEntry{{Start: 0, End: 4, Target: 4}},
	}
	g, err := Build(code)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	handler := g.Containing(4)
	found := 0
	for _, e := range handler.In {
		if e.Kind == EdgeExcept {
			found++
		}
	}
	if found != 1 {
		t.Errorf("handler should have exactly 1 exception edge in, got %d:\n%s", found, g.Dump())
	}
}

func TestBuildRejectsInvalidStream(t *testing.T) {
	_, err := Build(&pytype.Code{Name: "bad", Instrs: []pytype.Instr{
		{Op: pytype.OpJump, Target: 50},
	}})
	if err == nil {
		t.Fatal("Build accepted a dangling jump")
	}
	if !strings.Contains(err.Error(), "invalid instruction stream") {
		t.Errorf("error should mention stream validation, got %q", err)
	}
}
