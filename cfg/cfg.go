// Package cfg turns a validated instruction stream into a control-flow
// graph of basic blocks. Blocks are maximal straight-line instruction runs;
// edges carry a kind so the interpreter and the typegraph solver can tell
// fallthrough, branches, loop back-edges and exception-handler edges apart.
package cfg

import (
	"fmt"
	"strings"

	pytype "github.com/LaudateCorpus1/pytype"
)

// EdgeKind classifies one control-flow edge.
type EdgeKind int

const (
	// EdgeFall is sequential fallthrough into the next block.
	EdgeFall EdgeKind = iota
	// EdgeBranch is a forward jump (conditional or unconditional).
	EdgeBranch
	// EdgeBack is a jump to an earlier offset, closing a loop.
	EdgeBack
	// EdgeExcept leads from a block containing raising instructions to the
	// handler covering them.
	EdgeExcept
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeFall:
		return "fall"
	case EdgeBranch:
		return "branch"
	case EdgeBack:
		return "back"
	case EdgeExcept:
		return "except"
	default:
		return fmt.Sprintf("edgekind(%d)", int(k))
	}
}

// Edge is one directed control-flow edge.
type Edge struct {
	From *Block
	To   *Block
	Kind EdgeKind
}

// Block is one program point: a maximal run of instructions with a single
// entry at Start and a single exit after End-1. Blocks are numbered in
// offset order, so iterating Graph.Blocks is deterministic.
type Block struct {
	ID    int
	Start int // first instruction index, inclusive
	End   int // last instruction index, exclusive
	Out   []*Edge
	In    []*Edge

	graph *Graph
}

// Instrs returns the block's instruction slice (a view, not a copy).
func (b *Block) Instrs() []pytype.Instr {
	return b.graph.Code.Instrs[b.Start:b.End]
}

// Last returns the block's final instruction.
func (b *Block) Last() pytype.Instr {
	return b.graph.Code.Instrs[b.End-1]
}

// Succs returns successor blocks in edge order.
func (b *Block) Succs() []*Block {
	out := make([]*Block, len(b.Out))
	for i, e := range b.Out {
		out[i] = e.To
	}
	return out
}

// Preds returns predecessor blocks in edge order.
func (b *Block) Preds() []*Block {
	in := make([]*Block, len(b.In))
	for i, e := range b.In {
		in[i] = e.From
	}
	return in
}

// HasBackIn reports whether any incoming edge is a loop back-edge,
// i.e. this block is a loop header.
func (b *Block) HasBackIn() bool {
	for _, e := range b.In {
		if e.Kind == EdgeBack {
			return true
		}
	}
	return false
}

func (b *Block) String() string {
	return fmt.Sprintf("b%d[%d:%d]", b.ID, b.Start, b.End)
}

// Graph is the control-flow graph of one code object.
type Graph struct {
	Code   *pytype.Code
	Blocks []*Block
	Entry  *Block

	byStart map[int]*Block
}

// BlockAt returns the block beginning at the given instruction offset.
func (g *Graph) BlockAt(offset int) (*Block, bool) {
	b, ok := g.byStart[offset]
	return b, ok
}

// Containing returns the block holding the given instruction offset.
func (g *Graph) Containing(offset int) *Block {
	for _, b := range g.Blocks {
		if offset >= b.Start && offset < b.End {
			return b
		}
	}
	return nil
}

// Exit returns the blocks ending in a return, in block order.
func (g *Graph) Exits() []*Block {
	var out []*Block
	for _, b := range g.Blocks {
		if b.Last().Op == pytype.OpReturnValue {
			out = append(out, b)
		}
	}
	return out
}

// Dump renders the graph one block per line, for debugging and tests.
func (g *Graph) Dump() string {
	var sb strings.Builder
	for _, b := range g.Blocks {
		fmt.Fprintf(&sb, "%s:", b)
		for _, e := range b.Out {
			fmt.Fprintf(&sb, " %s->b%d", e.Kind, e.To.ID)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
