package cfg

import (
	"fmt"
	"sort"

	pytype "github.com/LaudateCorpus1/pytype"
)

// Build constructs the control-flow graph for one code object. The stream
// is validated first; any malformation fails the whole build. A returned
// error means no graph exists at all, never a partial one.
func Build(code *pytype.Code) (*Graph, error) {
	if err := pytype.Validate(code); err != nil {
		return nil, fmt.Errorf("invalid instruction stream: %w", err)
	}

	leaders := collectLeaders(code)

	g := &Graph{
		Code:    code,
		byStart: make(map[int]*Block, len(leaders)),
	}
	for i, start := range leaders {
		end := len(code.Instrs)
		if i+1 < len(leaders) {
			end = leaders[i+1]
		}
		b := &Block{ID: i, Start: start, End: end, graph: g}
		g.Blocks = append(g.Blocks, b)
		g.byStart[start] = b
	}
	g.Entry = g.Blocks[0]

	for _, b := range g.Blocks {
		connect(g, b)
	}
	addHandlerEdges(g)

	return g, nil
}

// collectLeaders returns the sorted set of block start offsets: entry,
// every jump target, every handler entry, and the instruction after every
// control transfer.
func collectLeaders(code *pytype.Code) []int {
	isLeader := make(map[int]bool, len(code.Instrs)/2)
	isLeader[0] = true

	for i, in := range code.Instrs {
		if in.Op.IsJump() {
			isLeader[in.Target] = true
			if i+1 < len(code.Instrs) {
				isLeader[i+1] = true
			}
		}
		if in.Op == pytype.OpReturnValue || in.Op == pytype.OpRaise {
			if i+1 < len(code.Instrs) {
				isLeader[i+1] = true
			}
		}
	}
	for _, h := range code.Handlers {
		isLeader[h.Target] = true
	}

	leaders := make([]int, 0, len(isLeader))
	for off := range isLeader {
		leaders = append(leaders, off)
	}
	sort.Ints(leaders)
	return leaders
}

// connect adds the fallthrough and branch edges leaving one block.
func connect(g *Graph, b *Block) {
	last := b.Last()
	lastOff := b.End - 1

	branchTo := func(target int) {
		to := g.byStart[target]
		kind := EdgeBranch
		if target <= lastOff {
			kind = EdgeBack
		}
		addEdge(b, to, kind)
	}
	fallTo := func() {
		if to, ok := g.byStart[b.End]; ok {
			addEdge(b, to, EdgeFall)
		}
	}

	switch last.Op {
	case pytype.OpJump:
		branchTo(last.Target)
	case pytype.OpPopJumpIfFalse, pytype.OpPopJumpIfTrue:
		// Fallthrough first so the not-taken path is always successor 0.
		fallTo()
		branchTo(last.Target)
	case pytype.OpForIter:
		// Successor 0 is the loop body, successor 1 the exhaustion exit.
		fallTo()
		branchTo(last.Target)
	case pytype.OpReturnValue, pytype.OpRaise:
		// No normal successors.
	default:
		fallTo()
	}
}

// addHandlerEdges wires every block containing a raising instruction inside
// a protected range to that range's handler block. One edge per
// (block, handler) pair regardless of how many instructions can raise.
func addHandlerEdges(g *Graph) {
	for _, h := range g.Code.Handlers {
		target := g.byStart[h.Target]
		for _, b := range g.Blocks {
			if b == target {
				continue
			}
			raises := false
			for off := b.Start; off < b.End; off++ {
				if off >= h.Start && off < h.End && g.Code.Instrs[off].Op.CanRaise() {
					raises = true
					break
				}
			}
			if raises && !hasEdge(b, target, EdgeExcept) {
				addEdge(b, target, EdgeExcept)
			}
		}
	}
}

func addEdge(from, to *Block, kind EdgeKind) {
	e := &Edge{From: from, To: to, Kind: kind}
	from.Out = append(from.Out, e)
	to.In = append(to.In, e)
}

func hasEdge(from, to *Block, kind EdgeKind) bool {
	for _, e := range from.Out {
		if e.To == to && e.Kind == kind {
			return true
		}
	}
	return false
}
