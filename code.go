// Package pytype holds the instruction-stream model consumed by the
// inference core: opcodes, instructions, code objects and their
// exception-handler tables. Streams are produced by an external compiler
// and must pass Validate before anything downstream touches them.
package pytype

import "fmt"

// Opcode identifies one abstract machine operation.
type Opcode int

const (
	OpNop Opcode = iota

	// Stack manipulation
	OpPopTop
	OpDupTop
	OpRotTwo

	// Constants and names
	OpLoadConst // Const holds the literal (int64, float64, string, bool, nil, or *Code)
	OpLoadFast  // Name holds a local variable
	OpStoreFast
	OpDeleteFast
	OpLoadName // Name holds a global or builtin
	OpStoreName

	// Attributes and subscripts
	OpLoadAttr // Name holds the attribute
	OpStoreAttr
	OpBinarySubscr

	// Operators
	OpBinaryOp  // Arg is a BinOp
	OpCompareOp // Arg is a CmpOp
	OpUnaryNot
	OpUnaryNeg

	// Containers
	OpBuildList  // Arg is the element count
	OpBuildTuple // Arg is the element count
	OpBuildMap   // Arg is the pair count

	// Iteration
	OpGetIter
	OpForIter // Target is the loop-exit offset taken on exhaustion

	// Control flow
	OpJump           // Target is the destination offset
	OpPopJumpIfFalse // Target taken when TOS is false
	OpPopJumpIfTrue  // Target taken when TOS is true
	OpReturnValue
	OpRaise

	// Functions
	OpMakeFunction // Const holds the *Code of the function body
	OpCallFunction // Arg is the positional argument count
)

var opNames = [...]string{
	OpNop:            "nop",
	OpPopTop:         "pop_top",
	OpDupTop:         "dup_top",
	OpRotTwo:         "rot_two",
	OpLoadConst:      "load_const",
	OpLoadFast:       "load_fast",
	OpStoreFast:      "store_fast",
	OpDeleteFast:     "delete_fast",
	OpLoadName:       "load_name",
	OpStoreName:      "store_name",
	OpLoadAttr:       "load_attr",
	OpStoreAttr:      "store_attr",
	OpBinarySubscr:   "binary_subscr",
	OpBinaryOp:       "binary_op",
	OpCompareOp:      "compare_op",
	OpUnaryNot:       "unary_not",
	OpUnaryNeg:       "unary_neg",
	OpBuildList:      "build_list",
	OpBuildTuple:     "build_tuple",
	OpBuildMap:       "build_map",
	OpGetIter:        "get_iter",
	OpForIter:        "for_iter",
	OpJump:           "jump",
	OpPopJumpIfFalse: "pop_jump_if_false",
	OpPopJumpIfTrue:  "pop_jump_if_true",
	OpReturnValue:    "return_value",
	OpRaise:          "raise",
	OpMakeFunction:   "make_function",
	OpCallFunction:   "call_function",
}

func (op Opcode) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return fmt.Sprintf("opcode(%d)", int(op))
	}
	return opNames[op]
}

// ParseOpcode resolves an opcode by its mnemonic ("load_const").
func ParseOpcode(name string) (Opcode, bool) {
	for op, n := range opNames {
		if n == name {
			return Opcode(op), true
		}
	}
	return 0, false
}

// IsJump reports whether the opcode transfers control to Target.
// OpForIter counts: it falls through into the loop body and jumps
// to Target on iterator exhaustion.
func (op Opcode) IsJump() bool {
	switch op {
	case OpJump, OpPopJumpIfFalse, OpPopJumpIfTrue, OpForIter:
		return true
	}
	return false
}

// IsTerminal reports whether control never falls through to the
// next instruction.
func (op Opcode) IsTerminal() bool {
	return op == OpJump || op == OpReturnValue || op == OpRaise
}

// CanRaise reports whether the operation can transfer control to an
// exception handler covering it. Pure stack shuffles and jumps cannot.
func (op Opcode) CanRaise() bool {
	switch op {
	case OpLoadAttr, OpStoreAttr, OpBinarySubscr, OpBinaryOp, OpCompareOp,
		OpUnaryNeg, OpGetIter, OpForIter, OpCallFunction, OpLoadName, OpRaise:
		return true
	}
	return false
}

// BinOp enumerates binary operators carried in Instr.Arg for OpBinaryOp.
type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinFloorDiv
	BinMod
)

func (b BinOp) String() string {
	switch b {
	case BinAdd:
		return "+"
	case BinSub:
		return "-"
	case BinMul:
		return "*"
	case BinDiv:
		return "/"
	case BinFloorDiv:
		return "//"
	case BinMod:
		return "%"
	default:
		return fmt.Sprintf("binop(%d)", int(b))
	}
}

// CmpOp enumerates comparison operators carried in Instr.Arg for OpCompareOp.
type CmpOp int

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
	CmpIs
	CmpIn
)

func (c CmpOp) String() string {
	switch c {
	case CmpEq:
		return "=="
	case CmpNe:
		return "!="
	case CmpLt:
		return "<"
	case CmpLe:
		return "<="
	case CmpGt:
		return ">"
	case CmpGe:
		return ">="
	case CmpIs:
		return "is"
	case CmpIn:
		return "in"
	default:
		return fmt.Sprintf("cmpop(%d)", int(c))
	}
}

// Instr is one decoded instruction. Offsets are instruction indices into
// Code.Instrs, not byte offsets; there is no variable-length encoding at
// this layer.
type Instr struct {
	Op     Opcode
	Arg    int    // argument/element counts, BinOp, CmpOp
	Target int    // jump destination for jump opcodes
	Name   string // variable/attribute name for name-carrying opcodes
	Const  any    // literal for OpLoadConst / OpMakeFunction

	// Source position for diagnostics.
	Line int
	Col  int
}

func (in Instr) String() string {
	switch {
	case in.Op.IsJump():
		return fmt.Sprintf("%s -> %d", in.Op, in.Target)
	case in.Name != "":
		return fmt.Sprintf("%s %s", in.Op, in.Name)
	case in.Op == OpLoadConst:
		return fmt.Sprintf("%s %v", in.Op, in.Const)
	case in.Op == OpBinaryOp:
		return fmt.Sprintf("%s %s", in.Op, BinOp(in.Arg))
	case in.Op == OpCompareOp:
		return fmt.Sprintf("%s %s", in.Op, CmpOp(in.Arg))
	default:
		return in.Op.String()
	}
}

// ExceptEntry protects the half-open instruction range [Start, End):
// any raising instruction inside it transfers control to Target.
type ExceptEntry struct {
	Start  int
	End    int
	Target int
}

// Code is one compiled function body (or a module body, which is just a
// body with no parameters).
type Code struct {
	Name     string
	Filename string
	Params   []string
	Instrs   []Instr
	Handlers []ExceptEntry
}

func (c *Code) String() string {
	if c == nil {
		return "<nil code>"
	}
	return fmt.Sprintf("<code %s, %d instrs>", c.Name, len(c.Instrs))
}
