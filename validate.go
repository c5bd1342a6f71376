package pytype

import "fmt"

// Validate rejects malformed instruction streams before interpretation:
// dangling jump targets, handler ranges pointing outside the stream, and
// name-carrying opcodes with no name. Nested code objects reachable through
// OpMakeFunction constants are validated recursively. A stream that fails
// here must not reach the CFG builder; there is no partially valid stream.
func Validate(c *Code) error {
	if c == nil {
		return fmt.Errorf("nil code object")
	}
	return validateCode(c, map[*Code]bool{})
}

func validateCode(c *Code, seen map[*Code]bool) error {
	if seen[c] {
		return nil
	}
	seen[c] = true

	if len(c.Instrs) == 0 {
		return fmt.Errorf("%s: empty instruction stream", c.Name)
	}

	n := len(c.Instrs)
	for i, in := range c.Instrs {
		if in.Op < 0 || int(in.Op) >= len(opNames) {
			return fmt.Errorf("%s: instruction %d: unknown opcode %d", c.Name, i, int(in.Op))
		}
		if in.Op.IsJump() {
			if in.Target < 0 || in.Target >= n {
				return fmt.Errorf("%s: instruction %d (%s): jump target %d out of range [0,%d)",
					c.Name, i, in.Op, in.Target, n)
			}
		}
		switch in.Op {
		case OpLoadFast, OpStoreFast, OpDeleteFast, OpLoadName, OpStoreName,
			OpLoadAttr, OpStoreAttr:
			if in.Name == "" {
				return fmt.Errorf("%s: instruction %d (%s): missing name operand", c.Name, i, in.Op)
			}
		case OpCallFunction, OpBuildList, OpBuildTuple, OpBuildMap:
			if in.Arg < 0 {
				return fmt.Errorf("%s: instruction %d (%s): negative count %d", c.Name, i, in.Op, in.Arg)
			}
		case OpMakeFunction:
			fn, ok := in.Const.(*Code)
			if !ok || fn == nil {
				return fmt.Errorf("%s: instruction %d: make_function constant is not a code object", c.Name, i)
			}
			if err := validateCode(fn, seen); err != nil {
				return err
			}
		}
	}

	for hi, h := range c.Handlers {
		if h.Start < 0 || h.End > n || h.Start >= h.End {
			return fmt.Errorf("%s: handler %d: invalid protected range [%d,%d)", c.Name, hi, h.Start, h.End)
		}
		if h.Target < 0 || h.Target >= n {
			return fmt.Errorf("%s: handler %d: target %d out of range [0,%d)", c.Name, hi, h.Target, n)
		}
	}

	// The final instruction must not fall off the end of the stream.
	last := c.Instrs[n-1].Op
	if !last.IsTerminal() {
		return fmt.Errorf("%s: stream falls through past the last instruction (%s)", c.Name, last)
	}

	return nil
}
