package ir

import (
	"fmt"
	"io"
	"strings"
)

func (inst Inst) String() string {
	switch inst.Op {
	case OpImm:
		return fmt.Sprintf("%s r%d, %d", inst.Op, inst.Lhs, inst.Rhs)
	case OpBprel:
		return fmt.Sprintf("%s r%d, %d", inst.Op, inst.Lhs, inst.Rhs)
	case OpLoad:
		return fmt.Sprintf("%s%d r%d, r%d", inst.Op, inst.Width, inst.Lhs, inst.Rhs)
	case OpStore:
		return fmt.Sprintf("%s%d r%d, r%d", inst.Op, inst.Width, inst.Lhs, inst.Rhs)
	case OpStoreArg:
		return fmt.Sprintf("%s%d %d, %d", inst.Op, inst.Width, inst.Lhs, inst.Rhs)
	case OpLabel:
		return fmt.Sprintf(".L%d:", inst.Lhs)
	case OpJmp:
		return fmt.Sprintf("%s .L%d", inst.Op, inst.Lhs)
	case OpUnless:
		return fmt.Sprintf("%s r%d, .L%d", inst.Op, inst.Lhs, inst.Rhs)
	case OpReturn:
		return fmt.Sprintf("%s r%d", inst.Op, inst.Lhs)
	case OpCall:
		args := make([]string, len(inst.Args))
		for i, a := range inst.Args {
			args[i] = fmt.Sprintf("r%d", a)
		}
		return fmt.Sprintf("r%d = %s %s(%s)", inst.Lhs, inst.Op, inst.Name, strings.Join(args, ", "))
	}
	if inst.Op.IsBinary() {
		return fmt.Sprintf("%s r%d, r%d", inst.Op, inst.Lhs, inst.Rhs)
	}
	return fmt.Sprintf("%s %d, %d", inst.Op, inst.Lhs, inst.Rhs)
}

// Print writes a readable listing of prog, one function after another.
func Print(w io.Writer, prog *Program) error {
	for i, fn := range prog.Funcs {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "FUNC %s(params=%d, stack=%d, regs=%d, labels=%d)\n",
			fn.Name, fn.Params, fn.StackSize, fn.NumRegs, fn.NumLabels); err != nil {
			return err
		}
		for _, inst := range fn.Code {
			indent := "  "
			if inst.Op == OpLabel {
				indent = ""
			}
			if _, err := fmt.Fprintf(w, "%s%s\n", indent, inst); err != nil {
				return err
			}
		}
	}
	return nil
}
