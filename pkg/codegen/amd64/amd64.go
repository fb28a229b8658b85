// Package amd64 implements x86-64 code generation.
//
// Design: Direct Intel-syntax assembly for the GNU assembler, one routine per
// IR function. System V calling convention. Every routine has a fixed frame
// and a single epilogue that all returns jump to.
package amd64

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/GriffinCanCode/minicc/pkg/codegen/regalloc"
	"github.com/GriffinCanCode/minicc/pkg/ir"
	"github.com/GriffinCanCode/minicc/pkg/logger"
)

// Generator generates x86-64 assembly
type Generator struct {
	w     io.Writer
	buf   bytes.Buffer
	fn    *ir.Function
	alloc *regalloc.Allocator
	saved []string
}

func NewGenerator(w io.Writer) *Generator {
	return &Generator{w: w}
}

// Generate emits assembly for an IR program. Nothing is written to the
// underlying writer unless every function lowers successfully.
func (g *Generator) Generate(prog *ir.Program) error {
	logger.Debug("Generating amd64 assembly", "functions", len(prog.Funcs))
	g.buf.Reset()

	g.emitf(".intel_syntax noprefix")
	for _, fn := range prog.Funcs {
		g.emitf(".global %s", fn.Name)
	}

	for _, fn := range prog.Funcs {
		if err := g.generateFunction(fn); err != nil {
			logger.Error("Failed to generate function", "arch", "amd64", "name", fn.Name, "error", err)
			return fmt.Errorf("function %s: %w", fn.Name, err)
		}
	}

	if _, err := g.w.Write(g.buf.Bytes()); err != nil {
		return fmt.Errorf("write assembly: %w", err)
	}
	logger.Debug("amd64 code generation complete", "functions", len(prog.Funcs), "bytes", g.buf.Len())
	return nil
}

// GenerateWithValidation generates and validates assembly
func (g *Generator) GenerateWithValidation(prog *ir.Program) (string, error) {
	var out strings.Builder
	w := g.w
	g.w = &out
	defer func() { g.w = w }()

	if err := g.Generate(prog); err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	assembly := out.String()
	if err := ValidateProgram(assembly); err != nil {
		logger.Error("Assembly validation failed", "error", err)
		return assembly, fmt.Errorf("validation failed: %w", err)
	}

	logger.Debug("Assembly generated and validated successfully")
	return assembly, nil
}

// generateFunction emits assembly for a single function
func (g *Generator) generateFunction(fn *ir.Function) error {
	logger.LogCodeGen("amd64", fn.Name, len(fn.Code))

	g.fn = fn
	g.alloc = regalloc.NewAllocator(fn, Registers)
	if err := g.alloc.Allocate(); err != nil {
		return fmt.Errorf("register allocation failed: %w", err)
	}
	g.saved = g.alloc.UsedCalleeSaved()

	// Prologue
	g.emitf("%s:", fn.Name)
	g.inst("push rbp")
	g.inst("mov rbp, rsp")
	if fn.StackSize > 0 {
		g.inst("sub rsp, %d", fn.StackSize)
	}
	for _, reg := range g.saved {
		g.inst("push %s", reg)
	}
	// Keep rsp 16-byte aligned at call sites.
	if len(g.saved)%2 != 0 {
		g.inst("sub rsp, 8")
	}

	for pc, inst := range fn.Code {
		if err := g.generateInst(inst); err != nil {
			return fmt.Errorf("instruction %d (%v): %w", pc, inst.Op, err)
		}
	}

	// Falling off the end returns 0.
	if n := len(fn.Code); n == 0 || fn.Code[n-1].Op != ir.OpReturn {
		g.inst("mov %s, 0", RetReg)
	}

	// Epilogue
	g.emitf("%s:", g.endLabel())
	if len(g.saved)%2 != 0 {
		g.inst("add rsp, 8")
	}
	for i := len(g.saved) - 1; i >= 0; i-- {
		g.inst("pop %s", g.saved[i])
	}
	g.inst("mov rsp, rbp")
	g.inst("pop rbp")
	g.inst("ret")
	return nil
}

// generateInst emits assembly for an instruction
func (g *Generator) generateInst(inst ir.Inst) error {
	switch inst.Op {
	case ir.OpImm:
		d, err := g.reg(inst.Lhs)
		if err != nil {
			return err
		}
		g.inst("mov %s, %d", d, inst.Rhs)

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe:
		return g.generateBinOp(inst)

	case ir.OpBprel:
		d, err := g.reg(inst.Lhs)
		if err != nil {
			return err
		}
		g.inst("lea %s, [rbp-%d]", d, inst.Rhs)

	case ir.OpLoad:
		return g.generateLoad(inst)

	case ir.OpStore:
		return g.generateStore(inst)

	case ir.OpStoreArg:
		arg, err := getParamReg(inst.Rhs, inst.Width)
		if err != nil {
			return err
		}
		switch inst.Width {
		case ir.Word:
			g.inst("mov [rbp-%d], %s", inst.Lhs, arg)
		case ir.Byte:
			g.inst("mov byte ptr [rbp-%d], %s", inst.Lhs, arg)
		default:
			return fmt.Errorf("unsupported store width %d", inst.Width)
		}

	case ir.OpLabel:
		if inst.Lhs == ir.None {
			return fmt.Errorf("missing label operand")
		}
		g.emitf("%s:", g.label(inst.Lhs))

	case ir.OpJmp:
		if inst.Lhs == ir.None {
			return fmt.Errorf("missing label operand")
		}
		g.inst("jmp %s", g.label(inst.Lhs))

	case ir.OpUnless:
		r, err := g.reg(inst.Lhs)
		if err != nil {
			return err
		}
		if inst.Rhs == ir.None {
			return fmt.Errorf("missing label operand")
		}
		g.inst("cmp %s, 0", r)
		g.inst("je %s", g.label(inst.Rhs))

	case ir.OpReturn:
		r, err := g.reg(inst.Lhs)
		if err != nil {
			return err
		}
		g.inst("mov %s, %s", RetReg, r)
		g.inst("jmp %s", g.endLabel())

	case ir.OpCall:
		return g.generateCall(inst)

	default:
		return fmt.Errorf("unsupported instruction: %v", inst.Op)
	}
	return nil
}

// generateBinOp emits assembly for binary operations. The result replaces
// the left operand.
func (g *Generator) generateBinOp(inst ir.Inst) error {
	l, err := g.reg(inst.Lhs)
	if err != nil {
		return err
	}
	r, err := g.reg(inst.Rhs)
	if err != nil {
		return err
	}

	switch inst.Op {
	case ir.OpAdd:
		g.inst("add %s, %s", l, r)
	case ir.OpSub:
		g.inst("sub %s, %s", l, r)
	case ir.OpMul:
		g.inst("mov rax, %s", r)
		g.inst("imul %s", l)
		g.inst("mov %s, rax", l)
	case ir.OpDiv:
		g.inst("mov rax, %s", l)
		g.inst("cqo")
		g.inst("idiv %s", r)
		g.inst("mov %s, rax", l)
	case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe:
		l8, err := g.reg8(inst.Lhs)
		if err != nil {
			return err
		}
		g.inst("cmp %s, %s", l, r)
		g.inst("%s %s", setcc[inst.Op], l8)
		g.inst("movzx %s, %s", l, l8)
	}
	return nil
}

var setcc = map[ir.Op]string{
	ir.OpEq: "sete",
	ir.OpNe: "setne",
	ir.OpLt: "setl",
	ir.OpLe: "setle",
}

// generateLoad emits assembly for load instructions
func (g *Generator) generateLoad(inst ir.Inst) error {
	d, err := g.reg(inst.Lhs)
	if err != nil {
		return err
	}
	s, err := g.reg(inst.Rhs)
	if err != nil {
		return err
	}
	switch inst.Width {
	case ir.Word:
		g.inst("mov %s, [%s]", d, s)
	case ir.Byte:
		g.inst("movzx %s, byte ptr [%s]", d, s)
	default:
		return fmt.Errorf("unsupported load width %d", inst.Width)
	}
	return nil
}

// generateStore emits assembly for store instructions
func (g *Generator) generateStore(inst ir.Inst) error {
	d, err := g.reg(inst.Lhs)
	if err != nil {
		return err
	}
	switch inst.Width {
	case ir.Word:
		s, err := g.reg(inst.Rhs)
		if err != nil {
			return err
		}
		g.inst("mov [%s], %s", d, s)
	case ir.Byte:
		s8, err := g.reg8(inst.Rhs)
		if err != nil {
			return err
		}
		g.inst("mov byte ptr [%s], %s", d, s8)
	default:
		return fmt.Errorf("unsupported store width %d", inst.Width)
	}
	return nil
}

// generateCall emits assembly for function calls. Only the caller-saved
// allocatable registers need preserving; the rest are callee-saved.
func (g *Generator) generateCall(inst ir.Inst) error {
	if inst.Name == "" {
		return fmt.Errorf("call without a target")
	}
	if len(inst.Args) > len(ArgRegs) {
		return fmt.Errorf("call to %s: %d arguments, at most %d supported", inst.Name, len(inst.Args), len(ArgRegs))
	}
	d, err := g.reg(inst.Lhs)
	if err != nil {
		return err
	}
	args := make([]string, len(inst.Args))
	for i, a := range inst.Args {
		if args[i], err = g.reg(a); err != nil {
			return err
		}
	}

	for _, reg := range CallerSaved {
		g.inst("push %s", reg)
	}
	for i, a := range args {
		g.inst("mov %s, %s", ArgRegs[i], a)
	}
	g.inst("mov rax, 0")
	g.inst("call %s", inst.Name)
	for i := len(CallerSaved) - 1; i >= 0; i-- {
		g.inst("pop %s", CallerSaved[i])
	}
	g.inst("mov %s, rax", d)
	return nil
}

func (g *Generator) reg(r int) (string, error) {
	if r == ir.None {
		return "", fmt.Errorf("missing register operand")
	}
	return g.alloc.Reg(r)
}

func (g *Generator) reg8(r int) (string, error) {
	if r == ir.None {
		return "", fmt.Errorf("missing register operand")
	}
	return g.alloc.Reg8(r)
}

func (g *Generator) label(id int) string {
	return fmt.Sprintf(".L%s_%d", g.fn.Name, id)
}

func (g *Generator) endLabel() string {
	return fmt.Sprintf(".L%s_end", g.fn.Name)
}

func (g *Generator) inst(format string, args ...any) {
	g.buf.WriteByte('\t')
	fmt.Fprintf(&g.buf, format, args...)
	g.buf.WriteByte('\n')
}

func (g *Generator) emitf(format string, args ...any) {
	fmt.Fprintf(&g.buf, format, args...)
	g.buf.WriteByte('\n')
}
