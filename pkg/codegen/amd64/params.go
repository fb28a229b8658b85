// Package amd64 - Register conventions
package amd64

import (
	"fmt"

	"github.com/GriffinCanCode/minicc/pkg/codegen/regalloc"
)

// System V calling convention
var (
	// Argument registers (order matters)
	ArgRegs  = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
	ArgRegs8 = []string{"dil", "sil", "dl", "cl", "r8b", "r9b"}
	// Return register
	RetReg = "rax"
	// Caller-saved registers the allocator hands out, saved around calls
	CallerSaved = []string{"r10", "r11"}
	// Callee-saved
	CalleeSaved = []string{"rbx", "r12", "r13", "r14", "r15"}
)

// Registers is the allocation order; virtual register i maps to Registers[i].
var Registers = &regalloc.Config{
	Available:   []string{"r10", "r11", "rbx", "r12", "r13", "r14", "r15"},
	Available8:  []string{"r10b", "r11b", "bl", "r12b", "r13b", "r14b", "r15b"},
	CalleeSaved: CalleeSaved,
}

// getParamReg returns the register for a function parameter
func getParamReg(index, width int) (string, error) {
	if index < 0 || index >= len(ArgRegs) {
		return "", fmt.Errorf("parameter index %d out of range", index)
	}
	if width == 1 {
		return ArgRegs8[index], nil
	}
	return ArgRegs[index], nil
}
