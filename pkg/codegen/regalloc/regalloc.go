// Package regalloc maps IR virtual registers onto physical registers.
//
// Design: Identity assignment. Virtual register i lives in Available[i] for
// the whole function; there is no liveness analysis and no spilling, so a
// function that needs more virtual registers than the target provides is
// rejected with ErrCapacity.
package regalloc

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/minicc/pkg/ir"
	"github.com/GriffinCanCode/minicc/pkg/logger"
)

// ErrCapacity reports a virtual register with no physical counterpart.
var ErrCapacity = errors.New("regalloc: register capacity exceeded")

// Config holds register allocation configuration for an architecture
type Config struct {
	Available   []string // Allocation order, index is the virtual register id
	Available8  []string // Low byte aliases of Available, same order
	CalleeSaved []string // Must be preserved across the routine if used
}

// Allocator performs register allocation for one function
type Allocator struct {
	fn   *ir.Function
	cfg  *Config
	used []bool
}

// NewAllocator creates a new register allocator
func NewAllocator(fn *ir.Function, cfg *Config) *Allocator {
	return &Allocator{
		fn:   fn,
		cfg:  cfg,
		used: make([]bool, len(cfg.Available)),
	}
}

// Allocate checks every register operand of the function against the
// available set and records which physical registers are touched.
func (a *Allocator) Allocate() error {
	logger.Debug("Starting register allocation", "function", a.fn.Name, "virtual", a.fn.NumRegs)

	for pc, inst := range a.fn.Code {
		for _, r := range Uses(inst) {
			if r == ir.None {
				return fmt.Errorf("%s: instruction %d (%v): missing register operand", a.fn.Name, pc, inst.Op)
			}
			if err := a.check(r); err != nil {
				return fmt.Errorf("%s: instruction %d (%v): %w", a.fn.Name, pc, inst.Op, err)
			}
			a.used[r] = true
		}
	}

	logger.Debug("Register allocation complete", "function", a.fn.Name, "callee_saved", len(a.UsedCalleeSaved()))
	return nil
}

func (a *Allocator) check(r int) error {
	if r < 0 || r >= len(a.cfg.Available) {
		return fmt.Errorf("%w: virtual register %d, have %d", ErrCapacity, r, len(a.cfg.Available))
	}
	return nil
}

// Reg returns the 64-bit physical register for virtual register r.
func (a *Allocator) Reg(r int) (string, error) {
	if err := a.check(r); err != nil {
		return "", err
	}
	return a.cfg.Available[r], nil
}

// Reg8 returns the low byte alias of the physical register for r.
func (a *Allocator) Reg8(r int) (string, error) {
	if err := a.check(r); err != nil {
		return "", err
	}
	if r >= len(a.cfg.Available8) {
		return "", fmt.Errorf("regalloc: no byte alias for %s", a.cfg.Available[r])
	}
	return a.cfg.Available8[r], nil
}

// UsedCalleeSaved returns the callee-saved registers the function touches,
// in CalleeSaved order.
func (a *Allocator) UsedCalleeSaved() []string {
	var result []string
	for _, cs := range a.cfg.CalleeSaved {
		for i, reg := range a.cfg.Available {
			if reg == cs && a.used[i] {
				result = append(result, cs)
				break
			}
		}
	}
	return result
}

// GetFunction returns the function being allocated
func (a *Allocator) GetFunction() *ir.Function {
	return a.fn
}

// Uses returns the register operands of inst. StoreArg, Label and Jmp have
// none; Call includes its destination and arguments.
func Uses(inst ir.Inst) []int {
	switch {
	case inst.Op.IsBinary(), inst.Op == ir.OpLoad, inst.Op == ir.OpStore:
		return []int{inst.Lhs, inst.Rhs}
	case inst.Op == ir.OpImm, inst.Op == ir.OpBprel, inst.Op == ir.OpUnless, inst.Op == ir.OpReturn:
		return []int{inst.Lhs}
	case inst.Op == ir.OpCall:
		return append([]int{inst.Lhs}, inst.Args...)
	}
	return nil
}
