package ir

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrStepLimit     = errors.New("ir: step limit exceeded")
	ErrCallDepth     = errors.New("ir: call depth exceeded")
	ErrDivideByZero  = errors.New("ir: division by zero")
	ErrBadAddress    = errors.New("ir: memory access out of bounds")
	ErrUndefinedFunc = errors.New("ir: undefined function")
)

const (
	DefaultMaxSteps = 1_000_000
	DefaultMaxDepth = 256

	// Return address and saved frame pointer between frames.
	frameLink = 16
)

// Interpreter executes IR directly with the same observable semantics as the
// generated machine code: 64-bit wraparound arithmetic, signed division,
// zero-extended byte loads, frame pointer relative addressing.
type Interpreter struct {
	MaxSteps int
	MaxDepth int

	funcs map[string]*compiledFunc
	mem   []byte
	sp    int
	depth int
	steps int
}

type compiledFunc struct {
	fn     *Function
	labels map[int]int // label id -> index of the Label instruction
	nregs  int
}

// Interpret runs entry in prog with default limits.
func Interpret(prog *Program, entry string, args ...int64) (int64, error) {
	in, err := NewInterpreter(prog)
	if err != nil {
		return 0, err
	}
	return in.Run(entry, args...)
}

// NewInterpreter resolves labels for every function up front, so a jump to
// an undefined or duplicated label is reported before anything runs.
func NewInterpreter(prog *Program) (*Interpreter, error) {
	in := &Interpreter{
		MaxSteps: DefaultMaxSteps,
		MaxDepth: DefaultMaxDepth,
		funcs:    make(map[string]*compiledFunc, len(prog.Funcs)),
	}

	for _, fn := range prog.Funcs {
		if _, dup := in.funcs[fn.Name]; dup {
			return nil, fmt.Errorf("ir: duplicate function %s", fn.Name)
		}
		cf, err := compile(fn)
		if err != nil {
			return nil, err
		}
		in.funcs[fn.Name] = cf
	}
	return in, nil
}

func compile(fn *Function) (*compiledFunc, error) {
	cf := &compiledFunc{fn: fn, labels: make(map[int]int), nregs: fn.NumRegs}

	var bad error
	use := func(r int) {
		if r < 0 && bad == nil {
			bad = fmt.Errorf("ir: %s: missing register operand", fn.Name)
		}
		if r+1 > cf.nregs {
			cf.nregs = r + 1
		}
	}

	for pc, inst := range fn.Code {
		switch {
		case inst.Op == OpLabel:
			if _, dup := cf.labels[inst.Lhs]; dup {
				return nil, fmt.Errorf("ir: %s: label %d defined twice", fn.Name, inst.Lhs)
			}
			cf.labels[inst.Lhs] = pc
		case inst.Op.IsBinary(), inst.Op == OpLoad, inst.Op == OpStore:
			use(inst.Lhs)
			use(inst.Rhs)
		case inst.Op == OpImm, inst.Op == OpBprel, inst.Op == OpUnless, inst.Op == OpReturn:
			use(inst.Lhs)
		case inst.Op == OpCall:
			use(inst.Lhs)
			for _, a := range inst.Args {
				use(a)
			}
		}
	}
	if bad != nil {
		return nil, bad
	}

	for _, inst := range fn.Code {
		target := None
		switch inst.Op {
		case OpJmp:
			target = inst.Lhs
		case OpUnless:
			target = inst.Rhs
		default:
			continue
		}
		if _, ok := cf.labels[target]; !ok {
			return nil, fmt.Errorf("ir: %s: jump to undefined label %d", fn.Name, target)
		}
	}
	return cf, nil
}

// Run calls entry with args and returns its result.
func (in *Interpreter) Run(entry string, args ...int64) (int64, error) {
	size := 0
	for _, cf := range in.funcs {
		if n := cf.fn.StackSize + frameLink; n > size {
			size = n
		}
	}
	in.mem = make([]byte, size*(in.MaxDepth+1))
	in.sp = len(in.mem)
	in.depth = 0
	in.steps = 0

	return in.call(entry, args)
}

// Steps reports how many instructions the last Run executed.
func (in *Interpreter) Steps() int {
	return in.steps
}

func (in *Interpreter) call(name string, args []int64) (int64, error) {
	cf, ok := in.funcs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUndefinedFunc, name)
	}
	if in.depth >= in.MaxDepth {
		return 0, ErrCallDepth
	}

	// The frame pointer sits just below the caller's frame.
	in.sp -= frameLink
	base := in.sp
	in.sp -= cf.fn.StackSize
	in.depth++
	defer func() {
		in.sp = base + frameLink
		in.depth--
	}()

	regs := make([]int64, cf.nregs)
	code := cf.fn.Code

	for pc := 0; pc < len(code); pc++ {
		in.steps++
		if in.steps > in.MaxSteps {
			return 0, ErrStepLimit
		}

		inst := code[pc]
		switch inst.Op {
		case OpImm:
			regs[inst.Lhs] = int64(inst.Rhs)
		case OpAdd:
			regs[inst.Lhs] += regs[inst.Rhs]
		case OpSub:
			regs[inst.Lhs] -= regs[inst.Rhs]
		case OpMul:
			regs[inst.Lhs] *= regs[inst.Rhs]
		case OpDiv:
			if regs[inst.Rhs] == 0 {
				return 0, ErrDivideByZero
			}
			regs[inst.Lhs] /= regs[inst.Rhs]
		case OpEq:
			regs[inst.Lhs] = boolInt(regs[inst.Lhs] == regs[inst.Rhs])
		case OpNe:
			regs[inst.Lhs] = boolInt(regs[inst.Lhs] != regs[inst.Rhs])
		case OpLt:
			regs[inst.Lhs] = boolInt(regs[inst.Lhs] < regs[inst.Rhs])
		case OpLe:
			regs[inst.Lhs] = boolInt(regs[inst.Lhs] <= regs[inst.Rhs])
		case OpBprel:
			regs[inst.Lhs] = int64(base - inst.Rhs)
		case OpLoad:
			v, err := in.load(regs[inst.Rhs], inst.Width)
			if err != nil {
				return 0, err
			}
			regs[inst.Lhs] = v
		case OpStore:
			if err := in.store(regs[inst.Lhs], regs[inst.Rhs], inst.Width); err != nil {
				return 0, err
			}
		case OpStoreArg:
			var v int64
			if inst.Rhs < len(args) {
				v = args[inst.Rhs]
			}
			if err := in.store(int64(base-inst.Lhs), v, inst.Width); err != nil {
				return 0, err
			}
		case OpLabel:
		case OpJmp:
			pc = cf.labels[inst.Lhs]
		case OpUnless:
			if regs[inst.Lhs] == 0 {
				pc = cf.labels[inst.Rhs]
			}
		case OpReturn:
			return regs[inst.Lhs], nil
		case OpCall:
			callArgs := make([]int64, len(inst.Args))
			for i, a := range inst.Args {
				callArgs[i] = regs[a]
			}
			v, err := in.call(inst.Name, callArgs)
			if err != nil {
				return 0, err
			}
			regs[inst.Lhs] = v
		default:
			return 0, fmt.Errorf("ir: %s: unknown opcode %v", cf.fn.Name, inst.Op)
		}
	}

	return 0, nil
}

func (in *Interpreter) load(addr int64, width int) (int64, error) {
	if err := in.checkAddr(addr, width); err != nil {
		return 0, err
	}
	switch width {
	case Byte:
		return int64(in.mem[addr]), nil
	case Word:
		return int64(binary.LittleEndian.Uint64(in.mem[addr:])), nil
	}
	return 0, fmt.Errorf("ir: unsupported load width %d", width)
}

func (in *Interpreter) store(addr, v int64, width int) error {
	if err := in.checkAddr(addr, width); err != nil {
		return err
	}
	switch width {
	case Byte:
		in.mem[addr] = byte(v)
	case Word:
		binary.LittleEndian.PutUint64(in.mem[addr:], uint64(v))
	default:
		return fmt.Errorf("ir: unsupported store width %d", width)
	}
	return nil
}

func (in *Interpreter) checkAddr(addr int64, width int) error {
	if addr < 0 || addr+int64(width) > int64(len(in.mem)) {
		return fmt.Errorf("%w: address %d width %d", ErrBadAddress, addr, width)
	}
	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
