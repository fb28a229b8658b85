// Package ir implements the intermediate representation.
//
// Design: A flat list of two-operand instructions over an unbounded supply of
// virtual registers. Control flow is explicit labels and jumps; the list order
// is execution order, nothing reorders it before code generation.
package ir

import "fmt"

// Program is the top-level IR container
type Program struct {
	Funcs []*Function
}

// Function represents a compiled function
type Function struct {
	Name      string
	Params    int
	Code      []Inst
	StackSize int
	NumRegs   int // virtual registers allocated, ids are 0..NumRegs-1
	NumLabels int
}

// None marks an operand field that the opcode does not use.
const None = -1

// Inst is one IR instruction. Operand meaning depends on Op:
//
//	Imm       Lhs=dst reg    Rhs=immediate
//	Add..Le   Lhs=dst/left   Rhs=right reg
//	Bprel     Lhs=dst reg    Rhs=frame offset
//	Load      Lhs=dst reg    Rhs=address reg   Width
//	Store     Lhs=address    Rhs=value reg     Width
//	StoreArg  Lhs=offset     Rhs=arg index     Width
//	Label     Lhs=label
//	Jmp       Lhs=label
//	Unless    Lhs=cond reg   Rhs=label
//	Return    Lhs=value reg
//	Call      Lhs=dst reg    Name, Args
type Inst struct {
	Op    Op
	Lhs   int
	Rhs   int
	Width int
	Name  string
	Args  []int
}

type Op int

const (
	OpImm Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpLt
	OpLe
	OpBprel
	OpLoad
	OpStore
	OpStoreArg
	OpLabel
	OpJmp
	OpUnless
	OpReturn
	OpCall
)

var opNames = [...]string{
	OpImm:      "IMM",
	OpAdd:      "ADD",
	OpSub:      "SUB",
	OpMul:      "MUL",
	OpDiv:      "DIV",
	OpEq:       "EQ",
	OpNe:       "NE",
	OpLt:       "LT",
	OpLe:       "LE",
	OpBprel:    "BPREL",
	OpLoad:     "LOAD",
	OpStore:    "STORE",
	OpStoreArg: "STORE_ARG",
	OpLabel:    "LABEL",
	OpJmp:      "JMP",
	OpUnless:   "UNLESS",
	OpReturn:   "RET",
	OpCall:     "CALL",
}

func (op Op) String() string {
	if op >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("OP(%d)", int(op))
}

// IsBinary reports whether op is a register-register arithmetic or
// comparison instruction.
func (op Op) IsBinary() bool {
	return op >= OpAdd && op <= OpLe
}

// Memory access widths in bytes.
const (
	Byte = 1
	Word = 8
)
