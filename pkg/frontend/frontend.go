// Package frontend implements lexing, parsing and AST construction.
//
// Design: Minimal, focused on correctness. Local variables are resolved to
// frame offsets while parsing, so the AST carries storage, not names.
package frontend

// StackSize is the fixed frame size reserved by every function: room for
// MaxLocals eight-byte slots.
const (
	StackSize = 208
	MaxLocals = StackSize / 8

	// MaxParams is the number of integer argument registers.
	MaxParams = 6
)

type Node interface {
	node()
}

type Program struct {
	Funcs []*FuncDecl
}

func (Program) node() {}

type Stmt interface {
	Node
	stmt()
}

type Expr interface {
	Node
	expr()
}

// Local is one entry of a function's variable table.
type Local struct {
	Name   string
	Len    int // diagnostic only
	Offset int // bytes below the frame pointer
}

type FuncDecl struct {
	Name      string
	Params    []*LVar
	Body      *Block
	Locals    []*Local
	StackSize int
}

func (FuncDecl) node() {}

// Statements
type Return struct {
	Value Expr
}

func (Return) node() {}
func (Return) stmt() {}

type If struct {
	Cond Expr
	Then Stmt
	Else Stmt // nil when absent
}

func (If) node() {}
func (If) stmt() {}

type While struct {
	Cond Expr
	Body Stmt
}

func (While) node() {}
func (While) stmt() {}

// For clauses Init, Cond and Post may each be nil.
type For struct {
	Init Expr
	Cond Expr
	Post Expr
	Body Stmt
}

func (For) node() {}
func (For) stmt() {}

type Block struct {
	Stmts []Stmt
}

func (Block) node() {}
func (Block) stmt() {}

type ExprStmt struct {
	X Expr
}

func (ExprStmt) node() {}
func (ExprStmt) stmt() {}

// Expressions
type Num struct {
	Value int64
}

func (Num) node() {}
func (Num) expr() {}

// LVar references a local variable by its frame offset.
type LVar struct {
	Name   string
	Offset int
}

func (LVar) node() {}
func (LVar) expr() {}

type Neg struct {
	X Expr
}

func (Neg) node() {}
func (Neg) expr() {}

type BinOp struct {
	Left  Expr
	Op    Operator
	Right Expr
}

func (BinOp) node() {}
func (BinOp) expr() {}

type Assign struct {
	Target *LVar
	Value  Expr
}

func (Assign) node() {}
func (Assign) expr() {}

type Call struct {
	Func string
	Args []Expr
}

func (Call) node() {}
func (Call) expr() {}

// Operator covers arithmetic and comparison. There is no Gt or Ge: the
// parser rewrites a > b as b < a and a >= b as b <= a.
type Operator int

const (
	Add Operator = iota
	Sub
	Mul
	Div
	Eq
	Ne
	Lt
	Le
)

func (op Operator) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	}
	return "?"
}
