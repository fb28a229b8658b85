// Package ir - AST to IR conversion
// Design: Single pass, explicit control flow, fresh register per value
package ir

import (
	"fmt"

	"github.com/GriffinCanCode/minicc/pkg/frontend"
	"github.com/GriffinCanCode/minicc/pkg/logger"
)

type Builder struct {
	prog      *Program
	currentFn *Function
	regID     int
	labelID   int
}

func NewBuilder() *Builder {
	return &Builder{
		prog: &Program{},
	}
}

// Build lowers every function of prog, in declaration order.
func (b *Builder) Build(prog *frontend.Program) (*Program, error) {
	logger.Debug("Building IR from AST", "functions", len(prog.Funcs))
	for _, fnDecl := range prog.Funcs {
		if err := b.buildFunction(fnDecl); err != nil {
			logger.Error("Failed to build function", "name", fnDecl.Name, "error", err)
			return nil, fmt.Errorf("function %s: %w", fnDecl.Name, err)
		}
	}
	logger.Debug("IR build complete", "functions", len(b.prog.Funcs))
	return b.prog, nil
}

// Build is a shorthand for NewBuilder().Build(prog).
func Build(prog *frontend.Program) (*Program, error) {
	return NewBuilder().Build(prog)
}

func (b *Builder) buildFunction(fnDecl *frontend.FuncDecl) error {
	// Register and label ids are dense per function.
	b.regID = 0
	b.labelID = 0

	fn := &Function{
		Name:      fnDecl.Name,
		Params:    len(fnDecl.Params),
		StackSize: fnDecl.StackSize,
	}
	b.currentFn = fn

	for i, param := range fnDecl.Params {
		b.emit(Inst{Op: OpStoreArg, Lhs: param.Offset, Rhs: i, Width: Word})
	}

	if fnDecl.Body != nil {
		if err := b.buildStatement(fnDecl.Body); err != nil {
			return err
		}
	}

	fn.NumRegs = b.regID
	fn.NumLabels = b.labelID
	b.prog.Funcs = append(b.prog.Funcs, fn)

	logger.LogIRGeneration(fn.Name, len(fn.Code), fn.NumRegs, fn.NumLabels)
	return nil
}

func (b *Builder) buildStatement(stmt frontend.Stmt) error {
	switch s := stmt.(type) {
	case *frontend.Return:
		r, err := b.buildExpression(s.Value)
		if err != nil {
			return err
		}
		b.emit(Inst{Op: OpReturn, Lhs: r, Rhs: None})
		return nil

	case *frontend.ExprStmt:
		_, err := b.buildExpression(s.X)
		return err

	case *frontend.Block:
		for _, inner := range s.Stmts {
			if err := b.buildStatement(inner); err != nil {
				return err
			}
		}
		return nil

	case *frontend.If:
		return b.buildIf(s)

	case *frontend.While:
		begin, end := b.newLabel(), b.newLabel()
		b.label(begin)
		if err := b.branchUnless(s.Cond, end); err != nil {
			return err
		}
		if err := b.buildStatement(s.Body); err != nil {
			return err
		}
		b.jmp(begin)
		b.label(end)
		return nil

	case *frontend.For:
		return b.buildFor(s)

	default:
		return fmt.Errorf("unsupported statement type: %T", stmt)
	}
}

func (b *Builder) buildIf(s *frontend.If) error {
	if s.Else == nil {
		end := b.newLabel()
		if err := b.branchUnless(s.Cond, end); err != nil {
			return err
		}
		if err := b.buildStatement(s.Then); err != nil {
			return err
		}
		b.label(end)
		return nil
	}

	els, end := b.newLabel(), b.newLabel()
	if err := b.branchUnless(s.Cond, els); err != nil {
		return err
	}
	if err := b.buildStatement(s.Then); err != nil {
		return err
	}
	b.jmp(end)
	b.label(els)
	if err := b.buildStatement(s.Else); err != nil {
		return err
	}
	b.label(end)
	return nil
}

func (b *Builder) buildFor(s *frontend.For) error {
	if s.Init != nil {
		if _, err := b.buildExpression(s.Init); err != nil {
			return err
		}
	}

	begin, end := b.newLabel(), b.newLabel()
	b.label(begin)
	if s.Cond != nil {
		if err := b.branchUnless(s.Cond, end); err != nil {
			return err
		}
	}
	if err := b.buildStatement(s.Body); err != nil {
		return err
	}
	if s.Post != nil {
		if _, err := b.buildExpression(s.Post); err != nil {
			return err
		}
	}
	b.jmp(begin)
	b.label(end)
	return nil
}

// branchUnless evaluates cond and jumps to label when it is zero.
func (b *Builder) branchUnless(cond frontend.Expr, label int) error {
	r, err := b.buildExpression(cond)
	if err != nil {
		return err
	}
	b.emit(Inst{Op: OpUnless, Lhs: r, Rhs: label})
	return nil
}

// buildExpression returns the register holding the value of expr.
func (b *Builder) buildExpression(expr frontend.Expr) (int, error) {
	switch e := expr.(type) {
	case *frontend.Num:
		r := b.newReg()
		b.emit(Inst{Op: OpImm, Lhs: r, Rhs: int(e.Value)})
		return r, nil

	case *frontend.LVar:
		r := b.buildAddress(e)
		b.emit(Inst{Op: OpLoad, Lhs: r, Rhs: r, Width: Word})
		return r, nil

	case *frontend.Neg:
		zero := b.newReg()
		b.emit(Inst{Op: OpImm, Lhs: zero, Rhs: 0})
		x, err := b.buildExpression(e.X)
		if err != nil {
			return None, err
		}
		b.emit(Inst{Op: OpSub, Lhs: zero, Rhs: x})
		return zero, nil

	case *frontend.BinOp:
		op, err := b.opFromFrontend(e.Op)
		if err != nil {
			return None, err
		}
		left, err := b.buildExpression(e.Left)
		if err != nil {
			return None, err
		}
		right, err := b.buildExpression(e.Right)
		if err != nil {
			return None, err
		}
		b.emit(Inst{Op: op, Lhs: left, Rhs: right})
		return left, nil

	case *frontend.Assign:
		value, err := b.buildExpression(e.Value)
		if err != nil {
			return None, err
		}
		addr := b.buildAddress(e.Target)
		b.emit(Inst{Op: OpStore, Lhs: addr, Rhs: value, Width: Word})
		return value, nil

	case *frontend.Call:
		args := make([]int, 0, len(e.Args))
		for _, argExpr := range e.Args {
			arg, err := b.buildExpression(argExpr)
			if err != nil {
				return None, err
			}
			args = append(args, arg)
		}
		r := b.newReg()
		b.emit(Inst{Op: OpCall, Lhs: r, Rhs: None, Name: e.Func, Args: args})
		return r, nil

	default:
		return None, fmt.Errorf("unsupported expression type: %T", expr)
	}
}

// buildAddress materializes the frame address of v in a fresh register.
func (b *Builder) buildAddress(v *frontend.LVar) int {
	r := b.newReg()
	b.emit(Inst{Op: OpBprel, Lhs: r, Rhs: v.Offset})
	return r
}

func (b *Builder) emit(inst Inst) {
	b.currentFn.Code = append(b.currentFn.Code, inst)
}

func (b *Builder) label(id int) {
	b.emit(Inst{Op: OpLabel, Lhs: id, Rhs: None})
}

func (b *Builder) jmp(id int) {
	b.emit(Inst{Op: OpJmp, Lhs: id, Rhs: None})
}

func (b *Builder) newReg() int {
	r := b.regID
	b.regID++
	return r
}

func (b *Builder) newLabel() int {
	l := b.labelID
	b.labelID++
	return l
}

func (b *Builder) opFromFrontend(op frontend.Operator) (Op, error) {
	switch op {
	case frontend.Add:
		return OpAdd, nil
	case frontend.Sub:
		return OpSub, nil
	case frontend.Mul:
		return OpMul, nil
	case frontend.Div:
		return OpDiv, nil
	case frontend.Eq:
		return OpEq, nil
	case frontend.Ne:
		return OpNe, nil
	case frontend.Lt:
		return OpLt, nil
	case frontend.Le:
		return OpLe, nil
	}
	return OpAdd, fmt.Errorf("unsupported operator: %v", op)
}
