// Package frontend - Recursive descent parser
// Design: Predictive parsing, one token of lookahead, no backtracking, stop at
// the first error
package frontend

import (
	"fmt"

	"github.com/GriffinCanCode/minicc/pkg/logger"
)

type Parser struct {
	tokens []Token
	pos    int

	// Per-function variable table, reset by function().
	locals []*Local
	byName map[string]*Local
}

// NewParser takes the output of Lex; the last token must be EOF.
func NewParser(tokens []Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != EOF {
		tokens = append(tokens, Token{Type: EOF})
	}
	return &Parser{tokens: tokens}
}

// Parse builds one FuncDecl per top-level function definition.
func Parse(tokens []Token) (*Program, error) {
	return NewParser(tokens).Parse()
}

// ParseSource lexes and parses src.
func ParseSource(src string) (*Program, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	logger.LogLexing(len(toks))
	return Parse(toks)
}

func (p *Parser) Parse() (*Program, error) {
	prog := &Program{}

	for !p.check(EOF) {
		fn, err := p.function()
		if err != nil {
			return nil, err
		}
		prog.Funcs = append(prog.Funcs, fn)
	}

	logger.LogParsing(len(prog.Funcs))
	return prog, nil
}

// function = ident "(" (ident ("," ident)*)? ")" "{" stmt* "}"
func (p *Parser) function() (*FuncDecl, error) {
	p.locals = nil
	p.byName = make(map[string]*Local)

	nameTok, err := p.expect(IDENT, "function name")
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(LPAREN, "'(' after function name"); err != nil {
		return nil, err
	}

	var params []*LVar
	if !p.check(RPAREN) {
		for {
			tok, err := p.expect(IDENT, "parameter name")
			if err != nil {
				return nil, err
			}
			if _, dup := p.byName[tok.Lexeme]; dup {
				return nil, p.errorAt(tok, fmt.Sprintf("duplicate parameter %q", tok.Lexeme))
			}
			if len(params) == MaxParams {
				return nil, p.errorAt(tok, fmt.Sprintf("too many parameters (max %d)", MaxParams))
			}
			v, err := p.variable(tok)
			if err != nil {
				return nil, err
			}
			params = append(params, v)

			if !p.match(COMMA) {
				break
			}
		}
	}

	if _, err := p.expect(RPAREN, "')' after parameters"); err != nil {
		return nil, err
	}

	if _, err := p.expect(LBRACE, "'{' before function body"); err != nil {
		return nil, err
	}

	body, err := p.blockRest()
	if err != nil {
		return nil, err
	}

	fn := &FuncDecl{
		Name:      nameTok.Lexeme,
		Params:    params,
		Body:      body,
		Locals:    p.locals,
		StackSize: StackSize,
	}
	logger.Debug("Parsed function", "name", fn.Name, "params", len(params), "locals", len(p.locals))
	return fn, nil
}

// blockRest parses stmt* "}" after the opening brace has been consumed.
func (p *Parser) blockRest() (*Block, error) {
	block := &Block{}
	for !p.match(RBRACE) {
		if p.check(EOF) {
			return nil, p.errorExpected("'}'")
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	return block, nil
}

// statement = "return" expr ";"
//
//	| "if" "(" expr ")" statement ("else" statement)?
//	| "while" "(" expr ")" statement
//	| "for" "(" expr? ";" expr? ";" expr? ")" statement
//	| "{" statement* "}"
//	| expr ";"
func (p *Parser) statement() (Stmt, error) {
	switch {
	case p.match(RETURN):
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMI, "';' after return value"); err != nil {
			return nil, err
		}
		return &Return{Value: value}, nil

	case p.match(IF):
		cond, err := p.condition()
		if err != nil {
			return nil, err
		}
		then, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmt := &If{Cond: cond, Then: then}
		if p.match(ELSE) {
			if stmt.Else, err = p.statement(); err != nil {
				return nil, err
			}
		}
		return stmt, nil

	case p.match(WHILE):
		cond, err := p.condition()
		if err != nil {
			return nil, err
		}
		body, err := p.statement()
		if err != nil {
			return nil, err
		}
		return &While{Cond: cond, Body: body}, nil

	case p.match(FOR):
		return p.forStatement()

	case p.match(LBRACE):
		return p.blockRest()
	}

	x, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMI, "';' after expression"); err != nil {
		return nil, err
	}
	return &ExprStmt{X: x}, nil
}

// condition = "(" expr ")"
func (p *Parser) condition() (Expr, error) {
	if _, err := p.expect(LPAREN, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, "')' after condition"); err != nil {
		return nil, err
	}
	return cond, nil
}

func (p *Parser) forStatement() (Stmt, error) {
	if _, err := p.expect(LPAREN, "'(' after 'for'"); err != nil {
		return nil, err
	}

	stmt := &For{}
	var err error
	if stmt.Init, err = p.optionalExpr(SEMI, "';' after for initializer"); err != nil {
		return nil, err
	}
	if stmt.Cond, err = p.optionalExpr(SEMI, "';' after for condition"); err != nil {
		return nil, err
	}
	if stmt.Post, err = p.optionalExpr(RPAREN, "')' after for clauses"); err != nil {
		return nil, err
	}
	if stmt.Body, err = p.statement(); err != nil {
		return nil, err
	}
	return stmt, nil
}

// optionalExpr parses expr? followed by the terminator.
func (p *Parser) optionalExpr(term TokenType, what string) (Expr, error) {
	if p.match(term) {
		return nil, nil
	}
	x, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(term, what); err != nil {
		return nil, err
	}
	return x, nil
}

func (p *Parser) expression() (Expr, error) {
	return p.assign()
}

// assign = equality ("=" assign)?
func (p *Parser) assign() (Expr, error) {
	start := p.current()
	lhs, err := p.equality()
	if err != nil {
		return nil, err
	}

	if !p.match(ASSIGN) {
		return lhs, nil
	}

	target, ok := lhs.(*LVar)
	if !ok {
		return nil, p.errorAt(start, "invalid assignment target")
	}
	rhs, err := p.assign()
	if err != nil {
		return nil, err
	}
	return &Assign{Target: target, Value: rhs}, nil
}

// equality = relational (("==" | "!=") relational)*
func (p *Parser) equality() (Expr, error) {
	expr, err := p.relational()
	if err != nil {
		return nil, err
	}

	for p.check(EQ) || p.check(NE) {
		op := Eq
		if p.advance().Type == NE {
			op = Ne
		}
		right, err := p.relational()
		if err != nil {
			return nil, err
		}
		expr = &BinOp{Left: expr, Op: op, Right: right}
	}

	return expr, nil
}

// relational = additive (("<" | "<=" | ">" | ">=") additive)*
func (p *Parser) relational() (Expr, error) {
	expr, err := p.additive()
	if err != nil {
		return nil, err
	}

	for p.check(LT) || p.check(LE) || p.check(GT) || p.check(GE) {
		tok := p.advance()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case LT:
			expr = &BinOp{Left: expr, Op: Lt, Right: right}
		case LE:
			expr = &BinOp{Left: expr, Op: Le, Right: right}
		case GT:
			expr = &BinOp{Left: right, Op: Lt, Right: expr}
		case GE:
			expr = &BinOp{Left: right, Op: Le, Right: expr}
		}
	}

	return expr, nil
}

// additive = multiplicative (("+" | "-") multiplicative)*
func (p *Parser) additive() (Expr, error) {
	expr, err := p.multiplicative()
	if err != nil {
		return nil, err
	}

	for p.check(PLUS) || p.check(MINUS) {
		op := p.operatorFromToken(p.advance().Type)
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		expr = &BinOp{Left: expr, Op: op, Right: right}
	}

	return expr, nil
}

// multiplicative = unary (("*" | "/") unary)*
func (p *Parser) multiplicative() (Expr, error) {
	expr, err := p.unary()
	if err != nil {
		return nil, err
	}

	for p.check(STAR) || p.check(SLASH) {
		op := p.operatorFromToken(p.advance().Type)
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		expr = &BinOp{Left: expr, Op: op, Right: right}
	}

	return expr, nil
}

// unary = ("+" | "-")? primary
func (p *Parser) unary() (Expr, error) {
	if p.match(PLUS) {
		return p.primary()
	}
	if p.match(MINUS) {
		x, err := p.primary()
		if err != nil {
			return nil, err
		}
		return &Neg{X: x}, nil
	}
	return p.primary()
}

// primary = num | ident ("(" (expr ("," expr)*)? ")")? | "(" expr ")"
func (p *Parser) primary() (Expr, error) {
	tok := p.current()

	switch tok.Type {
	case NUM:
		p.advance()
		return &Num{Value: tok.Val}, nil

	case IDENT:
		p.advance()
		if p.match(LPAREN) {
			return p.call(tok)
		}
		return p.variable(tok)

	case LPAREN:
		p.advance()
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	return nil, p.errorExpected("expression")
}

func (p *Parser) call(name Token) (Expr, error) {
	call := &Call{Func: name.Lexeme}
	if p.match(RPAREN) {
		return call, nil
	}
	for {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if !p.match(COMMA) {
			break
		}
	}
	if len(call.Args) > MaxParams {
		return nil, p.errorAt(name, fmt.Sprintf("too many arguments to %s (max %d)", name.Lexeme, MaxParams))
	}
	if _, err := p.expect(RPAREN, "')' after arguments"); err != nil {
		return nil, err
	}
	return call, nil
}

// variable resolves an identifier to its frame slot, allocating the next
// slot on first reference.
func (p *Parser) variable(tok Token) (*LVar, error) {
	name := tok.Lexeme
	if local, ok := p.byName[name]; ok {
		return &LVar{Name: name, Offset: local.Offset}, nil
	}

	if len(p.locals) == MaxLocals {
		return nil, p.errorAt(tok, fmt.Sprintf("too many local variables (max %d)", MaxLocals))
	}

	offset := 8
	if n := len(p.locals); n > 0 {
		offset = p.locals[n-1].Offset + 8
	}
	local := &Local{Name: name, Len: len(name), Offset: offset}
	p.locals = append(p.locals, local)
	p.byName[name] = local

	return &LVar{Name: name, Offset: offset}, nil
}

func (p *Parser) operatorFromToken(tok TokenType) Operator {
	switch tok {
	case PLUS:
		return Add
	case MINUS:
		return Sub
	case STAR:
		return Mul
	case SLASH:
		return Div
	}
	return Add
}

func (p *Parser) current() Token {
	return p.tokens[p.pos]
}

func (p *Parser) check(typ TokenType) bool {
	return p.tokens[p.pos].Type == typ
}

// advance never moves past the final EOF token.
func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) match(typ TokenType) bool {
	if p.check(typ) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(typ TokenType, what string) (Token, error) {
	if p.check(typ) {
		return p.advance(), nil
	}
	return Token{}, p.errorExpected(what)
}

func (p *Parser) errorExpected(what string) *Error {
	tok := p.current()
	return p.errorAt(tok, fmt.Sprintf("expected %s, found %s", what, tok))
}

func (p *Parser) errorAt(tok Token, msg string) *Error {
	return &Error{
		Kind: SyntaxError,
		Line: tok.Line,
		Col:  tok.Col,
		Msg:  msg,
	}
}
