// Package frontend - Lexer for the minicc source language
// Design: Hand-written scanner over bytes, one pass, stops at the first bad character
package frontend

import (
	"fmt"
	"strconv"
)

type TokenType int

const (
	EOF TokenType = iota

	// Literals
	NUM
	IDENT

	// Keywords
	RETURN
	IF
	ELSE
	WHILE
	FOR

	// Operators
	PLUS
	MINUS
	STAR
	SLASH
	ASSIGN // =
	EQ     // ==
	NE     // !=
	LT     // <
	LE     // <=
	GT     // >
	GE     // >=

	// Delimiters
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	SEMI
	COMMA
)

var tokenNames = [...]string{
	EOF:    "end of input",
	NUM:    "number",
	IDENT:  "identifier",
	RETURN: "'return'",
	IF:     "'if'",
	ELSE:   "'else'",
	WHILE:  "'while'",
	FOR:    "'for'",
	PLUS:   "'+'",
	MINUS:  "'-'",
	STAR:   "'*'",
	SLASH:  "'/'",
	ASSIGN: "'='",
	EQ:     "'=='",
	NE:     "'!='",
	LT:     "'<'",
	LE:     "'<='",
	GT:     "'>'",
	GE:     "'>='",
	LPAREN: "'('",
	RPAREN: "')'",
	LBRACE: "'{'",
	RBRACE: "'}'",
	SEMI:   "';'",
	COMMA:  "','",
}

func (t TokenType) String() string {
	if t >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Keywords take priority over identifiers with the same text.
var keywords = map[string]TokenType{
	"return": RETURN,
	"if":     IF,
	"else":   ELSE,
	"while":  WHILE,
	"for":    FOR,
}

type Token struct {
	Type   TokenType
	Lexeme string
	Val    int64 // NUM only
	Line   int
	Col    int
}

func (t Token) String() string {
	switch t.Type {
	case NUM, IDENT:
		return fmt.Sprintf("%s %q", t.Type, t.Lexeme)
	default:
		return t.Type.String()
	}
}

type Lexer struct {
	source []byte
	start  int
	pos    int
	line   int
	col    int

	startLine int
	startCol  int
}

func NewLexer(source string) *Lexer {
	return &Lexer{
		source: []byte(source),
		line:   1,
		col:    1,
	}
}

// Lex tokenizes src. The result always ends with exactly one EOF token.
func Lex(src string) ([]Token, error) {
	return NewLexer(src).All()
}

// All scans the remaining input. On error no tokens are returned.
func (l *Lexer) All() ([]Token, error) {
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) Next() (Token, error) {
	l.skipWhitespace()

	l.start = l.pos
	l.startLine = l.line
	l.startCol = l.col

	if l.isAtEnd() {
		return l.makeToken(EOF), nil
	}

	c := l.advance()

	switch c {
	case '+':
		return l.makeToken(PLUS), nil
	case '-':
		return l.makeToken(MINUS), nil
	case '*':
		return l.makeToken(STAR), nil
	case '/':
		return l.makeToken(SLASH), nil
	case '(':
		return l.makeToken(LPAREN), nil
	case ')':
		return l.makeToken(RPAREN), nil
	case '{':
		return l.makeToken(LBRACE), nil
	case '}':
		return l.makeToken(RBRACE), nil
	case ';':
		return l.makeToken(SEMI), nil
	case ',':
		return l.makeToken(COMMA), nil
	case '=':
		if l.match('=') {
			return l.makeToken(EQ), nil
		}
		return l.makeToken(ASSIGN), nil
	case '!':
		if l.match('=') {
			return l.makeToken(NE), nil
		}
	case '<':
		if l.match('=') {
			return l.makeToken(LE), nil
		}
		return l.makeToken(LT), nil
	case '>':
		if l.match('=') {
			return l.makeToken(GE), nil
		}
		return l.makeToken(GT), nil
	}

	if isDigit(c) {
		return l.number()
	}

	if isAlpha(c) {
		return l.identifier(), nil
	}

	return Token{}, l.error(fmt.Sprintf("unexpected character %q", c))
}

func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() {
		switch l.peek() {
		case ' ', '\t', '\r':
			l.advance()
		case '\n':
			l.advance()
			l.line++
			l.col = 1
		default:
			return
		}
	}
}

func (l *Lexer) number() (Token, error) {
	for isDigit(l.peek()) {
		l.advance()
	}
	tok := l.makeToken(NUM)
	val, err := strconv.ParseInt(tok.Lexeme, 10, 64)
	if err != nil {
		return Token{}, l.error(fmt.Sprintf("integer literal %s out of range", tok.Lexeme))
	}
	tok.Val = val
	return tok, nil
}

func (l *Lexer) identifier() Token {
	for isAlpha(l.peek()) || isDigit(l.peek()) {
		l.advance()
	}

	text := string(l.source[l.start:l.pos])
	if kw, ok := keywords[text]; ok {
		return l.makeToken(kw)
	}

	return l.makeToken(IDENT)
}

func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) advance() byte {
	c := l.source[l.pos]
	l.pos++
	l.col++
	return c
}

func (l *Lexer) match(expected byte) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.pos++
	l.col++
	return true
}

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.source)
}

func (l *Lexer) makeToken(typ TokenType) Token {
	return Token{
		Type:   typ,
		Lexeme: string(l.source[l.start:l.pos]),
		Line:   l.startLine,
		Col:    l.startCol,
	}
}

func (l *Lexer) error(msg string) *Error {
	return &Error{
		Kind: LexError,
		Line: l.startLine,
		Col:  l.startCol,
		Msg:  msg,
	}
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isAlpha(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_'
}
