package frontend

import (
	"fmt"
	"strings"
)

type ErrorKind int

const (
	LexError ErrorKind = iota
	SyntaxError
)

func (k ErrorKind) String() string {
	switch k {
	case LexError:
		return "lexical error"
	case SyntaxError:
		return "syntax error"
	}
	return "error"
}

// Error is a fatal frontend diagnostic. Line and Col are 1-based.
type Error struct {
	Kind ErrorKind
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", e.Line, e.Col, e.Kind, e.Msg)
}

// Snippet renders the offending source line with a caret under the column.
func (e *Error) Snippet(src string) string {
	lines := strings.Split(src, "\n")
	if e.Line < 1 || e.Line > len(lines) {
		return e.Error() + "\n"
	}
	line := strings.TrimRight(lines[e.Line-1], "\r")
	col := e.Col - 1
	if col < 0 {
		col = 0
	}
	if col > len(line) {
		col = len(line)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "error: %s: %s\n", e.Kind, e.Msg)
	fmt.Fprintf(&sb, "%3d | %s\n", e.Line, line)
	fmt.Fprintf(&sb, "    | %s^\n", strings.Repeat(" ", col))
	return sb.String()
}
