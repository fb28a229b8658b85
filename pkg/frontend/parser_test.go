package frontend

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func parseFunc(t *testing.T, src string) *FuncDecl {
	t.Helper()
	prog, err := ParseSource(src)
	if err != nil {
		t.Fatalf("ParseSource(%q) error: %v", src, err)
	}
	if len(prog.Funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(prog.Funcs))
	}
	return prog.Funcs[0]
}

// body wraps statements in a main function.
func body(stmts string) string {
	return "main() { " + stmts + " }"
}

func returnExpr(t *testing.T, src string) Expr {
	t.Helper()
	fn := parseFunc(t, body("return "+src+";"))
	ret, ok := fn.Body.Stmts[0].(*Return)
	if !ok {
		t.Fatalf("expected *Return, got %T", fn.Body.Stmts[0])
	}
	return ret.Value
}

func num(v int64) *Num { return &Num{Value: v} }

func bin(l Expr, op Operator, r Expr) *BinOp { return &BinOp{Left: l, Op: op, Right: r} }

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want Expr
	}{
		{"42", num(42)},
		{"1+2*3", bin(num(1), Add, bin(num(2), Mul, num(3)))},
		{"(1+2)*3", bin(bin(num(1), Add, num(2)), Mul, num(3))},
		{"10-2-3", bin(bin(num(10), Sub, num(2)), Sub, num(3))},
		{"8/4/2", bin(bin(num(8), Div, num(4)), Div, num(2))},
		{"-3+5", bin(&Neg{X: num(3)}, Add, num(5))},
		{"+3", num(3)},
		{"1<2==1", bin(bin(num(1), Lt, num(2)), Eq, num(1))},
		{"1+1!=2", bin(bin(num(1), Add, num(1)), Ne, num(2))},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := returnExpr(t, tt.src)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parse %q: got %#v, want %#v", tt.src, got, tt.want)
			}
		})
	}
}

func TestParseComparisonNormalization(t *testing.T) {
	tests := []struct {
		src  string
		norm string
	}{
		{"1>2", "2<1"},
		{"1>=2", "2<=1"},
		{"1+2>3*4", "3*4<1+2"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := returnExpr(t, tt.src)
			want := returnExpr(t, tt.norm)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("%q parsed as %#v, want same tree as %q (%#v)", tt.src, got, tt.norm, want)
			}
		})
	}
}

func TestParseLocals(t *testing.T) {
	t.Run("chained assignment", func(t *testing.T) {
		fn := parseFunc(t, body("a=b=3; return a;"))

		want := []*Local{
			{Name: "a", Len: 1, Offset: 8},
			{Name: "b", Len: 1, Offset: 16},
		}
		if !reflect.DeepEqual(fn.Locals, want) {
			t.Errorf("locals = %+v, want %+v", fn.Locals, want)
		}

		stmt := fn.Body.Stmts[0].(*ExprStmt)
		outer, ok := stmt.X.(*Assign)
		if !ok {
			t.Fatalf("expected *Assign, got %T", stmt.X)
		}
		inner, ok := outer.Value.(*Assign)
		if !ok {
			t.Fatalf("assignment is not right associative: %#v", outer)
		}
		if outer.Target.Offset != 8 || inner.Target.Offset != 16 {
			t.Errorf("unexpected offsets: outer=%d inner=%d", outer.Target.Offset, inner.Target.Offset)
		}
	})

	t.Run("re-reference reuses offset", func(t *testing.T) {
		fn := parseFunc(t, body("a=1; a=a+1; return a;"))
		if len(fn.Locals) != 1 || fn.Locals[0].Offset != 8 {
			t.Errorf("expected single local at offset 8, got %+v", fn.Locals)
		}
	})

	t.Run("encounter order", func(t *testing.T) {
		fn := parseFunc(t, body("return z + y * x;"))
		var names []string
		for _, l := range fn.Locals {
			names = append(names, l.Name)
		}
		if strings.Join(names, ",") != "z,y,x" {
			t.Errorf("locals in order %v, want z,y,x", names)
		}
	})

	t.Run("tables do not leak across functions", func(t *testing.T) {
		prog, err := ParseSource("f() { a = 1; b = 2; return b; } g() { b = 1; return b; }")
		if err != nil {
			t.Fatal(err)
		}
		g := prog.Funcs[1]
		if len(g.Locals) != 1 || g.Locals[0].Offset != 8 {
			t.Errorf("g locals = %+v, want b at offset 8", g.Locals)
		}
	})

	t.Run("parameters first", func(t *testing.T) {
		fn := parseFunc(t, "add(x, y) { z = x + y; return z; }")
		if len(fn.Params) != 2 {
			t.Fatalf("expected 2 params, got %d", len(fn.Params))
		}
		if fn.Params[0].Offset != 8 || fn.Params[1].Offset != 16 {
			t.Errorf("param offsets = %d, %d", fn.Params[0].Offset, fn.Params[1].Offset)
		}
		if fn.Locals[2].Name != "z" || fn.Locals[2].Offset != 24 {
			t.Errorf("unexpected third local %+v", fn.Locals[2])
		}
		if fn.StackSize != StackSize {
			t.Errorf("StackSize = %d, want %d", fn.StackSize, StackSize)
		}
	})
}

func TestParseStatements(t *testing.T) {
	t.Run("if without else", func(t *testing.T) {
		fn := parseFunc(t, body("if (0) return 1; return 2;"))
		stmt, ok := fn.Body.Stmts[0].(*If)
		if !ok {
			t.Fatalf("expected *If, got %T", fn.Body.Stmts[0])
		}
		if stmt.Else != nil {
			t.Errorf("unexpected else branch %#v", stmt.Else)
		}
		if len(fn.Body.Stmts) != 2 {
			t.Errorf("expected 2 statements, got %d", len(fn.Body.Stmts))
		}
	})

	t.Run("if else", func(t *testing.T) {
		fn := parseFunc(t, body("if (1) return 1; else return 2;"))
		stmt := fn.Body.Stmts[0].(*If)
		if _, ok := stmt.Else.(*Return); !ok {
			t.Errorf("expected else *Return, got %T", stmt.Else)
		}
	})

	t.Run("dangling else binds inner", func(t *testing.T) {
		fn := parseFunc(t, body("if (1) if (0) return 1; else return 2; return 3;"))
		outer := fn.Body.Stmts[0].(*If)
		if outer.Else != nil {
			t.Errorf("else attached to outer if")
		}
		inner := outer.Then.(*If)
		if inner.Else == nil {
			t.Errorf("else not attached to inner if")
		}
	})

	t.Run("nested block", func(t *testing.T) {
		fn := parseFunc(t, body("{ a = 1; { b = 2; } } return a;"))
		block, ok := fn.Body.Stmts[0].(*Block)
		if !ok || len(block.Stmts) != 2 {
			t.Fatalf("unexpected block %#v", fn.Body.Stmts[0])
		}
	})

	t.Run("while", func(t *testing.T) {
		fn := parseFunc(t, body("while (i < 10) i = i + 1; return i;"))
		if _, ok := fn.Body.Stmts[0].(*While); !ok {
			t.Errorf("expected *While, got %T", fn.Body.Stmts[0])
		}
	})

	t.Run("for with empty clauses", func(t *testing.T) {
		fn := parseFunc(t, body("for (;;) return 1;"))
		loop, ok := fn.Body.Stmts[0].(*For)
		if !ok {
			t.Fatalf("expected *For, got %T", fn.Body.Stmts[0])
		}
		if loop.Init != nil || loop.Cond != nil || loop.Post != nil {
			t.Errorf("expected empty clauses, got %#v", loop)
		}
	})

	t.Run("for with all clauses", func(t *testing.T) {
		fn := parseFunc(t, body("for (i = 0; i < 3; i = i + 1) s = s + i; return s;"))
		loop := fn.Body.Stmts[0].(*For)
		if loop.Init == nil || loop.Cond == nil || loop.Post == nil {
			t.Errorf("missing clause in %#v", loop)
		}
	})

	t.Run("call", func(t *testing.T) {
		got := returnExpr(t, "f(1, a+2)")
		call, ok := got.(*Call)
		if !ok {
			t.Fatalf("expected *Call, got %T", got)
		}
		if call.Func != "f" || len(call.Args) != 2 {
			t.Errorf("unexpected call %#v", call)
		}
	})

	t.Run("call without arguments", func(t *testing.T) {
		call := returnExpr(t, "f()").(*Call)
		if len(call.Args) != 0 {
			t.Errorf("expected no args, got %d", len(call.Args))
		}
	})
}

func TestParseMultipleFunctions(t *testing.T) {
	prog, err := ParseSource("one() { return 1; }\ntwo(a) { return a; }\nmain() { return 0; }")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, fn := range prog.Funcs {
		names = append(names, fn.Name)
	}
	if strings.Join(names, " ") != "one two main" {
		t.Errorf("functions = %v", names)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"missing semicolon", body("return 1"), "expected ';' after return value, found '}'"},
		{"unmatched paren", body("return (1+2;"), "expected ')'"},
		{"missing close brace", "main() { return 1;", "expected '}', found end of input"},
		{"missing condition paren", body("if 1 return 1;"), "expected '('"},
		{"empty expression", body("return ;"), "expected expression, found ';'"},
		{"invalid assignment target", body("1 = 2;"), "invalid assignment target"},
		{"assign to sum", body("a + b = 2;"), "invalid assignment target"},
		{"statement outside function", "return 1;", "expected function name"},
		{"duplicate parameter", "f(a, a) { return a; }", "duplicate parameter"},
		{"too many parameters", "f(a, b, c, d, e, g, h) { return a; }", "too many parameters"},
		{"too many arguments", body("return f(1,2,3,4,5,6,7);"), "too many arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSource(tt.src)
			if err == nil {
				t.Fatalf("expected error for %q", tt.src)
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if perr.Kind != SyntaxError {
				t.Errorf("kind = %v, want syntax error", perr.Kind)
			}
			if !strings.Contains(perr.Msg, tt.wantMsg) {
				t.Errorf("message %q does not contain %q", perr.Msg, tt.wantMsg)
			}
		})
	}
}

func TestParseTooManyLocals(t *testing.T) {
	var sb strings.Builder
	for i := 0; i <= MaxLocals; i++ {
		sb.WriteString("v")
		sb.WriteString(strings.Repeat("x", i))
		sb.WriteString(" = 1; ")
	}

	_, err := ParseSource(body(sb.String()))
	if err == nil || !strings.Contains(err.Error(), "too many local variables") {
		t.Fatalf("expected too many locals error, got %v", err)
	}
}
