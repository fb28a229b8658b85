package compiler

import (
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/GriffinCanCode/minicc/pkg/codegen/regalloc"
	"github.com/GriffinCanCode/minicc/pkg/frontend"
	"github.com/GriffinCanCode/minicc/pkg/ir"
	"github.com/GriffinCanCode/minicc/pkg/linker"
)

var programs = []struct {
	name string
	src  string
	want int64
}{
	{"literal", "main() { return 42; }", 42},
	{"precedence", "main() { return 1+2*3; }", 7},
	{"parens", "main() { return (1+2)*3; }", 9},
	{"left assoc", "main() { return 10-2-3; }", 5},
	{"division", "main() { return 100/7; }", 14},
	{"unary minus", "main() { return -2+5; }", 3},
	{"chained assign", "main() { a=b=3; return a; }", 3},
	{"reassign", "main() { a=1; a=a+1; return a; }", 2},
	{"if falls through", "main() { if (0) return 1; return 2; }", 2},
	{"if else", "main() { if (1) return 1; else return 2; }", 1},
	{"compare", "main() { return (3>2) + (2>=2) + (1!=1); }", 2},
	{"while", "count(n) { while (n<5) n=n+1; return n; } main() { return count(0); }", 5},
	{"for", "f(i) { for (; i<5; i=i+1) i; return i; } main() { return f(2); }", 5},
	{"falls off end", "main() { 7; }", 0},
	{"call", "twice(x) { return x+x; } main() { return twice(21); }", 42},
	{"recursion", "fact(n) { if (n<=1) return 1; return n*fact(n-1); } main() { return fact(5); }", 120},
}

// These need more registers than the code generator has, so they only run
// through the interpreter.
var wideIRPrograms = []struct {
	name string
	src  string
	want int64
}{
	{"local loop", "main() { i=0; while (i<5) i=i+1; return i; }", 5},
	{"sum", "main() { s=0; for (i=1; i<=5; i=i+1) s=s+i; return s; }", 15},
	{"fib", "fib(n) { if (n<2) return n; return fib(n-1)+fib(n-2); } main() { return fib(10); }", 55},
}

func TestCompileIRSemantics(t *testing.T) {
	for _, tt := range append(programs, wideIRPrograms...) {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := CompileIR(tt.src)
			if err != nil {
				t.Fatalf("CompileIR: %v", err)
			}
			got, err := ir.Interpret(prog, "main")
			if err != nil {
				t.Fatalf("Interpret: %v", err)
			}
			if got != tt.want {
				t.Errorf("%s = %d, want %d", tt.src, got, tt.want)
			}
		})
	}
}

func TestCompileProducesValidAssembly(t *testing.T) {
	for _, tt := range programs {
		t.Run(tt.name, func(t *testing.T) {
			asm, err := CompileWith(tt.src, Options{Validate: true})
			if err != nil {
				t.Fatalf("CompileWith: %v", err)
			}
			if !strings.HasPrefix(asm, ".intel_syntax noprefix\n") {
				t.Errorf("missing syntax header:\n%s", asm)
			}
			if !strings.Contains(asm, ".global main\n") {
				t.Errorf("main not exported:\n%s", asm)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		prefix string
		kind   frontend.ErrorKind
	}{
		{"lex", "main() { return 1 $ 2; }", "lex: ", frontend.LexError},
		{"parse", "main() { return 1 }", "parse: ", frontend.SyntaxError},
		{"assign target", "main() { 1 = 2; }", "parse: ", frontend.SyntaxError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), tt.prefix) {
				t.Errorf("error %q should start with %q", err, tt.prefix)
			}
			var fe *frontend.Error
			if !errors.As(err, &fe) {
				t.Fatalf("expected *frontend.Error in chain, got %T", err)
			}
			if fe.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", fe.Kind, tt.kind)
			}
		})
	}
}

func TestCompileRegisterCapacity(t *testing.T) {
	_, err := Compile("main() { return 1+(2+(3+(4+(5+(6+(7+8)))))); }")
	if !errors.Is(err, regalloc.ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "codegen: ") {
		t.Errorf("error should carry the codegen stage: %v", err)
	}
}

func TestCompileEmptyProgram(t *testing.T) {
	asm, err := Compile("")
	if err != nil {
		t.Fatal(err)
	}
	if asm != ".intel_syntax noprefix\n" {
		t.Errorf("unexpected output for empty program: %q", asm)
	}
}

// TestCompileAndRun assembles the output natively and checks exit status
// against the interpreter.
func TestCompileAndRun(t *testing.T) {
	if runtime.GOARCH != "amd64" || runtime.GOOS != "linux" {
		t.Skipf("native execution needs linux/amd64, have %s/%s", runtime.GOOS, runtime.GOARCH)
	}
	if !linker.Available() {
		t.Skipf("%s not found on PATH", linker.Driver())
	}

	dir := t.TempDir()
	for _, tt := range programs {
		t.Run(tt.name, func(t *testing.T) {
			asm, err := Compile(tt.src)
			if err != nil {
				t.Fatal(err)
			}
			exe, err := linker.BuildExecutable(asm, dir, strings.ReplaceAll(tt.name, " ", "_"))
			if err != nil {
				t.Fatalf("link:\n%s\n%v", asm, err)
			}
			code, err := linker.Run(exe)
			if err != nil {
				t.Fatal(err)
			}
			if want := int(tt.want & 0xff); code != want {
				t.Errorf("exit status = %d, want %d\n%s", code, want, asm)
			}
		})
	}
}

func BenchmarkCompile(b *testing.B) {
	src := "fact(n) { if (n<=1) return 1; return n*fact(n-1); } main() { return fact(10); }"
	for i := 0; i < b.N; i++ {
		if _, err := Compile(src); err != nil {
			b.Fatal(err)
		}
	}
}
