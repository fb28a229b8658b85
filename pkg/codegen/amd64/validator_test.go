// Package amd64 - Tests for assembly validator
package amd64

import (
	"strings"
	"testing"

	"github.com/GriffinCanCode/minicc/pkg/ir"
)

func TestValidatorValidCode(t *testing.T) {
	validAsm := `
.intel_syntax noprefix
.global test
test:
	push rbp
	mov rbp, rsp
	mov rax, rdi
	add rax, rsi
	pop rbp
	ret
`

	validator := NewValidator()
	err := validator.Validate(validAsm)
	if err != nil {
		t.Errorf("Valid assembly failed validation: %v", err)
	}
}

func TestValidatorErrors(t *testing.T) {
	tests := []struct {
		name string
		asm  string
		want string
	}{
		{
			name: "invalid register",
			asm:  "test:\n\tmov rax, rzz\n\tret\n",
			want: "invalid register: rzz",
		},
		{
			name: "invalid register in memory operand",
			asm:  "test:\n\tmov rax, [rpp-8]\n\tret\n",
			want: "invalid register: rpp",
		},
		{
			name: "malformed instruction",
			asm:  "test:\n\tmovq rax, rdi\n\tret\n",
			want: "malformed instruction",
		},
		{
			name: "label with spaces",
			asm:  "bad label:\n\tret\n",
			want: "invalid label format",
		},
		{
			name: "memory to memory",
			asm:  "test:\n\tmov [rdi], [rsi]\n\tret\n",
			want: "memory-to-memory",
		},
		{
			name: "unbalanced stack",
			asm:  "test:\n\tpush rbx\n\tpush r12\n\tmov rax, 42\n\tpop rbx\n\tret\n",
			want: "not restored",
		},
		{
			name: "callee-saved restored out of order",
			asm:  "test:\n\tpush rbx\n\tpush r12\n\tpop rbx\n\tpop r12\n\tret\n",
			want: "callee-saved register r12 restored into rbx",
		},
		{
			name: "stack underflow",
			asm:  "test:\n\tpop rbx\n\tret\n",
			want: "stack underflow",
		},
		{
			name: "division without cqo",
			asm:  "test:\n\tmov rax, rdi\n\tidiv rsi\n\tret\n",
			want: "idiv without preceding cqo",
		},
		{
			name: "undefined label",
			asm:  "test:\n\tjmp .Ltest_3\n\tret\n",
			want: "undefined label: .Ltest_3",
		},
		{
			name: "duplicate label",
			asm:  "test:\n.Ltest_0:\n.Ltest_0:\n\tret\n",
			want: "label .Ltest_0 already defined",
		},
		{
			name: "invalid scale factor",
			asm:  "test:\n\tmov rcx, [rax+rbx*3]\n\tret\n",
			want: "scale factor",
		},
		{
			name: "immediate as destination",
			asm:  "test:\n\tmov 42, rax\n\tret\n",
			want: "immediate value cannot be destination",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidator().Validate(tt.asm)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidatorCalleeSavedRegisters(t *testing.T) {
	validAsm := `
test:
	push rbx
	push r12
	mov rax, 42
	pop r12
	pop rbx
	ret
`

	validator := NewValidator()
	err := validator.Validate(validAsm)
	if err != nil {
		t.Errorf("Valid callee-saved register handling failed: %v", err)
	}
}

func TestValidatorDivisionSetup(t *testing.T) {
	validAsm := `
test:
	mov rax, rdi
	cqo
	idiv rsi
	ret
`

	validator := NewValidator()
	err := validator.Validate(validAsm)
	if err != nil {
		t.Errorf("Valid division setup failed: %v", err)
	}
}

func TestQuickValidate(t *testing.T) {
	validAsm := `
test:
	mov rax, rdi
	ret
`

	if !QuickValidate(validAsm) {
		t.Error("QuickValidate failed on valid assembly")
	}

	invalidAsm := `
test:
	mov rax, rinvalid
`

	if QuickValidate(invalidAsm) {
		t.Error("QuickValidate passed on invalid assembly")
	}
}

func TestValidateAndReport(t *testing.T) {
	validAsm := `
.intel_syntax noprefix
.global add
add:
	push rbp
	mov rbp, rsp
	mov rax, rdi
	add rax, rsi
	pop rbp
	ret
`

	passed, report := ValidateAndReport(validAsm)
	if !passed {
		t.Errorf("ValidateAndReport failed on valid assembly:\n%s", report)
	}

	if !strings.Contains(report, "PASSED") {
		t.Errorf("Report doesn't contain PASSED status:\n%s", report)
	}

	if !strings.Contains(report, "Instructions: 6") {
		t.Errorf("Report doesn't count instructions:\n%s", report)
	}

	passed, report = ValidateAndReport("test:\n\tidiv rsi\n\tret\n")
	if passed || !strings.Contains(report, "FAILED") {
		t.Errorf("expected FAILED report, got:\n%s", report)
	}
}

func TestValidatorWithGeneratedCode(t *testing.T) {
	fn := &ir.Function{
		Name:      "complex",
		Params:    2,
		StackSize: 208,
		Code: []ir.Inst{
			{Op: ir.OpStoreArg, Lhs: 8, Rhs: 0, Width: ir.Word},
			{Op: ir.OpStoreArg, Lhs: 16, Rhs: 1, Width: ir.Byte},
			{Op: ir.OpBprel, Lhs: 0, Rhs: 8},
			{Op: ir.OpLoad, Lhs: 0, Rhs: 0, Width: ir.Word},
			{Op: ir.OpBprel, Lhs: 1, Rhs: 16},
			{Op: ir.OpLoad, Lhs: 1, Rhs: 1, Width: ir.Byte},
			{Op: ir.OpMul, Lhs: 0, Rhs: 1},
			{Op: ir.OpCall, Lhs: 2, Rhs: ir.None, Name: "helper", Args: []int{0}},
			{Op: ir.OpBprel, Lhs: 3, Rhs: 8},
			{Op: ir.OpStore, Lhs: 3, Rhs: 2, Width: ir.Byte},
			{Op: ir.OpLabel, Lhs: 0, Rhs: ir.None},
			{Op: ir.OpUnless, Lhs: 2, Rhs: 0},
			{Op: ir.OpReturn, Lhs: 2, Rhs: ir.None},
		},
	}

	asm, err := NewGenerator(nil).GenerateWithValidation(&ir.Program{Funcs: []*ir.Function{fn}})
	if err != nil {
		t.Errorf("Generated code failed validation:\n%s\nError: %v", asm, err)
	}
}

// Benchmark validator performance
func BenchmarkValidator(b *testing.B) {
	asm := `
.intel_syntax noprefix
.global test
test:
	push rbp
	mov rbp, rsp
	mov rax, rdi
	add rax, rsi
	imul rdx
	pop rbp
	ret
`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		validator := NewValidator()
		_ = validator.Validate(asm)
	}
}

func BenchmarkQuickValidate(b *testing.B) {
	asm := `
test:
	mov rax, rdi
	add rax, rsi
	ret
`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = QuickValidate(asm)
	}
}
