// Package amd64 - Assembly validation and correctness verification
package amd64

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/minicc/pkg/logger"
)

// ValidationError represents an assembly validation error
type ValidationError struct {
	Line    int
	Message string
	Code    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: %s\n  %s", e.Line, e.Message, e.Code)
}

// Validator validates generated Intel-syntax x86-64 assembly
type Validator struct {
	errors []ValidationError
	warns  []ValidationError
}

// NewValidator creates a new assembly validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
		warns:  make([]ValidationError, 0),
	}
}

// line is one parsed source line.
type line struct {
	num      int
	text     string
	label    string   // set for "name:" lines
	mnemonic string   // set for instruction lines
	operands []string // split on top-level commas
}

// Validate performs comprehensive validation on assembly code
func (v *Validator) Validate(assembly string) error {
	lines := v.parse(assembly)

	v.validateRegisters(lines)
	v.validateLabels(lines)
	v.validateStackBalance(lines)
	v.validateInstructionValidity(lines)
	v.validateMemoryAddressing(lines)

	if len(v.errors) > 0 {
		return v.formatErrors()
	}

	if len(v.warns) > 0 {
		v.logWarnings()
	}

	return nil
}

// parse splits assembly into lines and reports malformed ones.
func (v *Validator) parse(assembly string) []line {
	var lines []line
	for i, raw := range strings.Split(assembly, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		l := line{num: i + 1, text: text}

		switch {
		case strings.HasSuffix(text, ":"):
			l.label = strings.TrimSuffix(text, ":")
			if strings.ContainsAny(l.label, " \t") || l.label == "" {
				v.addError(l.num, "invalid label format (contains spaces)", text)
				continue
			}
		case strings.HasPrefix(text, "."):
			// Directive
		default:
			mnemonic, rest, _ := strings.Cut(text, " ")
			if !validMnemonics[mnemonic] {
				v.addError(l.num, "malformed instruction", text)
				continue
			}
			l.mnemonic = mnemonic
			if rest = strings.TrimSpace(rest); rest != "" {
				for _, op := range strings.Split(rest, ",") {
					l.operands = append(l.operands, strings.TrimSpace(op))
				}
			}
		}
		lines = append(lines, l)
	}
	return lines
}

var validMnemonics = map[string]bool{
	"mov": true, "movzx": true, "lea": true, "push": true, "pop": true,
	"add": true, "sub": true, "imul": true, "idiv": true, "cqo": true,
	"neg": true, "and": true, "or": true, "xor": true, "test": true,
	"cmp": true, "sete": true, "setne": true, "setl": true, "setle": true,
	"setg": true, "setge": true, "jmp": true, "je": true, "jne": true,
	"jz": true, "jnz": true, "call": true, "ret": true, "leave": true,
}

var validRegs = map[string]bool{
	// 64-bit registers
	"rax": true, "rbx": true, "rcx": true, "rdx": true,
	"rsi": true, "rdi": true, "rbp": true, "rsp": true,
	"r8": true, "r9": true, "r10": true, "r11": true,
	"r12": true, "r13": true, "r14": true, "r15": true,
	// 32-bit registers
	"eax": true, "ebx": true, "ecx": true, "edx": true,
	"esi": true, "edi": true, "ebp": true, "esp": true,
	// 8-bit registers
	"al": true, "bl": true, "cl": true, "dl": true,
	"sil": true, "dil": true, "spl": true, "bpl": true,
	"r8b": true, "r9b": true, "r10b": true, "r11b": true,
	"r12b": true, "r13b": true, "r14b": true, "r15b": true,
}

var branchMnemonics = map[string]bool{
	"jmp": true, "je": true, "jne": true, "jz": true, "jnz": true,
}

// validateRegisters checks every register operand is a real register name.
func (v *Validator) validateRegisters(lines []line) {
	regPattern := regexp.MustCompile(`[a-z][a-z0-9]*`)

	for _, l := range lines {
		if l.mnemonic == "" || l.mnemonic == "call" || branchMnemonics[l.mnemonic] {
			continue
		}
		for _, op := range l.operands {
			op = stripSize(op)
			for _, name := range regPattern.FindAllString(op, -1) {
				if !validRegs[name] {
					v.addError(l.num, fmt.Sprintf("invalid register: %s", name), l.text)
				}
			}
		}
	}
}

// validateLabels checks each label is defined once and every branch target
// is defined somewhere in the program.
func (v *Validator) validateLabels(lines []line) {
	defined := make(map[string]int)
	for _, l := range lines {
		if l.label == "" {
			continue
		}
		if first, dup := defined[l.label]; dup {
			v.addError(l.num, fmt.Sprintf("label %s already defined on line %d", l.label, first), l.text)
			continue
		}
		defined[l.label] = l.num
	}

	for _, l := range lines {
		if !branchMnemonics[l.mnemonic] {
			continue
		}
		if len(l.operands) != 1 {
			v.addError(l.num, "branch needs exactly one target", l.text)
			continue
		}
		if _, ok := defined[l.operands[0]]; !ok {
			v.addError(l.num, fmt.Sprintf("undefined label: %s", l.operands[0]), l.text)
		}
	}
}

// validateStackBalance checks that pushes and pops pair up in reverse order
// between a routine label and its ret.
func (v *Validator) validateStackBalance(lines []line) {
	var stack []string
	routine := ""

	for _, l := range lines {
		if l.label != "" && !strings.HasPrefix(l.label, ".") {
			routine = l.label
			stack = stack[:0]
			continue
		}
		if routine == "" {
			continue
		}

		switch l.mnemonic {
		case "push":
			if len(l.operands) == 1 {
				stack = append(stack, l.operands[0])
			}
		case "pop":
			if len(stack) == 0 {
				v.addError(l.num, "stack underflow detected", l.text)
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(l.operands) == 1 && l.operands[0] != top && isCalleeSaved(top) {
				v.addError(l.num, fmt.Sprintf("callee-saved register %s restored into %s in %s", top, l.operands[0], routine), l.text)
			}
		case "leave":
			// leave restores rbp
			if len(stack) > 0 && stack[len(stack)-1] == "rbp" {
				stack = stack[:len(stack)-1]
			}
		case "ret":
			if len(stack) > 0 {
				v.addError(l.num, fmt.Sprintf("registers not restored in %s: %v", routine, stack), l.text)
			}
			stack = stack[:0]
		}
	}
}

// validateInstructionValidity checks for invalid instruction combinations
func (v *Validator) validateInstructionValidity(lines []line) {
	for i, l := range lines {
		if l.mnemonic == "" {
			continue
		}

		// Check for invalid immediate values as destinations
		if isInstructionWithDestination(l.mnemonic) && len(l.operands) >= 2 && isImmediate(l.operands[0]) {
			v.addError(l.num, "immediate value cannot be destination", l.text)
		}

		// Check for invalid memory-to-memory moves
		if strings.HasPrefix(l.mnemonic, "mov") && len(l.operands) == 2 {
			if isMemoryOperand(l.operands[0]) && isMemoryOperand(l.operands[1]) {
				v.addError(l.num, "x86-64 doesn't support memory-to-memory moves", l.text)
			}
		}

		// Check division without proper setup
		if l.mnemonic == "idiv" {
			if i == 0 || lines[i-1].mnemonic != "cqo" {
				v.addError(l.num, "idiv without preceding cqo", l.text)
			}
		}

		if l.mnemonic == "movzx" && len(l.operands) == 2 && !strings.HasPrefix(l.operands[1], "byte ptr") && !is8Bit(l.operands[1]) {
			v.addWarn(l.num, "movzx source is not a byte operand", l.text)
		}
	}
}

// validateMemoryAddressing checks memory addressing mode correctness
func (v *Validator) validateMemoryAddressing(lines []line) {
	// Pattern for memory operands with explicit scale: [base+index*scale]
	scaledPattern := regexp.MustCompile(`\*(\d+)\]`)

	for _, l := range lines {
		for _, op := range l.operands {
			if strings.Count(op, "[") != strings.Count(op, "]") {
				v.addError(l.num, "unbalanced brackets in memory operand", l.text)
				continue
			}
			for _, match := range scaledPattern.FindAllStringSubmatch(op, -1) {
				scale := match[1]
				if scale != "1" && scale != "2" && scale != "4" && scale != "8" {
					v.addError(l.num, fmt.Sprintf("invalid scale factor: %s (must be 1, 2, 4, or 8)", scale), l.text)
				}
			}
		}
	}
}

// Helper functions

func (v *Validator) addError(line int, msg, code string) {
	v.errors = append(v.errors, ValidationError{Line: line, Message: msg, Code: code})
}

func (v *Validator) addWarn(line int, msg, code string) {
	v.warns = append(v.warns, ValidationError{Line: line, Message: msg, Code: code})
}

func (v *Validator) formatErrors() error {
	var sb strings.Builder
	sb.WriteString("Assembly validation failed:\n")
	for _, err := range v.errors {
		sb.WriteString("  " + err.Error() + "\n")
	}
	return fmt.Errorf("%s", sb.String())
}

func (v *Validator) logWarnings() {
	for _, warn := range v.warns {
		logger.Warn("Assembly validation warning", "line", warn.Line, "msg", warn.Message)
	}
}

// stripSize removes "byte ptr" style size prefixes and immediates so only
// register names remain.
func stripSize(op string) string {
	for _, size := range []string{"byte ptr", "word ptr", "dword ptr", "qword ptr"} {
		op = strings.ReplaceAll(op, size, "")
	}
	return op
}

func isCalleeSaved(reg string) bool {
	for _, r := range CalleeSaved {
		if r == reg {
			return true
		}
	}
	return reg == "rbp"
}

func isInstructionWithDestination(mnemonic string) bool {
	switch mnemonic {
	case "mov", "movzx", "add", "sub", "lea", "and", "or", "xor":
		return true
	}
	return false
}

func isImmediate(op string) bool {
	_, err := strconv.ParseInt(op, 10, 64)
	return err == nil
}

func isMemoryOperand(op string) bool {
	return strings.Contains(op, "[") && strings.Contains(op, "]")
}

func is8Bit(op string) bool {
	if strings.HasSuffix(op, "b") || strings.HasSuffix(op, "l") {
		return validRegs[op]
	}
	return false
}

// ValidateProgram validates an entire generated program
func ValidateProgram(assembly string) error {
	validator := NewValidator()
	return validator.Validate(assembly)
}

// QuickValidate performs fast basic validation for development
func QuickValidate(assembly string) bool {
	validator := NewValidator()

	// Just check syntax and registers for quick feedback
	lines := validator.parse(assembly)
	validator.validateRegisters(lines)

	return len(validator.errors) == 0
}

// ValidateAndReport validates assembly and returns a detailed report
func ValidateAndReport(assembly string) (bool, string) {
	validator := NewValidator()
	err := validator.Validate(assembly)

	var report strings.Builder
	report.WriteString("=== Assembly Validation Report ===\n\n")

	if err != nil {
		report.WriteString(fmt.Sprintf("Status: FAILED\n\nErrors:\n%s\n", err.Error()))
		return false, report.String()
	}

	report.WriteString("Status: PASSED\n\n")

	if len(validator.warns) > 0 {
		report.WriteString("Warnings:\n")
		for _, warn := range validator.warns {
			report.WriteString(fmt.Sprintf("  Line %d: %s\n", warn.Line, warn.Message))
		}
	} else {
		report.WriteString("No warnings.\n")
	}

	// Count instructions
	lineCount := len(strings.Split(assembly, "\n"))
	instCount := 0
	scanner := bufio.NewScanner(strings.NewReader(assembly))
	for scanner.Scan() {
		raw := scanner.Text()
		if strings.HasPrefix(raw, "\t") && !strings.HasPrefix(raw, "\t.") {
			instCount++
		}
	}

	report.WriteString("\nStatistics:\n")
	report.WriteString(fmt.Sprintf("  Total lines: %d\n", lineCount))
	report.WriteString(fmt.Sprintf("  Instructions: %d\n", instCount))

	logger.Info("Assembly validation passed", "instructions", instCount, "warnings", len(validator.warns))

	return true, report.String()
}
