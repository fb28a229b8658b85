// Package compiler drives source text through every stage to assembly.
//
// Design: Lex, parse, lower to IR, generate code. Each stage runs to
// completion before the next starts and the first error stops the pipeline.
// Errors are prefixed with the stage that produced them.
package compiler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/minicc/pkg/codegen/amd64"
	"github.com/GriffinCanCode/minicc/pkg/frontend"
	"github.com/GriffinCanCode/minicc/pkg/ir"
	"github.com/GriffinCanCode/minicc/pkg/logger"
)

// Options control a single compilation.
type Options struct {
	// Validate runs the assembly validator over the generated text.
	Validate bool
	// Filename is only used to label log records.
	Filename string
}

// Compile returns the assembly text for src.
func Compile(src string) (string, error) {
	return CompileWith(src, Options{})
}

// CompileWith is Compile with explicit options.
func CompileWith(src string, opts Options) (string, error) {
	start := time.Now()
	asm, err := compile(src, opts)
	logger.LogCompilerComplete(err == nil, time.Since(start).String())
	return asm, err
}

// CompileIR runs the front end and IR generation only.
func CompileIR(src string) (*ir.Program, error) {
	return lower(src, Options{})
}

func compile(src string, opts Options) (string, error) {
	prog, err := lower(src, opts)
	if err != nil {
		return "", err
	}

	logger.LogPhase("codegen")
	var out strings.Builder
	gen := amd64.NewGenerator(&out)
	if opts.Validate {
		asm, err := gen.GenerateWithValidation(prog)
		if err != nil {
			logger.LogError("codegen", opts.Filename, 0, err.Error())
			return "", fmt.Errorf("codegen: %w", err)
		}
		logger.LogPhaseComplete("codegen")
		return asm, nil
	}
	if err := gen.Generate(prog); err != nil {
		logger.LogError("codegen", opts.Filename, 0, err.Error())
		return "", fmt.Errorf("codegen: %w", err)
	}
	logger.LogPhaseComplete("codegen")
	return out.String(), nil
}

func lower(src string, opts Options) (*ir.Program, error) {
	logger.LogPhase("lex")
	toks, err := frontend.Lex(src)
	if err != nil {
		logStageError("lex", opts.Filename, err)
		return nil, fmt.Errorf("lex: %w", err)
	}
	logger.LogLexing(len(toks))
	logger.LogPhaseComplete("lex")

	logger.LogPhase("parse")
	ast, err := frontend.Parse(toks)
	if err != nil {
		logStageError("parse", opts.Filename, err)
		return nil, fmt.Errorf("parse: %w", err)
	}
	logger.LogPhaseComplete("parse")

	logger.LogPhase("ir")
	prog, err := ir.Build(ast)
	if err != nil {
		logStageError("ir", opts.Filename, err)
		return nil, fmt.Errorf("ir: %w", err)
	}
	logger.LogPhaseComplete("ir")
	return prog, nil
}

func logStageError(phase, file string, err error) {
	var fe *frontend.Error
	if errors.As(err, &fe) {
		logger.LogError(phase, file, fe.Line, fe.Msg)
		return
	}
	logger.LogError(phase, file, 0, err.Error())
}
