// Package main implements the minicc compiler binary.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/minicc/pkg/compiler"
	"github.com/GriffinCanCode/minicc/pkg/frontend"
	"github.com/GriffinCanCode/minicc/pkg/ir"
	"github.com/GriffinCanCode/minicc/pkg/linker"
	"github.com/GriffinCanCode/minicc/pkg/logger"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 1
	}

	cmd := args[0]
	switch cmd {
	case "compile", "ir", "run":
		return build(cmd, args[1:], stdin, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "minicc compiler version %s\n", version)
		return 0
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", cmd)
		usage(stderr)
		return 1
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `minicc - Compile a small C-like language to x86-64 assembly

Usage:
    minicc compile <source> [-o output.s]  Write Intel-syntax assembly
    minicc ir <source>                     Print the intermediate representation
    minicc run <source>                    Assemble, link and run; exit with its status
    minicc version                         Show compiler version
    minicc help                            Show this help message

A source of "-" reads standard input.

Options:
    -o <file>           Output file (compile: default <source>.s, "-" for stdout;
                        run: executable path, default a temporary file)
    -validate           Check the generated assembly before writing it
    -v                  Verbose output (debug logging)
    -log-level <level>  debug, info, warn or error (default warn)
    -log-format <fmt>   text or json (default text)
    -log-file <file>    Append log records to file instead of stderr`)
}

type options struct {
	output    string
	validate  bool
	verbose   bool
	logLevel  string
	logFormat string
	logFile   string
}

func build(cmd string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.output, "o", "", "output file")
	fs.BoolVar(&opts.validate, "validate", false, "validate generated assembly")
	fs.BoolVar(&opts.verbose, "v", false, "verbose output")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	fs.StringVar(&opts.logFormat, "log-format", "text", "log format (text or json)")
	fs.StringVar(&opts.logFile, "log-file", "", "log file")

	// Accept the source either before or after the flags.
	var source string
	if len(args) > 0 && (args[0] == "-" || !strings.HasPrefix(args[0], "-")) {
		source, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if source == "" && fs.NArg() > 0 {
		source = fs.Arg(0)
	}
	if source == "" {
		fmt.Fprintln(stderr, "error: no input file")
		return 1
	}

	if err := setupLogging(opts, stderr); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer logger.Close()

	src, err := readSource(source, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	switch cmd {
	case "ir":
		prog, err := compiler.CompileIR(src)
		if err != nil {
			return reportError(stderr, source, src, err)
		}
		if err := ir.Print(stdout, prog); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0

	case "compile":
		asm, err := compiler.CompileWith(src, compiler.Options{Validate: opts.validate, Filename: source})
		if err != nil {
			return reportError(stderr, source, src, err)
		}
		out := opts.output
		if out == "" {
			out = defaultOutput(source, ".s")
		}
		if out == "-" {
			fmt.Fprint(stdout, asm)
			return 0
		}
		if err := os.WriteFile(out, []byte(asm), 0o644); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		logger.Info("Wrote assembly", "output", out, "bytes", len(asm))
		return 0

	default: // run
		asm, err := compiler.CompileWith(src, compiler.Options{Validate: opts.validate, Filename: source})
		if err != nil {
			return reportError(stderr, source, src, err)
		}
		return runNative(asm, opts.output, stderr)
	}
}

func runNative(asm, output string, stderr io.Writer) int {
	if !linker.Available() {
		fmt.Fprintf(stderr, "error: %s not found; set CC to a C compiler driver\n", linker.Driver())
		return 1
	}

	dir, err := os.MkdirTemp("", "minicc-")
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer os.RemoveAll(dir)

	exe, err := linker.BuildExecutable(asm, dir, "a.out")
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if output != "" {
		data, err := os.ReadFile(exe)
		if err == nil {
			err = os.WriteFile(output, data, 0o755)
		}
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		exe = output
	}

	code, err := linker.Run(exe)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	logger.Info("Program exited", "status", code)
	return code
}

func setupLogging(opts options, stderr io.Writer) error {
	level, err := logger.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	if opts.verbose {
		level = logger.LevelDebug
	}
	return logger.Init(logger.Config{
		Level:   level,
		Format:  opts.logFormat,
		Output:  stderr,
		LogFile: opts.logFile,
	})
}

func readSource(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func defaultOutput(source, ext string) string {
	if source == "-" {
		return "-"
	}
	return strings.TrimSuffix(source, filepath.Ext(source)) + ext
}

// reportError prints err, with a source excerpt for front end errors.
func reportError(stderr io.Writer, name, src string, err error) int {
	var fe *frontend.Error
	if errors.As(err, &fe) {
		fmt.Fprintf(stderr, "%s:%d:%d\n%s", name, fe.Line, fe.Col, fe.Snippet(src))
		return 1
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}
