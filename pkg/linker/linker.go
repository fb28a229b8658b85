// Package linker handles assembling and linking generated code.
//
// Design: Hand the Intel-syntax assembly to the system C driver, which runs
// the GNU assembler and links against the C runtime so main is the entry.
package linker

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/minicc/pkg/logger"
)

// DefaultDriver is used when CC is unset.
const DefaultDriver = "cc"

// Linker links assembly or object files into executables
type Linker struct {
	driver  string
	objects []string
	output  string
}

// New returns a linker producing output, using $CC or DefaultDriver.
func New(output string) *Linker {
	return &Linker{
		driver: Driver(),
		output: output,
	}
}

// Driver returns the C compiler driver named by CC, or DefaultDriver.
func Driver() string {
	if cc := strings.TrimSpace(os.Getenv("CC")); cc != "" {
		return cc
	}
	return DefaultDriver
}

// Available reports whether the driver can be found on PATH.
func Available() bool {
	_, err := exec.LookPath(Driver())
	return err == nil
}

func (l *Linker) AddObject(path string) {
	l.objects = append(l.objects, path)
}

// Link produces final executable
func (l *Linker) Link() error {
	if len(l.objects) == 0 {
		return errors.New("linker: no input files")
	}
	args := append([]string{"-o", l.output}, l.objects...)
	logger.Debug("Linking", "driver", l.driver, "output", l.output, "inputs", len(l.objects))
	return run(l.driver, args...)
}

// EmitObject assembles asmPath into objPath.
func EmitObject(asmPath, objPath string) error {
	return run(Driver(), "-c", "-o", objPath, asmPath)
}

// BuildExecutable writes asm to dir/name.s and links it into dir/name.
// It returns the path of the executable.
func BuildExecutable(asm, dir, name string) (string, error) {
	asmPath := filepath.Join(dir, name+".s")
	if err := os.WriteFile(asmPath, []byte(asm), 0o644); err != nil {
		return "", fmt.Errorf("linker: write assembly: %w", err)
	}

	exe := filepath.Join(dir, name)
	l := New(exe)
	l.AddObject(asmPath)
	if err := l.Link(); err != nil {
		return "", err
	}
	return exe, nil
}

// Run executes path and returns its exit status. A non-zero exit is not an
// error; failing to start the program is.
func Run(path string, args ...string) (int, error) {
	cmd := exec.Command(path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, fmt.Errorf("linker: run %s: %w", path, err)
	}
	return 0, nil
}

func run(name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("linker: %s: %w", name, err)
		}
		return fmt.Errorf("linker: %s: %w\n%s", name, err, msg)
	}
	return nil
}
