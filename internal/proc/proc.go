// Package proc runs external programs synchronously with an explicit
// working directory and a captured exit status. The process-wide current
// directory is never changed.
package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Command describes a single external program invocation.
type Command struct {
	// Name is the program to run, resolved against PATH if not absolute.
	Name string

	// Args are the program arguments, not including the program name.
	Args []string

	// Dir is the working directory for the process. Empty means the
	// caller's current directory.
	Dir string

	// Env holds extra environment entries appended to the parent's
	// environment. Nil means inherit unchanged.
	Env []string

	// Stdin, Stdout and Stderr are attached to the process. Nil streams
	// are connected to the null device.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Runner executes commands and reports their exit code. The call blocks
// until the process exits; the exit code is -1 when the process never ran.
type Runner interface {
	Run(ctx context.Context, cmd Command) (int, error)
}

// ExecRunner is the os/exec backed Runner used outside of tests.
type ExecRunner struct{}

// Run starts the command and waits for it to exit. A non-zero exit status
// is returned as both the code and a descriptive error.
func (ExecRunner) Run(ctx context.Context, c Command) (int, error) {
	if c.Name == "" {
		return -1, fmt.Errorf("proc: command name is required")
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return code, fmt.Errorf("proc: %s exited with status %d", c.Name, code)
	}
	return -1, fmt.Errorf("proc: run %s: %w", c.Name, err)
}
