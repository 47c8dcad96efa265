// Package command runs external programs (the package manager, an optional
// style compiler) on behalf of build tasks.
package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executor handles the execution of external commands
type Executor interface {
	// Run executes name with args in dir and returns its standard output.
	// A non-zero exit is an error that carries the command's stderr.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

	// RunInput is Run with stdin fed from input.
	RunInput(ctx context.Context, dir string, input []byte, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default implementation of Executor that runs actual commands
type DefaultExecutor struct{}

// NewExecutor creates a new default executor
func NewExecutor() Executor {
	return &DefaultExecutor{}
}

func (e *DefaultExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	return e.RunInput(ctx, dir, nil, name, args...)
}

// RunInput respects the provided context for cancellation.
func (e *DefaultExecutor) RunInput(ctx context.Context, dir string, input []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if input != nil {
		cmd.Stdin = bytes.NewReader(input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &Error{
			Command: strings.Join(append([]string{name}, args...), " "),
			Err:     err,
			Stderr:  stderr.String(),
			Stdout:  stdout.String(),
		}
	}
	return stdout.Bytes(), nil
}

// Error reports a command that could not be started or exited non-zero.
type Error struct {
	Command string
	Err     error
	Stderr  string
	Stdout  string
}

func (e *Error) Error() string {
	output := strings.TrimSpace(e.Stderr)
	if output == "" {
		output = strings.TrimSpace(e.Stdout)
	}
	if output == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v\nOutput: %s", e.Command, e.Err, output)
}

func (e *Error) Unwrap() error {
	return e.Err
}
