// Package execx runs external tools. Every docker and gcloud invocation in the
// repository goes through a Runner so workflows can be exercised without the
// tools installed.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Command is a single external tool invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
}

// Cmd builds a Command for name with args.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String renders the command line with arguments containing spaces quoted.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Runner executes commands.
type Runner interface {
	// Run executes the command with its output streamed to the terminal.
	Run(ctx context.Context, cmd Command) error
	// Output executes the command and returns its standard output.
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Command Command
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command.Name, e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// ExitCode returns the exit status of the failed tool.
func (e *ExitError) ExitCode() int { return e.Code }

// IsExitError reports whether err is, or wraps, an ExitError.
func IsExitError(err error) bool {
	var ee *ExitError
	return errors.As(err, &ee)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// NewExecRunner returns an ExecRunner attached to the process stdout and stderr.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr, Logger: logger}
}

// Run executes cmd, streaming its stdout and stderr.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := r.command(ctx, cmd)
	c.Stdout = r.Stdout
	c.Stderr = r.Stderr
	return wrapErr(cmd, c.Run(), "")
}

// Output executes cmd and returns stdout. Stderr is captured for the error
// message and not shown on success.
func (r *ExecRunner) Output(ctx context.Context, cmd Command) ([]byte, error) {
	c := r.command(ctx, cmd)
	var stderr bytes.Buffer
	c.Stderr = &stderr
	out, err := c.Output()
	return out, wrapErr(cmd, err, stderr.String())
}

func (r *ExecRunner) command(ctx context.Context, cmd Command) *exec.Cmd {
	if r.Logger != nil {
		r.Logger.Debug("exec", "cmd", cmd.String(), "dir", cmd.Dir)
	}
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec // G204: argv is built from validated configuration
	c.Dir = cmd.Dir
	return c
}

func wrapErr(cmd Command, err error, stderr string) error {
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &ExitError{Command: cmd, Code: ee.ExitCode(), Stderr: stderr}
	}
	return fmt.Errorf("run %s: %w", cmd.Name, err)
}
