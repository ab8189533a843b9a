// Package command runs external programs: the local copy tool, the cloud copy tool
// and the credential CLI. Callers describe a process with a Command value and hand it
// to a Runner, which keeps the rest of the code free of os/exec and easy to fake.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/asad/usmo/internal/blob"
)

// Command describes one external process invocation.
type Command struct {
	// Program is the executable name or path.
	Program string

	// Args are passed verbatim; they are never interpreted by a shell.
	Args []string

	// Env entries are appended to the current process environment.
	Env map[string]string

	// Capture collects stdout and stderr into the Result instead of streaming
	// them to the console.
	Capture bool
}

// Argv returns the full argument vector, program first.
func (c Command) Argv() []string {
	return append([]string{c.Program}, c.Args...)
}

// String renders the command for display with any signed URL redacted.
func (c Command) String() string {
	return strings.Join(blob.RedactAll(c.Argv()), " ")
}

// Result holds the outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExitError reports a command that ran but exited non-zero, or could not be started.
// ExitCode is -1 when the process never ran.
type ExitError struct {
	Program  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("%s: %v", e.Program, e.Err)
	}
	return fmt.Sprintf("%s exited with status %d", e.Program, e.ExitCode)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands with os/exec. Uncaptured output goes to Stdout and Stderr,
// which default to the process's own streams.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner creates a runner that streams to the console.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run starts cmd and blocks until it exits. A non-zero exit is returned as *ExitError
// together with a populated Result.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)

	if len(cmd.Env) > 0 {
		c.Env = os.Environ()
		for k, v := range cmd.Env {
			c.Env = append(c.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	var stdout, stderr bytes.Buffer
	if cmd.Capture {
		c.Stdout = &stdout
		c.Stderr = &stderr
	} else {
		c.Stdin = os.Stdin
		c.Stdout = r.Stdout
		c.Stderr = r.Stderr
	}

	err := c.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
	}

	return result, &ExitError{
		Program:  cmd.Program,
		ExitCode: result.ExitCode,
		Stderr:   result.Stderr,
		Err:      err,
	}
}
