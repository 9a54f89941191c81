// Package verify runs the configured test command that gates publication.
package verify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result holds the structured output of a test-command run.
type Result struct {
	Passed     bool   `json:"passed"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int    `json:"duration_ms"`
	Summary    string `json:"summary"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
}

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, dir string, command string) (stdout string, stderr string, exitCode int, err error)
}

// ExecRunner implements CommandRunner by shelling out.
type ExecRunner struct{}

func (e *ExecRunner) Run(ctx context.Context, dir string, command string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	// A context kill surfaces as a plain ExitError, which would read as
	// an ordinary test failure. Report the cancellation itself instead.
	if ctx.Err() != nil {
		return stdoutBuf.String(), stderrBuf.String(), -1, ctx.Err()
	}
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return stdoutBuf.String(), stderrBuf.String(), -1, fmt.Errorf("exec: %w", err)
		}
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// Runner executes the verification command.
type Runner struct {
	cmd CommandRunner
}

// NewRunner creates a Runner with the given command runner.
func NewRunner(cmd CommandRunner) *Runner {
	return &Runner{cmd: cmd}
}

// Run executes command in dir with the given timeout. A non-zero exit or
// a timeout yields Passed=false, not an error; errors are reserved for
// the command failing to start at all.
func (r *Runner) Run(dir, command string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, err := r.cmd.Run(ctx, dir, command)
	durationMs := int(time.Since(start).Milliseconds())

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &Result{
				Passed:     false,
				ExitCode:   -1,
				DurationMs: durationMs,
				Summary:    fmt.Sprintf("timeout after %s", timeout),
				Stdout:     stdout,
				Stderr:     stderr,
			}, nil
		}
		return nil, fmt.Errorf("run test command: %w", err)
	}

	summary := "tests passed"
	if exitCode != 0 {
		summary = fmt.Sprintf("tests failed with exit %d", exitCode)
	}
	return &Result{
		Passed:     exitCode == 0,
		ExitCode:   exitCode,
		DurationMs: durationMs,
		Summary:    summary,
		Stdout:     stdout,
		Stderr:     stderr,
	}, nil
}
