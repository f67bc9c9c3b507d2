// Package cups talks to the local CUPS scheduler through its command-line
// tools (lpstat, lp, cancel). The CUPS protocol itself is out of scope; this
// package only consumes the CLI contract.
package cups

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CmdResult holds the result of a command execution.
type CmdResult struct {
	Argv     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// CommandError is returned when a command exits nonzero.
type CommandError struct {
	Result CmdResult
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed (%d): %s", e.Result.ExitCode, strings.Join(e.Result.Argv, " "))
}

// Runner executes external commands with a timeout. It exists so tests can
// substitute canned lpstat output for a live scheduler.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, argv ...string) (CmdResult, error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// Run executes argv with the given timeout. A nonzero exit returns the
// result alongside a *CommandError so callers can inspect stderr.
func (ExecRunner) Run(ctx context.Context, timeout time.Duration, argv ...string) (CmdResult, error) {
	if len(argv) == 0 {
		return CmdResult{}, errors.New("argv must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CmdResult{
		Argv:     argv,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return res, fmt.Errorf("command timed out after %s: %s", timeout, strings.Join(argv, " "))
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, &CommandError{Result: res}
		}
		return res, fmt.Errorf("command not found or failed to start: %s: %w", argv[0], err)
	}

	return res, nil
}
