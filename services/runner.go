package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// ErrCommandNotFound indicates the executable is missing from the host.
var ErrCommandNotFound = errors.New("command not found")

// CommandError is returned when an external command exits non-zero. Stderr
// carries the captured error text for API messages and the audit trail.
type CommandError struct {
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed (exit %d): %s", e.ExitCode, e.Stderr)
}

// Runner abstracts external command execution so tests and dry runs can
// substitute fakes.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands on the local host via os/exec.
type ExecRunner struct{}

// Run executes a command and returns its trimmed, ANSI-stripped stdout.
// The child gets a dumb, colorless terminal environment so downstream
// text parsing stays stable.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "TERM=dumb", "NO_COLOR=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrCommandNotFound, name)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &CommandError{
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
			}
		}
		return "", fmt.Errorf("run %s: %w", name, err)
	}
	return StripANSI(strings.TrimSpace(stdout.String())), nil
}

// Some CLIs only partially honor NO_COLOR: match real escape-prefixed CSI
// sequences and the bare "[36m"-style artifacts they leave behind.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\[[0-9;]*m`)

// StripANSI removes ANSI escape sequences and raw bracketed color codes.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
