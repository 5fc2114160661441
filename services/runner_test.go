package services

import (
	"context"
	"errors"
	"testing"
)

func TestStripANSI(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"\x1b[36msite1.com\x1b[0m", "site1.com"},
		{"[32mEnabled[0m", "Enabled"},
		{"PHP Version\t : \x1b[1;33m8.1\x1b[0m", "PHP Version\t : 8.1"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := StripANSI(tc.in); got != tc.want {
			t.Errorf("StripANSI(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExecRunnerTrimsOutput(t *testing.T) {
	out, err := ExecRunner{}.Run(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Errorf("got %q, want %q", out, "hello")
	}
}

func TestExecRunnerCommandNotFound(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "definitely-not-a-real-command-xyz")
	if !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("got %v, want ErrCommandNotFound", err)
	}
}

func TestExecRunnerExitError(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("got %v, want *CommandError", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", cmdErr.ExitCode)
	}
	if cmdErr.Stderr != "broken" {
		t.Errorf("stderr = %q, want %q", cmdErr.Stderr, "broken")
	}
}
