package webmfix

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}

	lw.Write([]byte(" world of test data"))
	if got, want := buf.String(), " test data"; got != want {
		t.Errorf("after overflow got %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 4, "...long"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		tmpl []string
		ms   float64
		want []string
	}{
		{"appended", []string{"fix"}, 8000, []string{"fix", "--duration-ms", "8000"}},
		{"placeholder", []string{"--ms={duration_ms}", "-"}, 1234.5, []string{"--ms=1234.5", "-"}},
		{"no args", nil, 10, []string{"--duration-ms", "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildArgs(tt.tmpl, tt.ms); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewCommandFixer_NotFound(t *testing.T) {
	_, err := NewCommandFixer(CommandConfig{Path: "reelfix-no-such-fixer-binary"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("NewCommandFixer() error = %v, want ErrUnavailable", err)
	}

	_, err = NewCommandFixer(CommandConfig{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("NewCommandFixer(empty) error = %v, want ErrUnavailable", err)
	}
}

func TestCommandFixer_PipesData(t *testing.T) {
	requireShell(t)

	// $0 receives the duration; the script echoes it after the input.
	f, err := NewCommandFixer(CommandConfig{
		Path: "sh",
		Args: []string{"-c", `cat; printf '%s' "$0"`, DurationPlaceholder},
	})
	if err != nil {
		t.Fatalf("NewCommandFixer() error = %v", err)
	}

	out, err := f.Fix(context.Background(), []byte("webm:"), 8000)
	if err != nil {
		t.Fatalf("Fix() error = %v", err)
	}
	if string(out) != "webm:8000" {
		t.Errorf("Fix() = %q, want %q", out, "webm:8000")
	}
}

func TestCommandFixer_Failure(t *testing.T) {
	requireShell(t)

	f, err := NewCommandFixer(CommandConfig{
		Path: "sh",
		Args: []string{"-c", "echo broken header >&2; exit 3", DurationPlaceholder},
	})
	if err != nil {
		t.Fatalf("NewCommandFixer() error = %v", err)
	}

	_, err = f.Fix(context.Background(), []byte("x"), 1000)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Fix() error = %v, want *CommandError", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", cmdErr.ExitCode)
	}
	if !strings.Contains(cmdErr.StderrTail, "broken header") {
		t.Errorf("StderrTail = %q, want it to mention the failure", cmdErr.StderrTail)
	}
}

func TestCommandFixer_EmptyOutput(t *testing.T) {
	requireShell(t)

	f, err := NewCommandFixer(CommandConfig{Path: "sh", Args: []string{"-c", "cat >/dev/null", DurationPlaceholder}})
	if err != nil {
		t.Fatalf("NewCommandFixer() error = %v", err)
	}
	if _, err := f.Fix(context.Background(), []byte("x"), 1000); err == nil {
		t.Error("Fix() with empty output succeeded")
	}
}

func TestCommandFixer_Timeout(t *testing.T) {
	requireShell(t)

	f, err := NewCommandFixer(CommandConfig{
		Path:    "sh",
		Args:    []string{"-c", "exec sleep 5", DurationPlaceholder},
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewCommandFixer() error = %v", err)
	}

	start := time.Now()
	_, err = f.Fix(context.Background(), []byte("x"), 1000)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fix() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Fix() took %v, timeout not enforced", elapsed)
	}
}

func TestCommandFixer_InvalidDuration(t *testing.T) {
	f := &CommandFixer{cfg: CommandConfig{}, path: "/bin/false"}
	if _, err := f.Fix(context.Background(), nil, -1); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("Fix() error = %v, want ErrInvalidDuration", err)
	}
}
