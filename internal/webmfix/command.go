package webmfix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/reelfix/reelfix-agent/internal/logging"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

	// DurationPlaceholder in CommandConfig.Args is replaced with the target
	// duration in milliseconds.
	DurationPlaceholder = "{duration_ms}"
)

// CommandConfig describes an external fixer that reads the recording on
// stdin and writes the fixed recording to stdout.
type CommandConfig struct {
	Path    string        // binary name or path, resolved on PATH
	Args    []string      // DurationPlaceholder is substituted; appended as --duration-ms when absent
	Timeout time.Duration // per-invocation limit; zero means no limit
	Logger  *slog.Logger
}

// CommandError reports a failed fixer invocation.
type CommandError struct {
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *CommandError) Error() string {
	if e.StderrTail != "" {
		return fmt.Sprintf("webmfix: command exited %d: %s", e.ExitCode, truncate(e.StderrTail, 256))
	}
	return fmt.Sprintf("webmfix: command exited %d: %v", e.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// CommandFixer runs an external WebM fixer as a subprocess.
type CommandFixer struct {
	cfg  CommandConfig
	path string
}

// NewCommandFixer resolves the fixer binary. It fails with ErrUnavailable
// when the binary cannot be found.
func NewCommandFixer(cfg CommandConfig) (*CommandFixer, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	path, err := resolveCommand(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &CommandFixer{cfg: cfg, path: path}, nil
}

// Path returns the resolved binary path.
func (c *CommandFixer) Path() string {
	return c.path
}

func (c *CommandFixer) Fix(ctx context.Context, data []byte, durationMs float64) ([]byte, error) {
	if !validDuration(durationMs) {
		return nil, ErrInvalidDuration
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	args := buildArgs(c.cfg.Args, durationMs)
	cmd := exec.CommandContext(ctx, c.path, args...)

	var stdout, stderrBuf bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		c.cfg.Logger.Warn("webm fixer command failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrBuf.String(), 512),
		)
		return nil, &CommandError{ExitCode: exitCode, StderrTail: stderrBuf.String(), Err: err}
	}

	if stdout.Len() == 0 {
		return nil, &CommandError{ExitCode: 0, Err: errors.New("no output")}
	}

	c.cfg.Logger.Debug("webm fixer command succeeded",
		"duration_ms", elapsed.Milliseconds(),
		"in_bytes", len(data),
		"out_bytes", stdout.Len(),
	)
	return stdout.Bytes(), nil
}

func buildArgs(tmpl []string, durationMs float64) []string {
	ms := strconv.FormatFloat(durationMs, 'f', -1, 64)
	args := make([]string, 0, len(tmpl)+2)
	substituted := false
	for _, a := range tmpl {
		if strings.Contains(a, DurationPlaceholder) {
			a = strings.ReplaceAll(a, DurationPlaceholder, ms)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, "--duration-ms", ms)
	}
	return args
}

func resolveCommand(name string) (string, error) {
	if name == "" {
		return "", errors.New("no fixer command configured")
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("fixer command %q not found", name)
	}
	return p, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
