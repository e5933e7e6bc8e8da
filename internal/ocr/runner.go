package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrToolMissing means pdftoppm or tesseract is not installed.
var ErrToolMissing = errors.New("external tool not found")

// Runner executes an external command. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// CommandError is a non-zero exit, with the tail of stderr.
type CommandError struct {
	Name   string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

const stderrTail = 2 << 10

// ExecRunner runs commands with os/exec. When ctx ends the process is
// killed and the context's cause is returned instead of the kill status.
type ExecRunner struct {
	Logger *slog.Logger
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := defaultLogger(r.Logger).With("cmd", name)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	switch {
	case err == nil:
		logger.Debug("exec ok", "duration_ms", elapsed, "stdout_bytes", stdout.Len())
		return stdout.Bytes(), stderr.Bytes(), nil
	case ctx.Err() != nil:
		logger.Debug("exec interrupted", "duration_ms", elapsed)
		return nil, stderr.Bytes(), context.Cause(ctx)
	case errors.Is(err, exec.ErrNotFound):
		return nil, nil, fmt.Errorf("%w: %s", ErrToolMissing, name)
	}

	tail := strings.TrimSpace(stderr.String())
	if len(tail) > stderrTail {
		tail = "..." + tail[len(tail)-stderrTail:]
	}
	logger.Warn("exec failed", "args", strings.Join(args, " "), "duration_ms", elapsed, "error", err, "stderr", tail)
	return stdout.Bytes(), stderr.Bytes(), &CommandError{Name: name, Stderr: tail, Err: err}
}
