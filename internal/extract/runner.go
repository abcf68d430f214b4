package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// stderr kept in logs per failed command
const maxLoggedStderr = 8 << 10

// Runner runs an external tool. Tests swap in a stub.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs the poppler and tesseract binaries with os/exec.
type ExecRunner struct {
	Logger *slog.Logger
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	switch {
	case errors.Is(err, exec.ErrNotFound):
		logger.Error("extract.exec.missing_tool", "cmd", name, "error", err)
		return nil, nil, fmt.Errorf("%s is not installed or not on PATH: %w", name, err)
	case err != nil:
		logger.Error("extract.exec.failed",
			"cmd", name,
			"args", args,
			"elapsed_ms", elapsed,
			"error", err,
			"stderr", clip(stderr.String(), maxLoggedStderr),
		)
	default:
		logger.Debug("extract.exec.ok",
			"cmd", name,
			"elapsed_ms", elapsed,
			"stdout_bytes", stdout.Len(),
		)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
