// Package executor runs the detector under evaluation against a harness.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/flowprobe/flowprobe/internal/oracle"
	"github.com/flowprobe/flowprobe/internal/program"
)

// WaitDelay bounds how long Execute waits for the detector's output pipes
// after the run context is cancelled.
const WaitDelay = 500 * time.Millisecond

var (
	ErrNotExecutable = errors.New("tool is not executable")
	// ErrSpawn means the detector process could not be started at all.
	ErrSpawn = errors.New("tool failed to execute")
)

// CheckExecutable verifies that path is a regular file with at least one
// execute permission bit set.
func CheckExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to access %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a file: %w", path, ErrNotExecutable)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("tool %s does not have execution permissions: %w", path, ErrNotExecutable)
	}
	return nil
}

// Name is the tool's file name without extension.
func Name(tool string) string {
	base := filepath.Base(tool)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Executor owns one detector binary and one harness directory. It is not
// safe for concurrent use: the harness source file is rewritten per run.
type Executor struct {
	tool       string
	harness    string
	sourcePath string
	logger     *slog.Logger
}

// New creates an Executor that writes programs to sourcePath and invokes tool
// with harnessDir as its only argument.
func New(tool, harnessDir, sourcePath string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		tool:       tool,
		harness:    harnessDir,
		sourcePath: sourcePath,
		logger:     logger,
	}
}

func (e *Executor) Name() string {
	return Name(e.tool)
}

// Execute writes p into the harness and runs the detector on it. A non-zero
// exit is reported in the Outcome, not as an error.
func (e *Executor) Execute(ctx context.Context, p program.Program) (oracle.Outcome, error) {
	if err := os.WriteFile(e.sourcePath, []byte(p.Text()), 0o644); err != nil {
		return oracle.Outcome{}, fmt.Errorf("write harness source: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.tool, e.harness)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// children left holding stdout must not outlive a cancelled run
	cmd.WaitDelay = WaitDelay

	start := time.Now()
	err := cmd.Run()
	out := oracle.Outcome{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	// A killed detector says nothing about the program.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return oracle.Outcome{}, fmt.Errorf("%s: %w", e.tool, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return oracle.Outcome{}, fmt.Errorf("%w: %s: %v", ErrSpawn, e.tool, err)
		}
		// -1 when the process was killed by a signal
		out.ExitCode = exitErr.ExitCode()
	}

	e.logger.Debug("detector finished",
		"tool", e.Name(),
		"exit", out.ExitCode,
		"stdout_bytes", len(out.Stdout),
		"duration", out.Duration)
	return out, nil
}
