package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flowprobe/flowprobe/internal/journal"
	"github.com/flowprobe/flowprobe/internal/metrics"
	"github.com/flowprobe/flowprobe/internal/search"
)

// artifactWriter persists every variant of one pattern: the POS/NEG programs
// under <testcase dir>/<identity>/, a journal event and metric samples.
type artifactWriter struct {
	dir       string
	extension string
	tool      string
	journal   *journal.Journal
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

func (w *artifactWriter) Observe(_ context.Context, v search.Variant) error {
	dir := filepath.Join(w.dir, v.Expr.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w.logger.Info(fmt.Sprintf("write testcase-%03d with expression-%s", v.Testcase, v.Expr.ID),
		"category", v.Verdicts.Category())

	if err := os.WriteFile(filepath.Join(dir, "POS"+w.extension), []byte(v.Pos.Text()), 0o644); err != nil {
		return fmt.Errorf("write POS program: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "NEG"+w.extension), []byte(v.Neg.Text()), 0o644); err != nil {
		return fmt.Errorf("write NEG program: %w", err)
	}

	w.metrics.ObserveVariant(v.Verdicts, v.PosOut, v.NegOut, v.Expanded)
	return w.journal.Log(journal.Event{
		Tool:       w.tool,
		Testcase:   v.Testcase,
		ID:         v.Expr.ID,
		Parent:     v.Parent,
		Flow:       v.Flow,
		Length:     v.Expr.Length,
		Depth:      v.Expr.Depth,
		Pos:        string(v.Verdicts.Pos),
		Neg:        string(v.Verdicts.Neg),
		Category:   string(v.Verdicts.Category()),
		PosExit:    v.PosOut.ExitCode,
		NegExit:    v.NegOut.ExitCode,
		DurationMs: (v.PosOut.Duration + v.NegOut.Duration).Milliseconds(),
		Robust:     v.Verdicts.Robust(),
		Expanded:   v.Expanded,
	})
}
