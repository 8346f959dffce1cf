package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/flowprobe/flowprobe/internal/config"
)

var (
	configDir string
	outputDir string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "flowprobe",
	Short: "flowprobe - Robustness evaluation for static bug detectors",
	Long: `flowprobe measures how robust a static bug detector is against
semantics-preserving rewrites of known bug patterns.

Each bug pattern is a POS program (real bug) and a NEG program (safe twin).
flowprobe wraps both in ever deeper data and control flows, runs the detector
on every variant and records where it starts missing the bug or reporting the
safe twin.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "Directory holding testcases.yaml and expressions.yaml (default: ./config)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output", "", "Output directory (default: ./output)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig applies the persistent flags over the defaults and reads the
// optional harness profile.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configDir != "" {
		cfg.ConfigDir = configDir
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if err := cfg.LoadHarness(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}

// styledOutput reports whether w is a terminal that can take colors.
func styledOutput(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
