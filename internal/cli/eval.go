package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowprobe/flowprobe/internal/config"
	"github.com/flowprobe/flowprobe/internal/evaluator"
	"github.com/flowprobe/flowprobe/internal/pattern"
	"github.com/flowprobe/flowprobe/internal/report"
)

var (
	evalTargets  []int
	evalTag      string
	evalLength   int
	evalDepth    int
	evalWorkers  int
	evalSeed     uint64
	evalNoRender bool
)

var evalCmd = &cobra.Command{
	Use:   "eval <tool>",
	Short: "Evaluate a detector against every bug pattern",
	Long: `Run the detector on every bug pattern and its flow variants.

The tool is invoked as "<tool> <harness-dir>" once per program. An empty
stdout means no bug was reported, any output means a bug was reported and a
non-zero exit status is recorded as a tool error.

Examples:
  flowprobe eval ./detectors/safedrop           # All patterns
  flowprobe eval ./rudra --targets 0,3          # Patterns 0 and 3 only
  flowprobe eval ./rudra --tag 'memory*'        # Patterns tagged memory*
  flowprobe eval ./rudra --length 4 --seed 42   # Deeper, reproducible search`,
	Args: cobra.ExactArgs(1),
	RunE: evalCommand,
}

func init() {
	evalCmd.Flags().IntSliceVar(&evalTargets, "targets", nil, "Comma-separated testcase indices (default: all)")
	evalCmd.Flags().StringVar(&evalTag, "tag", "", "Only evaluate testcases with a tag or feature matching this glob")
	evalCmd.Flags().IntVar(&evalLength, "length", config.DefaultMaxLength, "Maximum number of flows applied to a variant")
	evalCmd.Flags().IntVar(&evalDepth, "depth", config.DefaultMaxDepth, "Maximum EXPRE!() nesting depth of a variant")
	evalCmd.Flags().IntVar(&evalWorkers, "workers", 0, "Testcases evaluated in parallel (default: number of CPUs)")
	evalCmd.Flags().Uint64Var(&evalSeed, "seed", 0, "Random seed for EXPRE!() sampling (default: time based)")
	evalCmd.Flags().BoolVar(&evalNoRender, "no-render", false, "Skip rendering evalTree.png with Graphviz")
	rootCmd.AddCommand(evalCmd)
}

func evalCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Tool = args[0]
	cfg.Targets = evalTargets
	cfg.Tag = evalTag
	cfg.MaxLength = evalLength
	cfg.MaxDepth = evalDepth
	cfg.Seed = evalSeed
	cfg.Render = !evalNoRender
	if evalWorkers > 0 {
		cfg.Workers = evalWorkers
	}

	logger, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
	if err != nil {
		return err
	}

	lib, err := pattern.Load(cfg.ConfigDir)
	if err != nil {
		return fmt.Errorf("failed to load patterns: %w", err)
	}
	for _, info := range lib.Packs {
		if info.Err != nil {
			logger.Warn("skipping broken pack", "pack", info.Name, "error", info.Err)
		}
	}

	ev, err := evaluator.New(evaluator.Options{
		Config:  cfg,
		Library: lib,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	res, err := ev.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := report.Render(out, res.Report, styledOutput(out)); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nResults: %s (run %s, seed %d)\n", ev.ResultsDir(), res.RunID, res.Seed)
	return nil
}
