// Package evaluator runs the search for every selected bug pattern against
// one detector, in parallel, and collects the results.
package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flowprobe/flowprobe/internal/config"
	"github.com/flowprobe/flowprobe/internal/evaltree"
	"github.com/flowprobe/flowprobe/internal/executor"
	"github.com/flowprobe/flowprobe/internal/harness"
	"github.com/flowprobe/flowprobe/internal/journal"
	"github.com/flowprobe/flowprobe/internal/metrics"
	"github.com/flowprobe/flowprobe/internal/pattern"
	"github.com/flowprobe/flowprobe/internal/render"
	"github.com/flowprobe/flowprobe/internal/report"
	"github.com/flowprobe/flowprobe/internal/search"
)

const (
	TreeJSONFile  = "evalTree.json"
	TreeImageFile = "evalTree.png"
	TreeDOTFile   = "evalTree.dot"
)

var ErrTargetOutOfRange = errors.New("testcase index out of range")

// Renderer turns a DOT graph into an image file at out.
type Renderer interface {
	Render(ctx context.Context, dot, out string) error
}

type Options struct {
	Config  *config.Config
	Library *pattern.Library
	// Scaffolder defaults to running the configured harness command.
	Scaffolder harness.Scaffolder
	// Renderer defaults to Graphviz when Config.Render is set.
	Renderer Renderer
	Logger   *slog.Logger
}

type Evaluator struct {
	cfg        *config.Config
	lib        *pattern.Library
	scaffolder harness.Scaffolder
	renderer   Renderer
	logger     *slog.Logger

	tool       string
	toolName   string
	resultsDir string
	targets    []int
}

// Result is what a finished run produced. Summaries follow target order.
type Result struct {
	Tool      string
	RunID     string
	Seed      uint64
	Summaries []report.Summary
	Report    report.Report
}

// New performs every setup check before any pattern is evaluated: the tool
// must be executable, the targets must exist and the output directories
// must be writable.
func New(opts Options) (*Evaluator, error) {
	cfg := opts.Config
	if cfg == nil || opts.Library == nil {
		return nil, fmt.Errorf("evaluator: config and library are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := executor.CheckExecutable(cfg.Tool); err != nil {
		return nil, err
	}
	tool, err := filepath.Abs(cfg.Tool)
	if err != nil {
		return nil, err
	}

	targets, err := selectTargets(cfg, opts.Library)
	if err != nil {
		logger.Error("invalid target selection", "error", err)
		return nil, err
	}

	e := &Evaluator{
		cfg:        cfg,
		lib:        opts.Library,
		scaffolder: opts.Scaffolder,
		renderer:   opts.Renderer,
		logger:     logger,
		tool:       tool,
		toolName:   executor.Name(tool),
		targets:    targets,
	}
	if e.scaffolder == nil {
		e.scaffolder = harness.NewCommandScaffolder(cfg.Harness)
	}
	if e.renderer == nil && cfg.Render {
		e.renderer = render.Graphviz{}
	}

	e.resultsDir = cfg.ResultsDir(e.toolName)
	for _, dir := range []string{e.resultsDir, cfg.HarnessRoot()} {
		if err := config.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return e, nil
}

// selectTargets resolves explicit indices, then narrows by tag.
func selectTargets(cfg *config.Config, lib *pattern.Library) ([]int, error) {
	n := len(lib.Testcases)

	var targets []int
	if len(cfg.Targets) > 0 {
		for _, idx := range cfg.Targets {
			if idx < 0 || idx >= n {
				return nil, fmt.Errorf("%w: %d (valid range 0..%d)", ErrTargetOutOfRange, idx, n-1)
			}
			if !slices.Contains(targets, idx) {
				targets = append(targets, idx)
			}
		}
	} else {
		for i := range n {
			targets = append(targets, i)
		}
	}

	if cfg.Tag == "" {
		return targets, nil
	}
	tagged, err := pattern.SelectByTag(lib.Testcases, cfg.Tag)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(targets, func(idx int) bool {
		return !slices.Contains(tagged, idx)
	}), nil
}

func (e *Evaluator) Targets() []int {
	return slices.Clone(e.targets)
}

func (e *Evaluator) ToolName() string {
	return e.toolName
}

func (e *Evaluator) ResultsDir() string {
	return e.resultsDir
}

// Run evaluates every target with at most Config.Workers patterns in flight.
// The first fatal error cancels the remaining patterns and is returned; the
// summary CSV and metrics are only written once every pattern finished.
func (e *Evaluator) Run(ctx context.Context) (*Result, error) {
	j, err := journal.New(filepath.Join(e.resultsDir, journal.DefaultFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	rec := metrics.New()
	seed := e.cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	e.logger.Info("evaluation started",
		"tool", e.toolName,
		"run_id", j.RunID(),
		"testcases", len(e.targets),
		"workers", e.cfg.Workers,
		"seed", seed)

	summaries := make([]report.Summary, len(e.targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, idx := range e.targets {
		g.Go(func() error {
			s, err := e.runTestcase(gctx, idx, seed, j, rec)
			if err != nil {
				return err
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := report.WriteCSVFile(filepath.Join(e.resultsDir, config.SummaryFile), summaries); err != nil {
		return nil, err
	}
	if err := rec.WriteTextfile(filepath.Join(e.resultsDir, metrics.DefaultFile)); err != nil {
		return nil, fmt.Errorf("failed to write metrics: %w", err)
	}

	return &Result{
		Tool:      e.toolName,
		RunID:     j.RunID(),
		Seed:      seed,
		Summaries: summaries,
		Report:    report.Build(e.toolName, summaries),
	}, nil
}

func (e *Evaluator) runTestcase(ctx context.Context, idx int, seed uint64, j *journal.Journal, rec *metrics.Recorder) (report.Summary, error) {
	logger := e.logger.With("testcase", idx)

	harnessDir := filepath.Join(e.cfg.HarnessRoot(), fmt.Sprintf("harness-%d", idx))
	if err := e.scaffolder.Scaffold(ctx, harnessDir); err != nil {
		return report.Summary{}, fmt.Errorf("testcase %d: %w", idx, err)
	}

	caseDir := filepath.Join(e.resultsDir, fmt.Sprintf("testcase-%03d", idx))
	if err := config.EnsureDir(caseDir); err != nil {
		return report.Summary{}, err
	}

	engine := &search.Engine{
		Index:    idx,
		Testcase: &e.lib.Testcases[idx],
		Flows:    e.lib.Flows,
		Runner:   executor.New(e.tool, harnessDir, e.scaffolder.SourcePath(harnessDir), logger),
		Limits:   search.Limits{MaxLength: e.cfg.MaxLength, MaxDepth: e.cfg.MaxDepth},
		Rand:     rand.New(rand.NewPCG(seed, uint64(idx))),
		Observer: &artifactWriter{
			dir:       caseDir,
			extension: e.cfg.Harness.Extension,
			tool:      e.toolName,
			journal:   j,
			metrics:   rec,
			logger:    logger,
		},
		Logger: logger,
	}

	res, err := engine.Run(ctx)
	if err != nil {
		return report.Summary{}, err
	}
	if err := e.exportTree(ctx, caseDir, res.Tree, logger); err != nil {
		return report.Summary{}, fmt.Errorf("testcase %d: %w", idx, err)
	}
	return res.Summary, nil
}

// exportTree writes the JSON tree and the DOT graph. A failed image render
// is only a warning; the DOT file stays behind either way.
func (e *Evaluator) exportTree(ctx context.Context, dir string, tree *evaltree.Tree, logger *slog.Logger) error {
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, TreeJSONFile), data, 0o644); err != nil {
		return err
	}

	dot := tree.DOT()
	if err := os.WriteFile(filepath.Join(dir, TreeDOTFile), []byte(dot), 0o644); err != nil {
		return err
	}
	if e.renderer == nil {
		return nil
	}
	if err := e.renderer.Render(ctx, dot, filepath.Join(dir, TreeImageFile)); err != nil {
		logger.Warn("failed to render evaluation tree", "error", err)
	}
	return nil
}
