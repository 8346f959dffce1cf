package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowprobe/flowprobe/internal/config"
	"github.com/flowprobe/flowprobe/internal/executor"
	"github.com/flowprobe/flowprobe/internal/journal"
	"github.com/flowprobe/flowprobe/internal/pattern"
	"github.com/flowprobe/flowprobe/internal/report"
)

// perfectDetector reports a bug exactly when the harness source contains BUG.
const perfectDetector = `#!/bin/sh
if grep -q BUG "$1/src/main.rs"; then
  echo "bug found"
fi
`

type fakeScaffolder struct {
	mu   sync.Mutex
	dirs []string
}

func (f *fakeScaffolder) SourcePath(dir string) string {
	return filepath.Join(dir, "src", "main.rs")
}

func (f *fakeScaffolder) Scaffold(_ context.Context, dir string) error {
	f.mu.Lock()
	f.dirs = append(f.dirs, dir)
	f.mu.Unlock()
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.SourcePath(dir), nil, 0o644)
}

type fakeRenderer struct {
	mu   sync.Mutex
	outs []string
	fail error
}

func (f *fakeRenderer) Render(_ context.Context, dot, out string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outs = append(f.outs, out)
	if f.fail != nil {
		return f.fail
	}
	return os.WriteFile(out, []byte(dot), 0o644)
}

func writeTool(t *testing.T, name, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func testcase(desc string, tags ...string) pattern.Testcase {
	return pattern.Testcase{
		Description: desc,
		Tags:        tags,
		Type:        "i32",
		Value:       "0",
		Pos:         pattern.Case{Source: "BUG", Code: "fn main() { SOURCE!() }"},
		Neg:         pattern.Case{Source: "SAFE", Code: "fn main() { SOURCE!() }"},
	}
}

func testLibrary(n int) *pattern.Library {
	lib := &pattern.Library{
		Flows: []pattern.Flow{{Name: "wrap", Code: "id(SOURCE!())"}},
	}
	for i := range n {
		lib.Testcases = append(lib.Testcases, testcase(fmt.Sprintf("pattern %d", i)))
	}
	return lib
}

func testConfig(t *testing.T, tool string) *config.Config {
	cfg := config.Default()
	cfg.Tool = tool
	cfg.OutputDir = t.TempDir()
	cfg.MaxLength = 1
	cfg.MaxDepth = 1
	cfg.Workers = 2
	cfg.Seed = 7
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEvaluator(t *testing.T, cfg *config.Config, lib *pattern.Library, r Renderer) (*Evaluator, *fakeScaffolder) {
	t.Helper()
	sc := &fakeScaffolder{}
	e, err := New(Options{
		Config:     cfg,
		Library:    lib,
		Scaffolder: sc,
		Renderer:   r,
		Logger:     quietLogger(),
	})
	require.NoError(t, err)
	return e, sc
}

func TestEvaluator_SingleWrapperEndToEnd(t *testing.T) {
	tool := writeTool(t, "Safedrop", perfectDetector)
	cfg := testConfig(t, tool)
	renderer := &fakeRenderer{}
	e, sc := newEvaluator(t, cfg, testLibrary(1), renderer)

	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Safedrop", res.Tool)
	assert.Equal(t, uint64(7), res.Seed)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Summaries, 1)
	assert.Equal(t, report.Summary{Index: 0, Variants: 2, Robust: 2, TP: 2, TN: 2}, res.Summaries[0])
	assert.Equal(t, report.Metric{Occurrence: 1, Exact: 1}, res.Report.Robust)
	assert.Equal(t, report.Metric{}, res.Report.Error)

	assert.Equal(t, []string{filepath.Join(cfg.OutputDir, "harness", "harness-0")}, sc.dirs)

	results := filepath.Join(cfg.OutputDir, "Safedrop")
	caseDir := filepath.Join(results, "testcase-000")

	pos, err := os.ReadFile(filepath.Join(caseDir, "0000-0-0", "POS.rs"))
	require.NoError(t, err)
	assert.Equal(t, "fn main() { BUG }", string(pos))

	neg, err := os.ReadFile(filepath.Join(caseDir, "0001-1-0", "NEG.rs"))
	require.NoError(t, err)
	assert.Contains(t, string(neg), "SAFE")
	assert.Contains(t, string(neg), "id(")

	data, err := os.ReadFile(filepath.Join(caseDir, TreeJSONFile))
	require.NoError(t, err)
	var tree struct {
		Name     string `json:"name"`
		Category string `json:"category"`
		Children []struct {
			Name string `json:"name"`
		} `json:"children"`
	}
	require.NoError(t, json.Unmarshal(data, &tree))
	assert.Equal(t, "0000-0-0", tree.Name)
	assert.Equal(t, "True Positive & Negative", tree.Category)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "0001-1-0", tree.Children[0].Name)

	assert.FileExists(t, filepath.Join(caseDir, TreeDOTFile))
	assert.Equal(t, []string{filepath.Join(caseDir, TreeImageFile)}, renderer.outs)

	csv, err := os.ReadFile(filepath.Join(results, config.SummaryFile))
	require.NoError(t, err)
	assert.Equal(t, "ID,Variants,RD,TP,FN,FP,TN,ER\n000,2,2,2,0,0,2,0\n", string(csv))

	events, err := journal.Read(filepath.Join(results, journal.DefaultFile))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "0000-0-0", events[0].ID)
	assert.True(t, events[0].Expanded)
	assert.Equal(t, "0001-1-0", events[1].ID)
	assert.Equal(t, "0000-0-0", events[1].Parent)
	assert.Equal(t, "wrap", events[1].Flow)
	assert.False(t, events[1].Expanded)
	assert.Equal(t, res.RunID, events[1].RunID)

	prom, err := os.ReadFile(filepath.Join(results, "metrics.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `flowprobe_variants_total{category="True Positive & Negative"} 2`)
}

func TestEvaluator_ParallelSummariesKeepTargetOrder(t *testing.T) {
	tool := writeTool(t, "detector", perfectDetector)
	cfg := testConfig(t, tool)
	cfg.MaxLength = 2
	cfg.MaxDepth = 2
	cfg.Targets = []int{3, 0, 2}
	cfg.Workers = 2
	e, sc := newEvaluator(t, cfg, testLibrary(4), nil)

	res, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Summaries, 3)
	for i, idx := range []int{3, 0, 2} {
		assert.Equal(t, idx, res.Summaries[i].Index)
		assert.Equal(t, 3, res.Summaries[i].Variants)
		assert.Equal(t, 3, res.Summaries[i].Robust)
	}
	assert.Len(t, sc.dirs, 3, "one harness per pattern")
	assert.NoDirExists(t, filepath.Join(cfg.OutputDir, "detector", "testcase-001"))
}

func TestEvaluator_FailingDetectorIsRecordedNotFatal(t *testing.T) {
	tool := writeTool(t, "crashy", "#!/bin/sh\necho panic >&2\nexit 101\n")
	cfg := testConfig(t, tool)
	e, _ := newEvaluator(t, cfg, testLibrary(1), nil)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Summary{Variants: 1, Err: 2}, res.Summaries[0])
	assert.Equal(t, report.Metric{Occurrence: 1, Exact: 1}, res.Report.Error)
}

func TestEvaluator_RenderFailureIsOnlyAWarning(t *testing.T) {
	tool := writeTool(t, "detector", perfectDetector)
	cfg := testConfig(t, tool)
	e, _ := newEvaluator(t, cfg, testLibrary(1), &fakeRenderer{fail: errors.New("dot not found")})

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "detector", "testcase-000", TreeDOTFile))
}

func TestEvaluator_NoRender(t *testing.T) {
	tool := writeTool(t, "detector", perfectDetector)
	cfg := testConfig(t, tool)
	cfg.Render = false
	e, _ := newEvaluator(t, cfg, testLibrary(1), nil)

	_, err := e.Run(context.Background())
	require.NoError(t, err)

	caseDir := filepath.Join(cfg.OutputDir, "detector", "testcase-000")
	assert.FileExists(t, filepath.Join(caseDir, TreeDOTFile))
	assert.NoFileExists(t, filepath.Join(caseDir, TreeImageFile))
}

func TestEvaluator_SpawnFailureAbortsRun(t *testing.T) {
	tool := writeTool(t, "broken", "#!/nonexistent/interpreter\n")
	cfg := testConfig(t, tool)
	e, _ := newEvaluator(t, cfg, testLibrary(3), nil)

	_, err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, executor.ErrSpawn))
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "broken", config.SummaryFile))
}

func TestEvaluator_ScaffoldFailureAbortsRun(t *testing.T) {
	tool := writeTool(t, "detector", perfectDetector)
	cfg := testConfig(t, tool)
	cfg.Harness.Command = []string{filepath.Join(t.TempDir(), "no-cargo")}

	e, err := New(Options{Config: cfg, Library: testLibrary(1), Logger: quietLogger()})
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "testcase 0")
}

func TestNew_SetupErrors(t *testing.T) {
	tool := writeTool(t, "detector", perfectDetector)
	plain := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))

	tests := []struct {
		name   string
		mutate func(*config.Config)
		is     error
		msg    string
	}{
		{name: "missing tool", mutate: func(c *config.Config) { c.Tool = filepath.Join(t.TempDir(), "nope") }, msg: "failed to access"},
		{name: "not executable", mutate: func(c *config.Config) { c.Tool = plain }, is: executor.ErrNotExecutable},
		{name: "target out of range", mutate: func(c *config.Config) { c.Targets = []int{0, 2} }, is: ErrTargetOutOfRange, msg: "valid range 0..1"},
		{name: "negative target", mutate: func(c *config.Config) { c.Targets = []int{-1} }, is: ErrTargetOutOfRange},
		{name: "bad tag glob", mutate: func(c *config.Config) { c.Tag = "[" }, msg: "invalid tag pattern"},
		{name: "no workers", mutate: func(c *config.Config) { c.Workers = 0 }, msg: "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, tool)
			tt.mutate(cfg)
			_, err := New(Options{Config: cfg, Library: testLibrary(2), Logger: quietLogger()})
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), err.Error())
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestNew_TargetSelection(t *testing.T) {
	tool := writeTool(t, "detector", perfectDetector)
	lib := &pattern.Library{
		Testcases: []pattern.Testcase{
			testcase("double free", "memory", "drop"),
			testcase("overflow", "arith"),
			testcase("use after free", "memory"),
		},
	}

	tests := []struct {
		name    string
		targets []int
		tag     string
		want    []int
	}{
		{name: "all by default", want: []int{0, 1, 2}},
		{name: "explicit order kept", targets: []int{2, 0}, want: []int{2, 0}},
		{name: "duplicates dropped", targets: []int{1, 1}, want: []int{1}},
		{name: "tag", tag: "mem*", want: []int{0, 2}},
		{name: "tag narrows explicit", targets: []int{2, 1}, tag: "memory", want: []int{2}},
		{name: "tag matches nothing", tag: "net", want: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, tool)
			cfg.Targets = tt.targets
			cfg.Tag = tt.tag
			e, _ := newEvaluator(t, cfg, lib, nil)
			got := e.Targets()
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_CreatesOutputLayout(t *testing.T) {
	tool := writeTool(t, "rudra.sh", perfectDetector)
	cfg := testConfig(t, tool)
	e, _ := newEvaluator(t, cfg, testLibrary(1), nil)

	assert.Equal(t, "rudra", e.ToolName())
	assert.Equal(t, filepath.Join(cfg.OutputDir, "rudra"), e.ResultsDir())
	assert.DirExists(t, e.ResultsDir())
	assert.DirExists(t, filepath.Join(cfg.OutputDir, "harness"))
	assert.True(t, strings.HasPrefix(e.tool, string(filepath.Separator)), "tool path is absolute")
}

func TestEvaluator_CancelledRunRecordsNoErrorVerdicts(t *testing.T) {
	tool := writeTool(t, "slow", "#!/bin/sh\nsleep 5\n")
	cfg := testConfig(t, tool)
	e, _ := newEvaluator(t, cfg, testLibrary(2), nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	_, err := e.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), err.Error())
	assert.Less(t, time.Since(start), 4*time.Second)

	results := filepath.Join(cfg.OutputDir, "slow")
	assert.NoFileExists(t, filepath.Join(results, config.SummaryFile))
	events, err := journal.Read(filepath.Join(results, journal.DefaultFile))
	require.NoError(t, err)
	assert.Empty(t, events, "killed detector runs are not verdicts")
}
