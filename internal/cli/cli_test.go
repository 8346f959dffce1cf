package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowprobe/flowprobe/internal/journal"
	"github.com/flowprobe/flowprobe/internal/pattern"
)

func sampleEvents() []journal.Event {
	return []journal.Event{
		{Testcase: 0, ID: "0000-0-0", Pos: "TP", Neg: "TN", Category: "True Positive & Negative", Timestamp: "2026-01-02T10:00:00Z", RunID: "a"},
		{Testcase: 0, ID: "0001-1-0", Pos: "FN", Neg: "TN", Category: "False Negative", Parent: "0000-0-0", Flow: "wrap", RunID: "a"},
		{Testcase: 1, ID: "0000-0-0", Pos: "TP", Neg: "FP", Category: "False Positive", RunID: "a"},
		{Testcase: 2, ID: "0000-0-0", Pos: "ER", Neg: "TN", Category: "Error", RunID: "b", Timestamp: "2026-01-02T11:00:00Z"},
	}
}

func TestFilterEvents(t *testing.T) {
	tests := []struct {
		name     string
		testcase int
		verdict  string
		wantIDs  int
	}{
		{"no filter", -1, "", 4},
		{"by testcase", 0, "", 2},
		{"by category", -1, "false positive", 1},
		{"by side verdict", -1, "TN", 3},
		{"by error", -1, "ER", 1},
		{"combined", 0, "FN", 1},
		{"nothing", 5, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterEvents(sampleEvents(), tt.testcase, tt.verdict)
			assert.Len(t, got, tt.wantIDs)
		})
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, sampleEvents()))

	out := buf.String()
	assert.Contains(t, out, "Variants:        4")
	assert.Contains(t, out, "Runs:            2")
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "001")
	assert.Contains(t, out, "ER")
}

func TestPrintSummary_NoEvents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, filterEvents(sampleEvents(), 99, "")))
	assert.Contains(t, buf.String(), "No journal entries found.")

	buf.Reset()
	require.NoError(t, printSummary(&buf, nil))
	assert.Contains(t, buf.String(), "No journal entries found.")
}

func TestPrintEvents(t *testing.T) {
	var buf bytes.Buffer
	printEvents(&buf, sampleEvents()[:2])

	out := buf.String()
	assert.Contains(t, out, "testcase-000 0000-0-0 TP/TN")
	assert.Contains(t, out, "Parent: 0000-0-0 via wrap")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&buf, "warn", "json")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "testcase", 3)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"testcase":3`)

	_, err = newLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = newLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestStyledOutput(t *testing.T) {
	assert.False(t, styledOutput(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, styledOutput(f), "regular files are not terminals")
}

func TestTogglePack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "overflow.yaml"), []byte("name: overflow\n"), 0o644))

	changed, err := togglePack(dir, "overflow", false)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.FileExists(t, filepath.Join(dir, "_overflow.yaml"))

	changed, err = togglePack(dir, "overflow", false)
	require.NoError(t, err)
	assert.False(t, changed, "already disabled")

	changed, err = togglePack(dir, "overflow", true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.FileExists(t, filepath.Join(dir, "overflow.yaml"))

	_, err = togglePack(dir, "missing", true)
	assert.Error(t, err)
}

func TestPrintLibrary(t *testing.T) {
	lib := &pattern.Library{
		Testcases: []pattern.Testcase{{Description: "Double free", Tags: []string{"memory"}, Type: "Box<i32>"}},
		Flows: []pattern.Flow{
			{Name: "Wrap", Code: "id(SOURCE!())"},
			{Name: "Call", Code: "f(EXPRE!(p), SOURCE!())"},
		},
		Packs: []pattern.PackInfo{{Name: "overflow", Enabled: true, Version: "1.0", Author: "me", TestcaseCount: 2}},
	}

	var buf bytes.Buffer
	printLibrary(&buf, lib)

	out := buf.String()
	assert.Contains(t, out, "000  Double free")
	assert.Contains(t, out, "tags: memory")
	assert.Contains(t, out, "001  Call  [EXPRE]")
	assert.Contains(t, out, "(2 testcases)")
}

const cliTestcases = `
- description: Marker bug
  tags: [marker]
  type: i32
  value: "0"
  POS:
    source: BUG
    code: "fn main() { SOURCE!() }"
  NEG:
    source: SAFE
    code: "fn main() { SOURCE!() }"
`

const cliFlows = `
- name: Wrap
  code: "id(SOURCE!())"
`

func TestEvalThenLog(t *testing.T) {
	root := t.TempDir()
	cfgDir := filepath.Join(root, "config")
	outDir := filepath.Join(root, "output")
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))

	scaffold := filepath.Join(root, "scaffold")
	require.NoError(t, os.WriteFile(scaffold, []byte("#!/bin/sh\nmkdir -p \"$1/src\" && touch \"$1/src/main.rs\"\n"), 0o755))
	tool := filepath.Join(root, "Safedrop")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\nif grep -q BUG \"$1/src/main.rs\"; then echo bug; fi\n"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, pattern.TestcasesFile), []byte(cliTestcases), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, pattern.FlowsFile), []byte(cliFlows), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "harness.yaml"), []byte("command: ["+scaffold+"]\n"), 0o644))

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{
		"eval", tool,
		"--config", cfgDir, "--output", outDir,
		"--length", "1", "--depth", "1", "--seed", "3", "--workers", "1", "--no-render",
	})
	require.NoError(t, Execute(context.Background()), errOut.String())
	assert.Contains(t, out.String(), "Safedrop")
	assert.Contains(t, out.String(), "1 (1)")
	assert.FileExists(t, filepath.Join(outDir, "Safedrop", "EvalSummary.csv"))
	assert.FileExists(t, filepath.Join(outDir, "Safedrop", "testcase-000", "0001-1-0", "POS.rs"))

	out.Reset()
	rootCmd.SetArgs([]string{"log", "Safedrop", "--config", cfgDir, "--output", outDir, "--last", "1"})
	require.NoError(t, Execute(context.Background()))
	assert.Contains(t, out.String(), "0001-1-0 TP/TN")
	assert.NotContains(t, out.String(), "0000-0-0 TP/TN")

	out.Reset()
	rootCmd.SetArgs([]string{"log", "Safedrop", "--config", cfgDir, "--output", outDir,
		"--last", "0", "--summary", "--testcase", "99"})
	require.NoError(t, Execute(context.Background()))
	assert.Contains(t, out.String(), "No journal entries match the filters.")
}

func TestBuildInfo_LinkerValuesWin(t *testing.T) {
	saved := []string{Version, GitCommit, BuildDate}
	t.Cleanup(func() { Version, GitCommit, BuildDate = saved[0], saved[1], saved[2] })

	Version, GitCommit, BuildDate = "v1.2.3", "abc1234", "2026-10-01T00:00:00Z"
	version, commit, built := buildInfo()
	assert.Equal(t, "v1.2.3", version)
	assert.Equal(t, "abc1234", commit)
	assert.Equal(t, "2026-10-01T00:00:00Z", built)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, Execute(context.Background()))
	assert.Contains(t, out.String(), "flowprobe ")
	assert.Contains(t, out.String(), "Commit:")
}
