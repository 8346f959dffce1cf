package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/flowprobe/flowprobe/internal/harness"
)

const (
	DefaultConfigDir = "config"
	DefaultOutputDir = "output"
	HarnessFile      = "harness.yaml"
	HarnessDir       = "harness"
	SummaryFile      = "EvalSummary.csv"
	DefaultMaxLength = 3
	DefaultMaxDepth  = 3
)

type Config struct {
	Tool      string
	ConfigDir string
	OutputDir string
	// Targets are explicit testcase indices; empty means all.
	Targets []int
	// Tag keeps only testcases whose tags or features match this glob.
	Tag       string
	MaxLength int
	MaxDepth  int
	Workers   int
	// Seed for EXPRE!() sampling; 0 picks a time-based seed.
	Seed    uint64
	Render  bool
	Harness harness.Profile
}

// Default returns the configuration used when no flags are given: config/
// and output/ under the working directory and a cargo harness.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		ConfigDir: filepath.Join(cwd, DefaultConfigDir),
		OutputDir: filepath.Join(cwd, DefaultOutputDir),
		MaxLength: DefaultMaxLength,
		MaxDepth:  DefaultMaxDepth,
		Workers:   runtime.GOMAXPROCS(0),
		Render:    true,
		Harness:   harness.RustProfile(),
	}
}

// LoadHarness overlays <ConfigDir>/harness.yaml onto the harness profile.
// A missing file keeps the current profile.
func (c *Config) LoadHarness() error {
	path := filepath.Join(c.ConfigDir, HarnessFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var p harness.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(p.Command) > 0 {
		c.Harness.Command = p.Command
	}
	if p.SourceFile != "" {
		c.Harness.SourceFile = p.SourceFile
	}
	if p.Extension != "" {
		c.Harness.Extension = p.Extension
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Tool == "" {
		return fmt.Errorf("no tool given")
	}
	if c.MaxLength < 0 || c.MaxDepth < 0 {
		return fmt.Errorf("length and depth limits must not be negative")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Harness.SourceFile == "" {
		return fmt.Errorf("harness profile has no source file")
	}
	return nil
}

// ResultsDir is where a tool's artifacts go: <output>/<tool name>.
func (c *Config) ResultsDir(toolName string) string {
	return filepath.Join(c.OutputDir, toolName)
}

// HarnessRoot holds one harness per testcase: <output>/harness.
func (c *Config) HarnessRoot() string {
	return filepath.Join(c.OutputDir, HarnessDir)
}

func EnsureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	return nil
}
