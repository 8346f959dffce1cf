// Package harness creates the throwaway project skeleton a detector is run
// against. Generated programs are written into one fixed source file of it.
package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Profile describes how to scaffold a harness for one target language.
type Profile struct {
	// Command is run with the harness directory appended as its last argument.
	Command []string `yaml:"command"`
	// SourceFile is the path, relative to the harness, overwritten per program.
	SourceFile string `yaml:"source_file"`
	// Extension is used for POS/NEG artifact files.
	Extension string `yaml:"extension"`
}

// RustProfile scaffolds a cargo binary crate.
func RustProfile() Profile {
	return Profile{
		Command:    []string{"cargo", "new", "--vcs", "none", "--edition", "2018"},
		SourceFile: filepath.Join("src", "main.rs"),
		Extension:  ".rs",
	}
}

// Scaffolder creates a buildable project at dir.
type Scaffolder interface {
	Scaffold(ctx context.Context, dir string) error
	// SourcePath is the file inside dir that programs are written to.
	SourcePath(dir string) string
}

// CommandScaffolder runs the profile's command to create a harness.
type CommandScaffolder struct {
	Profile Profile
}

func NewCommandScaffolder(p Profile) *CommandScaffolder {
	return &CommandScaffolder{Profile: p}
}

func (s *CommandScaffolder) SourcePath(dir string) string {
	return filepath.Join(dir, s.Profile.SourceFile)
}

// Scaffold is a no-op when the source file already exists, so harnesses from
// an earlier run are reused in place.
func (s *CommandScaffolder) Scaffold(ctx context.Context, dir string) error {
	if _, err := os.Stat(s.SourcePath(dir)); err == nil {
		return nil
	}
	if len(s.Profile.Command) == 0 {
		return fmt.Errorf("harness: empty scaffold command")
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("harness: create parent: %w", err)
	}

	args := append(append([]string{}, s.Profile.Command[1:]...), dir)
	cmd := exec.CommandContext(ctx, s.Profile.Command[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("harness: %s: %w: %s", s.Profile.Command[0], err, bytes.TrimSpace(stderr.Bytes()))
	}
	if _, err := os.Stat(s.SourcePath(dir)); err != nil {
		return fmt.Errorf("harness: scaffold did not create %s: %w", s.Profile.SourceFile, err)
	}
	return nil
}
