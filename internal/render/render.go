// Package render turns a DOT description into an image with Graphviz.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var ErrNoFormat = errors.New("output path must have an extension")

// Graphviz shells out to the dot binary.
type Graphviz struct {
	// Binary defaults to "dot" on PATH.
	Binary string
}

// Render writes dot next to out (same name, .dot extension) and rasterizes
// it into out using out's extension as the format. The .dot file is kept.
func (g Graphviz) Render(ctx context.Context, dot, out string) error {
	format := strings.TrimPrefix(filepath.Ext(out), ".")
	if format == "" {
		return ErrNoFormat
	}

	dotPath := strings.TrimSuffix(out, filepath.Ext(out)) + ".dot"
	if err := os.WriteFile(dotPath, []byte(dot), 0o644); err != nil {
		return fmt.Errorf("failed to write DOT file: %w", err)
	}

	bin := g.Binary
	if bin == "" {
		bin = "dot"
	}
	cmd := exec.CommandContext(ctx, bin, "-T", format, "-o", out, dotPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("graphviz: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}
