package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowprobe/flowprobe/internal/pattern"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List bug patterns, flows and packs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		lib, err := pattern.Load(cfg.ConfigDir)
		if err != nil {
			return fmt.Errorf("failed to load patterns: %w", err)
		}
		printLibrary(cmd.OutOrStdout(), lib)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func printLibrary(w io.Writer, lib *pattern.Library) {
	fmt.Fprintf(w, "Testcases (%d):\n", len(lib.Testcases))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for i, tc := range lib.Testcases {
		fmt.Fprintf(w, "  %03d  %s\n", i, tc.Description)
		if tc.Type != "" {
			fmt.Fprintf(w, "       type: %s\n", tc.Type)
		}
		if labels := append(append([]string{}, tc.Tags...), tc.Features...); len(labels) > 0 {
			fmt.Fprintf(w, "       tags: %s\n", strings.Join(labels, ", "))
		}
	}

	fmt.Fprintf(w, "\nFlows (%d):\n", len(lib.Flows))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for i, f := range lib.Flows {
		expre := ""
		if f.UsesPool() {
			expre = "  [EXPRE]"
		}
		fmt.Fprintf(w, "  %03d  %s%s\n", i, f.Name, expre)
	}

	if len(lib.Packs) > 0 {
		fmt.Fprintln(w)
		printPacks(w, lib.Packs)
	}
}
