package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowprobe/flowprobe/internal/pattern"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Manage pattern packs",
	Long: `Manage flowprobe pattern packs.

Pattern packs are YAML files of extra bug patterns stored in <config>/packs/.
Enabled packs are appended after testcases.yaml, so base indices never shift.
A file whose name starts with an underscore is disabled.

Examples:
  flowprobe pack list                  # List installed packs
  flowprobe pack enable concurrency    # Enable a pack
  flowprobe pack disable unsafe-ffi    # Disable a pack
  flowprobe pack show concurrency      # Show pack contents`,
}

var packListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed pattern packs",
	RunE:  packList,
}

var packEnableCmd = &cobra.Command{
	Use:   "enable <pack-name>",
	Short: "Enable a disabled pattern pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packEnable,
}

var packDisableCmd = &cobra.Command{
	Use:   "disable <pack-name>",
	Short: "Disable a pattern pack (prefix with underscore)",
	Args:  cobra.ExactArgs(1),
	RunE:  packDisable,
}

var packShowCmd = &cobra.Command{
	Use:   "show <pack-name>",
	Short: "Show a pattern pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packShow,
}

func init() {
	packCmd.AddCommand(packListCmd)
	packCmd.AddCommand(packEnableCmd)
	packCmd.AddCommand(packDisableCmd)
	packCmd.AddCommand(packShowCmd)
	rootCmd.AddCommand(packCmd)
}

func packsDir() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.ConfigDir, pattern.PacksDir), nil
}

func packList(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	_, infos, err := pattern.LoadPacks(dir)
	if err != nil {
		return fmt.Errorf("failed to load packs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No pattern packs installed.")
		fmt.Fprintf(out, "\nTo install packs, copy YAML files to: %s\n", dir)
		return nil
	}
	printPacks(out, infos)
	fmt.Fprintf(out, "\nPacks directory: %s\n", dir)
	return nil
}

func printPacks(w io.Writer, infos []pattern.PackInfo) {
	fmt.Fprintln(w, "Pattern Packs:")
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for _, info := range infos {
		status := "\xe2\x9c\x85" // check mark
		if !info.Enabled {
			status = "\xe2\x9d\x8c" // cross mark
		}
		fmt.Fprintf(w, "  %s  %-25s %s\n", status, info.Name, info.Description)
		if info.Err != nil {
			fmt.Fprintf(w, "       error: %v\n", info.Err)
			continue
		}
		if info.Version != "" {
			fmt.Fprintf(w, "       v%s by %s  (%d testcases)\n", info.Version, info.Author, info.TestcaseCount)
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", 60))
}

// togglePack renames <name>.yaml to _<name>.yaml or back.
func togglePack(dir, name string, enable bool) (changed bool, err error) {
	enabledPath := filepath.Join(dir, name+".yaml")
	disabledPath := filepath.Join(dir, "_"+name+".yaml")

	from, to := enabledPath, disabledPath
	if enable {
		from, to = disabledPath, enabledPath
	}

	if _, err := os.Stat(from); err == nil {
		if err := os.Rename(from, to); err != nil {
			return false, err
		}
		return true, nil
	}
	if _, err := os.Stat(to); err == nil {
		return false, nil
	}
	return false, fmt.Errorf("pack '%s' not found in %s", name, dir)
}

func packEnable(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	changed, err := togglePack(dir, args[0], true)
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintf(cmd.OutOrStdout(), "\xe2\x9c\x85 Pack '%s' enabled.\n", args[0])
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Pack '%s' is already enabled.\n", args[0])
	}
	return nil
}

func packDisable(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	changed, err := togglePack(dir, args[0], false)
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintf(cmd.OutOrStdout(), "\xe2\x9d\x8c Pack '%s' disabled.\n", args[0])
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Pack '%s' is already disabled.\n", args[0])
	}
	return nil
}

func packShow(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	name := args[0]

	// Try enabled, then disabled
	path := filepath.Join(dir, name+".yaml")
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(dir, "_"+name+".yaml")
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("pack '%s' not found in %s", name, dir)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
