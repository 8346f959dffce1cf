package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set at link time:
//
//	go build -ldflags "-X github.com/flowprobe/flowprobe/internal/cli.Version=v0.2.0 \
//	  -X github.com/flowprobe/flowprobe/internal/cli.GitCommit=$(git rev-parse --short HEAD) \
//	  -X github.com/flowprobe/flowprobe/internal/cli.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/flowprobe
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print flowprobe version",
	Run: func(cmd *cobra.Command, args []string) {
		version, commit, built := buildInfo()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "flowprobe %s\n", version)
		fmt.Fprintf(out, "  Commit: %s\n", commit)
		fmt.Fprintf(out, "  Built:  %s\n", built)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// buildInfo prefers the linker-set values and falls back to what the Go
// toolchain embedded for `go install` builds.
func buildInfo() (version, commit, built string) {
	version, commit, built = Version, GitCommit, BuildDate

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "0.1.0-dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "unknown" && len(s.Value) >= 7 {
				commit = s.Value[:7]
			}
		case "vcs.time":
			if built == "unknown" {
				built = s.Value
			}
		}
	}
	return
}
