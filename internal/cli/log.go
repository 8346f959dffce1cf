package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowprobe/flowprobe/internal/journal"
	"github.com/flowprobe/flowprobe/internal/oracle"
	"github.com/flowprobe/flowprobe/internal/report"
)

var (
	logFilterTestcase int
	logFilterVerdict  string
	logLast           int
	logSummary        bool
)

var logCmd = &cobra.Command{
	Use:   "log <tool-name>",
	Short: "View and filter the evaluation journal",
	Long: `View the journal of a tool's evaluations with filtering and summary options.

The journal lives in <output>/<tool-name>/journal.jsonl and keeps one entry per
evaluated variant across all runs.

Examples:
  flowprobe log Safedrop                          # Show all entries
  flowprobe log Safedrop --last 20                # Show last 20 entries
  flowprobe log Safedrop --testcase 3             # Only testcase 3
  flowprobe log Safedrop --verdict FN             # Missed bugs on either side
  flowprobe log Safedrop --verdict "False Positive"
  flowprobe log Safedrop --summary                # Per-testcase statistics`,
	Args: cobra.ExactArgs(1),
	RunE: logCommand,
}

func init() {
	logCmd.Flags().IntVar(&logFilterTestcase, "testcase", -1, "Filter by testcase index")
	logCmd.Flags().StringVar(&logFilterVerdict, "verdict", "", "Filter by category or side verdict (TP, FN, FP, TN, ER)")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := filepath.Join(cfg.ResultsDir(args[0]), journal.DefaultFile)
	events, err := journal.Read(path)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, "No journal entries found.")
		return nil
	}

	filtered := filterEvents(events, logFilterTestcase, logFilterVerdict)
	if len(filtered) == 0 {
		fmt.Fprintln(out, "No journal entries match the filters.")
		return nil
	}

	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}

	if logSummary {
		return printSummary(out, filtered)
	}

	printEvents(out, filtered)
	return nil
}

// filterEvents keeps events of one testcase (negative means any) whose
// category or either side verdict matches verdict (empty means any).
func filterEvents(events []journal.Event, testcase int, verdict string) []journal.Event {
	if testcase < 0 && verdict == "" {
		return events
	}

	var filtered []journal.Event
	for _, e := range events {
		if testcase >= 0 && e.Testcase != testcase {
			continue
		}
		if verdict != "" &&
			!strings.EqualFold(e.Category, verdict) &&
			!strings.EqualFold(e.Pos, verdict) &&
			!strings.EqualFold(e.Neg, verdict) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func printEvents(w io.Writer, events []journal.Event) {
	for _, e := range events {
		ts := formatTimestamp(e.Timestamp)
		icon := categoryIcon(oracle.Category(e.Category))
		expanded := ""
		if e.Expanded {
			expanded = " [EXPANDED]"
		}

		fmt.Fprintf(w, "%s %s testcase-%03d %s %s/%s%s\n", icon, ts, e.Testcase, e.ID, e.Pos, e.Neg, expanded)
		if e.Parent != "" {
			fmt.Fprintf(w, "     Parent: %s via %s\n", e.Parent, e.Flow)
		}
		fmt.Fprintf(w, "     Exit: pos=%d neg=%d  Duration: %dms\n", e.PosExit, e.NegExit, e.DurationMs)
		fmt.Fprintln(w)
	}
}

// printSummary folds the events back into per-testcase summaries.
func printSummary(w io.Writer, events []journal.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(w, "No journal entries found.")
		return nil
	}

	var summaries []report.Summary
	byIndex := map[int]int{}
	counts := map[oracle.Category]int{}
	runs := map[string]bool{}

	for _, e := range events {
		i, ok := byIndex[e.Testcase]
		if !ok {
			i = len(summaries)
			byIndex[e.Testcase] = i
			summaries = append(summaries, report.NewSummary(e.Testcase))
		}
		summaries[i].Count(oracle.Verdicts{Pos: oracle.Verdict(e.Pos), Neg: oracle.Verdict(e.Neg)})
		counts[oracle.Category(e.Category)]++
		runs[e.RunID] = true
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintln(w, "  flowprobe Journal Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  Variants:        %d\n", len(events))
	fmt.Fprintf(w, "  Runs:            %d\n", len(runs))
	for _, c := range oracle.Categories {
		fmt.Fprintf(w, "  %-26s %5d  %s\n", string(c)+":", counts[c], report.Percent(counts[c], len(events)))
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════")

	fmt.Fprintf(w, "  First event:     %s\n", formatTimestamp(events[0].Timestamp))
	fmt.Fprintf(w, "  Last event:      %s\n", formatTimestamp(events[len(events)-1].Timestamp))
	fmt.Fprintln(w)

	return report.RenderSummaries(w, summaries, styledOutput(w))
}

func categoryIcon(c oracle.Category) string {
	switch c {
	case oracle.CategoryRobust:
		return "\xe2\x9c\x85" // check mark
	case oracle.CategoryError:
		return "\xf0\x9f\x92\xa5" // collision
	case oracle.CategoryFalseNegative, oracle.CategoryFalsePositive, oracle.CategoryFalsePositiveNegative:
		return "\xe2\x9d\x8c" // cross mark
	default:
		return "\xe2\x9d\x93" // question mark
	}
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
