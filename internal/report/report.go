package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Metric tallies, across patterns, how often a category occurred at all and
// how often it covered every variant of the pattern.
type Metric struct {
	Occurrence int `json:"occurrence"`
	Exact      int `json:"exact"`
}

// Count folds in one pattern's count for the category against its
// denominator.
func (m *Metric) Count(count, denominator int) {
	if count == 0 {
		return
	}
	m.Occurrence++
	if count == denominator {
		m.Exact++
	}
}

func (m Metric) String() string {
	return fmt.Sprintf("%d (%d)", m.Occurrence, m.Exact)
}

// Report is the cross-pattern rollup for one tool.
type Report struct {
	Tool          string `json:"tool"`
	Robust        Metric `json:"robust"`
	TruePositive  Metric `json:"true_positive"`
	FalseNegative Metric `json:"false_negative"`
	FalsePositive Metric `json:"false_positive"`
	TrueNegative  Metric `json:"true_negative"`
	Error         Metric `json:"error"`
}

// Build folds summaries into a Report. Error is measured against twice the
// variant count since both sides can fail.
func Build(tool string, summaries []Summary) Report {
	r := Report{Tool: tool}
	for _, s := range summaries {
		r.Add(s)
	}
	return r
}

// Add folds in one more summary.
func (r *Report) Add(s Summary) {
	r.Robust.Count(s.Robust, s.Variants)
	r.TruePositive.Count(s.TP, s.Variants)
	r.FalseNegative.Count(s.FN, s.Variants)
	r.FalsePositive.Count(s.FP, s.Variants)
	r.TrueNegative.Count(s.TN, s.Variants)
	r.Error.Count(s.Err, s.Variants*2)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(styled bool, headers ...string) *table.Table {
	t := table.New().Border(lipgloss.NormalBorder()).Headers(headers...)
	if styled {
		t = t.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	}
	return t
}

// Render prints the report as a table. styled enables colors and padding for
// terminals.
func Render(w io.Writer, r Report, styled bool) error {
	t := newTable(styled,
		"Tool", "Robust (RD)", "True Positive (TP)", "False Negative (FN)",
		"False Positive (FP)", "True Negative (TN)", "Error (ER)").
		Row(r.Tool,
			r.Robust.String(),
			r.TruePositive.String(),
			r.FalseNegative.String(),
			r.FalsePositive.String(),
			r.TrueNegative.String(),
			r.Error.String())
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// RenderSummaries prints one row per pattern.
func RenderSummaries(w io.Writer, summaries []Summary, styled bool) error {
	t := newTable(styled, csvHeader...)
	for _, s := range summaries {
		t = t.Row(s.record()...)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Percent formats part/whole, guarding against an empty whole.
func Percent(part, whole int) string {
	if whole == 0 {
		return "-"
	}
	return strconv.FormatFloat(float64(part)*100/float64(whole), 'f', 1, 64) + "%"
}
