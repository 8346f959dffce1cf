// Package report aggregates verdicts into per-pattern summaries and a
// cross-pattern report.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/flowprobe/flowprobe/internal/oracle"
)

// Summary counts the verdicts of one pattern's search.
type Summary struct {
	Index    int `json:"index"`
	Variants int `json:"variants"`
	Robust   int `json:"robust"`
	TP       int `json:"tp"`
	FN       int `json:"fn"`
	FP       int `json:"fp"`
	TN       int `json:"tn"`
	Err      int `json:"err"`
}

func NewSummary(index int) Summary {
	return Summary{Index: index}
}

// Count records one candidate. Error is counted once per failing side.
func (s *Summary) Count(v oracle.Verdicts) {
	s.Variants++
	switch v.Pos {
	case oracle.Error:
		s.Err++
	case oracle.TruePositive:
		s.TP++
	case oracle.FalseNegative:
		s.FN++
	}
	switch v.Neg {
	case oracle.Error:
		s.Err++
	case oracle.FalsePositive:
		s.FP++
	case oracle.TrueNegative:
		s.TN++
	}
	if v.Robust() {
		s.Robust++
	}
}

var csvHeader = []string{"ID", "Variants", "RD", "TP", "FN", "FP", "TN", "ER"}

func (s Summary) record() []string {
	return []string{
		fmt.Sprintf("%03d", s.Index),
		strconv.Itoa(s.Variants),
		strconv.Itoa(s.Robust),
		strconv.Itoa(s.TP),
		strconv.Itoa(s.FN),
		strconv.Itoa(s.FP),
		strconv.Itoa(s.TN),
		strconv.Itoa(s.Err),
	}
}

// WriteCSV writes one row per summary after a header row.
func WriteCSV(w io.Writer, summaries []Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		if err := cw.Write(s.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates path and writes the summaries to it.
func WriteCSVFile(path string, summaries []Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, summaries); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
