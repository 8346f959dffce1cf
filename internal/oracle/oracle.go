// Package oracle classifies a detector's outcomes on the POS and NEG
// program of one candidate.
package oracle

import "time"

type Verdict string

const (
	Error         Verdict = "ER"
	TruePositive  Verdict = "TP"
	FalsePositive Verdict = "FP"
	FalseNegative Verdict = "FN"
	TrueNegative  Verdict = "TN"
)

// Outcome is the raw result of one detector process.
type Outcome struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Success reports whether the detector ran without tool failure.
func (o Outcome) Success() bool {
	return o.ExitCode == 0
}

// Flagged reports whether the detector reported a bug.
func (o Outcome) Flagged() bool {
	return len(o.Stdout) > 0
}

// Verdicts is the (POS, NEG) verdict pair of one candidate.
type Verdicts struct {
	Pos Verdict `json:"pos"`
	Neg Verdict `json:"neg"`
}

// Evaluate maps the outcome pair into the verdict taxonomy. A non-zero exit is
// Error for that side regardless of output.
func Evaluate(pos, neg Outcome) Verdicts {
	v := Verdicts{Pos: Error, Neg: Error}
	if pos.Success() {
		v.Pos = FalseNegative
		if pos.Flagged() {
			v.Pos = TruePositive
		}
	}
	if neg.Success() {
		v.Neg = TrueNegative
		if neg.Flagged() {
			v.Neg = FalsePositive
		}
	}
	return v
}

// Robust reports whether the detector was right on both sides.
func (v Verdicts) Robust() bool {
	return v.Pos == TruePositive && v.Neg == TrueNegative
}

type Category string

const (
	CategoryError                 Category = "Error"
	CategoryRobust                Category = "True Positive & Negative"
	CategoryFalsePositive         Category = "False Positive"
	CategoryFalsePositiveNegative Category = "False Positive & Negative"
	CategoryFalseNegative         Category = "False Negative"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryRobust,
	CategoryFalsePositive,
	CategoryFalseNegative,
	CategoryFalsePositiveNegative,
	CategoryError,
}

// Category folds the pair into a single label. Any Error side wins.
func (v Verdicts) Category() Category {
	switch {
	case v.Pos == Error || v.Neg == Error:
		return CategoryError
	case v.Pos == TruePositive && v.Neg == TrueNegative:
		return CategoryRobust
	case v.Pos == TruePositive && v.Neg == FalsePositive:
		return CategoryFalsePositive
	case v.Pos == FalseNegative && v.Neg == FalsePositive:
		return CategoryFalsePositiveNegative
	default:
		return CategoryFalseNegative
	}
}

// Color is the Graphviz fill color used for the category.
func (c Category) Color() string {
	switch c {
	case CategoryRobust:
		return "green"
	case CategoryFalsePositive:
		return "blue"
	case CategoryFalseNegative:
		return "orange"
	case CategoryFalsePositiveNegative:
		return "purple"
	default:
		return "red"
	}
}

func (v Verdicts) String() string {
	return string(v.Pos) + "/" + string(v.Neg)
}
