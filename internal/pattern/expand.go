// Package pattern loads bug patterns and flow templates and implements the
// textual template expansion that turns them into candidate programs.
package pattern

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/flowprobe/flowprobe/internal/program"
)

const (
	typePlaceholder  = "TYPE!()"
	valuePlaceholder = "VALUE!()"
	condPlaceholder  = "COND!()"
)

// exprePattern matches EXPRE!(param), non-greedy on the argument.
var exprePattern = regexp.MustCompile(`EXPRE!\((.*?)\)`)

// ErrEmptyPool is returned when a flow needs EXPRE!() candidates but none
// have been accepted yet.
var ErrEmptyPool = errors.New("no accepted candidates to fill EXPRE!()")

func block(code string) string {
	return "{\n" + code + "\n}"
}

// Nest places carrier into the case. The carrier's SOURCE!() receives the raw
// case source, the result is wrapped in a block and trimmed, then substituted
// into the case code. An empty carrier nests the bare source directly.
func (c Case) Nest(carrier string) string {
	if carrier == "" {
		return strings.ReplaceAll(c.Code, program.SourcePlaceholder, c.Source)
	}
	source := strings.TrimSpace(block(strings.ReplaceAll(carrier, program.SourcePlaceholder, c.Source)))
	return strings.ReplaceAll(c.Code, program.SourcePlaceholder, source)
}

// Programs builds the POS and NEG programs for a carrier. The seed candidate
// (length 0) is nested without a carrier.
func (tc *Testcase) Programs(e program.Expr) (pos, neg program.Program) {
	carrier := e.Code
	if e.Length == 0 {
		carrier = ""
	}
	return program.New(tc.Pos.Nest(carrier), ""), program.New(tc.Neg.Nest(carrier), "")
}

// UsesPool reports whether the flow samples accepted candidates.
func (f Flow) UsesPool() bool {
	return exprePattern.MatchString(f.Code)
}

// IntoExpr applies the flow to src. Every EXPRE!(param) site is filled with a
// uniformly drawn candidate from pool whose own SOURCE!() becomes param.
func (f Flow) IntoExpr(index int, src program.Expr, pool *program.Pool, tc *Testcase, r *rand.Rand) (program.Expr, error) {
	code := strings.Replace(f.Code, program.SourcePlaceholder, block(src.Code), 1)
	code = strings.ReplaceAll(code, typePlaceholder, tc.Type)
	code = strings.ReplaceAll(code, valuePlaceholder, tc.Value)
	code = strings.ReplaceAll(code, condPlaceholder, "true")

	depth := src.Depth
	var err error
	code = exprePattern.ReplaceAllStringFunc(code, func(site string) string {
		if err != nil {
			return site
		}
		sampled, ok := pool.Random(r)
		if !ok {
			err = fmt.Errorf("flow %q: %w", f.Name, ErrEmptyPool)
			return site
		}
		depth = max(depth, sampled.Depth+1)
		param := exprePattern.FindStringSubmatch(site)[1]
		return block(sampled.FillSource(param))
	})
	if err != nil {
		return program.Expr{}, err
	}

	return program.NewExpr(index, code, src.Length+1, depth, src.Metadata), nil
}
