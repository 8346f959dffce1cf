// Package program holds the generated program text model: candidate
// expressions produced by flow expansion, the pool of accepted candidates
// they are sampled from, and the compile-ready Program written into a
// harness before each detector run.
package program

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// SourcePlaceholder marks the hole a carrier expression is nested into.
const SourcePlaceholder = "SOURCE!()"

// Expr is one generated candidate variant. It is immutable once created.
type Expr struct {
	ID       string // "<index>-<length>-<depth>", unique within one search
	Code     string
	Length   int // flow applications since the seed
	Depth    int // deepest EXPRE!() substitution chain
	Metadata string
}

// NewExpr builds an Expr whose identity encodes the discovery index together
// with its length and depth.
func NewExpr(index int, code string, length, depth int, metadata string) Expr {
	return Expr{
		ID:       FormatID(index, length, depth),
		Code:     code,
		Length:   length,
		Depth:    depth,
		Metadata: metadata,
	}
}

// FormatID renders a candidate identity.
func FormatID(index, length, depth int) string {
	return fmt.Sprintf("%04d-%d-%d", index, length, depth)
}

// Source returns the seed candidate: a bare placeholder at length 0, depth 0.
func Source() Expr {
	return NewExpr(0, SourcePlaceholder, 0, 0, "")
}

// FillSource replaces every SOURCE!() in the candidate with src.
func (e Expr) FillSource(src string) string {
	return strings.ReplaceAll(e.Code, SourcePlaceholder, src)
}

// Pool is the append-only set of accepted candidates of one search.
type Pool struct {
	exprs []Expr
}

// NewPool creates a pool seeded with the given candidates.
func NewPool(seed ...Expr) *Pool {
	p := &Pool{}
	p.exprs = append(p.exprs, seed...)
	return p
}

// Push appends an accepted candidate.
func (p *Pool) Push(e Expr) {
	p.exprs = append(p.exprs, e)
}

// Len reports how many candidates have been accepted.
func (p *Pool) Len() int {
	return len(p.exprs)
}

// Random draws one candidate uniformly. ok is false when the pool is empty.
func (p *Pool) Random(r *rand.Rand) (Expr, bool) {
	if len(p.exprs) == 0 {
		return Expr{}, false
	}
	return p.exprs[r.IntN(len(p.exprs))], true
}

// Program is a compile-ready unit written verbatim into a harness.
type Program struct {
	Code     string
	Metadata string // comment-formatted program information
}

// New creates a Program.
func New(code, metadata string) Program {
	return Program{Code: code, Metadata: metadata}
}

// Text is the exact file content written for the program. Metadata is kept
// out of the file so detector line numbers match the generated code.
func (p Program) Text() string {
	return p.Code
}
