// Package search explores the variants of one bug pattern breadth-first.
//
// The seed (the bare pattern) is evaluated first. Only a robust seed is
// expanded: every frontier candidate is passed through each flow in order,
// the result is evaluated, attached to the tree under its carrier, and pushed
// back onto the frontier when it is robust and still within the length and
// depth limits.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/flowprobe/flowprobe/internal/evaltree"
	"github.com/flowprobe/flowprobe/internal/oracle"
	"github.com/flowprobe/flowprobe/internal/pattern"
	"github.com/flowprobe/flowprobe/internal/program"
	"github.com/flowprobe/flowprobe/internal/report"
)

// Runner executes one program through the detector.
type Runner interface {
	Execute(ctx context.Context, p program.Program) (oracle.Outcome, error)
}

// Limits bound the search. A candidate is only expanded while both its
// length and depth are strictly below the limits.
type Limits struct {
	MaxLength int
	MaxDepth  int
}

func (l Limits) allow(e program.Expr) bool {
	return e.Length < l.MaxLength && e.Depth < l.MaxDepth
}

// Variant is one evaluated candidate.
type Variant struct {
	Testcase int
	Expr     program.Expr
	Parent   string // empty for the seed
	Flow     string // empty for the seed
	Pos, Neg program.Program
	PosOut   oracle.Outcome
	NegOut   oracle.Outcome
	Verdicts oracle.Verdicts
	Expanded bool // pushed onto the frontier
}

// Observer is told about every evaluated variant, in evaluation order.
// Returning an error aborts the search.
type Observer interface {
	Observe(ctx context.Context, v Variant) error
}

type ObserverFunc func(ctx context.Context, v Variant) error

func (f ObserverFunc) Observe(ctx context.Context, v Variant) error {
	return f(ctx, v)
}

// Engine searches a single pattern. It is not safe for concurrent use; run
// one Engine per pattern.
type Engine struct {
	Index    int
	Testcase *pattern.Testcase
	Flows    []pattern.Flow
	Runner   Runner
	Limits   Limits
	Rand     *rand.Rand
	Observer Observer
	Logger   *slog.Logger
}

type Result struct {
	Tree       *evaltree.Tree
	Summary    report.Summary
	Expansions int
}

// Run performs the search. Errors are fatal for the pattern: a detector that
// cannot be spawned, a flow that cannot be expanded, or a broken tree.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	res := &Result{
		Tree:    evaltree.New(),
		Summary: report.NewSummary(e.Index),
	}

	seed := program.Source()
	v, err := e.evaluate(ctx, seed, "", "")
	if err != nil {
		return nil, err
	}
	res.Summary.Count(v.Verdicts)
	res.Tree.SetRoot(seed.ID, v.Verdicts)
	v.Expanded = v.Verdicts.Robust()
	if err := e.observe(ctx, v); err != nil {
		return nil, err
	}

	if !v.Verdicts.Robust() {
		logger.Info("seed is not robust, skipping expansion", "verdict", v.Verdicts.String())
		return res, nil
	}

	pool := program.NewPool(seed)
	queue := []program.Expr{seed}
	for len(queue) > 0 {
		src := queue[0]
		queue = queue[1:]

		for _, flow := range e.Flows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			expr, err := flow.IntoExpr(res.Tree.Len(), src, pool, e.Testcase, e.Rand)
			if err != nil {
				return nil, fmt.Errorf("testcase %d: expand %s: %w", e.Index, src.ID, err)
			}

			v, err := e.evaluate(ctx, expr, src.ID, flow.Name)
			if err != nil {
				return nil, err
			}
			res.Summary.Count(v.Verdicts)
			if err := res.Tree.AddChild(src.ID, expr.ID, v.Verdicts); err != nil {
				return nil, fmt.Errorf("testcase %d: %w", e.Index, err)
			}

			if v.Verdicts.Robust() && e.Limits.allow(expr) {
				queue = append(queue, expr)
				pool.Push(expr)
				v.Expanded = true
				res.Expansions++
			}
			if err := e.observe(ctx, v); err != nil {
				return nil, err
			}
		}
	}

	logger.Info("search finished",
		"variants", res.Summary.Variants,
		"robust", res.Summary.Robust,
		"expansions", res.Expansions)
	return res, nil
}

func (e *Engine) evaluate(ctx context.Context, expr program.Expr, parent, flow string) (Variant, error) {
	pos, neg := e.Testcase.Programs(expr)

	posOut, err := e.Runner.Execute(ctx, pos)
	if err != nil {
		return Variant{}, fmt.Errorf("testcase %d: %s POS: %w", e.Index, expr.ID, err)
	}
	negOut, err := e.Runner.Execute(ctx, neg)
	if err != nil {
		return Variant{}, fmt.Errorf("testcase %d: %s NEG: %w", e.Index, expr.ID, err)
	}

	return Variant{
		Testcase: e.Index,
		Expr:     expr,
		Parent:   parent,
		Flow:     flow,
		Pos:      pos,
		Neg:      neg,
		PosOut:   posOut,
		NegOut:   negOut,
		Verdicts: oracle.Evaluate(posOut, negOut),
	}, nil
}

func (e *Engine) observe(ctx context.Context, v Variant) error {
	if e.Observer == nil {
		return nil
	}
	return e.Observer.Observe(ctx, v)
}
