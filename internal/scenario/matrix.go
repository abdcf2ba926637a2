package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/xfer"
)

// Combination is one transfer request shape of the matrix.
type Combination struct {
	SrcDomain, DstDomain array.Domain
	SrcOrder, DstOrder   array.Order
	Staging              array.Domain
	Method               xfer.Method
}

// String renders the combination, e.g. "LR Host -> LL Device staged on Host (kernel)".
func (c Combination) String() string {
	return fmt.Sprintf("%s %s -> %s %s staged on %s (%s)",
		c.SrcOrder.Short(), c.SrcDomain, c.DstOrder.Short(), c.DstDomain, c.Staging, c.Method)
}

// Combinations enumerates every transfer that moves data across a domain or
// an order boundary, with each legal staging domain and both methods.
func Combinations() []Combination {
	var out []Combination
	for _, sd := range array.Domains() {
		for _, dd := range array.Domains() {
			for _, so := range array.Orders() {
				for _, do := range array.Orders() {
					if sd == dd && so == do {
						continue
					}
					stagings := []array.Domain{sd}
					if dd != sd {
						stagings = append(stagings, dd)
					}
					for _, st := range stagings {
						for _, m := range xfer.Methods() {
							out = append(out, Combination{
								SrcDomain: sd, DstDomain: dd,
								SrcOrder: so, DstOrder: do,
								Staging: st, Method: m,
							})
						}
					}
				}
			}
		}
	}
	return out
}

// Outcome is the result of one combination.
type Outcome struct {
	Combination Combination
	Case        xfer.Case
	Duration    time.Duration
}

// Matrix runs every combination on fresh rows x cols arrays: initialize the
// source with value, transfer, verify the destination. The first failure
// aborts the run.
func Matrix(ctx context.Context, e Env, rows, cols int, value array.Scalar) ([]Outcome, error) {
	log := e.logger()
	var out []Outcome

	for _, c := range Combinations() {
		o, err := e.runCombination(ctx, c, rows, cols, value)
		if err != nil {
			return out, fmt.Errorf("%s: %w", c, err)
		}
		log.Debug("combination passed", "combination", c.String(), "case", o.Case.String(), "duration", o.Duration)
		out = append(out, o)
	}

	log.Info("matrix complete", "combinations", len(out), "rows", rows, "cols", cols)
	return out, nil
}

func (e Env) runCombination(ctx context.Context, c Combination, rows, cols int, value array.Scalar) (Outcome, error) {
	src, err := array.New("src", rows, cols, c.SrcOrder, e.space(c.SrcDomain))
	if err != nil {
		return Outcome{}, err
	}
	defer src.Release()
	dst, err := array.New("dst", rows, cols, c.DstOrder, e.space(c.DstDomain))
	if err != nil {
		return Outcome{}, err
	}
	defer dst.Release()

	plan, err := xfer.PlanTransfer(xfer.Describe(dst), xfer.Describe(src), c.Staging, c.Method)
	if err != nil {
		return Outcome{}, err
	}

	if err := e.Kernels.Initialize(ctx, src, value); err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	if err := e.Dispatcher.Transfer(ctx, dst, src, c.Staging, c.Method); err != nil {
		return Outcome{}, err
	}
	elapsed := time.Since(start)

	res, err := e.Kernels.Verify(ctx, dst, value)
	if err != nil {
		return Outcome{}, err
	}
	if err := res.Err(); err != nil {
		return Outcome{}, err
	}
	return Outcome{Combination: c, Case: plan.Case, Duration: elapsed}, nil
}
