package kernels

import (
	"context"
	"errors"
	"fmt"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/exec"
)

// ErrMismatch is returned by Result.Err when an array does not hold the
// expected pattern. It is a correctness error.
var ErrMismatch = errors.New("kernels: values do not match the expected pattern")

// Result is the outcome of Verify.
type Result struct {
	OK        bool
	Name      string
	Label     string
	Rows      int
	Cols      int
	Value     array.Scalar
	Tolerance array.Scalar
}

// Err returns nil for a passing result, otherwise an error wrapping ErrMismatch.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return fmt.Errorf("%w: %s (%s, %dx%d) is not value+i-j for value=%v within %g",
		ErrMismatch, r.Name, r.Label, r.Rows, r.Cols, r.Value, r.Tolerance)
}

func isEqual(a, b array.Scalar) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < Tolerance
}

// Verify fences a's space and checks |a(i,j) - (value + i - j)| < Tolerance
// for every element with a parallel AND reduction. The returned error covers
// failures to run the check; a mismatch is reported through Result.
func (k *Runner) Verify(ctx context.Context, a *array.Array2D, value array.Scalar) (Result, error) {
	b, err := resolve(a)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Name:      a.Name(),
		Label:     a.Label(),
		Rows:      a.Rows(),
		Cols:      a.Cols(),
		Value:     value,
		Tolerance: Tolerance,
	}

	b.space.Fence()
	_, end := k.ranges.Push(ctx, "check", k.ranges.Palette().Check)
	defer end()

	if b.native != nil {
		ok, err := b.native.CheckKernel(a, value, Tolerance)
		if err != nil {
			return Result{}, fmt.Errorf("CheckValues %s: %w", a.Label(), err)
		}
		res.OK = ok
	} else {
		v, err := exec.ViewOf(a)
		if err != nil {
			return Result{}, err
		}
		res.OK = b.launcher.ParallelReduceAnd("CheckValues", exec.Full(a), func(i, j int) bool {
			return isEqual(v.At(i, j), expected(value, i, j))
		})
	}

	k.logger.Debug("verified", "array", a.Name(), "ok", res.OK)
	return res, nil
}
