// Package kernels implements the element-wise kernels of a transfer run:
// initialization, the blur stencil, the order-converting transpose copy, and
// the equality check.
package kernels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/exec"
	"github.com/born-ml/xfer/internal/instrument"
)

// Kernel errors. Shape and domain mismatches are configuration errors.
var (
	ErrShapeMismatch   = errors.New("kernels: shapes differ")
	ErrDomainMismatch  = errors.New("kernels: arrays live in different spaces")
	ErrInvalidLaunches = errors.New("kernels: launch count must be at least 1")
	ErrUnsupported     = errors.New("kernels: space runs neither closures nor native kernels")
)

// Tolerance is the absolute difference under which two elements compare equal.
const Tolerance = 100 * array.Epsilon

// Runner launches kernels on whichever space owns their arrays.
type Runner struct {
	ranges    *instrument.Ranges
	logger    *slog.Logger
	blurBands int
}

// Option configures a Runner.
type Option func(*Runner)

// WithRanges wraps every kernel in a named range.
func WithRanges(r *instrument.Ranges) Option {
	return func(k *Runner) { k.ranges = r }
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(k *Runner) { k.logger = l }
}

// WithBlurBands sets how many row bands Blur splits the interior into.
// One band makes Blur a plain sequential sweep. Zero picks a default.
func WithBlurBands(n int) Option {
	return func(k *Runner) { k.blurBands = n }
}

// NewRunner creates a kernel runner.
func NewRunner(opts ...Option) *Runner {
	k := &Runner{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.blurBands <= 0 {
		k.blurBands = 2 * runtime.NumCPU()
	}
	return k
}

// Label returns the range name of a kernel on a, e.g. "InitKernel LR Host".
func Label(kernel string, a *array.Array2D) string {
	return kernel + " " + a.Label()
}

// backend resolves how kernels run on a's space.
type backend struct {
	space    exec.Space
	native   exec.Native
	launcher exec.Launcher
}

func resolve(a *array.Array2D) (backend, error) {
	space, err := exec.SpaceOf(a)
	if err != nil {
		return backend{}, err
	}
	b := backend{space: space}
	if n, ok := space.(exec.Native); ok {
		b.native = n
		return b, nil
	}
	if l, ok := space.(exec.Launcher); ok {
		b.launcher = l
		return b, nil
	}
	return backend{}, fmt.Errorf("%w: %s", ErrUnsupported, space.Name())
}

// expected is the closed-form pattern written by Initialize.
func expected(value array.Scalar, i, j int) array.Scalar {
	return value + array.Scalar(i) - array.Scalar(j)
}

// Initialize sets a(i, j) = value + i - j for every element.
func (k *Runner) Initialize(ctx context.Context, a *array.Array2D, value array.Scalar) error {
	b, err := resolve(a)
	if err != nil {
		return err
	}
	label := Label("InitKernel", a)

	b.space.Fence()
	_, end := k.ranges.Push(ctx, label, k.ranges.Palette().Domain(a.Domain()))
	defer end()

	if b.native != nil {
		if err := b.native.InitKernel(a, value); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
	} else {
		v, err := exec.ViewOf(a)
		if err != nil {
			return err
		}
		b.launcher.ParallelFor(label, exec.Full(a), func(i, j int) {
			v.Set(i, j, expected(value, i, j))
		})
	}

	b.space.Fence()
	k.logger.Debug("initialized", "array", a.Name(), "value", value)
	return nil
}

// TransposeCopy copies src into dst element by element, preserving logical
// indices, launches times. Both arrays must be in the same space; their
// orders may differ.
func (k *Runner) TransposeCopy(ctx context.Context, dst, src *array.Array2D, launches int) error {
	if !dst.SameShape(src) {
		return fmt.Errorf("%w: transpose %s <- %s", ErrShapeMismatch, dst, src)
	}
	if dst.Space() != src.Space() {
		return fmt.Errorf("%w: transpose %s <- %s", ErrDomainMismatch, dst, src)
	}
	if launches < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidLaunches, launches)
	}

	b, err := resolve(dst)
	if err != nil {
		return err
	}
	label := Label("TransposeKernel", dst)

	b.space.Fence()
	_, end := k.ranges.Push(ctx, label, k.ranges.Palette().Domain(dst.Domain()))
	defer end()

	var dv, sv exec.View
	if b.native == nil {
		if dv, err = exec.ViewOf(dst); err != nil {
			return err
		}
		if sv, err = exec.ViewOf(src); err != nil {
			return err
		}
	}

	for n := 0; n < launches; n++ {
		if b.native != nil {
			if err := b.native.TransposeKernel(dst, src); err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}
		} else {
			b.launcher.ParallelFor(label, exec.Full(dst), func(i, j int) {
				dv.Set(i, j, sv.At(i, j))
			})
		}
		b.space.Fence()
	}
	return nil
}
