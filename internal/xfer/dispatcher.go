package xfer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/exec"
	"github.com/born-ml/xfer/internal/instrument"
	"github.com/born-ml/xfer/internal/kernels"
)

// Dispatcher executes transfer plans.
type Dispatcher struct {
	kernels           *kernels.Runner
	ranges            *instrument.Ranges
	logger            *slog.Logger
	transposeLaunches int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRanges annotates every phase of a transfer.
func WithRanges(r *instrument.Ranges) Option {
	return func(d *Dispatcher) { d.ranges = r }
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithTransposeLaunches sets how many times the transpose kernel is launched
// per kernel conversion (benchmarking only; the result is the same).
func WithTransposeLaunches(n int) Option {
	return func(d *Dispatcher) { d.transposeLaunches = n }
}

// NewDispatcher creates a dispatcher that runs conversion kernels through k.
func NewDispatcher(k *kernels.Runner, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		kernels:           k,
		logger:            slog.New(slog.DiscardHandler),
		transposeLaunches: 1,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.transposeLaunches < 1 {
		d.transposeLaunches = 1
	}
	return d
}

// direction returns "H2D", "D2H" or "" for same-domain copies.
func direction(src, dst array.Domain) string {
	switch {
	case src == array.Host && dst == array.Accelerator:
		return "H2D"
	case src == array.Accelerator && dst == array.Host:
		return "D2H"
	default:
		return ""
	}
}

// rangeName is the name of the range enclosing a whole transfer.
func rangeName(p Plan, src, dst array.Domain) string {
	switch p.Case {
	case SameDomain:
		return "deep copy within " + src.String()
	case CrossDomain:
		return "deep copy " + direction(src, dst)
	default:
		return fmt.Sprintf("deep copy %s transpose on %s", direction(src, dst), p.Staging)
	}
}

// Transfer copies src into dst so that dst(i, j) == src(i, j) for every
// logical index, whatever the domains and orders of the two arrays.
//
// staging picks the domain that pays for an order conversion when both the
// domain and the order differ; it must be src's or dst's domain. method picks
// between the in-domain copy and the transpose kernel for that conversion.
//
// All preconditions are checked before anything is allocated or written. A
// temporary buffer, when one is needed, is fenced and released before
// Transfer returns. dst's domain is fenced on success.
func (d *Dispatcher) Transfer(ctx context.Context, dst, src *array.Array2D, staging array.Domain, method Method) error {
	plan, err := PlanTransfer(Describe(dst), Describe(src), staging, method)
	if err != nil {
		return err
	}

	srcSpace, err := exec.SpaceOf(src)
	if err != nil {
		return err
	}
	dstSpace, err := exec.SpaceOf(dst)
	if err != nil {
		return err
	}
	if plan.Case == SameDomain && srcSpace != dstSpace {
		return fmt.Errorf("%w: %s and %s", ErrSharedDomain, srcSpace.Name(), dstSpace.Name())
	}

	d.logger.Debug("transfer",
		"src", src.String(),
		"dst", dst.String(),
		"case", plan.Case.String(),
		"staging", staging.String(),
		"method", method.String(),
	)

	palette := d.ranges.Palette()
	ctx, end := d.ranges.Push(ctx, rangeName(plan, src.Domain(), dst.Domain()), palette.Direction(src.Domain(), dst.Domain()))
	defer end()

	spaceIn := func(dom array.Domain) exec.Space {
		if dom == src.Domain() {
			return srcSpace
		}
		return dstSpace
	}

	var temp *array.Array2D
	operand := func(o Operand) *array.Array2D {
		switch o {
		case Src:
			return src
		case Dst:
			return dst
		default:
			return temp
		}
	}

	for _, step := range plan.Steps {
		switch step.Kind {
		case Allocate:
			tempSpace := spaceIn(step.Domain)
			name := "buffer_" + direction(src.Domain(), dst.Domain())
			_, endAlloc := d.ranges.Push(ctx, "allocate buffer", palette.Domain(step.Domain))
			temp, err = array.New(name, src.Rows(), src.Cols(), plan.TempOrder, tempSpace)
			endAlloc()
			if err != nil {
				return fmt.Errorf("xfer: %s: %w", plan.Case, err)
			}
			defer func(buf *array.Array2D) {
				// Work on the buffer may still be queued.
				tempSpace.Fence()
				buf.Release()
			}(temp)

		case CopyWithin:
			to, from := operand(step.To), operand(step.From)
			space := spaceIn(step.Domain)
			_, endCopy := d.ranges.Push(ctx, "deep copy "+to.Label()+" <- "+from.Label(), palette.Domain(step.Domain))
			err = space.CopyWithin(to, from)
			endCopy()
			if err != nil {
				return fmt.Errorf("xfer: %s: %w", plan.Case, err)
			}

		case Transpose:
			if err := d.kernels.TransposeCopy(ctx, operand(step.To), operand(step.From), d.transposeLaunches); err != nil {
				return fmt.Errorf("xfer: %s: %w", plan.Case, err)
			}

		case DeepCopy:
			to, from := operand(step.To), operand(step.From)
			_, endCopy := d.ranges.Push(ctx, "deep copy "+direction(from.Domain(), to.Domain()), palette.Direction(from.Domain(), to.Domain()))
			err = exec.DeepCopy(to, from)
			endCopy()
			if err != nil {
				return fmt.Errorf("xfer: %s: %w", plan.Case, err)
			}
		}
	}

	dstSpace.Fence()
	return nil
}
