package kernels

import (
	"context"
	"fmt"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/exec"
)

const fifth = array.Scalar(1.0 / 5)

// Blur applies the 5-point average to every interior cell, launches times.
// Updates happen in place, so a cell may read neighbours already updated in
// the same launch; the border rows and columns are never written. Each
// launch is fenced before the next starts.
//
// Closure spaces split the interior rows into bands and sweep even bands,
// then odd bands. Two bands that run at the same time never share a row.
func (k *Runner) Blur(ctx context.Context, a *array.Array2D, launches int) error {
	if launches < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLaunches, launches)
	}
	b, err := resolve(a)
	if err != nil {
		return err
	}
	label := Label("BlurKernel", a)

	b.space.Fence()
	_, end := k.ranges.Push(ctx, label, k.ranges.Palette().Domain(a.Domain()))
	defer end()

	interior := exec.Interior(a)
	if interior.Empty() {
		return nil
	}

	if b.native != nil {
		for n := 0; n < launches; n++ {
			if err := b.native.BlurKernel(a); err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}
			b.space.Fence()
		}
		return nil
	}

	v, err := exec.ViewOf(a)
	if err != nil {
		return err
	}
	bands := splitBands(interior.I0, interior.I1, k.blurBands)
	sweep := func(first int) func(i, _ int) {
		return func(i, _ int) {
			band := bands[first+2*i]
			for r := band[0]; r < band[1]; r++ {
				for c := interior.J0; c < interior.J1; c++ {
					v.Set(r, c, fifth*(v.At(r-1, c)+v.At(r, c)+v.At(r+1, c)+v.At(r, c-1)+v.At(r, c+1)))
				}
			}
		}
	}

	even := (len(bands) + 1) / 2
	odd := len(bands) / 2
	for n := 0; n < launches; n++ {
		b.launcher.ParallelFor(label, exec.Range{I0: 0, I1: even, J0: 0, J1: 1}, sweep(0))
		if odd > 0 {
			b.launcher.ParallelFor(label, exec.Range{I0: 0, I1: odd, J0: 0, J1: 1}, sweep(1))
		}
		b.space.Fence()
	}
	return nil
}

// splitBands cuts rows [lo, hi) into at most n contiguous non-empty bands.
func splitBands(lo, hi, n int) [][2]int {
	rows := hi - lo
	n = max(min(n, rows), 1)
	size := (rows + n - 1) / n

	bands := make([][2]int, 0, n)
	for s := lo; s < hi; s += size {
		bands = append(bands, [2]int{s, min(s+size, hi)})
	}
	return bands
}
