package exec

import (
	"fmt"

	"github.com/born-ml/xfer/internal/array"
)

// DeepCopy is the bulk-copy primitive. It copies src into dst byte for byte,
// within a space or across spaces, and is only legal when both arrays share
// a storage order and shape. Both spaces are fenced first so pending writes
// to src and pending reads of dst complete before bytes move.
func DeepCopy(dst, src *array.Array2D) error {
	if !dst.SameShape(src) {
		return fmt.Errorf("%w: deep copy %s <- %s", ErrShapeMismatch, dst, src)
	}
	if dst.Order() != src.Order() {
		return fmt.Errorf("%w: deep copy %s <- %s", ErrOrderMismatch, dst, src)
	}
	if dst == src {
		return nil
	}

	srcSpace, err := SpaceOf(src)
	if err != nil {
		return err
	}
	dstSpace, err := SpaceOf(dst)
	if err != nil {
		return err
	}

	srcSpace.Fence()
	if dstSpace != srcSpace {
		dstSpace.Fence()
	}

	if dstSpace == srcSpace {
		if err := srcSpace.CopyWithin(dst, src); err != nil {
			return err
		}
		srcSpace.Fence()
		return nil
	}

	if err := copyStorage(dst.Storage(), src.Storage()); err != nil {
		return fmt.Errorf("exec: deep copy %s <- %s: %w", dst, src, err)
	}
	return nil
}

// copyStorage moves the contents of src into dst through whichever side is
// directly addressable, or a host bounce buffer when neither is.
func copyStorage(dst, src array.Storage) error {
	if d, ok := dst.(*array.Slice); ok {
		return src.ReadTo(d.Data())
	}
	if s, ok := src.(*array.Slice); ok {
		return dst.WriteFrom(s.Data())
	}
	bounce := make([]array.Scalar, src.Len())
	if err := src.ReadTo(bounce); err != nil {
		return err
	}
	return dst.WriteFrom(bounce)
}

// MirrorToHost allocates a Host array with a's shape and order and deep
// copies a into it. The caller owns and releases the mirror.
func MirrorToHost(host Space, a *array.Array2D) (*array.Array2D, error) {
	if host.Domain() != array.Host {
		return nil, fmt.Errorf("exec: mirror target %s is not a host space", host.Name())
	}
	m, err := array.New(a.Name()+"_mirror", a.Rows(), a.Cols(), a.Order(), host)
	if err != nil {
		return nil, err
	}
	if err := DeepCopy(m, a); err != nil {
		m.Release()
		return nil, err
	}
	return m, nil
}

// copyWithin launches the in-domain copy on l. Matching orders copy the flat
// buffer; differing orders copy element by element through logical indices.
func copyWithin(space Space, l Launcher, dst, src *array.Array2D) error {
	if !dst.SameShape(src) {
		return fmt.Errorf("%w: copy %s <- %s", ErrShapeMismatch, dst, src)
	}
	if dst.Space() != array.Allocator(space) || src.Space() != array.Allocator(space) {
		return fmt.Errorf("%w: copy %s <- %s on %s", ErrDomainMismatch, dst, src, space.Name())
	}
	if dst == src {
		return nil
	}

	dv, err := ViewOf(dst)
	if err != nil {
		return err
	}
	sv, err := ViewOf(src)
	if err != nil {
		return err
	}

	label := "deep copy " + dst.Label() + " <- " + src.Label()
	if dst.Order() == src.Order() {
		d, s := dv.Flat(), sv.Flat()
		l.ParallelFor(label, Range{I0: 0, I1: 1, J0: 0, J1: len(d)}, func(_, k int) {
			d[k] = s[k]
		})
		return nil
	}

	l.ParallelFor(label, Full(dst), func(i, j int) {
		dv.Set(i, j, sv.At(i, j))
	})
	return nil
}
