// Package exec implements the execution substrate: per-domain spaces that
// allocate memory, launch parallel kernels, fence, and copy.
package exec

import (
	"errors"
	"fmt"

	"github.com/born-ml/xfer/internal/array"
)

// Substrate errors. All of them are configuration errors for the caller.
var (
	ErrOrderMismatch  = errors.New("exec: storage orders differ")
	ErrShapeMismatch  = errors.New("exec: shapes differ")
	ErrDomainMismatch = errors.New("exec: arrays live in different spaces")
	ErrNotAddressable = errors.New("exec: storage is not addressable by closure kernels")
	ErrNotSpace       = errors.New("exec: allocator is not an execution space")
)

// Space is one domain's execution context.
type Space interface {
	array.Allocator

	// Name identifies the space in logs, e.g. "Host" or "Device(sim)".
	Name() string

	// Fence blocks until every previously submitted operation has completed.
	Fence()

	// CopyWithin copies src into dst inside this space. Orders may differ;
	// the copy preserves logical indices.
	CopyWithin(dst, src *array.Array2D) error

	// Stats returns allocation and launch counters.
	Stats() Stats
}

// Launcher runs closure kernels over a 2-D index range.
// Submission may be asynchronous; launches on one space run in submission order.
type Launcher interface {
	ParallelFor(label string, r Range, body func(i, j int))
	// ParallelReduceAnd blocks until the reduction result is available.
	ParallelReduceAnd(label string, r Range, pred func(i, j int) bool) bool
}

// Native is implemented by spaces that compile their own kernels instead of
// running Go closures (WebGPU). Each call is one launch, submitted in order.
type Native interface {
	InitKernel(a *array.Array2D, value array.Scalar) error
	BlurKernel(a *array.Array2D) error
	TransposeKernel(dst, src *array.Array2D) error
	CheckKernel(a *array.Array2D, value, tolerance array.Scalar) (bool, error)
}

// Stats are cumulative counters of a space.
type Stats struct {
	Live      int64 // Buffers allocated and not yet released.
	Allocated int64 // Buffers allocated over the lifetime of the space.
	Launches  int64 // Kernel launches submitted.
	Fences    int64 // Fence calls.
}

// Range is a half-open 2-D index range [I0, I1) x [J0, J1).
type Range struct {
	I0, I1 int
	J0, J1 int
}

// Full returns the range covering every element of a.
func Full(a *array.Array2D) Range {
	return Range{I0: 0, I1: a.Rows(), J0: 0, J1: a.Cols()}
}

// Interior returns the range excluding the border rows and columns of a.
func Interior(a *array.Array2D) Range {
	return Range{I0: 1, I1: a.Rows() - 1, J0: 1, J1: a.Cols() - 1}
}

// Empty reports whether the range contains no index.
func (r Range) Empty() bool {
	return r.I1 <= r.I0 || r.J1 <= r.J0
}

// SpaceOf returns the execution space that owns a.
func SpaceOf(a *array.Array2D) (Space, error) {
	s, ok := a.Space().(Space)
	if !ok {
		return nil, fmt.Errorf("%w: %T owns %s", ErrNotSpace, a.Space(), a)
	}
	return s, nil
}

// View is kernel-side access to an array's elements, valid inside closures
// launched on the owning space.
type View struct {
	data  []array.Scalar
	rows  int
	cols  int
	order array.Order
}

// ViewOf returns a kernel view of a. It fails for storage that Go closures
// cannot address, such as GPU buffers.
func ViewOf(a *array.Array2D) (View, error) {
	s, ok := a.Storage().(*array.Slice)
	if !ok {
		return View{}, fmt.Errorf("%w: %s uses %T", ErrNotAddressable, a, a.Storage())
	}
	return View{data: s.Data(), rows: a.Rows(), cols: a.Cols(), order: a.Order()}, nil
}

// At returns element (i, j).
func (v View) At(i, j int) array.Scalar {
	return v.data[v.offset(i, j)]
}

// Set stores x at element (i, j).
func (v View) Set(i, j int, x array.Scalar) {
	v.data[v.offset(i, j)] = x
}

// Flat returns the physical element slice.
func (v View) Flat() []array.Scalar {
	return v.data
}

func (v View) offset(i, j int) int {
	if v.order == array.ColMajor {
		return j*v.rows + i
	}
	return i*v.cols + j
}
