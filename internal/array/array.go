// Package array defines the 2-D array data model shared by every execution space.
package array

import "fmt"

// Allocator creates Storage in one domain. Execution spaces implement it.
type Allocator interface {
	Domain() Domain
	Alloc(n int) (Storage, error)
}

// Array2D describes a dense 2-D buffer: shape, storage order and owning space.
// Order and domain are fixed at construction; conversions always target a
// different Array2D.
type Array2D struct {
	name    string
	rows    int
	cols    int
	order   Order
	space   Allocator
	storage Storage
}

// New allocates a rows x cols array in the given space.
// Memory is zero-initialized by every space in this module.
func New(name string, rows, cols int, order Order, space Allocator) (*Array2D, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("array %q: invalid shape %dx%d (dimensions must be > 0)", name, rows, cols)
	}
	if !order.Valid() {
		return nil, fmt.Errorf("array %q: invalid order %d", name, int(order))
	}
	if space == nil {
		return nil, fmt.Errorf("array %q: nil space", name)
	}

	storage, err := space.Alloc(rows * cols)
	if err != nil {
		return nil, fmt.Errorf("array %q: alloc %dx%d in %s: %w", name, rows, cols, space.Domain(), err)
	}
	if storage.Len() != rows*cols {
		storage.Release()
		return nil, fmt.Errorf("array %q: space returned %d elements, want %d", name, storage.Len(), rows*cols)
	}

	return &Array2D{
		name:    name,
		rows:    rows,
		cols:    cols,
		order:   order,
		space:   space,
		storage: storage,
	}, nil
}

// Name returns the debug name.
func (a *Array2D) Name() string { return a.name }

// Rows returns N0.
func (a *Array2D) Rows() int { return a.rows }

// Cols returns N1.
func (a *Array2D) Cols() int { return a.cols }

// Len returns rows*cols.
func (a *Array2D) Len() int { return a.rows * a.cols }

// Order returns the storage order.
func (a *Array2D) Order() Order { return a.order }

// Domain returns the owning domain.
func (a *Array2D) Domain() Domain { return a.space.Domain() }

// Space returns the allocator that owns the storage.
func (a *Array2D) Space() Allocator { return a.space }

// Storage returns the backing storage.
func (a *Array2D) Storage() Storage { return a.storage }

// SameShape reports whether b has the same rows and cols.
func (a *Array2D) SameShape(b *Array2D) bool {
	return a.rows == b.rows && a.cols == b.cols
}

// Offset returns the physical offset of logical element (i, j).
func (a *Array2D) Offset(i, j int) int {
	if a.order == ColMajor {
		return j*a.rows + i
	}
	return i*a.cols + j
}

// Values returns the element slice of a Host array in physical order.
// Panics for arrays outside the Host domain.
func (a *Array2D) Values() []Scalar {
	if a.Domain() != Host {
		panic(fmt.Sprintf("array %q lives in %s memory; copy it to a Host mirror first", a.name, a.Domain()))
	}
	s, ok := a.storage.(*Slice)
	if !ok {
		panic(fmt.Sprintf("array %q: host storage is %T, not addressable", a.name, a.storage))
	}
	return s.Data()
}

// At returns element (i, j) of a Host array.
func (a *Array2D) At(i, j int) Scalar {
	a.checkIndex(i, j)
	return a.Values()[a.Offset(i, j)]
}

// Set stores v at element (i, j) of a Host array.
func (a *Array2D) Set(i, j int, v Scalar) {
	a.checkIndex(i, j)
	a.Values()[a.Offset(i, j)] = v
}

func (a *Array2D) checkIndex(i, j int) {
	if i < 0 || i >= a.rows || j < 0 || j >= a.cols {
		panic(fmt.Sprintf("array %q: index (%d, %d) out of range for %dx%d", a.name, i, j, a.rows, a.cols))
	}
}

// Release frees the storage.
func (a *Array2D) Release() {
	a.storage.Release()
}

// Label returns "<order> <domain>", e.g. "LL Device", as used in range names.
func (a *Array2D) Label() string {
	return a.order.Short() + " " + a.Domain().String()
}

// String implements fmt.Stringer.
func (a *Array2D) String() string {
	return fmt.Sprintf("%s[%dx%d %s %s]", a.name, a.rows, a.cols, a.order, a.Domain())
}
