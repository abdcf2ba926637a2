package array

import (
	"fmt"
	"sync"
)

// Storage is the backing memory of an array. It is owned by the space that
// allocated it and must be released exactly once by the array's owner.
type Storage interface {
	// Len returns the number of Scalar elements.
	Len() int
	// Release frees the memory. Further use is a programming error.
	Release()
	// ReadTo copies the full contents into host memory.
	ReadTo(dst []Scalar) error
	// WriteFrom overwrites the full contents from host memory.
	WriteFrom(src []Scalar) error
}

// Slice is Storage backed by ordinary Go memory. Both the host space and the
// simulated accelerator use it; only host arrays expose it to callers.
type Slice struct {
	data      []Scalar
	onRelease func()
	once      sync.Once
	mu        sync.Mutex // For safe deallocation
}

// NewSlice allocates n zeroed elements. onRelease, if non-nil, runs once on Release.
func NewSlice(n int, onRelease func()) *Slice {
	return &Slice{
		data:      make([]Scalar, n),
		onRelease: onRelease,
	}
}

// Len returns the number of elements.
func (s *Slice) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Data returns the raw element slice.
// WARNING: Direct access to underlying memory. Only execution spaces should call this.
func (s *Slice) Data() []Scalar {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		panic("array: use of released storage")
	}
	return s.data
}

// Released reports whether Release has been called.
func (s *Slice) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data == nil
}

// Release drops the memory and runs the release hook once.
func (s *Slice) Release() {
	s.once.Do(func() {
		s.mu.Lock()
		s.data = nil
		s.mu.Unlock()
		if s.onRelease != nil {
			s.onRelease()
		}
	})
}

// ReadTo copies the contents into dst, which must have the same length.
func (s *Slice) ReadTo(dst []Scalar) error {
	data := s.Data()
	if len(dst) != len(data) {
		return fmt.Errorf("array: read length mismatch: have %d, destination %d", len(data), len(dst))
	}
	copy(dst, data)
	return nil
}

// WriteFrom copies src into the storage, which must have the same length.
func (s *Slice) WriteFrom(src []Scalar) error {
	data := s.Data()
	if len(src) != len(data) {
		return fmt.Errorf("array: write length mismatch: have %d, source %d", len(data), len(src))
	}
	copy(data, src)
	return nil
}
