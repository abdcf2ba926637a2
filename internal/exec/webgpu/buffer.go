//go:build windows && xfer_float32

package webgpu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/exec"
)

const scalarSize = uint64(unsafe.Sizeof(array.Scalar(0)))

func byteSize(n int) uint64 {
	//nolint:gosec // G115: n is a validated positive length.
	return uint64(n) * scalarSize
}

// Buffer is array storage resident in GPU memory.
type Buffer struct {
	space  *Space
	buffer *wgpu.Buffer
	n      int
	once   sync.Once
}

// Len returns the number of elements.
func (b *Buffer) Len() int { return b.n }

// Release frees the GPU buffer once.
func (b *Buffer) Release() {
	b.once.Do(func() {
		b.buffer.Release()
		b.buffer = nil
		b.space.live.Add(-1)
	})
}

// ReadTo flushes pending work and reads the buffer back through a staging buffer.
func (b *Buffer) ReadTo(dst []array.Scalar) error {
	if len(dst) != b.n {
		return fmt.Errorf("webgpu: read length mismatch: have %d, destination %d", b.n, len(dst))
	}
	b.space.flushCommands()
	return b.space.readBuffer(b.buffer, asBytes(dst))
}

// WriteFrom uploads src and queues a copy into the buffer.
func (b *Buffer) WriteFrom(src []array.Scalar) error {
	if len(src) != b.n {
		return fmt.Errorf("webgpu: write length mismatch: have %d, source %d", b.n, len(src))
	}
	size := byteSize(b.n)
	upload := b.space.createBuffer(asBytes(src), wgpu.BufferUsageCopySrc)

	encoder := b.space.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(upload, 0, b.buffer, 0, size)
	b.space.queueCommand(encoder.Finish(nil))
	b.space.flushCommands()
	upload.Release()
	return nil
}

func asBytes(x []array.Scalar) []byte {
	if len(x) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion of the element slice.
	return unsafe.Slice((*byte)(unsafe.Pointer(&x[0])), len(x)*int(scalarSize))
}

func bufferOf(a *array.Array2D) (*Buffer, error) {
	b, ok := a.Storage().(*Buffer)
	if !ok {
		return nil, fmt.Errorf("%w: %s uses %T", exec.ErrDomainMismatch, a, a.Storage())
	}
	return b, nil
}

// createBuffer creates a GPU buffer holding data.
func (s *Space) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))
	buffer := s.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mappedPtr), size), data)
	buffer.Unmap()
	return buffer
}

// createUniformBuffer creates a uniform buffer rounded up to 16 bytes.
func (s *Space) createUniformBuffer(data []byte) *wgpu.Buffer {
	aligned := make([]byte, (len(data)+15)&^15)
	copy(aligned, data)
	return s.createBuffer(aligned, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
}

// readBuffer copies src into dst through a pooled staging buffer.
// Storage buffers can't be mapped directly.
func (s *Space) readBuffer(src *wgpu.Buffer, dst []byte) error {
	size := uint64(len(dst))
	usage := wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
	staging := s.pool.Acquire(size, usage)
	defer s.pool.Release(staging, size, usage)

	encoder := s.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	s.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(s.device, wgpu.MapModeRead, 0, size); err != nil {
		return fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}
	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(dst, unsafe.Slice((*byte)(mappedPtr), size))
	staging.Unmap()
	return nil
}
