//go:build windows && xfer_float32

// Package webgpu implements the accelerator space on a GPU through WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
// Kernels are WGSL compute shaders; only float32 elements are supported.
package webgpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/exec"
)

// Space is the accelerator domain backed by a WebGPU device.
type Space struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	adapterInfo *wgpu.AdapterInfo

	// Staging buffers for readback.
	pool *BufferPool

	// Command buffers waiting for submission. Fence and readback flush them.
	pending   []*wgpu.CommandBuffer
	pendingMu sync.Mutex

	live      atomic.Int64
	allocated atomic.Int64
	launches  atomic.Int64
	fences    atomic.Int64
}

// New opens the default high-performance adapter.
// Returns an error if WebGPU is not available or initialization fails.
func New() (space *Space, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			space = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", err)
	}
	info := adapter.GetInfo()

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", err)
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Space{
		instance:    instance,
		adapter:     adapter,
		device:      device,
		queue:       queue,
		shaders:     make(map[string]*wgpu.ShaderModule),
		pipelines:   make(map[string]*wgpu.ComputePipeline),
		adapterInfo: &info,
		pool:        NewBufferPool(device),
	}, nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Release flushes pending work and frees every WebGPU object.
// Arrays allocated from the space must be released first.
func (s *Space) Release() {
	s.Fence()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		s.pool.Clear()
		s.pool = nil
	}
	for _, p := range s.pipelines {
		p.Release()
	}
	s.pipelines = nil
	for _, sh := range s.shaders {
		sh.Release()
	}
	s.shaders = nil

	if s.queue != nil {
		s.queue.Release()
		s.queue = nil
	}
	if s.device != nil {
		s.device.Release()
		s.device = nil
	}
	if s.adapter != nil {
		s.adapter.Release()
		s.adapter = nil
	}
	if s.instance != nil {
		s.instance.Release()
		s.instance = nil
	}
}

// Domain reports the accelerator domain.
func (s *Space) Domain() array.Domain { return array.Accelerator }

// Name returns the space name with the adapter, when known.
func (s *Space) Name() string {
	if s.adapterInfo != nil && s.adapterInfo.Name != "" {
		return fmt.Sprintf("Device(webgpu %s)", s.adapterInfo.Name)
	}
	return "Device(webgpu)"
}

// Alloc creates a zeroed storage buffer of n elements.
func (s *Space) Alloc(n int) (array.Storage, error) {
	if n <= 0 {
		return nil, fmt.Errorf("webgpu: invalid buffer length %d", n)
	}
	size := byteSize(n)
	buf := s.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	s.live.Add(1)
	s.allocated.Add(1)
	return &Buffer{space: s, buffer: buf, n: n}, nil
}

// Fence submits queued command buffers and waits for the queue to drain.
func (s *Space) Fence() {
	s.fences.Add(1)
	s.flushCommands()
	s.wait()
}

// CopyWithin copies src into dst on the GPU. Matching orders use a buffer
// copy; differing orders run the transpose shader.
func (s *Space) CopyWithin(dst, src *array.Array2D) error {
	if !dst.SameShape(src) {
		return fmt.Errorf("%w: copy %s <- %s", exec.ErrShapeMismatch, dst, src)
	}
	if dst.Space() != array.Allocator(s) || src.Space() != array.Allocator(s) {
		return fmt.Errorf("%w: copy %s <- %s on %s", exec.ErrDomainMismatch, dst, src, s.Name())
	}
	if dst == src {
		return nil
	}
	if dst.Order() != src.Order() {
		return s.TransposeKernel(dst, src)
	}

	d, err := bufferOf(dst)
	if err != nil {
		return err
	}
	sb, err := bufferOf(src)
	if err != nil {
		return err
	}
	encoder := s.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(sb.buffer, 0, d.buffer, 0, byteSize(d.n))
	s.queueCommand(encoder.Finish(nil))
	return nil
}

// Stats returns allocation and launch counters.
func (s *Space) Stats() exec.Stats {
	return exec.Stats{
		Live:      s.live.Load(),
		Allocated: s.allocated.Load(),
		Launches:  s.launches.Load(),
		Fences:    s.fences.Load(),
	}
}

// queueCommand adds a command buffer to the pending queue for batch submission.
func (s *Space) queueCommand(cmd *wgpu.CommandBuffer) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending = append(s.pending, cmd)
}

// flushCommands submits all pending command buffers to the GPU queue.
func (s *Space) flushCommands() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if len(s.pending) == 0 {
		return
	}
	s.queue.Submit(s.pending...)
	s.pending = s.pending[:0]
}

// wait blocks until previously submitted work completes by mapping a fresh
// staging buffer written after it.
func (s *Space) wait() {
	const size = 4
	usage := wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
	probe := s.pool.Acquire(size, usage)
	defer s.pool.Release(probe, size, usage)

	marker := s.createBuffer(make([]byte, size), wgpu.BufferUsageCopySrc)
	defer marker.Release()

	encoder := s.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(marker, 0, probe, 0, size)
	s.queue.Submit(encoder.Finish(nil))

	if err := probe.MapAsync(s.device, wgpu.MapModeRead, 0, size); err != nil {
		panic("webgpu: fence: " + err.Error())
	}
	probe.Unmap()
}

var (
	_ exec.Space  = (*Space)(nil)
	_ exec.Native = (*Space)(nil)
)
