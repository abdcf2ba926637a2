//go:build windows && xfer_float32

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/xfer/internal/array"
)

// compileShader compiles WGSL code into a cached ShaderModule.
func (s *Space) compileShader(name, code string) *wgpu.ShaderModule {
	s.mu.RLock()
	if shader, ok := s.shaders[name]; ok {
		s.mu.RUnlock()
		return shader
	}
	s.mu.RUnlock()

	shader := s.device.CreateShaderModuleWGSL(code)

	s.mu.Lock()
	s.shaders[name] = shader
	s.mu.Unlock()
	return shader
}

// pipeline returns the cached compute pipeline for a shader.
func (s *Space) pipeline(name, code string) *wgpu.ComputePipeline {
	s.mu.RLock()
	if p, ok := s.pipelines[name]; ok {
		s.mu.RUnlock()
		return p
	}
	s.mu.RUnlock()

	p := s.device.CreateComputePipelineSimple(nil, s.compileShader(name, code), "main")

	s.mu.Lock()
	s.pipelines[name] = p
	s.mu.Unlock()
	return p
}

// workgroups returns the dispatch grid covering n threads.
func workgroups(n int) (x, y uint32) {
	groups := (n + workgroupSize - 1) / workgroupSize
	if groups <= maxWorkgroupsPerDim {
		//nolint:gosec // G115: bounded by maxWorkgroupsPerDim.
		return uint32(groups), 1
	}
	//nolint:gosec // G115: bounded by maxWorkgroupsPerDim.
	return maxWorkgroupsPerDim, uint32((groups + maxWorkgroupsPerDim - 1) / maxWorkgroupsPerDim)
}

// params packs 32-bit words for a uniform buffer.
type params []byte

func (p params) u32(v uint32) params {
	return binary.LittleEndian.AppendUint32(p, v)
}

func (p params) f32(v float32) params {
	return binary.LittleEndian.AppendUint32(p, math.Float32bits(v))
}

func (p params) order(o array.Order) params {
	if o == array.ColMajor {
		return p.u32(1)
	}
	return p.u32(0)
}

func (p params) shape(a *array.Array2D) params {
	//nolint:gosec // G115: array dimensions are validated positive.
	return p.u32(uint32(a.Rows())).u32(uint32(a.Cols()))
}

// binding is one storage buffer bound to a shader.
type binding struct {
	buffer *wgpu.Buffer
	size   uint64
}

func bind(b *Buffer) binding {
	return binding{buffer: b.buffer, size: byteSize(b.n)}
}

// dispatch queues one launch of a shader over n threads. Storage buffers are
// bound at 0..len-1 and the uniform params after them.
func (s *Space) dispatch(name, code string, n int, u params, buffers ...binding) {
	pipeline := s.pipeline(name, code)
	uniform := s.createUniformBuffer(u)
	defer uniform.Release()

	entries := make([]wgpu.BindGroupEntry, 0, len(buffers)+1)
	for i, b := range buffers {
		//nolint:gosec // G115: binding index is small.
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), b.buffer, 0, b.size))
	}
	//nolint:gosec // G115: binding index and aligned size are small.
	entries = append(entries, wgpu.BufferBindingEntry(uint32(len(buffers)), uniform, 0, uint64((len(u)+15)&^15)))

	bindGroup := s.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	encoder := s.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	x, y := workgroups(n)
	pass.DispatchWorkgroups(x, y, 1)
	pass.End()

	s.queueCommand(encoder.Finish(nil))
	s.launches.Add(1)
}

// InitKernel queues a(i, j) = value + i - j.
func (s *Space) InitKernel(a *array.Array2D, value array.Scalar) error {
	b, err := bufferOf(a)
	if err != nil {
		return err
	}
	u := params{}.shape(a).order(a.Order()).f32(value)
	s.dispatch("init", initShader, a.Len(), u, bind(b))
	return nil
}

// BlurKernel queues one in-place blur launch as two checkerboard sweeps.
func (s *Space) BlurKernel(a *array.Array2D) error {
	b, err := bufferOf(a)
	if err != nil {
		return err
	}
	for parity := uint32(0); parity < 2; parity++ {
		u := params{}.shape(a).order(a.Order()).u32(parity)
		s.dispatch("blur", blurShader, a.Len(), u, bind(b))
	}
	return nil
}

// TransposeKernel queues a logical-index copy of src into dst.
func (s *Space) TransposeKernel(dst, src *array.Array2D) error {
	if !dst.SameShape(src) {
		return fmt.Errorf("webgpu: transpose %s <- %s: shapes differ", dst, src)
	}
	d, err := bufferOf(dst)
	if err != nil {
		return err
	}
	sb, err := bufferOf(src)
	if err != nil {
		return err
	}
	u := params{}.shape(dst).order(dst.Order()).order(src.Order())
	s.dispatch("transpose", transposeShader, dst.Len(), u, bind(d), bind(sb))
	return nil
}

// CheckKernel runs the check shader and reads back the mismatch count.
func (s *Space) CheckKernel(a *array.Array2D, value, tolerance array.Scalar) (bool, error) {
	b, err := bufferOf(a)
	if err != nil {
		return false, err
	}
	counter := s.createBuffer(make([]byte, 4), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer counter.Release()

	u := params{}.shape(a).order(a.Order()).f32(value).f32(tolerance)
	s.dispatch("check", checkShader, a.Len(), u, bind(b), binding{buffer: counter, size: 4})
	s.flushCommands()

	out := make([]byte, 4)
	if err := s.readBuffer(counter, out); err != nil {
		return false, err
	}
	return binary.LittleEndian.Uint32(out) == 0, nil
}
