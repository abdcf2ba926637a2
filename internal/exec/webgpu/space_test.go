//go:build windows && xfer_float32

package webgpu

import (
	"context"
	"testing"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/exec"
	"github.com/born-ml/xfer/internal/kernels"
	"github.com/born-ml/xfer/internal/parallel"
	"github.com/born-ml/xfer/internal/xfer"
)

func newSpace(t *testing.T) *Space {
	t.Helper()
	s, err := New()
	if err != nil {
		t.Logf("WebGPU not available: %v", err)
		t.Skip("WebGPU not available on this system")
	}
	t.Cleanup(s.Release)
	return s
}

func TestIsAvailable(t *testing.T) {
	t.Logf("WebGPU available: %v", IsAvailable())
}

func TestWorkgroups(t *testing.T) {
	tests := []struct {
		n    int
		x, y uint32
	}{
		{1, 1, 1},
		{256, 1, 1},
		{257, 2, 1},
		{maxWorkgroupsPerDim * workgroupSize, maxWorkgroupsPerDim, 1},
		{maxWorkgroupsPerDim*workgroupSize + 1, maxWorkgroupsPerDim, 2},
	}
	for _, tt := range tests {
		x, y := workgroups(tt.n)
		assert.Equal(t, tt.x, x, "n=%d", tt.n)
		assert.Equal(t, tt.y, y, "n=%d", tt.n)
	}
}

func TestSpace_InitAndCheck(t *testing.T) {
	s := newSpace(t)
	k := kernels.NewRunner()
	ctx := context.Background()

	for _, order := range array.Orders() {
		a, err := array.New("a", 33, 17, order, s)
		require.NoError(t, err)

		require.NoError(t, k.Initialize(ctx, a, 4))
		res, err := k.Verify(ctx, a, 4)
		require.NoError(t, err)
		assert.True(t, res.OK, order.String())

		res, err = k.Verify(ctx, a, 5)
		require.NoError(t, err)
		assert.False(t, res.OK, order.String())

		a.Release()
	}
	assert.Zero(t, s.Stats().Live)
}

func TestSpace_DeepCopyToHost(t *testing.T) {
	s := newSpace(t)
	host := exec.NewHost(parallel.DefaultConfig())
	k := kernels.NewRunner()
	ctx := context.Background()

	d, err := array.New("d", 9, 7, array.ColMajor, s)
	require.NoError(t, err)
	defer d.Release()
	require.NoError(t, k.Initialize(ctx, d, 2))

	h, err := exec.MirrorToHost(host, d)
	require.NoError(t, err)
	defer h.Release()

	for i := 0; i < 9; i++ {
		for j := 0; j < 7; j++ {
			assert.InDelta(t, float64(2+i-j), float64(h.At(i, j)), 1e-5)
		}
	}
}

func TestSpace_Transfers(t *testing.T) {
	s := newSpace(t)
	host := exec.NewHost(parallel.DefaultConfig())
	k := kernels.NewRunner()
	dispatcher := xfer.NewDispatcher(k)
	ctx := context.Background()

	space := func(d array.Domain) exec.Space {
		if d == array.Accelerator {
			return s
		}
		return host
	}

	for _, staging := range array.Domains() {
		for _, m := range xfer.Methods() {
			src, err := array.New("src", 12, 10, array.RowMajor, space(array.Host))
			require.NoError(t, err)
			dst, err := array.New("dst", 12, 10, array.ColMajor, space(array.Accelerator))
			require.NoError(t, err)

			require.NoError(t, k.Initialize(ctx, src, 3))
			require.NoError(t, dispatcher.Transfer(ctx, dst, src, staging, m))

			res, err := k.Verify(ctx, dst, 3)
			require.NoError(t, err)
			assert.True(t, res.OK, "staging %s method %s", staging, m)

			src.Release()
			dst.Release()
		}
	}
	assert.Zero(t, s.Stats().Live)
}

func TestSpace_Blur(t *testing.T) {
	s := newSpace(t)
	k := kernels.NewRunner()
	ctx := context.Background()

	a, err := array.New("a", 16, 16, array.RowMajor, s)
	require.NoError(t, err)
	defer a.Release()

	// value + i - j is harmonic, so the 5-point average leaves it unchanged.
	require.NoError(t, k.Initialize(ctx, a, 1))
	require.NoError(t, k.Blur(ctx, a, 3))

	res, err := k.Verify(ctx, a, 1)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestBufferPool(t *testing.T) {
	s := newSpace(t)
	usage := wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst

	b := s.pool.Acquire(64, usage)
	s.pool.Release(b, 64, usage)
	again := s.pool.Acquire(32, usage)
	s.pool.Release(again, 64, usage)

	hits, _, pooled := s.pool.Stats()
	assert.GreaterOrEqual(t, hits, uint64(1))
	assert.GreaterOrEqual(t, pooled, 1)
}
