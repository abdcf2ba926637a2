package exec

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/parallel"
)

func newSpaces(t *testing.T) (*Host, *Device) {
	t.Helper()
	host := NewHost(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 4})
	dev := NewDevice(parallel.Config{Enabled: true, NumWorkers: 8, MinChunkSize: 4})
	t.Cleanup(dev.Close)
	return host, dev
}

func fillPattern(t *testing.T, a *array.Array2D) {
	t.Helper()
	for i := 0; i < a.Rows(); i++ {
		for j := 0; j < a.Cols(); j++ {
			a.Set(i, j, array.Scalar(100*i+j))
		}
	}
}

func assertPattern(t *testing.T, a *array.Array2D) {
	t.Helper()
	for i := 0; i < a.Rows(); i++ {
		for j := 0; j < a.Cols(); j++ {
			require.Equal(t, array.Scalar(100*i+j), a.At(i, j), "element (%d,%d) of %s", i, j, a)
		}
	}
}

func TestDevice_SubmissionIsAsynchronous(t *testing.T) {
	_, dev := newSpaces(t)

	gate := make(chan struct{})
	var ran atomic.Bool
	dev.ParallelFor("gated", Range{I0: 0, I1: 1, J0: 0, J1: 1}, func(_, _ int) {
		<-gate
		ran.Store(true)
	})

	// The launch is queued behind the gate; submission returned anyway.
	assert.False(t, ran.Load())
	close(gate)
	dev.Fence()
	assert.True(t, ran.Load())
}

func TestDevice_LaunchesRunInSubmissionOrder(t *testing.T) {
	host, dev := newSpaces(t)

	a, err := array.New("a", 16, 16, array.RowMajor, dev)
	require.NoError(t, err)
	defer a.Release()
	v, err := ViewOf(a)
	require.NoError(t, err)

	for step := 1; step <= 5; step++ {
		dev.ParallelFor("step", Full(a), func(i, j int) {
			v.Set(i, j, v.At(i, j)*2+1)
		})
	}

	m, err := MirrorToHost(host, a)
	require.NoError(t, err)
	defer m.Release()
	// 0 -> 1 -> 3 -> 7 -> 15 -> 31
	assert.Equal(t, array.Scalar(31), m.At(7, 9))
}

func TestDevice_ReduceAnd(t *testing.T) {
	_, dev := newSpaces(t)
	r := Range{I0: 0, I1: 32, J0: 0, J1: 32}
	assert.True(t, dev.ParallelReduceAnd("all", r, func(_, _ int) bool { return true }))
	assert.False(t, dev.ParallelReduceAnd("one", r, func(i, j int) bool { return i != 31 || j != 0 }))
}

func TestDevice_CloseIsIdempotent(t *testing.T) {
	dev := NewDevice(DeviceConfig())
	dev.ParallelFor("noop", Range{I0: 0, I1: 4, J0: 0, J1: 4}, func(_, _ int) {})
	dev.Close()
	dev.Close()
}

func TestDeepCopy_AcrossDomains(t *testing.T) {
	host, dev := newSpaces(t)

	for _, order := range array.Orders() {
		t.Run(order.String(), func(t *testing.T) {
			src, err := array.New("src", 9, 13, order, host)
			require.NoError(t, err)
			defer src.Release()
			fillPattern(t, src)

			onDevice, err := array.New("dev", 9, 13, order, dev)
			require.NoError(t, err)
			defer onDevice.Release()
			require.NoError(t, DeepCopy(onDevice, src))

			back, err := MirrorToHost(host, onDevice)
			require.NoError(t, err)
			defer back.Release()
			assertPattern(t, back)
		})
	}
}

func TestDeepCopy_RejectsOrderMismatch(t *testing.T) {
	host, dev := newSpaces(t)

	src, _ := array.New("src", 4, 4, array.RowMajor, host)
	dst, _ := array.New("dst", 4, 4, array.ColMajor, dev)
	defer src.Release()
	defer dst.Release()

	err := DeepCopy(dst, src)
	require.ErrorIs(t, err, ErrOrderMismatch)
}

func TestDeepCopy_RejectsShapeMismatch(t *testing.T) {
	host, _ := newSpaces(t)

	src, _ := array.New("src", 4, 5, array.RowMajor, host)
	dst, _ := array.New("dst", 5, 4, array.RowMajor, host)
	defer src.Release()
	defer dst.Release()

	require.ErrorIs(t, DeepCopy(dst, src), ErrShapeMismatch)
}

func TestCopyWithin_ConvertsOrder(t *testing.T) {
	host, dev := newSpaces(t)

	tests := []struct {
		name     string
		src, dst array.Order
	}{
		{"RowToCol", array.RowMajor, array.ColMajor},
		{"ColToRow", array.ColMajor, array.RowMajor},
		{"RowToRow", array.RowMajor, array.RowMajor},
	}

	for _, tt := range tests {
		t.Run("Host/"+tt.name, func(t *testing.T) {
			src, _ := array.New("src", 7, 11, tt.src, host)
			dst, _ := array.New("dst", 7, 11, tt.dst, host)
			defer src.Release()
			defer dst.Release()
			fillPattern(t, src)

			require.NoError(t, host.CopyWithin(dst, src))
			assertPattern(t, dst)
		})

		t.Run("Device/"+tt.name, func(t *testing.T) {
			staged, _ := array.New("staged", 7, 11, tt.src, host)
			defer staged.Release()
			fillPattern(t, staged)

			src, _ := array.New("src", 7, 11, tt.src, dev)
			dst, _ := array.New("dst", 7, 11, tt.dst, dev)
			defer src.Release()
			defer dst.Release()
			require.NoError(t, DeepCopy(src, staged))

			require.NoError(t, dev.CopyWithin(dst, src))
			back, err := MirrorToHost(host, dst)
			require.NoError(t, err)
			defer back.Release()
			assertPattern(t, back)
		})
	}
}

func TestCopyWithin_RejectsForeignArrays(t *testing.T) {
	host, dev := newSpaces(t)

	a, _ := array.New("a", 3, 3, array.RowMajor, host)
	b, _ := array.New("b", 3, 3, array.ColMajor, dev)
	defer a.Release()
	defer b.Release()

	require.ErrorIs(t, host.CopyWithin(a, b), ErrDomainMismatch)
	require.ErrorIs(t, dev.CopyWithin(b, a), ErrDomainMismatch)
}

func TestStats_TrackLiveBuffers(t *testing.T) {
	host, dev := newSpaces(t)

	for _, s := range []Space{host, dev} {
		before := s.Stats()
		a, err := array.New("a", 2, 2, array.RowMajor, s)
		require.NoError(t, err)
		assert.Equal(t, before.Live+1, s.Stats().Live)
		a.Release()
		assert.Equal(t, before.Live, s.Stats().Live)
		assert.Equal(t, before.Allocated+1, s.Stats().Allocated)
	}
}

func TestSpaceOf(t *testing.T) {
	host, _ := newSpaces(t)
	a, _ := array.New("a", 1, 1, array.RowMajor, host)
	defer a.Release()

	s, err := SpaceOf(a)
	require.NoError(t, err)
	assert.Equal(t, "Host", s.Name())
}
