package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/config"
	"github.com/born-ml/xfer/internal/exec"
	"github.com/born-ml/xfer/internal/instrument"
	"github.com/born-ml/xfer/internal/parallel"
	"github.com/born-ml/xfer/internal/kernels"
	"github.com/born-ml/xfer/internal/xfer"
)

func newEnv(t *testing.T, ranges *instrument.Ranges) Env {
	t.Helper()
	host := exec.NewHost(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	device := exec.NewDevice(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	t.Cleanup(device.Close)

	k := kernels.NewRunner(kernels.WithRanges(ranges), kernels.WithBlurBands(3))
	return Env{
		Host:       host,
		Device:     device,
		Kernels:    k,
		Dispatcher: xfer.NewDispatcher(k, xfer.WithRanges(ranges)),
		Ranges:     ranges,
	}
}

func smallParams() Params {
	return Params{
		Rows:               16,
		Cols:               12,
		HostValue:          2,
		DeviceValue:        4,
		HostBlurLaunches:   2,
		DeviceBlurLaunches: 1,
		Method:             xfer.KernelConversion,
	}
}

func TestBenchmark(t *testing.T) {
	for _, m := range xfer.Methods() {
		t.Run(m.String(), func(t *testing.T) {
			e := newEnv(t, nil)
			p := smallParams()
			p.Method = m

			r, err := Benchmark(context.Background(), e, p)
			require.NoError(t, err)

			require.Len(t, r.Checks, 4)
			for _, c := range r.Checks {
				assert.True(t, c.OK, c.Label)
				assert.Equal(t, 16, c.Rows)
				assert.Equal(t, 12, c.Cols)
			}
			assert.Equal(t, "device_view_LL", r.Checks[0].Name)
			assert.Equal(t, array.Scalar(2), r.Checks[0].Value)
			assert.Equal(t, "host_view_LR", r.Checks[1].Name)
			assert.Equal(t, array.Scalar(4), r.Checks[1].Value)

			names := make([]string, 0, len(r.Phases))
			for _, ph := range r.Phases {
				names = append(names, ph.Name)
			}
			assert.Equal(t, []string{
				"alloc", "init", "blur",
				"deep copy H2D LL", "deep copy H2D LR", "deep copy D2H LL", "deep copy D2H LR",
				"deep copy H2D transpose on Device", "deep copy D2H transpose on Device",
				"deep copy H2D transpose on Host", "deep copy D2H transpose on Host",
			}, names)

			// Every array and staging buffer is gone.
			assert.Zero(t, e.Host.Stats().Live)
			assert.Zero(t, e.Device.Stats().Live)
		})
	}
}

func TestBenchmark_Ranges(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(rec))
	ranges := instrument.New(tp, instrument.DefaultPalette())

	e := newEnv(t, ranges)
	_, err := Benchmark(context.Background(), e, smallParams())
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, s := range rec.Ended() {
		seen[s.Name()] = true
	}
	for _, name := range []string{
		"Main scope",
		"alloc LL Device",
		"alloc LR Host",
		"InitKernel LL Device",
		"BlurKernel LR Host",
		"allocate buffer",
		"deep copy H2D",
		"deep copy H2D transpose on Device",
		"deep copy D2H transpose on Host",
		"check",
	} {
		assert.True(t, seen[name], "missing range %q", name)
	}
}

func TestBenchmark_InvalidShape(t *testing.T) {
	e := newEnv(t, nil)
	p := smallParams()
	p.Rows = 0

	_, err := Benchmark(context.Background(), e, p)
	require.Error(t, err)
	assert.Zero(t, e.Host.Stats().Live)
	assert.Zero(t, e.Device.Stats().Live)
}

func TestParamsFrom(t *testing.T) {
	cfg := config.Config{
		Rows:               8,
		Cols:               9,
		HostValue:          1.5,
		DeviceValue:        3,
		HostBlurLaunches:   2,
		DeviceBlurLaunches: 5,
	}
	p := ParamsFrom(cfg)
	assert.Equal(t, Params{
		Rows:               8,
		Cols:               9,
		HostValue:          1.5,
		DeviceValue:        3,
		HostBlurLaunches:   2,
		DeviceBlurLaunches: 5,
		Method:             xfer.KernelConversion,
	}, p)
}

func TestCombinations(t *testing.T) {
	combos := Combinations()
	// 4 same-domain order swaps with one staging, 8 cross-domain pairs with two,
	// each under both methods.
	assert.Len(t, combos, (4*1+8*2)*2)

	seen := map[string]bool{}
	for _, c := range combos {
		s := c.String()
		assert.False(t, seen[s], "duplicate %s", s)
		seen[s] = true
		assert.False(t, c.SrcDomain == c.DstDomain && c.SrcOrder == c.DstOrder, s)
		assert.True(t, c.Staging == c.SrcDomain || c.Staging == c.DstDomain, s)
	}
	assert.True(t, seen["LR Host -> LL Device staged on Host (kernel)"])
}

func TestMatrix(t *testing.T) {
	e := newEnv(t, nil)

	out, err := Matrix(context.Background(), e, 7, 5, 3)
	require.NoError(t, err)
	require.Len(t, out, len(Combinations()))

	cases := map[xfer.Case]int{}
	for _, o := range out {
		cases[o.Case]++
	}
	assert.Equal(t, 8, cases[xfer.SameDomain])
	assert.Equal(t, 16, cases[xfer.CrossDomain])
	assert.Equal(t, 8, cases[xfer.StageOnSource])
	assert.Equal(t, 8, cases[xfer.StageOnDest])

	assert.Zero(t, e.Host.Stats().Live)
	assert.Zero(t, e.Device.Stats().Live)
}
