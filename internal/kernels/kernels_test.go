package kernels

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/exec"
	"github.com/born-ml/xfer/internal/instrument"
	"github.com/born-ml/xfer/internal/parallel"
)

type fixture struct {
	host *exec.Host
	dev  *exec.Device
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		host: exec.NewHost(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}),
		dev:  exec.NewDevice(parallel.Config{Enabled: true, NumWorkers: 8, MinChunkSize: 1}),
	}
	t.Cleanup(f.dev.Close)
	return f
}

func (f fixture) space(d array.Domain) exec.Space {
	if d == array.Accelerator {
		return f.dev
	}
	return f.host
}

func (f fixture) newArray(t *testing.T, name string, rows, cols int, order array.Order, d array.Domain) *array.Array2D {
	t.Helper()
	a, err := array.New(name, rows, cols, order, f.space(d))
	require.NoError(t, err)
	t.Cleanup(a.Release)
	return a
}

// mirror returns a host copy of a, or a itself when it already lives on the host.
func (f fixture) mirror(t *testing.T, a *array.Array2D) *array.Array2D {
	t.Helper()
	if a.Domain() == array.Host {
		return a
	}
	m, err := exec.MirrorToHost(f.host, a)
	require.NoError(t, err)
	t.Cleanup(m.Release)
	return m
}

// bumpy fills a host array with a non-linear pattern so Blur visibly changes it.
func bumpy(a *array.Array2D) {
	for i := 0; i < a.Rows(); i++ {
		for j := 0; j < a.Cols(); j++ {
			a.Set(i, j, array.Scalar((i*i*7+j*j*3+i*j)%23))
		}
	}
}

func TestInitialize_Determinism(t *testing.T) {
	f := newFixture(t)
	k := NewRunner()

	for _, d := range array.Domains() {
		for _, order := range array.Orders() {
			t.Run(d.String()+"/"+order.String(), func(t *testing.T) {
				a := f.newArray(t, "a", 9, 6, order, d)
				require.NoError(t, k.Initialize(context.Background(), a, 4.0))

				m := f.mirror(t, a)
				for i := 0; i < a.Rows(); i++ {
					for j := 0; j < a.Cols(); j++ {
						assert.Equal(t, 4.0+array.Scalar(i)-array.Scalar(j), m.At(i, j))
					}
				}
			})
		}
	}
}

func TestBlur_BorderInvariance(t *testing.T) {
	f := newFixture(t)
	k := NewRunner(WithBlurBands(4))

	shapes := [][2]int{{3, 3}, {8, 5}, {17, 12}, {40, 3}}
	for _, d := range array.Domains() {
		for _, shape := range shapes {
			rows, cols := shape[0], shape[1]
			src := f.newArray(t, "src", rows, cols, array.ColMajor, array.Host)
			bumpy(src)

			a := f.newArray(t, "a", rows, cols, array.ColMajor, d)
			require.NoError(t, exec.DeepCopy(a, src))
			require.NoError(t, k.Blur(context.Background(), a, 3))

			m := f.mirror(t, a)
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					if i == 0 || i == rows-1 || j == 0 || j == cols-1 {
						require.Equal(t, src.At(i, j), m.At(i, j), "%s %dx%d border (%d,%d)", d, rows, cols, i, j)
					}
				}
			}
		}
	}
}

// referenceBlur sweeps bands sequentially in the same even-then-odd order.
func referenceBlur(a *array.Array2D, bands int, launches int) {
	split := splitBands(1, a.Rows()-1, bands)
	for n := 0; n < launches; n++ {
		for _, first := range []int{0, 1} {
			for b := first; b < len(split); b += 2 {
				for i := split[b][0]; i < split[b][1]; i++ {
					for j := 1; j < a.Cols()-1; j++ {
						a.Set(i, j, fifth*(a.At(i-1, j)+a.At(i, j)+a.At(i+1, j)+a.At(i, j-1)+a.At(i, j+1)))
					}
				}
			}
		}
	}
}

func TestBlur_MatchesBandedSweep(t *testing.T) {
	f := newFixture(t)

	for _, bands := range []int{1, 2, 5} {
		for _, d := range array.Domains() {
			t.Run(fmt.Sprintf("%s/bands=%d", d, bands), func(t *testing.T) {
				want := f.newArray(t, "want", 21, 14, array.RowMajor, array.Host)
				bumpy(want)
				a := f.newArray(t, "a", 21, 14, array.RowMajor, d)
				require.NoError(t, exec.DeepCopy(a, want))

				k := NewRunner(WithBlurBands(bands))
				require.NoError(t, k.Blur(context.Background(), a, 2))
				referenceBlur(want, bands, 2)

				m := f.mirror(t, a)
				assert.Equal(t, want.Values(), m.Values())
			})
		}
	}
}

func TestBlur_ThinArraysUntouched(t *testing.T) {
	f := newFixture(t)
	k := NewRunner()

	a := f.newArray(t, "thin", 2, 9, array.RowMajor, array.Host)
	bumpy(a)
	before := append([]array.Scalar(nil), a.Values()...)
	require.NoError(t, k.Blur(context.Background(), a, 5))
	assert.Equal(t, before, a.Values())
}

func TestBlur_NegativeLaunches(t *testing.T) {
	f := newFixture(t)
	a := f.newArray(t, "a", 4, 4, array.RowMajor, array.Host)
	require.ErrorIs(t, NewRunner().Blur(context.Background(), a, -1), ErrInvalidLaunches)
}

func TestTransposeCopy_Idempotent(t *testing.T) {
	f := newFixture(t)
	k := NewRunner()
	ctx := context.Background()

	for _, d := range array.Domains() {
		t.Run(d.String(), func(t *testing.T) {
			src := f.newArray(t, "src", 7, 10, array.RowMajor, d)
			dst := f.newArray(t, "dst", 7, 10, array.ColMajor, d)
			require.NoError(t, k.Initialize(ctx, src, 2.0))

			require.NoError(t, k.TransposeCopy(ctx, dst, src, 1))
			first := append([]array.Scalar(nil), f.mirror(t, dst).Values()...)
			require.NoError(t, k.TransposeCopy(ctx, dst, src, 1))
			second := f.mirror(t, dst).Values()
			assert.Equal(t, first, second)

			res, err := k.Verify(ctx, dst, 2.0)
			require.NoError(t, err)
			assert.True(t, res.OK)
		})
	}
}

func TestTransposeCopy_Preconditions(t *testing.T) {
	f := newFixture(t)
	k := NewRunner()
	ctx := context.Background()

	hostA := f.newArray(t, "hostA", 4, 4, array.RowMajor, array.Host)
	devA := f.newArray(t, "devA", 4, 4, array.ColMajor, array.Accelerator)
	hostWide := f.newArray(t, "hostWide", 4, 5, array.ColMajor, array.Host)
	hostB := f.newArray(t, "hostB", 4, 4, array.ColMajor, array.Host)

	require.ErrorIs(t, k.TransposeCopy(ctx, devA, hostA, 1), ErrDomainMismatch)
	require.ErrorIs(t, k.TransposeCopy(ctx, hostWide, hostA, 1), ErrShapeMismatch)
	require.ErrorIs(t, k.TransposeCopy(ctx, hostB, hostA, 0), ErrInvalidLaunches)
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	k := NewRunner()
	ctx := context.Background()

	a := f.newArray(t, "a", 8, 8, array.RowMajor, array.Host)
	require.NoError(t, k.Initialize(ctx, a, 1.0))

	res, err := k.Verify(ctx, a, 1.0)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.NoError(t, res.Err())

	// Off by less than the tolerance still passes.
	a.Set(3, 3, a.At(3, 3)+Tolerance/2)
	res, err = k.Verify(ctx, a, 1.0)
	require.NoError(t, err)
	assert.True(t, res.OK)

	a.Set(5, 2, 42)
	res, err = k.Verify(ctx, a, 1.0)
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.ErrorIs(t, res.Err(), ErrMismatch)
	assert.Contains(t, res.Err().Error(), "a (LR Host, 8x8)")

	res, err = k.Verify(ctx, a, 2.0)
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestRunner_RecordsKernelRanges(t *testing.T) {
	f := newFixture(t)
	sr := tracetest.NewSpanRecorder()
	ranges := instrument.New(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)), instrument.DefaultPalette())
	k := NewRunner(WithRanges(ranges))
	ctx := context.Background()

	a := f.newArray(t, "a", 5, 5, array.ColMajor, array.Accelerator)
	require.NoError(t, k.Initialize(ctx, a, 0))
	require.NoError(t, k.Blur(ctx, a, 1))
	_, err := k.Verify(ctx, a, 0)
	require.NoError(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"InitKernel LL Device", "BlurKernel LL Device", "check"}, names)
}
