// Package scenario drives complete runs: the layout-swap benchmark and the
// exhaustive transfer matrix.
package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/config"
	"github.com/born-ml/xfer/internal/exec"
	"github.com/born-ml/xfer/internal/instrument"
	"github.com/born-ml/xfer/internal/kernels"
	"github.com/born-ml/xfer/internal/xfer"
)

// Env bundles the collaborators a scenario runs against.
type Env struct {
	Host       exec.Space
	Device     exec.Space
	Kernels    *kernels.Runner
	Dispatcher *xfer.Dispatcher
	Ranges     *instrument.Ranges
	Logger     *slog.Logger
}

// space returns the space of domain d.
func (e Env) space(d array.Domain) exec.Space {
	if d == array.Accelerator {
		return e.Device
	}
	return e.Host
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// Params are the literal inputs of a benchmark run.
type Params struct {
	Rows, Cols         int
	HostValue          array.Scalar
	DeviceValue        array.Scalar
	HostBlurLaunches   int
	DeviceBlurLaunches int
	Method             xfer.Method
}

// ParamsFrom converts a loaded configuration.
func ParamsFrom(cfg config.Config) Params {
	return Params{
		Rows:               cfg.Rows,
		Cols:               cfg.Cols,
		HostValue:          array.Scalar(cfg.HostValue),
		DeviceValue:        array.Scalar(cfg.DeviceValue),
		HostBlurLaunches:   cfg.HostBlurLaunches,
		DeviceBlurLaunches: cfg.DeviceBlurLaunches,
		Method:             xfer.KernelConversion,
	}
}

// Phase is one timed step of a run.
type Phase struct {
	Name     string
	Duration time.Duration
}

// Report collects phase timings and check results.
type Report struct {
	Phases []Phase
	Checks []kernels.Result
}

// timed runs f and appends its duration to r under name.
func (r *Report) timed(name string, f func() error) error {
	start := time.Now()
	err := f()
	r.Phases = append(r.Phases, Phase{Name: name, Duration: time.Since(start)})
	return err
}

// check verifies a and records the result; a mismatch is returned as an error.
func (e Env) check(ctx context.Context, r *Report, a *array.Array2D, value array.Scalar) error {
	res, err := e.Kernels.Verify(ctx, a, value)
	if err != nil {
		return err
	}
	r.Checks = append(r.Checks, res)
	if err := res.Err(); err != nil {
		return err
	}
	e.logger().Info("check passed", "array", a.Name(), "layout", a.Label(), "value", value)
	return nil
}

// views are the four arrays of the benchmark, one per (order, domain).
type views struct {
	deviceLL, deviceLR *array.Array2D
	hostLL, hostLR     *array.Array2D
}

func (v views) all() []*array.Array2D {
	return []*array.Array2D{v.deviceLL, v.deviceLR, v.hostLL, v.hostLR}
}

func (v views) release() {
	for _, a := range v.all() {
		if a != nil {
			a.Release()
		}
	}
}

func (e Env) alloc(ctx context.Context, name string, p Params, order array.Order, d array.Domain) (*array.Array2D, error) {
	_, end := e.Ranges.Push(ctx, "alloc "+order.Short()+" "+d.String(), e.Ranges.Palette().Domain(d))
	defer end()
	return array.New(name, p.Rows, p.Cols, order, e.space(d))
}

// Benchmark allocates one array per (order, domain), initializes and blurs
// them, runs the four same-order deep copies, then the four layout-swapping
// transfers (staged on the device and on the host, in both directions),
// checking the destination after each swap.
func Benchmark(ctx context.Context, e Env, p Params) (Report, error) {
	var r Report
	log := e.logger()
	pal := e.Ranges.Palette()

	ctx, endScope := e.Ranges.Push(ctx, "Main scope", pal.Scope)
	defer endScope()

	var v views
	defer v.release()

	err := r.timed("alloc", func() error {
		var err error
		if v.deviceLL, err = e.alloc(ctx, "device_view_LL", p, array.ColMajor, array.Accelerator); err != nil {
			return err
		}
		if v.deviceLR, err = e.alloc(ctx, "device_view_LR", p, array.RowMajor, array.Accelerator); err != nil {
			return err
		}
		if v.hostLL, err = e.alloc(ctx, "host_view_LL", p, array.ColMajor, array.Host); err != nil {
			return err
		}
		v.hostLR, err = e.alloc(ctx, "host_view_LR", p, array.RowMajor, array.Host)
		return err
	})
	if err != nil {
		return r, err
	}

	err = r.timed("init", func() error {
		for _, a := range v.all() {
			value := p.HostValue
			if a.Domain() == array.Accelerator {
				value = p.DeviceValue
			}
			if err := e.Kernels.Initialize(ctx, a, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return r, err
	}

	err = r.timed("blur", func() error {
		for _, a := range v.all() {
			launches := p.HostBlurLaunches
			if a.Domain() == array.Accelerator {
				launches = p.DeviceBlurLaunches
			}
			if err := e.Kernels.Blur(ctx, a, launches); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return r, err
	}

	plain := []struct {
		name     string
		dst, src *array.Array2D
	}{
		{"deep copy H2D LL", v.deviceLL, v.hostLL},
		{"deep copy H2D LR", v.deviceLR, v.hostLR},
		{"deep copy D2H LL", v.hostLL, v.deviceLL},
		{"deep copy D2H LR", v.hostLR, v.deviceLR},
	}
	for _, c := range plain {
		err := r.timed(c.name, func() error {
			return e.Dispatcher.Transfer(ctx, c.dst, c.src, c.src.Domain(), p.Method)
		})
		if err != nil {
			return r, err
		}
	}

	swaps := []struct {
		name     string
		dst, src *array.Array2D
		staging  array.Domain
		value    array.Scalar
	}{
		{"deep copy H2D transpose on Device", v.deviceLL, v.hostLR, array.Accelerator, p.HostValue},
		{"deep copy D2H transpose on Device", v.hostLR, v.deviceLL, array.Accelerator, p.DeviceValue},
		{"deep copy H2D transpose on Host", v.deviceLL, v.hostLR, array.Host, p.HostValue},
		{"deep copy D2H transpose on Host", v.hostLR, v.deviceLL, array.Host, p.DeviceValue},
	}
	for _, s := range swaps {
		if err := e.Kernels.Initialize(ctx, s.src, s.value); err != nil {
			return r, err
		}
		err := r.timed(s.name, func() error {
			return e.Dispatcher.Transfer(ctx, s.dst, s.src, s.staging, p.Method)
		})
		if err != nil {
			return r, err
		}
		if err := e.check(ctx, &r, s.dst, s.value); err != nil {
			return r, fmt.Errorf("%s: %w", s.name, err)
		}
		e.Host.Fence()
		e.Device.Fence()
	}

	log.Info("benchmark complete", "rows", p.Rows, "cols", p.Cols, "checks", len(r.Checks))
	return r, nil
}
