// Package main provides the xfer CLI: the layout-swap benchmark and the
// exhaustive transfer matrix.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/lmittmann/tint"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/config"
	"github.com/born-ml/xfer/internal/exec"
	"github.com/born-ml/xfer/internal/instrument"
	"github.com/born-ml/xfer/internal/kernels"
	"github.com/born-ml/xfer/internal/parallel"
	"github.com/born-ml/xfer/internal/scenario"
	"github.com/born-ml/xfer/internal/xfer"
)

const version = "v0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "xfer %s - layout-converting copies between host and accelerator\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run        Run the layout-swap benchmark")
	fmt.Fprintln(w, "  matrix     Check every transfer combination")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Settings come from XFER_* environment variables; flags override them.")
}

// options are the flag-only settings.
type options struct {
	method string
}

// newFlagSet binds the flags of cmd onto cfg and opts.
func newFlagSet(cmd string, cfg *config.Config, opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.IntVar(&cfg.Rows, "rows", cfg.Rows, "Number of rows")
	fs.IntVar(&cfg.Cols, "cols", cfg.Cols, "Number of columns")
	fs.Float64Var(&cfg.HostValue, "host-value", cfg.HostValue, "Initialization value on the host")
	fs.IntVar(&cfg.TransposeLaunches, "transpose", cfg.TransposeLaunches, "Transpose kernel launches per conversion")
	fs.IntVar(&cfg.BlurBands, "bands", cfg.BlurBands, "Row bands per blur sweep (0 = 2x CPUs)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Host worker goroutines (0 = CPUs)")
	fs.IntVar(&cfg.MinChunk, "min-chunk", cfg.MinChunk, "Minimum indices per worker (0 = default)")
	fs.StringVar(&cfg.Accelerator, "accelerator", cfg.Accelerator, "Accelerator: sim or webgpu")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.OTelEndpoint, "otel-endpoint", cfg.OTelEndpoint, "OTLP/HTTP trace endpoint URL")

	if cmd == "run" {
		fs.Float64Var(&cfg.DeviceValue, "device-value", cfg.DeviceValue, "Initialization value on the accelerator")
		fs.IntVar(&cfg.HostBlurLaunches, "host-blur", cfg.HostBlurLaunches, "Blur launches on host arrays")
		fs.IntVar(&cfg.DeviceBlurLaunches, "device-blur", cfg.DeviceBlurLaunches, "Blur launches on accelerator arrays")
		fs.StringVar(&opts.method, "method", opts.method, "Conversion method: kernel or copy")
	}
	return fs
}

// hostConfig applies the worker overrides to the default fan-out.
func hostConfig(cfg config.Config) parallel.Config {
	pc := parallel.DefaultConfig()
	if cfg.Workers > 0 {
		pc.NumWorkers = cfg.Workers
		pc.Enabled = cfg.Workers > 1
	}
	if cfg.MinChunk > 0 {
		pc.MinChunkSize = cfg.MinChunk
	}
	return pc
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	}))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stdout)
		return 2
	}

	cmd := args[0]
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "xfer %s (%s elements)\n", version, array.ScalarName)
		return 0
	case "run", "matrix":
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		usage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	opts := options{method: xfer.KernelConversion.String()}
	fs := newFlagSet(cmd, &cfg, &opts, stderr)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	method, err := xfer.ParseMethod(opts.method)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	logger := newLogger(stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := instrument.Setup(ctx, "xfer", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	env, closeEnv, err := newEnv(cfg, logger)
	if err != nil {
		logger.Error("accelerator unavailable", "accelerator", cfg.Accelerator, "error", err)
		return 1
	}
	defer closeEnv()

	logger.Info("starting",
		"command", cmd,
		"host", env.Host.Name(),
		"device", env.Device.Name(),
		"rows", cfg.Rows,
		"cols", cfg.Cols,
		"scalar", array.ScalarName,
	)

	switch cmd {
	case "run":
		p := scenario.ParamsFrom(cfg)
		p.Method = method
		report, err := scenario.Benchmark(ctx, env, p)
		if err != nil {
			logger.Error("benchmark failed", "error", err)
			return 1
		}
		for _, ph := range report.Phases {
			fmt.Fprintf(stdout, "%-40s %12s\n", ph.Name, ph.Duration)
		}
	case "matrix":
		out, err := scenario.Matrix(ctx, env, cfg.Rows, cfg.Cols, array.Scalar(cfg.HostValue))
		if err != nil {
			logger.Error("matrix failed", "error", err)
			return 1
		}
		for _, o := range out {
			fmt.Fprintf(stdout, "%-60s %-16s %12s\n", o.Combination, o.Case, o.Duration)
		}
	}
	return 0
}

// newEnv builds the spaces and collaborators of a run.
func newEnv(cfg config.Config, logger *slog.Logger) (scenario.Env, func(), error) {
	device, closeDevice, err := newAccelerator(cfg)
	if err != nil {
		return scenario.Env{}, nil, err
	}

	ranges := instrument.New(nil, instrument.DefaultPalette())
	k := kernels.NewRunner(
		kernels.WithRanges(ranges),
		kernels.WithLogger(logger),
		kernels.WithBlurBands(cfg.BlurBands),
	)
	return scenario.Env{
		Host:    exec.NewHost(hostConfig(cfg)),
		Device:  device,
		Kernels: k,
		Dispatcher: xfer.NewDispatcher(k,
			xfer.WithRanges(ranges),
			xfer.WithLogger(logger),
			xfer.WithTransposeLaunches(cfg.TransposeLaunches),
		),
		Ranges: ranges,
		Logger: logger,
	}, closeDevice, nil
}

// newSimDevice starts the simulated accelerator.
func newSimDevice() (exec.Space, func(), error) {
	d := exec.NewDevice(exec.DeviceConfig())
	return d, d.Close, nil
}
