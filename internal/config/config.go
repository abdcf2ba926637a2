// Package config loads run configuration from XFER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Accelerator kinds.
const (
	AcceleratorSim    = "sim"
	AcceleratorWebGPU = "webgpu"
)

// Config holds every tunable of a run.
type Config struct {
	Rows int `env:"XFER_ROWS" envDefault:"1024"`
	Cols int `env:"XFER_COLS" envDefault:"1024"`

	HostValue   float64 `env:"XFER_HOST_VALUE" envDefault:"2.0"`
	DeviceValue float64 `env:"XFER_DEVICE_VALUE" envDefault:"4.0"`

	HostBlurLaunches   int `env:"XFER_HOST_BLUR_LAUNCHES" envDefault:"1"`
	DeviceBlurLaunches int `env:"XFER_DEVICE_BLUR_LAUNCHES" envDefault:"1"`
	TransposeLaunches  int `env:"XFER_TRANSPOSE_LAUNCHES" envDefault:"1"`
	BlurBands          int `env:"XFER_BLUR_BANDS" envDefault:"0"`

	// Workers and MinChunk tune the host worker fan-out; zero means runtime defaults.
	Workers  int `env:"XFER_WORKERS" envDefault:"0"`
	MinChunk int `env:"XFER_MIN_CHUNK" envDefault:"0"`

	Accelerator string `env:"XFER_ACCELERATOR" envDefault:"sim"`
	LogLevel    string `env:"XFER_LOG_LEVEL" envDefault:"info"`

	OTelEndpoint string `env:"XFER_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"XFER_OTEL_ENABLED" envDefault:"true"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.Rows <= 0 || c.Cols <= 0 {
		errs = append(errs, fmt.Errorf("shape %dx%d: dimensions must be > 0", c.Rows, c.Cols))
	}
	if c.HostBlurLaunches < 0 || c.DeviceBlurLaunches < 0 {
		errs = append(errs, fmt.Errorf("blur launches must be >= 0"))
	}
	if c.TransposeLaunches < 1 {
		errs = append(errs, fmt.Errorf("transpose launches must be >= 1, got %d", c.TransposeLaunches))
	}
	if c.Workers < 0 || c.MinChunk < 0 || c.BlurBands < 0 {
		errs = append(errs, fmt.Errorf("workers, min chunk and blur bands must be >= 0"))
	}
	switch c.Accelerator {
	case AcceleratorSim, AcceleratorWebGPU:
	default:
		errs = append(errs, fmt.Errorf("unknown accelerator %q (want %q or %q)", c.Accelerator, AcceleratorSim, AcceleratorWebGPU))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}
