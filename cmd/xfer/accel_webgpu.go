//go:build windows && xfer_float32

package main

import (
	"github.com/born-ml/xfer/internal/config"
	"github.com/born-ml/xfer/internal/exec"
	"github.com/born-ml/xfer/internal/exec/webgpu"
)

func newAccelerator(cfg config.Config) (exec.Space, func(), error) {
	if cfg.Accelerator != config.AcceleratorWebGPU {
		return newSimDevice()
	}
	s, err := webgpu.New()
	if err != nil {
		return nil, nil, err
	}
	return s, s.Release, nil
}
