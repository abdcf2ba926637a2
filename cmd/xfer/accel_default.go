//go:build !(windows && xfer_float32)

package main

import (
	"fmt"

	"github.com/born-ml/xfer/internal/config"
	"github.com/born-ml/xfer/internal/exec"
)

func newAccelerator(cfg config.Config) (exec.Space, func(), error) {
	if cfg.Accelerator == config.AcceleratorWebGPU {
		return nil, nil, fmt.Errorf("webgpu accelerator needs a windows build with -tags xfer_float32")
	}
	return newSimDevice()
}
