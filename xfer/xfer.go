// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package xfer

import (
	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/exec"
	"github.com/born-ml/xfer/internal/kernels"
	"github.com/born-ml/xfer/internal/parallel"
	internalxfer "github.com/born-ml/xfer/internal/xfer"
)

// Scalar is the element type of every array.
type Scalar = array.Scalar

// Array2D is a named 2-D array with a fixed storage order and memory domain.
type Array2D = array.Array2D

// Order is the physical storage order of an array.
type Order = array.Order

// Domain is the memory space an array lives in.
type Domain = array.Domain

// Storage orders.
const (
	RowMajor = array.RowMajor
	ColMajor = array.ColMajor
)

// Memory domains.
const (
	Host        = array.Host
	Accelerator = array.Accelerator
)

// Space is one domain's execution context.
type Space = exec.Space

// Method selects how the layout conversion runs.
type Method = internalxfer.Method

// Conversion methods.
const (
	CopyConversion   = internalxfer.CopyConversion
	KernelConversion = internalxfer.KernelConversion
)

// Plan is the validated sequence of steps of one transfer.
type Plan = internalxfer.Plan

// Runner launches the array kernels.
type Runner = kernels.Runner

// Dispatcher executes transfer requests.
type Dispatcher = internalxfer.Dispatcher

// Result is the outcome of a verification.
type Result = kernels.Result

var (
	// ErrConfig wraps every rejected transfer request.
	ErrConfig = internalxfer.ErrConfig
	// ErrMismatch reports a failed verification.
	ErrMismatch = kernels.ErrMismatch
)

// Tolerance is the absolute tolerance of Verify.
const Tolerance = kernels.Tolerance

// NewArray allocates a rows x cols array from space.
func NewArray(name string, rows, cols int, order Order, space Space) (*Array2D, error) {
	return array.New(name, rows, cols, order, space)
}

// PlanTransfer validates a request without touching memory.
func PlanTransfer(dst, src *Array2D, staging Domain, method Method) (Plan, error) {
	return internalxfer.PlanTransfer(internalxfer.Describe(dst), internalxfer.Describe(src), staging, method)
}

// DeepCopy copies src into dst. Shapes and orders must match.
func DeepCopy(dst, src *Array2D) error {
	return exec.DeepCopy(dst, src)
}

// Engine bundles a host space, a simulated accelerator, a kernel runner and
// a dispatcher with default settings.
type Engine struct {
	Host       Space
	Device     Space
	Kernels    *Runner
	Dispatcher *Dispatcher

	device *exec.Device
}

// NewEngine starts an engine. Call Close when done.
func NewEngine() *Engine {
	device := exec.NewDevice(exec.DeviceConfig())
	k := kernels.NewRunner()
	return &Engine{
		Host:       exec.NewHost(parallel.DefaultConfig()),
		Device:     device,
		Kernels:    k,
		Dispatcher: internalxfer.NewDispatcher(k),
		device:     device,
	}
}

// Close stops the simulated accelerator.
func (e *Engine) Close() {
	e.device.Close()
}
