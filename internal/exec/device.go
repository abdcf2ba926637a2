package exec

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/parallel"
)

// DeviceConfig returns the lane configuration of the simulated accelerator:
// wide fan-out with large chunks.
func DeviceConfig() parallel.Config {
	n := runtime.NumCPU()
	return parallel.Config{
		Enabled:      n > 1,
		NumWorkers:   4 * n,
		MinChunkSize: 256,
	}
}

// Device is a simulated accelerator. Work is submitted to a single FIFO
// queue drained by one goroutine, so ParallelFor returns before the kernel
// runs and results become visible to the host only after Fence. Device
// memory is not addressable from host code.
type Device struct {
	cfg parallel.Config

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}

	live      atomic.Int64
	allocated atomic.Int64
	launches  atomic.Int64
	fences    atomic.Int64
}

// NewDevice starts a simulated accelerator. Call Close when done.
func NewDevice(cfg parallel.Config) *Device {
	d := &Device{
		cfg:  cfg,
		done: make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// run drains the queue in submission order.
func (d *Device) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		cmd := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		cmd()
	}
}

// submit enqueues cmd without waiting for it.
func (d *Device) submit(cmd func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		panic("exec: submit on closed device")
	}
	d.queue = append(d.queue, cmd)
	d.cond.Signal()
}

// Close drains outstanding work and stops the queue goroutine.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	<-d.done
}

// Domain returns array.Accelerator.
func (d *Device) Domain() array.Domain { return array.Accelerator }

// Name returns the space name.
func (d *Device) Name() string { return "Device(sim)" }

// Alloc allocates n zeroed elements of device memory.
func (d *Device) Alloc(n int) (array.Storage, error) {
	d.live.Add(1)
	d.allocated.Add(1)
	return array.NewSlice(n, func() { d.live.Add(-1) }), nil
}

// Fence blocks until all previously submitted work has completed.
func (d *Device) Fence() {
	d.fences.Add(1)
	done := make(chan struct{})
	d.submit(func() { close(done) })
	<-done
}

// ParallelFor enqueues body over r and returns immediately.
func (d *Device) ParallelFor(_ string, r Range, body func(i, j int)) {
	d.launches.Add(1)
	cfg := d.cfg
	d.submit(func() {
		parallel.For2D(r.I0, r.I1, r.J0, r.J1, body, cfg)
	})
}

// ParallelReduceAnd enqueues the reduction and waits for its result.
func (d *Device) ParallelReduceAnd(_ string, r Range, pred func(i, j int) bool) bool {
	d.launches.Add(1)
	cfg := d.cfg
	result := make(chan bool, 1)
	d.submit(func() {
		result <- parallel.ReduceAnd(r.I0, r.I1, r.J0, r.J1, pred, cfg)
	})
	return <-result
}

// CopyWithin enqueues a copy of src into dst, converting order if needed.
func (d *Device) CopyWithin(dst, src *array.Array2D) error {
	return copyWithin(d, d, dst, src)
}

// Stats returns the space counters.
func (d *Device) Stats() Stats {
	return Stats{
		Live:      d.live.Load(),
		Allocated: d.allocated.Load(),
		Launches:  d.launches.Load(),
		Fences:    d.fences.Load(),
	}
}

// Compile-time interface checks.
var (
	_ Space    = (*Device)(nil)
	_ Launcher = (*Device)(nil)
)
