package exec

import (
	"sync/atomic"

	"github.com/born-ml/xfer/internal/array"
	"github.com/born-ml/xfer/internal/parallel"
)

// Host is the host execution space. Launches run to completion on the
// calling goroutine's worker fan-out before returning, so Fence has nothing
// to wait for.
type Host struct {
	cfg parallel.Config

	live      atomic.Int64
	allocated atomic.Int64
	launches  atomic.Int64
	fences    atomic.Int64
}

// NewHost creates a host space with the given worker configuration.
func NewHost(cfg parallel.Config) *Host {
	return &Host{cfg: cfg}
}

// Domain returns array.Host.
func (h *Host) Domain() array.Domain { return array.Host }

// Name returns the space name.
func (h *Host) Name() string { return "Host" }

// Alloc allocates n zeroed elements of host memory.
func (h *Host) Alloc(n int) (array.Storage, error) {
	h.live.Add(1)
	h.allocated.Add(1)
	return array.NewSlice(n, func() { h.live.Add(-1) }), nil
}

// Fence is a no-op: host launches are synchronous.
func (h *Host) Fence() {
	h.fences.Add(1)
}

// ParallelFor runs body over r on the host workers.
func (h *Host) ParallelFor(_ string, r Range, body func(i, j int)) {
	h.launches.Add(1)
	parallel.For2D(r.I0, r.I1, r.J0, r.J1, body, h.cfg)
}

// ParallelReduceAnd returns the logical AND of pred over r.
func (h *Host) ParallelReduceAnd(_ string, r Range, pred func(i, j int) bool) bool {
	h.launches.Add(1)
	return parallel.ReduceAnd(r.I0, r.I1, r.J0, r.J1, pred, h.cfg)
}

// CopyWithin copies src into dst, converting order if needed.
func (h *Host) CopyWithin(dst, src *array.Array2D) error {
	return copyWithin(h, h, dst, src)
}

// Stats returns the space counters.
func (h *Host) Stats() Stats {
	return Stats{
		Live:      h.live.Load(),
		Allocated: h.allocated.Load(),
		Launches:  h.launches.Load(),
		Fences:    h.fences.Load(),
	}
}

// Compile-time interface checks.
var (
	_ Space    = (*Host)(nil)
	_ Launcher = (*Host)(nil)
)
