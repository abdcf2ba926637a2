// Package parallel provides parallel execution utilities for the xfer copy engine.
package parallel

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64, // Typical cache line aware chunk.
	}
}

// Sequential returns a config that runs everything on the calling goroutine.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// chunks splits [0, n) into contiguous ranges sized for cfg.
// A nil result means the caller should run sequentially.
func chunks(n int, cfg Config) [][2]int {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < cfg.MinChunkSize {
		return nil
	}
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	out := make([][2]int, 0, (n+chunkSize-1)/chunkSize)
	for start := 0; start < n; start += chunkSize {
		out = append(out, [2]int{start, min(start+chunkSize, n)})
	}
	return out
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	parts := chunks(n, cfg)
	if parts == nil {
		// Sequential fallback.
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	for _, p := range parts {
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(p[0], p[1])
	}
	wg.Wait()
}

// For2D executes f(i, j) for every i in [i0, i1) and j in [j0, j1).
// The flattened index space is split across workers, so a single long row
// still gets spread out. Empty ranges do nothing.
func For2D(i0, i1, j0, j1 int, f func(i, j int), cfg Config) {
	rows, cols := i1-i0, j1-j0
	if rows <= 0 || cols <= 0 {
		return
	}
	For(rows*cols, func(k int) {
		f(i0+k/cols, j0+k%cols)
	}, cfg)
}

// ReduceAnd evaluates pred over the 2-D range and returns the logical AND of
// all results. Each worker short-circuits its own chunk once it sees false.
func ReduceAnd(i0, i1, j0, j1 int, pred func(i, j int) bool, cfg Config) bool {
	rows, cols := i1-i0, j1-j0
	if rows <= 0 || cols <= 0 {
		return true
	}
	n := rows * cols

	check := func(s, e int) bool {
		for k := s; k < e; k++ {
			if !pred(i0+k/cols, j0+k%cols) {
				return false
			}
		}
		return true
	}

	parts := chunks(n, cfg)
	if parts == nil {
		return check(0, n)
	}

	results := make([]bool, len(parts))
	var g errgroup.Group
	g.SetLimit(max(cfg.NumWorkers, 1))
	for idx, p := range parts {
		g.Go(func() error {
			results[idx] = check(p[0], p[1])
			return nil
		})
	}
	_ = g.Wait() // Workers never return errors.

	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}
