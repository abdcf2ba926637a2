// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package xfer copies 2-D arrays between a host and an accelerator memory
// domain while converting between row-major and column-major storage.
//
// # Overview
//
// A transfer request names a destination, a source, a staging domain and a
// conversion method. Same-order transfers are a single bulk copy. When both
// the domain and the order differ, the layout conversion runs in the staging
// domain on a temporary buffer, which is released before Transfer returns.
//
// # Basic Usage
//
//	import "github.com/born-ml/xfer/xfer"
//
//	func main() {
//	    engine := xfer.NewEngine()
//	    defer engine.Close()
//
//	    src, _ := xfer.NewArray("src", 8, 8, xfer.RowMajor, engine.Host)
//	    dst, _ := xfer.NewArray("dst", 8, 8, xfer.ColMajor, engine.Device)
//	    defer src.Release()
//	    defer dst.Release()
//
//	    ctx := context.Background()
//	    _ = engine.Kernels.Initialize(ctx, src, 2)
//	    err := engine.Dispatcher.Transfer(ctx, dst, src, xfer.Accelerator, xfer.KernelConversion)
//	}
//
// # Element Type
//
// Scalar is float64 unless the module is built with the xfer_float32 tag.
package xfer
