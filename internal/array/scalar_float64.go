//go:build !xfer_float32

package array

// Scalar is the element type of every array in this build.
// Build with -tags xfer_float32 to switch to single precision.
type Scalar = float64

// Epsilon is the machine epsilon of Scalar.
const Epsilon Scalar = 0x1p-52

// ScalarName is the name of the element type, used in logs.
const ScalarName = "float64"
