//go:build xfer_float32

package array

// Scalar is the element type of every array in this build.
type Scalar = float32

// Epsilon is the machine epsilon of Scalar.
const Epsilon Scalar = 0x1p-23

// ScalarName is the name of the element type, used in logs.
const ScalarName = "float32"
