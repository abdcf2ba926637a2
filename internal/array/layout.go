package array

// Order is the mapping from a logical (i, j) index to a physical offset.
type Order int

// Supported storage orders.
const (
	// RowMajor stores rows contiguously: offset = i*cols + j.
	RowMajor Order = iota
	// ColMajor stores columns contiguously: offset = j*rows + i.
	ColMajor
)

// String returns a human-readable order name.
func (o Order) String() string {
	switch o {
	case RowMajor:
		return "RowMajor"
	case ColMajor:
		return "ColMajor"
	default:
		return "Unknown"
	}
}

// Short returns the two-letter label used in range names (LR = layout right, LL = layout left).
func (o Order) Short() string {
	switch o {
	case RowMajor:
		return "LR"
	case ColMajor:
		return "LL"
	default:
		return "??"
	}
}

// Valid reports whether o is one of the two canonical orders.
func (o Order) Valid() bool {
	return o == RowMajor || o == ColMajor
}

// Other returns the opposite order.
func (o Order) Other() Order {
	if o == RowMajor {
		return ColMajor
	}
	return RowMajor
}

// Domain is a memory and execution context with its own buffers and queue.
type Domain int

// Supported domains.
const (
	Host Domain = iota
	Accelerator
)

// String returns a human-readable domain name.
func (d Domain) String() string {
	switch d {
	case Host:
		return "Host"
	case Accelerator:
		return "Device"
	default:
		return "Unknown"
	}
}

// Valid reports whether d names a known domain.
func (d Domain) Valid() bool {
	return d == Host || d == Accelerator
}

// Orders lists both storage orders, handy for exhaustive loops.
func Orders() []Order { return []Order{RowMajor, ColMajor} }

// Domains lists both domains, handy for exhaustive loops.
func Domains() []Domain { return []Domain{Host, Accelerator} }
