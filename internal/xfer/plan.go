// Package xfer implements the transfer dispatcher: it moves a 2-D array
// between domains and storage orders by choosing a legal sequence of bulk
// copies, in-domain copies and transpose kernels.
package xfer

import (
	"errors"
	"fmt"

	"github.com/born-ml/xfer/internal/array"
)

// Configuration errors. Every one of them matches ErrConfig with errors.Is.
var (
	ErrConfig         = errors.New("xfer: configuration error")
	ErrInvalidStaging = fmt.Errorf("%w: staging domain must be the source or destination domain", ErrConfig)
	ErrShapeMismatch  = fmt.Errorf("%w: source and destination shapes differ", ErrConfig)
	ErrInvalidMethod  = fmt.Errorf("%w: unknown conversion method", ErrConfig)
	ErrInvalidOrder   = fmt.Errorf("%w: unknown storage order", ErrConfig)
	ErrSharedDomain   = fmt.Errorf("%w: arrays in one domain belong to different spaces", ErrConfig)
)

// Method selects how an order conversion is performed inside one domain.
type Method int

const (
	// CopyConversion uses the space's order-aware in-domain copy.
	CopyConversion Method = iota
	// KernelConversion uses the explicit transpose kernel.
	KernelConversion
)

// String returns a human-readable method name.
func (m Method) String() string {
	switch m {
	case CopyConversion:
		return "copy"
	case KernelConversion:
		return "kernel"
	default:
		return "Unknown"
	}
}

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	return m == CopyConversion || m == KernelConversion
}

// Methods lists both conversion methods.
func Methods() []Method { return []Method{CopyConversion, KernelConversion} }

// ParseMethod parses "copy" or "kernel".
func ParseMethod(s string) (Method, error) {
	switch s {
	case "copy":
		return CopyConversion, nil
	case "kernel":
		return KernelConversion, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMethod, s)
	}
}

// Case is one row of the dispatch table.
type Case int

const (
	// SameDomain: one in-domain copy, any order pair.
	SameDomain Case = iota + 1
	// CrossDomain: one bulk copy, orders already match.
	CrossDomain
	// StageOnSource: convert in the source domain, then bulk copy.
	StageOnSource
	// StageOnDest: bulk copy, then convert in the destination domain.
	StageOnDest
)

// String returns a human-readable case name.
func (c Case) String() string {
	switch c {
	case SameDomain:
		return "same-domain"
	case CrossDomain:
		return "cross-domain"
	case StageOnSource:
		return "stage-on-source"
	case StageOnDest:
		return "stage-on-dest"
	default:
		return "Unknown"
	}
}

// Operand names an array taking part in a step.
type Operand int

// Step operands.
const (
	Src Operand = iota
	Dst
	Temp
)

// String returns the operand name.
func (o Operand) String() string {
	switch o {
	case Src:
		return "src"
	case Dst:
		return "dst"
	case Temp:
		return "temp"
	default:
		return "?"
	}
}

// StepKind is a primitive operation of a plan.
type StepKind int

// Step kinds.
const (
	// Allocate creates the temporary buffer in Step.Domain.
	Allocate StepKind = iota
	// CopyWithin is an order-aware copy inside Step.Domain.
	CopyWithin
	// Transpose runs the transpose kernel inside Step.Domain.
	Transpose
	// DeepCopy is a cross-domain bulk copy between equal orders.
	DeepCopy
)

// String returns the step kind name.
func (k StepKind) String() string {
	switch k {
	case Allocate:
		return "allocate"
	case CopyWithin:
		return "copy-within"
	case Transpose:
		return "transpose"
	case DeepCopy:
		return "deep-copy"
	default:
		return "Unknown"
	}
}

// Step is one primitive of a plan, copying From into To.
type Step struct {
	Kind   StepKind
	To     Operand
	From   Operand
	Domain array.Domain // Where the step executes; for DeepCopy, the destination side.
}

// String renders the step, e.g. "deep-copy dst <- temp".
func (s Step) String() string {
	if s.Kind == Allocate {
		return fmt.Sprintf("allocate temp on %s", s.Domain)
	}
	return fmt.Sprintf("%s %s <- %s on %s", s.Kind, s.To, s.From, s.Domain)
}

// Endpoint describes one side of a transfer.
type Endpoint struct {
	Domain array.Domain
	Order  array.Order
	Rows   int
	Cols   int
}

// Describe returns the endpoint of a.
func Describe(a *array.Array2D) Endpoint {
	return Endpoint{Domain: a.Domain(), Order: a.Order(), Rows: a.Rows(), Cols: a.Cols()}
}

// Plan is the ordered list of primitives that moves src into dst.
type Plan struct {
	Case    Case
	Staging array.Domain
	Method  Method
	// TempOrder is the storage order of the temporary buffer; meaningful only
	// for the staging cases.
	TempOrder array.Order
	Steps     []Step
}

// NeedsTemp reports whether the plan allocates a temporary buffer.
func (p Plan) NeedsTemp() bool {
	return p.Case == StageOnSource || p.Case == StageOnDest
}

// PlanTransfer validates a transfer request and selects its case. It never
// touches memory, so a failed request leaves both arrays untouched.
func PlanTransfer(dst, src Endpoint, staging array.Domain, method Method) (Plan, error) {
	if dst.Rows != src.Rows || dst.Cols != src.Cols {
		return Plan{}, fmt.Errorf("%w: dst %dx%d, src %dx%d", ErrShapeMismatch, dst.Rows, dst.Cols, src.Rows, src.Cols)
	}
	if !dst.Order.Valid() || !src.Order.Valid() {
		return Plan{}, fmt.Errorf("%w: dst %d, src %d", ErrInvalidOrder, int(dst.Order), int(src.Order))
	}
	if staging != src.Domain && staging != dst.Domain {
		return Plan{}, fmt.Errorf("%w: got %s, src %s, dst %s", ErrInvalidStaging, staging, src.Domain, dst.Domain)
	}
	if !method.Valid() {
		return Plan{}, fmt.Errorf("%w: %d", ErrInvalidMethod, int(method))
	}

	p := Plan{Staging: staging, Method: method}
	convert := CopyWithin
	if method == KernelConversion {
		convert = Transpose
	}

	sameDomain := dst.Domain == src.Domain
	sameOrder := dst.Order == src.Order
	switch {
	case sameDomain:
		p.Case = SameDomain
		p.Steps = []Step{{Kind: CopyWithin, To: Dst, From: Src, Domain: src.Domain}}
	case sameOrder:
		p.Case = CrossDomain
		p.Steps = []Step{{Kind: DeepCopy, To: Dst, From: Src, Domain: dst.Domain}}
	case staging == src.Domain:
		p.Case = StageOnSource
		p.TempOrder = dst.Order
		p.Steps = []Step{
			{Kind: Allocate, To: Temp, Domain: src.Domain},
			{Kind: convert, To: Temp, From: Src, Domain: src.Domain},
			{Kind: DeepCopy, To: Dst, From: Temp, Domain: dst.Domain},
		}
	default:
		p.Case = StageOnDest
		p.TempOrder = src.Order
		p.Steps = []Step{
			{Kind: Allocate, To: Temp, Domain: dst.Domain},
			{Kind: DeepCopy, To: Temp, From: Src, Domain: dst.Domain},
			{Kind: convert, To: Dst, From: Temp, Domain: dst.Domain},
		}
	}
	return p, nil
}
