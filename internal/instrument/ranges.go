// Package instrument annotates phases of a run as OpenTelemetry spans.
// Annotations are observational only: nothing reads them back to make decisions.
package instrument

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/born-ml/xfer/internal/array"
)

// TracerName is the instrumentation scope of every range.
const TracerName = "github.com/born-ml/xfer"

// ColorKey is the span attribute carrying a range's display color.
const ColorKey = attribute.Key("xfer.color")

// Palette maps phases to display colors for timeline viewers.
type Palette struct {
	Host         string
	Accelerator  string
	HostToDevice string
	DeviceToHost string
	Check        string
	Scope        string
	Runtime      string
}

// DefaultPalette returns the colors used by the benchmark driver.
func DefaultPalette() Palette {
	return Palette{
		Host:         "cyan",
		Accelerator:  "green",
		HostToDevice: "yellow",
		DeviceToHost: "purple",
		Check:        "black",
		Scope:        "white",
		Runtime:      "red",
	}
}

// Domain returns the color for work running in d.
func (p Palette) Domain(d array.Domain) string {
	if d == array.Accelerator {
		return p.Accelerator
	}
	return p.Host
}

// Direction returns the color for a copy from src to dst.
func (p Palette) Direction(src, dst array.Domain) string {
	switch {
	case src == array.Host && dst == array.Accelerator:
		return p.HostToDevice
	case src == array.Accelerator && dst == array.Host:
		return p.DeviceToHost
	default:
		return p.Domain(dst)
	}
}

// Ranges opens named, colored spans. A nil *Ranges is valid and records nothing.
type Ranges struct {
	tracer  trace.Tracer
	palette Palette
}

// New returns Ranges backed by tp. A nil tp uses the global provider.
func New(tp trace.TracerProvider, palette Palette) *Ranges {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Ranges{
		tracer:  tp.Tracer(TracerName),
		palette: palette,
	}
}

// Palette returns the configured colors.
func (r *Ranges) Palette() Palette {
	if r == nil {
		return DefaultPalette()
	}
	return r.palette
}

// Push opens a range and returns the context carrying it plus the function
// that closes it.
//
//	ctx, end := ranges.Push(ctx, "deep copy H2D", palette.HostToDevice)
//	defer end()
func (r *Ranges) Push(ctx context.Context, name, color string) (context.Context, func()) {
	if r == nil {
		return ctx, func() {}
	}
	ctx, span := r.tracer.Start(ctx, name, trace.WithAttributes(ColorKey.String(color)))
	return ctx, func() { span.End() }
}
