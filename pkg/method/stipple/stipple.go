// Package stipple implements a dithered-stipple drawing method.
//
// Dots are placed with a Halton low-discrepancy sequence, which gives an
// even, blue-noise-like distribution without any randomness: the same
// parameters always produce the same path, which the compile cache and
// resumable streaming both rely on. Each dot is a pen-down dab of
// configurable size.
package stipple

import (
	"context"
	"fmt"

	"github.com/matzehuels/penplot/pkg/method"
	"github.com/matzehuels/penplot/pkg/path"
)

// Method places deterministic stipple dots.
//
// Recognized parameters:
//   - width (float, mm, default 200): region width
//   - height (float, mm, default 200): region height
//   - margin (float, mm, default 10): blank border on all sides
//   - count (int, default 500): number of dots
//   - dot (float, mm, default 0.4): dab stroke length per dot
type Method struct{}

// New returns the stipple method.
func New() *Method { return &Method{} }

func (m *Method) Name() string { return "stipple" }

func (m *Method) Info() string { return "deterministic dithered stipple dots" }

// Produce generates the stipple path.
func (m *Method) Produce(ctx context.Context, params method.Params) (*path.Path, error) {
	width := params.Float("width", 200)
	height := params.Float("height", 200)
	margin := params.Float("margin", 10)
	count := params.Int("count", 500)
	dot := params.Float("dot", 0.4)

	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}
	w := width - 2*margin
	h := height - 2*margin
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("margin %g leaves no drawable space in %gx%g", margin, width, height)
	}

	b := path.NewBuilder()
	for i := range count {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		// Index offset avoids the degenerate (0, 0) first sample.
		x := margin + halton(i+1, 2)*w
		y := margin + halton(i+1, 3)*h

		b.PenUp()
		b.MoveTo(x, y)
		b.PenDown()
		b.LineTo(x+dot, y)
	}

	return b.Build()
}

// halton returns element i of the Halton sequence for the given base,
// in [0, 1).
func halton(i, base int) float64 {
	f := 1.0
	r := 0.0
	for i > 0 {
		f /= float64(base)
		r += f * float64(i%base)
		i /= base
	}
	return r
}
