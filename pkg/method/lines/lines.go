// Package lines implements the serpentine line-fill drawing method.
//
// The method draws horizontal passes that sweep left-to-right then
// right-to-left down the page. It is the simplest method in the catalog and
// doubles as the machine test pattern.
package lines

import (
	"context"
	"fmt"

	"github.com/matzehuels/penplot/pkg/method"
	"github.com/matzehuels/penplot/pkg/path"
)

// Method draws evenly spaced serpentine lines.
//
// Recognized parameters:
//   - width (float, mm, default 200): drawing width including margins
//   - height (float, mm, default 200): drawing height including margins
//   - margin (float, mm, default 10): blank border on all sides
//   - spacing (float, mm, default 10): vertical distance between passes
type Method struct{}

// New returns the lines method.
func New() *Method { return &Method{} }

func (m *Method) Name() string { return "lines" }

func (m *Method) Info() string { return "serpentine line fill (machine test pattern)" }

// Produce generates the serpentine path.
func (m *Method) Produce(ctx context.Context, params method.Params) (*path.Path, error) {
	width := params.Float("width", 200)
	height := params.Float("height", 200)
	margin := params.Float("margin", 10)
	spacing := params.Float("spacing", 10)

	if spacing <= 0 {
		return nil, fmt.Errorf("spacing must be positive, got %g", spacing)
	}
	if width <= 2*margin || height <= 2*margin {
		return nil, fmt.Errorf("margin %g leaves no drawable space in %gx%g", margin, width, height)
	}

	left := margin
	right := width - margin

	b := path.NewBuilder()
	b.MoveTo(left, margin)
	b.PenDown()

	leftToRight := true
	for y := margin; y <= height-margin; y += spacing {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if leftToRight {
			b.LineTo(left, y)
			b.LineTo(right, y)
		} else {
			b.LineTo(right, y)
			b.LineTo(left, y)
		}
		leftToRight = !leftToRight
	}

	return b.Build()
}
