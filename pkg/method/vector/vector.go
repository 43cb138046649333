// Package vector implements the direct-vector drawing method: the caller
// supplies polylines and the method passes them through as canonical paths.
//
// This is the escape hatch for external generators (SVG converters, plotter
// frontends) that already have geometry and only need the motion pipeline.
package vector

import (
	"context"
	"fmt"

	"github.com/matzehuels/penplot/pkg/method"
	"github.com/matzehuels/penplot/pkg/path"
)

// Method draws caller-supplied polylines verbatim.
//
// Recognized parameters:
//   - polylines: [][]path.Point, or the JSON-decoded equivalent
//     []any of []any of [x, y] pairs. Each polyline is drawn pen-down with
//     pen-up travel between polylines.
type Method struct{}

// New returns the vector method.
func New() *Method { return &Method{} }

func (m *Method) Name() string { return "vector" }

func (m *Method) Info() string { return "direct polyline pass-through" }

// Produce converts the supplied polylines into a canonical path.
func (m *Method) Produce(ctx context.Context, params method.Params) (*path.Path, error) {
	polylines, err := decodePolylines(params["polylines"])
	if err != nil {
		return nil, err
	}
	if len(polylines) == 0 {
		return nil, fmt.Errorf("no polylines supplied")
	}

	b := path.NewBuilder()
	for i, line := range polylines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(line) < 2 {
			return nil, fmt.Errorf("polyline %d has %d points, need at least 2", i, len(line))
		}
		b.PenUp()
		b.MoveTo(line[0].X, line[0].Y)
		b.PenDown()
		for _, p := range line[1:] {
			b.LineTo(p.X, p.Y)
		}
	}

	return b.Build()
}

// decodePolylines accepts both the native [][]path.Point form and the
// JSON-decoded []any form produced by the HTTP API.
func decodePolylines(v any) ([][]path.Point, error) {
	switch lines := v.(type) {
	case nil:
		return nil, fmt.Errorf("missing required parameter %q", "polylines")
	case [][]path.Point:
		return lines, nil
	case []any:
		out := make([][]path.Point, 0, len(lines))
		for i, raw := range lines {
			pts, ok := raw.([]any)
			if !ok {
				return nil, fmt.Errorf("polyline %d is not an array", i)
			}
			line := make([]path.Point, 0, len(pts))
			for j, rawPt := range pts {
				pt, err := decodePoint(rawPt)
				if err != nil {
					return nil, fmt.Errorf("polyline %d point %d: %w", i, j, err)
				}
				line = append(line, pt)
			}
			out = append(out, line)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("polylines has unsupported type %T", v)
	}
}

func decodePoint(v any) (path.Point, error) {
	pair, ok := v.([]any)
	if !ok || len(pair) != 2 {
		return path.Point{}, fmt.Errorf("expected [x, y] pair, got %T", v)
	}
	x, okX := toFloat(pair[0])
	y, okY := toFloat(pair[1])
	if !okX || !okY {
		return path.Point{}, fmt.Errorf("non-numeric coordinate in pair %v", pair)
	}
	return path.Point{X: x, Y: y}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
