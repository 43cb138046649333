// Package hatch implements angled line hatching over a rectangular region.
//
// Parallel lines at a configurable angle and spacing are clipped to the
// drawable rectangle and drawn in alternating directions to minimize pen-up
// travel.
package hatch

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/matzehuels/penplot/pkg/method"
	"github.com/matzehuels/penplot/pkg/path"
)

// Method draws parallel hatching lines.
//
// Recognized parameters:
//   - width (float, mm, default 200): region width
//   - height (float, mm, default 200): region height
//   - margin (float, mm, default 10): blank border on all sides
//   - spacing (float, mm, default 5): perpendicular distance between lines
//   - angle (float, degrees, default 45): line angle, 0 = horizontal
type Method struct{}

// New returns the hatch method.
func New() *Method { return &Method{} }

func (m *Method) Name() string { return "hatch" }

func (m *Method) Info() string { return "angled parallel-line hatching" }

// Produce generates the hatching path.
func (m *Method) Produce(ctx context.Context, params method.Params) (*path.Path, error) {
	width := params.Float("width", 200)
	height := params.Float("height", 200)
	margin := params.Float("margin", 10)
	spacing := params.Float("spacing", 5)
	angle := params.Float("angle", 45)

	if spacing <= 0 {
		return nil, fmt.Errorf("spacing must be positive, got %g", spacing)
	}
	w := width - 2*margin
	h := height - 2*margin
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("margin %g leaves no drawable space in %gx%g", margin, width, height)
	}

	theta := angle * math.Pi / 180
	// Direction along the lines and the perpendicular normal.
	dir := path.Point{X: math.Cos(theta), Y: math.Sin(theta)}
	nrm := path.Point{X: -dir.Y, Y: dir.X}

	// Project the rectangle corners onto the normal to find the offset range.
	corners := []path.Point{
		{X: margin, Y: margin},
		{X: margin + w, Y: margin},
		{X: margin, Y: margin + h},
		{X: margin + w, Y: margin + h},
	}
	minOff, maxOff := math.Inf(1), math.Inf(-1)
	for _, c := range corners {
		off := c.X*nrm.X + c.Y*nrm.Y
		minOff = math.Min(minOff, off)
		maxOff = math.Max(maxOff, off)
	}

	b := path.NewBuilder()
	forward := true
	drawn := 0
	for off := minOff; off <= maxOff; off += spacing {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p1, p2, ok := clipLine(dir, nrm, off, margin, margin, w, h)
		if !ok {
			continue
		}
		if !forward {
			p1, p2 = p2, p1
		}
		if drawn == 0 {
			b.MoveTo(p1.X, p1.Y)
			b.PenDown()
		} else {
			b.PenUp()
			b.MoveTo(p1.X, p1.Y)
			b.PenDown()
		}
		b.LineTo(p2.X, p2.Y)
		forward = !forward
		drawn++
	}

	if drawn == 0 {
		return nil, fmt.Errorf("no hatch lines fit region %gx%g at spacing %g", w, h, spacing)
	}
	return b.Build()
}

// clipLine intersects the infinite line {p : p·nrm = off} with the rectangle
// at (x0, y0) of size w×h. The two intersection points are returned ordered
// along dir. ok is false when the line misses the rectangle.
func clipLine(dir, nrm path.Point, off, x0, y0, w, h float64) (p1, p2 path.Point, ok bool) {
	// A point on the line.
	base := path.Point{X: nrm.X * off, Y: nrm.Y * off}

	type hit struct{ t float64 }
	var hits []hit
	add := func(t float64) {
		p := path.Point{X: base.X + dir.X*t, Y: base.Y + dir.Y*t}
		const eps = 1e-9
		if p.X >= x0-eps && p.X <= x0+w+eps && p.Y >= y0-eps && p.Y <= y0+h+eps {
			hits = append(hits, hit{t})
		}
	}

	// Intersect with the four edge lines.
	if dir.X != 0 {
		add((x0 - base.X) / dir.X)
		add((x0 + w - base.X) / dir.X)
	}
	if dir.Y != 0 {
		add((y0 - base.Y) / dir.Y)
		add((y0 + h - base.Y) / dir.Y)
	}
	if len(hits) < 2 {
		return path.Point{}, path.Point{}, false
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].t < hits[j].t })
	tMin, tMax := hits[0].t, hits[len(hits)-1].t
	if tMax-tMin < 1e-9 {
		return path.Point{}, path.Point{}, false
	}
	p1 = path.Point{X: base.X + dir.X*tMin, Y: base.Y + dir.Y*tMin}
	p2 = path.Point{X: base.X + dir.X*tMax, Y: base.Y + dir.Y*tMax}
	return clamp(p1, x0, y0, w, h), clamp(p2, x0, y0, w, h), true
}

// clamp snaps tiny floating-point overshoot back onto the rectangle.
func clamp(p path.Point, x0, y0, w, h float64) path.Point {
	p.X = math.Max(x0, math.Min(x0+w, p.X))
	p.Y = math.Max(y0, math.Min(y0+h, p.Y))
	return p
}
