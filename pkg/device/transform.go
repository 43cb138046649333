package device

import (
	"math"

	"github.com/matzehuels/penplot/pkg/path"
)

// Transform is the affine placement of a drawing on the page: scale, then
// rotate about the origin, then translate. The zero value is not useful;
// use [IdentityTransform] as a starting point.
type Transform struct {
	ScaleX   float64
	ScaleY   float64
	Rotation float64 // radians, positive is clockwise in page coordinates
	OffsetX  float64 // millimetres
	OffsetY  float64 // millimetres
}

// IdentityTransform returns the transform that leaves geometry unchanged.
func IdentityTransform() Transform {
	return Transform{ScaleX: 1, ScaleY: 1}
}

// Apply maps a canonical-path point onto the page.
func (t Transform) Apply(p path.Point) path.Point {
	x := p.X * t.ScaleX
	y := p.Y * t.ScaleY
	if t.Rotation != 0 {
		sin, cos := math.Sincos(t.Rotation)
		x, y = x*cos-y*sin, x*sin+y*cos
	}
	return path.Point{X: x + t.OffsetX, Y: y + t.OffsetY}
}

// Area is the drawable region of the page: the axis-aligned rectangle from
// the origin to (Width, Height) in millimetres.
type Area struct {
	Width  float64
	Height float64
}

// boundsEps absorbs floating-point noise from transform arithmetic so a
// point mathematically on the page edge is not rejected.
const boundsEps = 1e-6

// Contains reports whether p lies inside the drawable area.
func (a Area) Contains(p path.Point) bool {
	return p.X >= -boundsEps && p.X <= a.Width+boundsEps &&
		p.Y >= -boundsEps && p.Y <= a.Height+boundsEps
}
