package path

// Builder accumulates segments for a drawing method. It tracks pen state so
// methods only describe geometry: raise the pen, move somewhere, lower it,
// draw. Build validates the result into an immutable [Path].
//
// The zero value is not usable; call [NewBuilder].
//
// Builders are not safe for concurrent use.
type Builder struct {
	segments []Segment
	penDown  bool
	started  bool
}

// NewBuilder returns an empty builder with the pen raised.
func NewBuilder() *Builder {
	return &Builder{}
}

// PenDown lowers the pen. Subsequent LineTo/CurveTo calls ink the page.
func (b *Builder) PenDown() *Builder {
	b.penDown = true
	return b
}

// PenUp raises the pen. Subsequent moves travel without marking.
func (b *Builder) PenUp() *Builder {
	b.penDown = false
	return b
}

// MoveTo records a travel move to (x, y). The first call establishes the
// drawing's start position; the canonical invariant forces it pen-up, so a
// MoveTo before any PenDown/PenUp call travels with the pen raised.
func (b *Builder) MoveTo(x, y float64) *Builder {
	down := b.penDown
	if !b.started {
		down = false
		b.started = true
	}
	b.segments = append(b.segments, Segment{Kind: MoveTo, End: Point{x, y}, PenDown: down})
	return b
}

// LineTo records a straight segment to (x, y) with the current pen state.
func (b *Builder) LineTo(x, y float64) *Builder {
	b.ensureStart(x, y)
	b.segments = append(b.segments, Segment{Kind: LineTo, End: Point{x, y}, PenDown: b.penDown})
	return b
}

// CurveTo records a curve endpoint at (x, y) with the current pen state.
// Only the endpoint is canonical; methods flatten control geometry themselves.
func (b *Builder) CurveTo(x, y float64) *Builder {
	b.ensureStart(x, y)
	b.segments = append(b.segments, Segment{Kind: CurveTo, End: Point{x, y}, PenDown: b.penDown})
	return b
}

// Len returns the number of segments recorded so far.
func (b *Builder) Len() int { return len(b.segments) }

// Build validates the accumulated segments and returns the immutable path.
func (b *Builder) Build() (*Path, error) {
	return New(b.segments)
}

// ensureStart inserts the leading pen-up MoveTo when a method begins drawing
// without positioning first, so the invariant holds by construction.
func (b *Builder) ensureStart(x, y float64) {
	if b.started {
		return
	}
	b.segments = append(b.segments, Segment{Kind: MoveTo, End: Point{x, y}, PenDown: false})
	b.started = true
}
