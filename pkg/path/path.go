package path

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/matzehuels/penplot/pkg/errors"
)

// Kind identifies the shape of a path segment.
type Kind uint8

// Segment kinds. CurveTo carries an endpoint only; methods that want true
// curves flatten them into LineTo runs before building the path.
const (
	MoveTo Kind = iota
	LineTo
	CurveTo
)

// String returns the segment kind name used in logs and errors.
func (k Kind) String() string {
	switch k {
	case MoveTo:
		return "MoveTo"
	case LineTo:
		return "LineTo"
	case CurveTo:
		return "CurveTo"
	default:
		return "Unknown"
	}
}

// Point is a position on the page in millimetres, relative to the top-left
// corner, growing rightwards and downwards.
type Point struct {
	X float64
	Y float64
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Segment is one step of a drawing: move the pen to End, with the pen down
// (inking) or up (travelling).
type Segment struct {
	Kind    Kind
	End     Point
	PenDown bool
}

// Path is an immutable ordered sequence of segments. Construct with [New] or
// a [Builder]; both validate the first-segment invariant.
type Path struct {
	segments []Segment
}

// New constructs a Path from segments, copying the slice. It returns a
// MALFORMED_PATH error if the sequence violates the canonical invariants:
// the path must be non-empty, start with a pen-up MoveTo, and every
// coordinate must be finite.
func New(segments []Segment) (*Path, error) {
	if len(segments) == 0 {
		return nil, errors.New(errors.ErrCodeMalformedPath, "path has no segments")
	}
	if segments[0].Kind != MoveTo || segments[0].PenDown {
		return nil, errors.New(errors.ErrCodeMalformedPath,
			"path must start with a pen-up MoveTo, got %s (pen down: %t)",
			segments[0].Kind, segments[0].PenDown)
	}
	for i, s := range segments {
		if !isFinite(s.End.X) || !isFinite(s.End.Y) {
			return nil, errors.New(errors.ErrCodeMalformedPath,
				"segment %d has a non-finite endpoint (%v, %v)", i, s.End.X, s.End.Y)
		}
	}

	copied := make([]Segment, len(segments))
	copy(copied, segments)
	return &Path{segments: copied}, nil
}

// Len returns the number of segments.
func (p *Path) Len() int { return len(p.segments) }

// Segments returns a defensive copy of the segment sequence. The path itself
// never changes after construction.
func (p *Path) Segments() []Segment {
	out := make([]Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// At returns the segment at index i.
func (p *Path) At(i int) Segment { return p.segments[i] }

// InkLength returns the total pen-down travel distance in millimetres.
// Pen-up travel is excluded; it is fast and does not mark the page.
func (p *Path) InkLength() float64 {
	var total float64
	prev := Point{}
	for i, s := range p.segments {
		if i > 0 && s.PenDown {
			total += s.End.Dist(prev)
		}
		prev = s.End
	}
	return total
}

// Bounds returns the axis-aligned bounding box of all endpoints.
func (p *Path) Bounds() (minPt, maxPt Point) {
	minPt = Point{math.Inf(1), math.Inf(1)}
	maxPt = Point{math.Inf(-1), math.Inf(-1)}
	for _, s := range p.segments {
		minPt.X = math.Min(minPt.X, s.End.X)
		minPt.Y = math.Min(minPt.Y, s.End.Y)
		maxPt.X = math.Max(maxPt.X, s.End.X)
		maxPt.Y = math.Max(maxPt.Y, s.End.Y)
	}
	return minPt, maxPt
}

// Fingerprint returns a hex-encoded SHA-256 content hash of the path.
// Identical paths always produce identical fingerprints, which makes the
// fingerprint usable as a compile-cache key component.
func (p *Path) Fingerprint() string {
	h := sha256.New()
	var buf [17]byte
	for _, s := range p.segments {
		buf[0] = byte(s.Kind)
		binary.BigEndian.PutUint64(buf[1:9], math.Float64bits(s.End.X))
		binary.BigEndian.PutUint64(buf[9:17], math.Float64bits(s.End.Y))
		if s.PenDown {
			buf[0] |= 0x80
		}
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
