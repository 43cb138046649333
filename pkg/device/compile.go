package device

import (
	"math"

	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/path"
)

// Compile defaults, used when the corresponding Options field is zero.
const (
	// DefaultMinStep is the merge threshold: consecutive same-direction
	// pen-down segments shorter than this collapse into one move.
	DefaultMinStep = 0.25 // mm

	// DefaultDrawSpeed is the pen-down speed.
	DefaultDrawSpeed = 40.0 // mm/s

	// DefaultTravelSpeed is the pen-up speed.
	DefaultTravelSpeed = 120.0 // mm/s
)

// Options configures compilation.
type Options struct {
	// Area is the drawable region. Required: a zero area rejects everything.
	Area Area

	// MinStep is the merge threshold in millimetres. Zero means
	// DefaultMinStep; negative disables merging entirely.
	MinStep float64

	// DrawSpeed is the pen-down speed in mm/s. Zero means DefaultDrawSpeed.
	DrawSpeed float64

	// TravelSpeed is the pen-up speed in mm/s. Zero means DefaultTravelSpeed.
	TravelSpeed float64
}

func (o Options) withDefaults() Options {
	if o.MinStep == 0 {
		o.MinStep = DefaultMinStep
	}
	if o.DrawSpeed == 0 {
		o.DrawSpeed = DefaultDrawSpeed
	}
	if o.TravelSpeed == 0 {
		o.TravelSpeed = DefaultTravelSpeed
	}
	return o
}

// move is an intermediate motion step between transform and emission.
type move struct {
	to      path.Point
	penDown bool
	kind    path.Kind
}

// Compile lowers a canonical path into the ordered command sequence for one
// job. The whole path is validated against the drawable area before any
// command is produced, so a job either compiles entirely or not at all.
//
// The pen is assumed parked at the origin with the pen up (the state the
// machine is in after homing); an initial travel move coinciding with the
// origin is suppressed.
func Compile(p *path.Path, t Transform, opts Options) ([]Command, error) {
	opts = opts.withDefaults()

	// Pass 1: transform and bounds-check every endpoint.
	segments := p.Segments()
	moves := make([]move, len(segments))
	for i, s := range segments {
		pt := t.Apply(s.End)
		if !opts.Area.Contains(pt) {
			return nil, errors.New(errors.ErrCodeOutOfBounds,
				"segment %d endpoint (%.2f, %.2f) outside drawable area %.0fx%.0f",
				i, pt.X, pt.Y, opts.Area.Width, opts.Area.Height)
		}
		moves[i] = move{to: pt, penDown: s.PenDown, kind: s.Kind}
	}

	// Pass 2: merge short same-direction pen-down line runs.
	if opts.MinStep > 0 {
		moves = mergeShortRuns(moves, opts.MinStep)
	}

	// Pass 3: emit pen transitions and motion, numbering from 0.
	cmds := make([]Command, 0, len(moves)+2)
	pos := path.Point{}
	penDown := false
	for _, m := range moves {
		if m.penDown != penDown {
			op := OpPenUp
			if m.penDown {
				op = OpPenDown
			}
			cmds = append(cmds, Command{Op: op})
			penDown = m.penDown
		}
		if samePoint(m.to, pos) {
			continue
		}
		speed := opts.TravelSpeed
		if penDown {
			speed = opts.DrawSpeed
		}
		cmds = append(cmds, Command{Op: OpMove, X: m.to.X, Y: m.to.Y, Speed: speed})
		pos = m.to
	}

	for i := range cmds {
		cmds[i].Seq = uint32(i)
	}
	return cmds, nil
}

// mergeShortRuns collapses consecutive pen-down LineTo moves that continue
// in the same direction and are each shorter than minStep. The final
// endpoint of a merged run is preserved exactly, never interpolated.
func mergeShortRuns(moves []move, minStep float64) []move {
	out := make([]move, 0, len(moves))
	pos := path.Point{}

	for i := 0; i < len(moves); i++ {
		m := moves[i]
		if m.kind != path.LineTo || !m.penDown || m.to.Dist(pos) >= minStep {
			out = append(out, m)
			pos = m.to
			continue
		}

		// Start of a candidate run. Extend while the next move is another
		// short pen-down line continuing in the same direction.
		dir := unit(m.to.Sub(pos))
		end := i
		last := m.to
		for end+1 < len(moves) {
			next := moves[end+1]
			if next.kind != path.LineTo || !next.penDown {
				break
			}
			step := next.to.Sub(last)
			if math.Hypot(step.X, step.Y) >= minStep || !sameDirection(dir, unit(step)) {
				break
			}
			last = next.to
			end++
		}

		merged := m
		merged.to = last
		out = append(out, merged)
		pos = last
		i = end
	}
	return out
}

func unit(v path.Point) path.Point {
	n := math.Hypot(v.X, v.Y)
	if n == 0 {
		return path.Point{}
	}
	return path.Point{X: v.X / n, Y: v.Y / n}
}

// sameDirection reports whether two unit vectors point the same way, within
// floating-point tolerance. Zero vectors never match.
func sameDirection(a, b path.Point) bool {
	if (a == path.Point{}) || (b == path.Point{}) {
		return false
	}
	return a.X*b.X+a.Y*b.Y > 1-1e-9
}

func samePoint(a, b path.Point) bool {
	return a.Dist(b) < 1e-9
}
