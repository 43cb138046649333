// Package preview renders a compiled command stream without touching the
// machine: an SVG of the pen's motion and a wall-clock estimate of how
// long the drawing will take. Both work from the same read-only stream the
// job controller exposes, so a preview can never alter device state.
package preview

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/matzehuels/penplot/pkg/device"
)

// penActuation approximates the time a pen lift or drop takes.
const penActuation = 250 * time.Millisecond

// Estimate is the predicted duration of a command stream.
type Estimate struct {
	// Draw and Travel split the motion time by pen state.
	Draw   time.Duration
	Travel time.Duration

	// Pen is the time spent actuating the pen.
	Pen time.Duration

	// InkLength and TravelLength are the distances in millimetres.
	InkLength    float64
	TravelLength float64
}

// Total is the full predicted duration.
func (e Estimate) Total() time.Duration {
	return e.Draw + e.Travel + e.Pen
}

// EstimateDuration predicts how long a stream takes to execute, replaying
// it from the parked origin. Commands past an offset can be re-estimated
// mid-job by slicing the stream.
func EstimateDuration(cmds []device.Command) Estimate {
	var est Estimate
	var x, y float64
	penDown := false

	for _, cmd := range cmds {
		switch cmd.Op {
		case device.OpPenUp, device.OpPenDown:
			penDown = cmd.Op == device.OpPenDown
			est.Pen += penActuation
		case device.OpHome:
			x, y = 0, 0
			penDown = false
		case device.OpMove:
			dist := math.Hypot(cmd.X-x, cmd.Y-y)
			x, y = cmd.X, cmd.Y
			if cmd.Speed <= 0 {
				continue
			}
			d := time.Duration(dist / cmd.Speed * float64(time.Second))
			if penDown {
				est.Draw += d
				est.InkLength += dist
			} else {
				est.Travel += d
				est.TravelLength += dist
			}
		}
	}
	return est
}

type SVGOption func(*svgRenderer)

type svgRenderer struct {
	showTravel bool
	strokeMM   float64
	margin     float64
}

// WithTravel draws pen-up travel moves as dashed guide lines.
func WithTravel() SVGOption { return func(r *svgRenderer) { r.showTravel = true } }

// WithStroke sets the pen stroke width in millimetres.
func WithStroke(mm float64) SVGOption { return func(r *svgRenderer) { r.strokeMM = mm } }

// WithMargin pads the viewBox by mm on every side.
func WithMargin(mm float64) SVGOption { return func(r *svgRenderer) { r.margin = mm } }

// RenderSVG draws the command stream to scale: one SVG user unit per
// millimetre of page.
func RenderSVG(cmds []device.Command, area device.Area, opts ...SVGOption) []byte {
	r := svgRenderer{strokeMM: 0.4}
	for _, opt := range opts {
		opt(&r)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%.1f %.1f %.1f %.1f">`+"\n",
		-r.margin, -r.margin, area.Width+2*r.margin, area.Height+2*r.margin)
	fmt.Fprintf(&buf, `<rect x="0" y="0" width="%.1f" height="%.1f" fill="white" stroke="#ccc" stroke-width="0.2"/>`+"\n",
		area.Width, area.Height)

	var ink, travel bytes.Buffer
	var x, y float64
	penDown := false
	for _, cmd := range cmds {
		switch cmd.Op {
		case device.OpPenUp:
			penDown = false
		case device.OpPenDown:
			penDown = true
		case device.OpHome:
			x, y = 0, 0
			penDown = false
		case device.OpMove:
			target := &travel
			if penDown {
				target = &ink
			}
			fmt.Fprintf(target, "M%.2f %.2fL%.2f %.2f", x, y, cmd.X, cmd.Y)
			x, y = cmd.X, cmd.Y
		}
	}

	if r.showTravel && travel.Len() > 0 {
		fmt.Fprintf(&buf, `<path d="%s" fill="none" stroke="#b0c4de" stroke-width="%.2f" stroke-dasharray="2 2"/>`+"\n",
			travel.String(), r.strokeMM/2)
	}
	if ink.Len() > 0 {
		fmt.Fprintf(&buf, `<path d="%s" fill="none" stroke="black" stroke-width="%.2f" stroke-linecap="round"/>`+"\n",
			ink.String(), r.strokeMM)
	}
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}
