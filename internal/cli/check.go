package cli

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/device"
	"github.com/matzehuels/penplot/pkg/hardware"
	"github.com/matzehuels/penplot/pkg/method/builtin"
	"github.com/matzehuels/penplot/pkg/preview"
)

// decis is the display rounding for duration estimates.
const decis = 100 * time.Millisecond

// checkCommand creates the check command for validating a drawing offline.
func (c *CLI) checkCommand() *cobra.Command {
	var (
		methodName string
		params     []string
		scale      float64
		offsetX    float64
		offsetY    float64
		rotate     float64
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compile a drawing and report bounds and timing without plotting",
		Long: `Compile a drawing and report bounds and timing without plotting.

The drawing is produced and compiled exactly as 'draw' would, but nothing
is sent to the machine. Use this to confirm a drawing fits the page and to
see how long it will take before committing ink.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			req, err := buildRequest(cfg, methodName, params, scale, offsetX, offsetY, rotate)
			if err != nil {
				return err
			}

			spin := newSpinnerWithContext(cmd.Context(), "Compiling drawing...")
			spin.Start()

			p, err := builtin.Registry().Produce(cmd.Context(), req.Method, req.Params)
			if err != nil {
				spin.StopWithError("Drawing method failed")
				return err
			}
			cmds, err := device.Compile(p, req.Transform, req.Compile)
			if err != nil {
				spin.StopWithError("Drawing does not fit the page")
				return err
			}
			spin.StopWithSuccess(fmt.Sprintf("Drawing fits the %s × %s page",
				formatMM(cfg.Rig.PageWidth), formatMM(cfg.Rig.PageHeight)))

			est := preview.EstimateDuration(cmds)
			printStream(len(cmds), est.InkLength, est.TravelLength, false)
			printNewline()

			minPt, maxPt := p.Bounds()
			printKeyValue("method", req.Method)
			printKeyValue("segments", fmt.Sprintf("%d", p.Len()))
			printKeyValue("bounds", fmt.Sprintf("(%.1f, %.1f) to (%.1f, %.1f)",
				minPt.X, minPt.Y, maxPt.X, maxPt.Y))
			left, right := beltSpan(cfg.Rig, cmds)
			printKeyValue("left belt", fmt.Sprintf("%s to %s (%d steps)",
				formatMM(left[0]), formatMM(left[1]), hardware.MMToSteps(left[1]-left[0])))
			printKeyValue("right belt", fmt.Sprintf("%s to %s (%d steps)",
				formatMM(right[0]), formatMM(right[1]), hardware.MMToSteps(right[1]-right[0])))
			printKeyValue("draw time", est.Draw.Round(decis).String())
			printKeyValue("travel time", est.Travel.Round(decis).String())
			printKeyValue("pen time", est.Pen.Round(decis).String())
			printKeyValue("total", est.Total().Round(decis).String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&methodName, "method", "m", "lines", "drawing method")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "method parameter key=value (repeatable)")
	cmd.Flags().Float64Var(&scale, "scale", 0, "uniform scale applied to the drawing")
	cmd.Flags().Float64Var(&offsetX, "offset-x", 0, "horizontal placement on the page (mm)")
	cmd.Flags().Float64Var(&offsetY, "offset-y", 0, "vertical placement on the page (mm)")
	cmd.Flags().Float64Var(&rotate, "rotate", 0, "rotation about the drawing origin (radians)")

	return cmd
}

// beltSpan returns the length range each belt sweeps while plotting a
// compiled stream, left and right as [min, max] millimetres. Belt length
// grows with distance from its motor, so the extremes sit at the corners
// of the motion bounding box.
func beltSpan(d hardware.Dimensions, cmds []device.Command) (left, right [2]float64) {
	first := true
	var x0, y0, x1, y1 float64
	for _, cmd := range cmds {
		if cmd.Op != device.OpMove {
			continue
		}
		if first {
			x0, y0, x1, y1 = cmd.X, cmd.Y, cmd.X, cmd.Y
			first = false
			continue
		}
		x0, y0 = math.Min(x0, cmd.X), math.Min(y0, cmd.Y)
		x1, y1 = math.Max(x1, cmd.X), math.Max(y1, cmd.Y)
	}
	if first {
		return left, right
	}
	mx0, my0 := d.ToMachine(x0, y0)
	mx1, my1 := d.ToMachine(x1, y1)
	left[0], _ = hardware.CartesianToBelt(mx0, my0, d.MotorInterspace)
	left[1], _ = hardware.CartesianToBelt(mx1, my1, d.MotorInterspace)
	_, right[0] = hardware.CartesianToBelt(mx1, my0, d.MotorInterspace)
	_, right[1] = hardware.CartesianToBelt(mx0, my1, d.MotorInterspace)
	return left, right
}
