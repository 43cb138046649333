package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/device"
	"github.com/matzehuels/penplot/pkg/method/builtin"
	"github.com/matzehuels/penplot/pkg/preview"
)

// previewCommand creates the preview command for rendering a drawing to SVG.
func (c *CLI) previewCommand() *cobra.Command {
	var (
		methodName string
		params     []string
		scale      float64
		offsetX    float64
		offsetY    float64
		rotate     float64
		output     string
		travel     bool
		stroke     float64
		margin     float64
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render a drawing's pen motion as SVG",
		Long: `Render a drawing's pen motion as SVG.

The SVG shows exactly what the machine would plot: ink strokes as solid
lines and, with --travel, pen-up travel as dashed lines. One SVG unit is
one millimetre, so the file prints at true size.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			req, err := buildRequest(cfg, methodName, params, scale, offsetX, offsetY, rotate)
			if err != nil {
				return err
			}

			p, err := builtin.Registry().Produce(cmd.Context(), req.Method, req.Params)
			if err != nil {
				return err
			}
			cmds, err := device.Compile(p, req.Transform, req.Compile)
			if err != nil {
				return err
			}

			opts := []preview.SVGOption{preview.WithMargin(margin)}
			if travel {
				opts = append(opts, preview.WithTravel())
			}
			if stroke > 0 {
				opts = append(opts, preview.WithStroke(stroke))
			}
			svg := preview.RenderSVG(cmds, req.Compile.Area, opts...)

			if output == "" {
				output = fmt.Sprintf("%s.svg", req.Method)
			}
			if err := os.WriteFile(output, svg, 0o644); err != nil {
				return fmt.Errorf("write preview %s: %w", output, err)
			}

			est := preview.EstimateDuration(cmds)
			printSuccess("Preview rendered")
			printStream(len(cmds), est.InkLength, est.TravelLength, false)
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&methodName, "method", "m", "lines", "drawing method")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "method parameter key=value (repeatable)")
	cmd.Flags().Float64Var(&scale, "scale", 0, "uniform scale applied to the drawing")
	cmd.Flags().Float64Var(&offsetX, "offset-x", 0, "horizontal placement on the page (mm)")
	cmd.Flags().Float64Var(&offsetY, "offset-y", 0, "vertical placement on the page (mm)")
	cmd.Flags().Float64Var(&rotate, "rotate", 0, "rotation about the drawing origin (radians)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <method>.svg)")
	cmd.Flags().BoolVar(&travel, "travel", false, "show pen-up travel as dashed lines")
	cmd.Flags().Float64Var(&stroke, "stroke", 0, "stroke width in mm")
	cmd.Flags().Float64Var(&margin, "margin", 5, "margin around the page in mm")

	return cmd
}
