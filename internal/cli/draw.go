package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/job"
	"github.com/matzehuels/penplot/pkg/preview"
)

// drawCommand creates the draw command for plotting on the machine.
func (c *CLI) drawCommand() *cobra.Command {
	var (
		methodName string
		params     []string
		scale      float64
		offsetX    float64
		offsetY    float64
		rotate     float64
		noCache    bool
		noTUI      bool
	)

	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Compile a drawing and stream it to the machine",
		Long: `Compile a drawing and stream it to the machine.

The drawing method is selected with --method and parameterized with repeated
--param key=value flags ('penplot methods' lists what is available). The
compiled commands are streamed over the profile's socket with ack-based flow
control; the command returns once the machine has executed the full drawing.

While plotting, an interactive view shows pen position and progress:
press p to pause, r to resume, and q to cancel. Use --no-tui for plain
log output, e.g. when scripting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			req, err := buildRequest(cfg, methodName, params, scale, offsetX, offsetY, rotate)
			if err != nil {
				return err
			}
			ctrl := c.newController(cfg, noCache)
			return c.runDraw(cmd.Context(), ctrl, req, noTUI)
		},
	}

	cmd.Flags().StringVarP(&methodName, "method", "m", "lines", "drawing method")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "method parameter key=value (repeatable)")
	cmd.Flags().Float64Var(&scale, "scale", 0, "uniform scale applied to the drawing")
	cmd.Flags().Float64Var(&offsetX, "offset-x", 0, "horizontal placement on the page (mm)")
	cmd.Flags().Float64Var(&offsetY, "offset-y", 0, "vertical placement on the page (mm)")
	cmd.Flags().Float64Var(&rotate, "rotate", 0, "rotation about the drawing origin (radians)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the compile cache")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "plain log output instead of the interactive view")

	return cmd
}

// runDraw starts the job and follows it to a terminal state.
func (c *CLI) runDraw(ctx context.Context, ctrl *job.Controller, req job.Request, noTUI bool) error {
	prog := newProgress(c.Logger)
	j, err := ctrl.Start(ctx, req)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Machine homed, %d commands queued", j.Progress().Total))

	if !noTUI && isatty.IsTerminal(os.Stdout.Fd()) {
		return c.followTUI(ctx, ctrl, j)
	}
	return c.followPlain(ctx, ctrl, j)
}

// followPlain logs progress once a second until the job finishes.
func (c *CLI) followPlain(ctx context.Context, ctrl *job.Controller, j *job.Job) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p := j.Progress()
			pen := j.Pen()
			c.Logger.Info("plotting",
				"acked", p.Acked, "total", p.Total,
				"x", fmt.Sprintf("%.1f", pen.X), "y", fmt.Sprintf("%.1f", pen.Y),
				"pen", penLabel(pen.PenDown))
		case <-ctx.Done():
			// Park the pen before giving up the terminal.
			if err := ctrl.Cancel(j.ID); err != nil {
				return err
			}
			ev := <-j.Events()
			return c.reportOutcome(j, ev)
		case ev := <-j.Events():
			return c.reportOutcome(j, ev)
		}
	}
}

// followTUI runs the interactive progress view until the job finishes.
func (c *CLI) followTUI(ctx context.Context, ctrl *job.Controller, j *job.Job) error {
	model := newDrawModel(ctrl, j)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return err
	}

	// Ctrl-C or SIGINT leaves the job running; park the pen first.
	if !j.Status().Terminal() {
		if cerr := ctrl.Cancel(j.ID); cerr != nil {
			return cerr
		}
		<-j.Done()
	}

	ev := job.Event{JobID: j.ID, Status: j.Status(), Err: j.Err()}
	if m, ok := final.(drawModel); ok && m.final != nil {
		ev = *m.final
	}
	return c.reportOutcome(j, ev)
}

// reportOutcome prints the terminal summary and maps the status to an error.
func (c *CLI) reportOutcome(j *job.Job, ev job.Event) error {
	p := j.Progress()
	est := preview.EstimateDuration(j.Commands())

	switch ev.Status {
	case job.StatusCompleted:
		printSuccess("Drawing complete")
		printStream(p.Total, est.InkLength, est.TravelLength, false)
		return nil
	case job.StatusCancelled:
		printWarning("Drawing cancelled, pen parked")
		printDetail("%d of %d commands executed", p.Acked, p.Total)
		return nil
	default:
		printError("Drawing failed: %s", errors.UserMessage(ev.Err))
		printDetail("%d of %d commands executed", p.Acked, p.Total)
		return ev.Err
	}
}

func penLabel(down bool) string {
	if down {
		return "down"
	}
	return "up"
}
