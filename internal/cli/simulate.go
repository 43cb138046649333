package cli

import (
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/firmware"
)

// simulateCommand creates the simulate command running a firmware stand-in.
func (c *CLI) simulateCommand() *cobra.Command {
	var (
		addr   string
		window int
		speed  float64
		delay  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a firmware simulator on a local socket",
		Long: `Run a firmware simulator on a local socket.

The simulator speaks the full machine protocol: handshake, framed commands
with checksums, acknowledgments, and control bytes. Point a profile's
machine address at it to exercise the whole driver without hardware.
Moves are replayed on virtual belts using the profile's rig dimensions;
run with --verbose to watch the carriage position. --delay adds
per-command latency to make flow control observable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}

			// Serve blocks on Accept; closing the listener on ctx
			// cancellation is what unblocks it.
			go func() {
				<-cmd.Context().Done()
				ln.Close()
			}()

			printInfo("Simulator listening on %s", ln.Addr())
			printDetail("window %d · max speed %.1f mm/s · delay %s · interspace %s",
				window, speed, delay, formatMM(cfg.Rig.MotorInterspace))

			sim := &firmware.Simulator{
				Window:   window,
				MaxSpeed: speed,
				Delay:    delay,
				Rig:      cfg.Rig,
				Logger:   c.Logger,
			}
			err = sim.Serve(ln)
			if cmd.Context().Err() != nil {
				return cmd.Context().Err()
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7878", "listen address")
	cmd.Flags().IntVar(&window, "window", 8, "advertised command window")
	cmd.Flags().Float64Var(&speed, "max-speed", 200, "advertised speed ceiling (mm/s)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "simulated execution time per command")

	return cmd
}
