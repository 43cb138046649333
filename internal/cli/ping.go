package cli

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/hardware"
	"github.com/matzehuels/penplot/pkg/wire"
)

// pingCommand creates the ping command for probing the firmware.
func (c *CLI) pingCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Perform the firmware handshake and report machine limits",
		Long: `Perform the firmware handshake and report machine limits.

Connects to the profile's machine address, runs the hello exchange, and
prints what the firmware advertises: protocol version, command window,
and speed ceiling. The connection is closed without moving anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			start := time.Now()
			dialer := net.Dialer{Timeout: timeout}
			conn, err := dialer.DialContext(cmd.Context(), "tcp", cfg.Machine.Address)
			if err != nil {
				printError("Machine at %s is unreachable", cfg.Machine.Address)
				return err
			}
			defer conn.Close()

			_ = conn.SetDeadline(time.Now().Add(timeout))
			info, err := wire.Hello(conn)
			if err != nil {
				printError("Handshake with %s failed", cfg.Machine.Address)
				return err
			}
			elapsed := time.Since(start).Round(time.Millisecond)

			printSuccess("Machine at %s answered in %s", cfg.Machine.Address, elapsed)
			printKeyValue("protocol", fmt.Sprintf("v%d", info.ProtocolVersion))
			printKeyValue("window", fmt.Sprintf("%d commands", info.Window))
			printKeyValue("max speed", fmt.Sprintf("%.1f mm/s", info.MaxSpeed))
			printKeyValue("resolution", fmt.Sprintf("%.1f steps/mm", hardware.StepsPerMM()))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "dial and handshake timeout")

	return cmd
}
