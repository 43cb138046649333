package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/internal/api"
)

// serveCommand creates the serve command for the local control API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local control API over HTTP",
		Long: `Serve the local control API over HTTP.

Jobs can be started, paused, resumed, cancelled, and previewed as SVG via
a JSON API backed by the same machine the 'draw' command uses. The API is
unauthenticated and intended for localhost frontends only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			ctrl := c.newController(cfg, noCache)
			server := api.New(ctrl, cfg, c.Logger)

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           server.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				<-cmd.Context().Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()

			printInfo("Control API on http://%s", addr)
			printDetail("machine %s · page %s × %s", cfg.Machine.Address,
				formatMM(cfg.Rig.PageWidth), formatMM(cfg.Rig.PageHeight))

			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return cmd.Context().Err()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8090", "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the compile cache")

	return cmd
}
