// Package cli implements the penplot command-line interface.
//
// This package provides commands for drawing with a connected plotter,
// checking and previewing drawings without touching hardware, probing the
// firmware, running a firmware simulator, and serving the local control
// API. The CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - draw: Compile a drawing and stream it to the machine
//   - check: Compile a drawing and report bounds and timing without plotting
//   - preview: Render a drawing's pen motion as SVG
//   - methods: List the available drawing methods
//   - ping: Perform the firmware handshake and report machine limits
//   - simulate: Run a firmware simulator on a local socket
//   - serve: Serve the local control API over HTTP
//   - cache: Manage the compile cache
//
// All commands support --verbose (-v) for debug-level logging and
// --config (-c) to select a machine profile.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/buildinfo"
	"github.com/matzehuels/penplot/pkg/cache"
	"github.com/matzehuels/penplot/pkg/config"
	"github.com/matzehuels/penplot/pkg/device"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/firmware"
	"github.com/matzehuels/penplot/pkg/job"
	"github.com/matzehuels/penplot/pkg/method"
	"github.com/matzehuels/penplot/pkg/method/builtin"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "penplot"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is the machine profile selected with --config.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Penplot drives a hanging-V pen plotter",
		Long:         `Penplot compiles drawings into motion commands and streams them to a hanging-V pen plotter over a TCP socket, with ack-based flow control and automatic reconnection.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "machine profile (TOML); defaults apply when omitted")

	// Register all subcommands
	root.AddCommand(c.drawCommand())
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.methodsCommand())
	root.AddCommand(c.pingCommand())
	root.AddCommand(c.simulateCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the profile selected with --config, or the defaults.
func (c *CLI) loadConfig() (config.Config, error) {
	return config.Load(c.configPath)
}

// =============================================================================
// Controller Factory
// =============================================================================

// newController builds a job controller wired to the profile's machine.
func (c *CLI) newController(cfg config.Config, noCache bool) *job.Controller {
	fw := cfg.FirmwareOptions()
	fw.Logger = c.Logger
	return job.NewController(job.Options{
		Registry: builtin.Registry(),
		Dialer:   firmware.TCPDialer(cfg.Machine.Address),
		Firmware: fw,
		Cache:    newCache(cfg, noCache),
		Logger:   c.Logger,
	})
}

// newCache selects the compile cache: the profile's directory, the XDG
// default, or the null cache when caching is off.
func newCache(cfg config.Config, noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir := cfg.Cache.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			return cache.NewNullCache()
		}
		dir = d
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return fc
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/penplot/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Request Helpers
// =============================================================================

// parseParams turns repeated --param key=value flags into method parameters.
// Values that parse as numbers are passed through as float64 so methods can
// use the typed accessors; everything else stays a string.
func parseParams(pairs []string) (method.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(method.Params, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "parameter %q is not key=value", pair)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			params[key] = f
		} else {
			params[key] = value
		}
	}
	return params, nil
}

// buildRequest assembles a job request from command flags and the profile.
func buildRequest(cfg config.Config, methodName string, paramPairs []string, scale, offsetX, offsetY, rotate float64) (job.Request, error) {
	params, err := parseParams(paramPairs)
	if err != nil {
		return job.Request{}, err
	}
	t := device.IdentityTransform()
	if scale != 0 {
		t.ScaleX = scale
		t.ScaleY = scale
	}
	t.OffsetX = offsetX
	t.OffsetY = offsetY
	t.Rotation = rotate
	return job.Request{
		Method:    methodName,
		Params:    params,
		Transform: t,
		Compile:   cfg.CompileOptions(),
	}, nil
}

// formatMM renders a millimetre quantity for display.
func formatMM(v float64) string {
	return fmt.Sprintf("%.1fmm", v)
}
