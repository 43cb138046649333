// Package config loads the machine profile: where the firmware lives, how
// the rig is built, and the streaming parameters. Profiles are TOML files;
// anything a profile leaves out falls back to the defaults for a
// 600mm-interspace rig with an A4 page.
//
// Firmware-reported values (command window, speed limit) override the
// profile at connection time; the profile only describes what the driver
// assumes before it has talked to the machine.
package config

import (
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/penplot/pkg/device"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/firmware"
	"github.com/matzehuels/penplot/pkg/hardware"
)

// Duration wraps time.Duration for TOML strings like "2s" or "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Machine locates the firmware endpoint.
type Machine struct {
	// Address is the firmware's TCP address, host:port.
	Address string `toml:"address"`
}

// Stream configures command streaming and compilation defaults.
type Stream struct {
	// Window caps outstanding commands; the firmware's advertised window
	// applies when smaller. Zero defers to the firmware entirely.
	Window int `toml:"window"`

	AckTimeout        Duration `toml:"ack_timeout"`
	ReconnectAttempts int      `toml:"reconnect_attempts"`
	ReconnectDelay    Duration `toml:"reconnect_delay"`

	// DrawSpeed and TravelSpeed are pen speeds in mm/s; MinStep is the
	// compiler's merge threshold in mm.
	DrawSpeed   float64 `toml:"draw_speed"`
	TravelSpeed float64 `toml:"travel_speed"`
	MinStep     float64 `toml:"min_step"`
}

// CacheConfig controls the compile cache.
type CacheConfig struct {
	// Dir is the cache directory; empty uses the null cache.
	Dir string `toml:"dir"`
}

// Config is one machine profile.
type Config struct {
	Machine Machine             `toml:"machine"`
	Rig     hardware.Dimensions `toml:"rig"`
	Stream  Stream              `toml:"stream"`
	Cache   CacheConfig         `toml:"cache"`
}

// Default returns the profile for the reference rig: motors 600mm apart
// with an A4 page hanging centered 200mm below the shafts.
func Default() Config {
	return Config{
		Machine: Machine{Address: "127.0.0.1:7878"},
		Rig: hardware.Dimensions{
			MotorInterspace: 600,
			PageOffsetX:     195,
			PageOffsetY:     200,
			PageWidth:       210,
			PageHeight:      297,
		},
		Stream: Stream{
			Window:            0,
			AckTimeout:        Duration{firmware.DefaultAckTimeout},
			ReconnectAttempts: firmware.DefaultReconnectAttempts,
			ReconnectDelay:    Duration{firmware.DefaultReconnectDelay},
			DrawSpeed:         device.DefaultDrawSpeed,
			TravelSpeed:       device.DefaultTravelSpeed,
			MinStep:           device.DefaultMinStep,
		},
	}
}

// Load reads a TOML profile over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "reading profile %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects profiles the driver cannot run with.
func (c Config) Validate() error {
	if c.Machine.Address == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "machine address is empty")
	}
	if err := c.Rig.Validate(); err != nil {
		return err
	}
	if c.Stream.Window < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "stream window must not be negative")
	}
	if c.Stream.DrawSpeed <= 0 || c.Stream.TravelSpeed <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"pen speeds must be positive, got draw=%v travel=%v", c.Stream.DrawSpeed, c.Stream.TravelSpeed)
	}
	if c.Stream.AckTimeout.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "ack timeout must be positive")
	}
	return nil
}

// FirmwareOptions maps the profile onto the socket client.
func (c Config) FirmwareOptions() firmware.Options {
	return firmware.Options{
		Window:            c.Stream.Window,
		AckTimeout:        c.Stream.AckTimeout.Duration,
		ReconnectAttempts: c.Stream.ReconnectAttempts,
		ReconnectDelay:    c.Stream.ReconnectDelay.Duration,
	}
}

// CompileOptions maps the profile onto the compiler. The drawable area is
// the rig's page.
func (c Config) CompileOptions() device.Options {
	return device.Options{
		Area:        device.Area{Width: c.Rig.PageWidth, Height: c.Rig.PageHeight},
		MinStep:     c.Stream.MinStep,
		DrawSpeed:   c.Stream.DrawSpeed,
		TravelSpeed: c.Stream.TravelSpeed,
	}
}
