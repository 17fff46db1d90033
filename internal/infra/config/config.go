// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/nightlift/internal/domain/phase"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Elevator  ElevatorConfig  `yaml:"elevator"`
	Animation AnimationConfig `yaml:"animation"`
	Audio     AudioConfig     `yaml:"audio"`
}

// ServerConfig represents control API configuration.
type ServerConfig struct {
	Addr            string      `yaml:"addr" default:":8080"`
	AdminToken      string      `yaml:"admin_token"`
	RateLimitPerSec float64     `yaml:"rate_limit_per_sec" default:"5" validate:"gt=0"`
	RateBurst       int         `yaml:"rate_burst" default:"10" validate:"gte=1"`
	Hooks           HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted           []string `yaml:"on_started"`
	OnStopped           []string `yaml:"on_stopped"`
	OnSequenceCompleted []string `yaml:"on_sequence_completed"`
}

// ElevatorConfig represents sequence controller configuration.
type ElevatorConfig struct {
	SyncIntervalMs     int            `yaml:"sync_interval_ms" default:"50" validate:"gte=10,lte=1000"`
	FallbackDurationMs int            `yaml:"fallback_duration_ms" default:"8000" validate:"gte=100"`
	Volume             *float64       `yaml:"volume" default:"0.7" validate:"required,gte=0,lte=1"`
	Windows            []WindowConfig `yaml:"windows" validate:"omitempty,dive"`
}

// WindowConfig represents one phase window of the keyframe table.
type WindowConfig struct {
	Phase     string `yaml:"phase" validate:"required,oneof=closing closed opening"`
	Start     int    `yaml:"start" validate:"gte=0"`
	End       int    `yaml:"end" validate:"gtfield=Start"`
	Asset     string `yaml:"asset" validate:"required"`
	NominalMs int    `yaml:"nominal_ms" validate:"gte=0"`
	StopAtEnd bool   `yaml:"stop_at_end"`
}

// AnimationConfig represents the simulated animation timeline.
type AnimationConfig struct {
	DurationMs  int `yaml:"duration_ms" default:"8000" validate:"gte=100"`
	FrameRate   int `yaml:"frame_rate" default:"60" validate:"gte=1,lte=240"`
	LoadDelayMs int `yaml:"load_delay_ms" validate:"gte=0"`
}

// AudioConfig represents audio output and clip loading configuration.
type AudioConfig struct {
	SampleRate int             `yaml:"sample_rate" default:"44100" validate:"oneof=22050 44100 48000"`
	Channels   int             `yaml:"channels" default:"2" validate:"oneof=1 2"`
	BufferMs   int             `yaml:"buffer_ms" default:"50" validate:"gte=10,lte=500"`
	Backends   []BackendConfig `yaml:"backends" default:"[{\"type\":\"silent\"}]" validate:"required,min=1,dive"`
}

// BackendConfig represents a single clip loader configuration.
type BackendConfig struct {
	Type     string         `yaml:"type" validate:"required,oneof=file tone silent"`
	Settings map[string]any `yaml:"settings"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	return Parse([]byte("{}"))
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	if v := os.Getenv("LIFT_ADMIN_TOKEN"); v != "" {
		c.Server.AdminToken = v
	}
	if v := os.Getenv("LIFT_VOLUME"); v != "" {
		volume, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid LIFT_VOLUME %q", v)
		}
		c.Elevator.Volume = &volume
	}
	if v := os.Getenv("LIFT_ASSETS_DIR"); v != "" {
		for i := range c.Audio.Backends {
			if c.Audio.Backends[i].Type == "file" {
				if c.Audio.Backends[i].Settings == nil {
					c.Audio.Backends[i].Settings = make(map[string]any)
				}
				c.Audio.Backends[i].Settings["dir"] = v
			}
		}
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if _, err := c.Elevator.Table(); err != nil {
		return err
	}

	return nil
}

// Table builds the phase table, falling back to the built-in windows.
func (e ElevatorConfig) Table() (*phase.Table, error) {
	if len(e.Windows) == 0 {
		return phase.DefaultTable(), nil
	}

	windows := make([]phase.Window, 0, len(e.Windows))
	for _, w := range e.Windows {
		p, err := phase.ParsePhase(w.Phase)
		if err != nil {
			return nil, errors.Wrap(err, "invalid window")
		}
		windows = append(windows, phase.Window{
			Phase:     p,
			Start:     w.Start,
			End:       w.End,
			Asset:     w.Asset,
			Nominal:   time.Duration(w.NominalMs) * time.Millisecond,
			StopAtEnd: w.StopAtEnd,
		})
	}

	return phase.NewTable(windows)
}

// SyncInterval returns the sync tick period.
func (e ElevatorConfig) SyncInterval() time.Duration {
	return time.Duration(e.SyncIntervalMs) * time.Millisecond
}

// FallbackDuration returns the sequence duration used when the driver reports none.
func (e ElevatorConfig) FallbackDuration() time.Duration {
	return time.Duration(e.FallbackDurationMs) * time.Millisecond
}

// MasterVolume returns the configured volume.
func (e ElevatorConfig) MasterVolume() float64 {
	if e.Volume == nil {
		return 0
	}
	return *e.Volume
}

// Duration returns the animation duration.
func (a AnimationConfig) Duration() time.Duration {
	return time.Duration(a.DurationMs) * time.Millisecond
}

// LoadDelay returns the simulated scene load latency.
func (a AnimationConfig) LoadDelay() time.Duration {
	return time.Duration(a.LoadDelayMs) * time.Millisecond
}

// BufferSize returns the output buffer length.
func (a AudioConfig) BufferSize() time.Duration {
	return time.Duration(a.BufferMs) * time.Millisecond
}
