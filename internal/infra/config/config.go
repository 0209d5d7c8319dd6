// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/hiitbox/internal/app/interval"
)

// EnvControlToken overrides control.token.
const EnvControlToken = "HIITBOX_CONTROL_TOKEN"

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Control  ControlConfig  `yaml:"control"`
	Timer    TimerConfig    `yaml:"timer"`
	Cues     []CueConfig    `yaml:"cues" validate:"dive"`
	WakeHold WakeHoldConfig `yaml:"wake_hold"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ControlConfig represents remote control configuration.
type ControlConfig struct {
	Token string `yaml:"token"` // Empty disables the X-Control-Token check
}

// TimerConfig represents interval timer configuration.
type TimerConfig struct {
	TickIntervalMs int  `yaml:"tick_interval_ms" default:"1000" validate:"gte=10,lte=60000"`
	WorkDuration   int  `yaml:"work_duration" default:"30" validate:"gte=1"`
	RestDuration   *int `yaml:"rest_duration" default:"10" validate:"required,gte=0"`
	Rounds         int  `yaml:"rounds" default:"6" validate:"gte=1"`
}

// CueConfig represents a single cue emitter configuration.
type CueConfig struct {
	Type     string         `yaml:"type" validate:"required"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// WakeHoldConfig represents screen wake hold configuration.
type WakeHoldConfig struct {
	Enabled      *bool `yaml:"enabled" default:"true"`
	RetryDelayMs int   `yaml:"retry_delay_ms" default:"1000" validate:"gte=0,lte=60000"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv(EnvControlToken); v != "" {
		c.Control.Token = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.IntervalDefaults().Validate(); err != nil {
		return errors.Wrap(err, "timer defaults")
	}
	return nil
}

// IntervalDefaults returns the default block configuration for new exercises.
func (c *Config) IntervalDefaults() interval.Config {
	rest := 0
	if c.Timer.RestDuration != nil {
		rest = *c.Timer.RestDuration
	}
	return interval.Config{
		WorkDuration: c.Timer.WorkDuration,
		RestDuration: rest,
		Rounds:       c.Timer.Rounds,
	}
}

// TickInterval returns the engine tick period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Timer.TickIntervalMs) * time.Millisecond
}

// WakeHoldEnabled reports whether the screen wake hold is enabled.
func (c *Config) WakeHoldEnabled() bool {
	return c.WakeHold.Enabled == nil || *c.WakeHold.Enabled
}

// WakeHoldRetryDelay returns the minimum spacing between re-acquisitions.
func (c *Config) WakeHoldRetryDelay() time.Duration {
	return time.Duration(c.WakeHold.RetryDelayMs) * time.Millisecond
}

// ControlEnabled reports whether control procedures require a token.
func (c *Config) ControlEnabled() bool {
	return c.Control.Token != ""
}
