package cue

import (
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// LogConfig represents the configuration for LogEmitter.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level" default:"info" validate:"oneof=debug info warn"`
}

// LogEmitter writes cues to the structured log.
type LogEmitter struct {
	level zerolog.Level
}

func (e *LogEmitter) Name() string {
	return "log"
}

func (e *LogEmitter) Description() string {
	return "Logs each cue (useful on headless hosts)"
}

func (e *LogEmitter) ValidateConfig(settings map[string]any) error {
	var config LogConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return err
	}
	e.level = level
	return nil
}

func (e *LogEmitter) Prepare() error {
	return nil
}

func (e *LogEmitter) Emit(name Name) error {
	zlog.WithLevel(e.level).Str("cue", string(name)).Msg("cue")
	return nil
}

func init() {
	Register("log", func() Emitter {
		return &LogEmitter{level: zerolog.InfoLevel}
	})
}
