package cue

import (
	"os"
	"os/exec"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// CommandConfig represents the configuration for CommandEmitter.
// Each field holds a shell command; empty commands are skipped.
type CommandConfig struct {
	Shell           string `yaml:"shell" mapstructure:"shell" default:"sh" validate:"required"`
	CountdownTick   string `yaml:"countdown_tick" mapstructure:"countdown_tick"`
	WorkStart       string `yaml:"work_start" mapstructure:"work_start"`
	RestStart       string `yaml:"rest_start" mapstructure:"rest_start"`
	SessionComplete string `yaml:"session_complete" mapstructure:"session_complete"`
}

// CommandEmitter runs a shell command per cue, e.g. a sound player.
type CommandEmitter struct {
	config   CommandConfig
	shell    string
	commands map[Name]string
	run      func(shell, command string) error
}

// NewCommandEmitter creates an unconfigured command emitter.
func NewCommandEmitter() *CommandEmitter {
	return &CommandEmitter{run: runShell}
}

func (e *CommandEmitter) Name() string {
	return "command"
}

func (e *CommandEmitter) Description() string {
	return "Runs a configured shell command for each cue"
}

func (e *CommandEmitter) ValidateConfig(settings map[string]any) error {
	var config CommandConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	commands := map[Name]string{
		CountdownTick:   config.CountdownTick,
		WorkStart:       config.WorkStart,
		RestStart:       config.RestStart,
		SessionComplete: config.SessionComplete,
	}
	configured := 0
	for name, cmd := range commands {
		if cmd == "" {
			delete(commands, name)
			continue
		}
		configured++
	}
	if configured == 0 {
		return errors.New("at least one cue command must be configured")
	}

	e.config = config
	e.commands = commands
	return nil
}

// Prepare resolves the shell binary.
func (e *CommandEmitter) Prepare() error {
	path, err := exec.LookPath(e.config.Shell)
	if err != nil {
		return errors.Wrapf(err, "shell %q not found", e.config.Shell)
	}
	e.shell = path
	return nil
}

// Emit starts the cue command in the background.
func (e *CommandEmitter) Emit(name Name) error {
	command, ok := e.commands[name]
	if !ok {
		return nil
	}
	if e.shell == "" {
		return errors.New("command emitter not prepared")
	}

	run := e.run
	if run == nil {
		run = runShell
	}
	shell := e.shell
	go func() {
		if err := run(shell, command); err != nil {
			zlog.Debug().Err(err).Msgf("cue: command failed: cue=%s command=%s", name, command)
		}
	}()
	return nil
}

func runShell(shell, command string) error {
	cmd := exec.Command(shell, "-c", command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func init() {
	Register("command", func() Emitter {
		return NewCommandEmitter()
	})
}
