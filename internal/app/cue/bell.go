package cue

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

const bell = "\a"

// BellConfig represents the configuration for BellEmitter.
type BellConfig struct {
	Device string `yaml:"device" mapstructure:"device" default:"stdout" validate:"oneof=stdout stderr tty"`
	GapMs  *int   `yaml:"gap_ms" mapstructure:"gap_ms" default:"150" validate:"required,gte=0,lte=2000"`
}

// BellEmitter rings the terminal bell in a per-cue pattern.
type BellEmitter struct {
	config BellConfig

	mu  sync.Mutex // guards out; never held while a pattern plays
	out io.Writer

	writeMu sync.Mutex // serializes patterns on the device
}

// NewBellEmitter creates a bell emitter writing to out.
// A nil writer is resolved from the configured device on Prepare.
func NewBellEmitter(out io.Writer) *BellEmitter {
	return &BellEmitter{out: out}
}

func (e *BellEmitter) Name() string {
	return "bell"
}

func (e *BellEmitter) Description() string {
	return "Rings the terminal bell (1 tick, 1 work, 2 rest, 3 complete)"
}

func (e *BellEmitter) ValidateConfig(settings map[string]any) error {
	var config BellConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	e.config = config
	return nil
}

// Prepare opens the configured device unless a writer was injected.
func (e *BellEmitter) Prepare() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.out != nil {
		return nil
	}
	switch e.config.Device {
	case "stderr":
		e.out = os.Stderr
	case "tty":
		f, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
		if err != nil {
			return errors.Wrap(err, "failed to open tty")
		}
		e.out = f
	default:
		e.out = os.Stdout
	}
	return nil
}

// Emit writes the cue pattern asynchronously.
func (e *BellEmitter) Emit(name Name) error {
	e.mu.Lock()
	out := e.out
	e.mu.Unlock()
	if out == nil {
		return errors.New("bell emitter not prepared")
	}

	count := bellCount(name)
	if count == 0 {
		return errors.Newf("no bell pattern for cue %q", name)
	}
	gap := e.gap()

	go func() {
		e.writeMu.Lock()
		defer e.writeMu.Unlock()
		for i := 0; i < count; i++ {
			if i > 0 && gap > 0 {
				time.Sleep(gap)
			}
			_, _ = io.WriteString(out, bell)
		}
	}()
	return nil
}

func (e *BellEmitter) gap() time.Duration {
	if e.config.GapMs == nil {
		return 0
	}
	return time.Duration(*e.config.GapMs) * time.Millisecond
}

func bellCount(name Name) int {
	switch name {
	case CountdownTick, WorkStart:
		return 1
	case RestStart:
		return 2
	case SessionComplete:
		return 3
	default:
		return 0
	}
}

func init() {
	Register("bell", func() Emitter {
		return &BellEmitter{}
	})
}
