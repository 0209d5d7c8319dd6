// Package cue provides the audible phase cues emitted during interval sessions.
package cue

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// Name identifies a cue event.
type Name string

const (
	CountdownTick   Name = "countdown-tick"   // 3-2-1 before a phase ends
	WorkStart       Name = "phase-start-work" // Work phase started
	RestStart       Name = "phase-start-rest" // Rest phase started
	SessionComplete Name = "session-complete" // Final round finished
)

// Names returns every cue event in emission order of a block.
func Names() []Name {
	return []Name{CountdownTick, WorkStart, RestStart, SessionComplete}
}

// ErrUnknownEmitter is returned when a configured emitter type is not registered.
var ErrUnknownEmitter = errors.New("unknown cue emitter")

// Emitter is the interface for cue output backends.
type Emitter interface {
	// Name returns the emitter type (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ValidateConfig validates and applies the emitter configuration.
	ValidateConfig(settings map[string]any) error
	// Prepare acquires the output channel. It must be called from inside a
	// user-initiated command because some outputs refuse to open later.
	Prepare() error
	// Emit produces the signal for a cue. It must not block the caller.
	Emit(cue Name) error
}

// registry holds registered emitter factories.
var registry = make(map[string]func() Emitter)

// Register registers an emitter factory.
func Register(name string, factory func() Emitter) {
	registry[name] = factory
}

// GetRegistered returns all registered emitter factories.
func GetRegistered() map[string]func() Emitter {
	return registry
}

// RegisteredNames returns the registered emitter types in sorted order.
func RegisteredNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates and configures a registered emitter.
func New(emitterType string, settings map[string]any) (Emitter, error) {
	factory, ok := registry[emitterType]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEmitter, "type %q", emitterType)
	}
	e := factory()
	if err := e.ValidateConfig(settings); err != nil {
		return nil, errors.Wrapf(err, "emitter %s", emitterType)
	}
	return e, nil
}
