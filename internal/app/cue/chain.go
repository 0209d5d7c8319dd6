package cue

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Chain fans cues out to several emitters.
// Each emitter is prepared once; a failed preparation is retried on the next Prepare.
type Chain struct {
	mu       sync.Mutex
	emitters []Emitter
	prepared map[int]bool
}

// NewChain creates a chain over the given emitters.
func NewChain(emitters ...Emitter) *Chain {
	return &Chain{
		emitters: emitters,
		prepared: make(map[int]bool),
	}
}

// Add adds an emitter to the chain.
func (c *Chain) Add(e Emitter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitters = append(c.emitters, e)
}

// Len returns the number of emitters in the chain.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.emitters)
}

// Name implements Emitter.
func (c *Chain) Name() string {
	return "chain"
}

// Description implements Emitter.
func (c *Chain) Description() string {
	return "Fans cues out to every configured emitter"
}

// ValidateConfig implements Emitter. A chain has no settings of its own.
func (c *Chain) ValidateConfig(map[string]any) error {
	return nil
}

// Prepare prepares every emitter that is not prepared yet.
func (c *Chain) Prepare() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs error
	for i, e := range c.emitters {
		if c.prepared[i] {
			continue
		}
		if err := e.Prepare(); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "prepare %s", e.Name()))
			continue
		}
		c.prepared[i] = true
	}
	return errs
}

// Emit sends the cue to every prepared emitter.
func (c *Chain) Emit(name Name) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs error
	for i, e := range c.emitters {
		if !c.prepared[i] {
			continue
		}
		if err := e.Emit(name); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "emit %s via %s", name, e.Name()))
		}
	}
	return errs
}
