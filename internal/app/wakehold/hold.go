// Package wakehold keeps the screen awake while an interval session is running.
package wakehold

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Lock is a held platform wake lock.
type Lock interface {
	// Release gives the lock back to the platform.
	Release() error
	// Lost is closed when the platform revokes the lock on its own.
	Lost() <-chan struct{}
}

// Backend acquires platform wake locks.
type Backend interface {
	Acquire(ctx context.Context) (Lock, error)
}

// Config holds hold configuration.
type Config struct {
	RetryDelay time.Duration // Minimum spacing between re-acquisitions after a loss
}

// Hold turns a boolean "stay awake" signal into lock acquisition and release.
// Every call returns immediately; platform work happens in the background and
// failures never reach the caller.
type Hold struct {
	mu sync.Mutex

	backend Backend
	limiter *rate.Limiter

	claims     map[*Claim]bool
	wanted     bool
	lock       Lock
	generation uint64 // Bumped on every wanted change; stale acquisitions release themselves
	acquiring  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a hold on top of the given backend.
func New(backend Backend, config Config) *Hold {
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hold{
		backend: backend,
		limiter: rate.NewLimiter(rate.Every(config.RetryDelay), 1),
		claims:  make(map[*Claim]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetActive requests (true) or releases (false) the wake lock.
func (h *Hold) SetActive(active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setWantedLocked(active)
}

// Reacquire re-requests the lock if it is wanted but not held,
// e.g. after the host regained visibility or woke from suspend.
func (h *Hold) Reacquire() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.wanted || h.lock != nil || h.acquiring || h.ctx.Err() != nil {
		return
	}
	h.startAcquireLocked()
}

// Held reports whether a platform lock is currently held.
func (h *Hold) Held() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lock != nil
}

// Wanted reports whether the lock is currently requested.
func (h *Hold) Wanted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.wanted
}

// Close releases any held lock and stops background work.
func (h *Hold) Close() {
	h.mu.Lock()
	h.setWantedLocked(false)
	h.cancel()
	h.mu.Unlock()

	h.wg.Wait()
}

func (h *Hold) setWantedLocked(wanted bool) {
	if h.ctx.Err() != nil || wanted == h.wanted {
		return
	}
	h.wanted = wanted
	h.generation++

	if wanted {
		if !h.acquiring {
			h.startAcquireLocked()
		}
		return
	}

	if h.lock != nil {
		lock := h.lock
		h.lock = nil
		h.goRelease(lock)
	}
}

func (h *Hold) startAcquireLocked() {
	h.acquiring = true
	gen := h.generation
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.acquire(gen)
	}()
}

func (h *Hold) acquire(gen uint64) {
	lock, err := h.backend.Acquire(h.ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.acquiring = false

	if err != nil {
		zlog.Debug().Err(err).Msg("wakehold: acquire failed")
		if h.wanted && gen != h.generation && h.ctx.Err() == nil {
			h.startAcquireLocked()
		}
		return
	}

	if !h.wanted || h.ctx.Err() != nil {
		h.goRelease(lock)
		return
	}
	if h.lock != nil {
		// Another acquisition won the race.
		h.goRelease(lock)
		return
	}

	h.lock = lock
	zlog.Debug().Msg("wakehold: lock acquired")

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.watch(lock)
	}()
}

// watch re-acquires the lock after the platform revoked it while still wanted.
func (h *Hold) watch(lock Lock) {
	select {
	case <-h.ctx.Done():
		return
	case <-lock.Lost():
	}

	h.mu.Lock()
	if h.lock != lock {
		h.mu.Unlock()
		return
	}
	h.lock = nil
	wanted := h.wanted
	h.mu.Unlock()

	if !wanted {
		return
	}
	zlog.Debug().Msg("wakehold: lock lost, re-acquiring")

	if err := h.limiter.Wait(h.ctx); err != nil {
		return
	}
	h.Reacquire()
}

func (h *Hold) goRelease(lock Lock) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := lock.Release(); err != nil {
			zlog.Debug().Err(err).Msg("wakehold: release failed")
		}
	}()
}
