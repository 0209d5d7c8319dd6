package wakehold

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLock struct {
	mu       sync.Mutex
	released bool
	lost     chan struct{}
}

func newFakeLock() *fakeLock {
	return &fakeLock{lost: make(chan struct{})}
}

func (l *fakeLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
	return nil
}

func (l *fakeLock) Lost() <-chan struct{} {
	return l.lost
}

func (l *fakeLock) isReleased() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}

// fakeBackend hands out fake locks, or errors while deny is set.
type fakeBackend struct {
	mu       sync.Mutex
	deny     bool
	acquired []*fakeLock
}

func (b *fakeBackend) Acquire(ctx context.Context) (Lock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deny {
		return nil, errors.New("denied by platform")
	}
	lock := newFakeLock()
	b.acquired = append(b.acquired, lock)
	return lock, nil
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.acquired)
}

func (b *fakeBackend) last() *fakeLock {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acquired[len(b.acquired)-1]
}

func newTestHold(t *testing.T, backend Backend) *Hold {
	t.Helper()
	h := New(backend, Config{RetryDelay: 10 * time.Millisecond})
	t.Cleanup(h.Close)
	return h
}

func TestHold_AcquireAndRelease(t *testing.T) {
	backend := &fakeBackend{}
	h := newTestHold(t, backend)

	h.SetActive(true)
	require.Eventually(t, h.Held, time.Second, time.Millisecond)
	assert.True(t, h.Wanted())

	lock := backend.last()
	h.SetActive(false)
	assert.False(t, h.Held())
	require.Eventually(t, lock.isReleased, time.Second, time.Millisecond)
}

func TestHold_SetActiveIsIdempotent(t *testing.T) {
	backend := &fakeBackend{}
	h := newTestHold(t, backend)

	h.SetActive(true)
	h.SetActive(true)
	require.Eventually(t, h.Held, time.Second, time.Millisecond)
	h.SetActive(true)

	assert.Equal(t, 1, backend.count())
}

func TestHold_DeniedAcquisitionIsSilent(t *testing.T) {
	backend := &fakeBackend{deny: true}
	h := newTestHold(t, backend)

	h.SetActive(true)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, h.Held())
	assert.True(t, h.Wanted())

	// Visibility regained: the caller retries explicitly.
	backend.mu.Lock()
	backend.deny = false
	backend.mu.Unlock()
	h.Reacquire()
	require.Eventually(t, h.Held, time.Second, time.Millisecond)
}

func TestHold_ReacquiresAfterLoss(t *testing.T) {
	backend := &fakeBackend{}
	h := newTestHold(t, backend)

	h.SetActive(true)
	require.Eventually(t, h.Held, time.Second, time.Millisecond)

	close(backend.last().lost)

	require.Eventually(t, func() bool {
		return backend.count() == 2 && h.Held()
	}, time.Second, time.Millisecond)
}

func TestHold_LossWhileNotWantedIsIgnored(t *testing.T) {
	backend := &fakeBackend{}
	h := newTestHold(t, backend)

	h.SetActive(true)
	require.Eventually(t, h.Held, time.Second, time.Millisecond)
	lock := backend.last()
	h.SetActive(false)
	close(lock.lost)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, backend.count())
	assert.False(t, h.Held())
}

func TestHold_CloseReleases(t *testing.T) {
	backend := &fakeBackend{}
	h := New(backend, Config{})

	h.SetActive(true)
	require.Eventually(t, h.Held, time.Second, time.Millisecond)
	lock := backend.last()

	h.Close()
	assert.True(t, lock.isReleased())

	h.SetActive(true)
	assert.False(t, h.Wanted(), "closed hold ignores requests")
}

func TestClaim_SharedHold(t *testing.T) {
	backend := &fakeBackend{}
	h := newTestHold(t, backend)

	first := h.Claim()
	second := h.Claim()

	first.SetActive(true)
	second.SetActive(true)
	require.Eventually(t, h.Held, time.Second, time.Millisecond)

	first.SetActive(false)
	assert.True(t, h.Wanted(), "second claim still holds")

	second.Release()
	assert.False(t, h.Wanted())

	second.SetActive(true)
	assert.False(t, h.Wanted(), "released claim has no vote")
	assert.Equal(t, 1, backend.count())
}
