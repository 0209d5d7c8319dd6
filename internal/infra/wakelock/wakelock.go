// Package wakelock provides platform screen wake locks held by helper processes.
package wakelock

import (
	"context"
	"os/exec"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/hiitbox/internal/app/wakehold"
)

// ErrUnsupported indicates no wake lock helper is available on this system.
var ErrUnsupported = errors.New("wake lock unsupported")

// Inhibitor acquires wake locks by keeping an inhibitor helper process alive.
type Inhibitor struct {
	path string
	args []string
}

// New returns the inhibitor for the current platform.
func New() (*Inhibitor, error) {
	return newInhibitor()
}

// NewCommand returns an inhibitor holding the lock while the given command runs.
func NewCommand(name string, args ...string) (*Inhibitor, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupported, "%s not found", name)
	}
	return &Inhibitor{path: path, args: args}, nil
}

// Acquire starts the helper process. The lock is held until Release or until
// the process exits on its own, which is reported through Lost.
func (i *Inhibitor) Acquire(ctx context.Context) (wakehold.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(i.path, i.args...)
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start inhibitor")
	}

	lock := &processLock{
		cmd:  cmd,
		lost: make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(lock.lost)
	}()
	return lock, nil
}

// processLock is a wake lock tied to a running helper process.
type processLock struct {
	cmd  *exec.Cmd
	lost chan struct{}
	once sync.Once
	err  error
}

func (l *processLock) Release() error {
	l.once.Do(func() {
		select {
		case <-l.lost:
			return
		default:
		}
		if err := l.cmd.Process.Kill(); err != nil {
			l.err = errors.Wrap(err, "failed to stop inhibitor")
		}
	})
	return l.err
}

func (l *processLock) Lost() <-chan struct{} {
	return l.lost
}
