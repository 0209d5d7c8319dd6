//go:build !linux && !darwin

package wakelock

func newInhibitor() (*Inhibitor, error) {
	return nil, ErrUnsupported
}
