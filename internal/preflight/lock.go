package preflight

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in the project directory while go-devmux runs.
const LockFileName = ".devmux.lock"

// ErrAlreadyRunning is returned when another instance holds the project lock.
var ErrAlreadyRunning = errors.New("another go-devmux instance is running in this project")

// Lock is an exclusive per-project lock.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the project lock without blocking.
func AcquireLock(dir string) (*Lock, error) {
	fl := flock.New(filepath.Join(dir, LockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrAlreadyRunning, fl.Path())
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.fl.Path() }

// Release unlocks. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return l.fl.Unlock()
}
