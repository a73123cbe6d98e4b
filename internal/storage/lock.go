package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile is the name of the lock file kept next to the notebook database.
const LockFile = "knowling.lock"

// ErrLocked is returned when another process already has the notebook open.
var ErrLocked = errors.New("notebook is in use by another process")

// DirLock is an exclusive advisory lock on a notebook directory, held for as long as one
// process has the stores open.
type DirLock struct {
	fl *flock.Flock
}

// LockDir creates dir if needed and takes the lock without waiting.
func LockDir(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	fl := flock.New(filepath.Join(dir, LockFile))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: lock %s: %w", ErrPersistence, fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, fl.Path())
	}
	return &DirLock{fl: fl}, nil
}

// Unlock releases the lock. The lock file stays behind.
func (l *DirLock) Unlock() error {
	return l.fl.Unlock()
}
