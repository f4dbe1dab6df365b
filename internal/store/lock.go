package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
)

// Lock is a cross-process lock on a storage directory. Only one process may
// own and mutate a given index at a time.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewLock returns an unlocked lock for dir. The lock file is <dir>/.lock.
func NewLock(dir string) *Lock {
	path := filepath.Join(dir, ".lock")
	return &Lock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryLock acquires the lock without blocking. A lock held by another
// process is reported as ErrStorageLocked.
func (l *Lock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return verrors.New(verrors.ErrCodeStorageUnwritable, "failed to create storage directory", err).
			WithDetail("dir", filepath.Dir(l.path))
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return verrors.New(verrors.ErrCodeStorageUnwritable, fmt.Sprintf("failed to lock %s", l.path), err)
	}
	if !acquired {
		return verrors.New(verrors.ErrCodeStorageLocked, "storage directory is in use by another process", nil).
			WithDetail("lock", l.path).
			WithSuggestion("stop the other mcpvector process or use a different db_path")
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *Lock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}
