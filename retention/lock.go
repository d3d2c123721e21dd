package retention

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrPassInProgress is returned when another process holds the retention lock
var ErrPassInProgress = errors.New("retention pass already in progress")

// PassLock keeps retention passes from overlapping, including across processes
type PassLock struct {
	path string
	lock *flock.Flock
}

// NewPassLock creates a lock backed by the file at path. An empty path yields a lock that always succeeds.
func NewPassLock(path string) *PassLock {
	l := &PassLock{path: path}
	if path != "" {
		l.lock = flock.New(path)
	}
	return l
}

func (l *PassLock) Path() string {
	return l.path
}

// Acquire takes the lock without waiting and returns the function releasing it
func (l *PassLock) Acquire() (func(), error) {
	if l.lock == nil {
		return func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	ok, err := l.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrPassInProgress
	}
	return func() {
		_ = l.lock.Unlock()
	}, nil
}
