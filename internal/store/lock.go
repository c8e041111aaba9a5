package store

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked means another process holds the store lock.
var ErrLocked = errors.New("store is in use by another process")

// Lock takes an exclusive advisory lock next to the store file. The
// returned function releases it.
func Lock(path string) (func() error, error) {
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, fl.Path())
	}
	return fl.Unlock, nil
}
