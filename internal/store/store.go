// Package store persists the transcript client's state in a local
// key-value store. Values are always written whole; the last write wins.
package store

import (
	"errors"
	"fmt"

	"StudyBuddy/internal/config"
	"StudyBuddy/internal/store/bolt"
	"StudyBuddy/internal/store/sqlite"
)

// Keys used by the transcript client.
const (
	TranscriptKey = "study-chat"
	ThemeKey      = "study-theme"
)

// Store is a whole-value key-value store.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key string) ([]byte, bool, error)
	// Put overwrites the value for key.
	Put(key string, value []byte) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(key string) error
	Close() error
}

var (
	_ Store = (*bolt.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// ErrUnknownKind is returned by Open for an unsupported backend name.
var ErrUnknownKind = errors.New("unknown store kind")

// Open opens the named backend at path.
func Open(kind, path string) (Store, error) {
	switch kind {
	case config.StoreBolt:
		return bolt.Open(path)
	case config.StoreSQLite:
		return sqlite.Open(path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
