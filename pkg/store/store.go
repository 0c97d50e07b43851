package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
)

// ErrNotFound is returned by Get when no entry has the key.
var ErrNotFound = errors.New("store: entry not found")

// Entry is one serialized engine database together with the metadata
// needed to decide whether it can be reused.
type Entry struct {
	Key           string      // content key, see Key
	Mode          hs.ScanMode // mode the database was compiled for
	EngineVersion string      // hs.Version() at compile time
	PatternCount  int
	Size          int       // deserialized size in bytes
	Data          []byte    // serialized database; nil in List results
	CreatedAt     time.Time // UTC, second precision
}

// Store persists compiled databases.
// This interface abstracts the underlying storage implementation, allowing
// for different backends (SQLite, memory).
type Store interface {
	// Get retrieves the entry stored under key, or ErrNotFound.
	Get(key string) (*Entry, error)

	// Put stores e, replacing any entry with the same key.
	Put(e *Entry) error

	// Delete removes the entry stored under key. Deleting a missing key is
	// not an error.
	Delete(key string) error

	// List returns the metadata of every entry, oldest first, without Data.
	List() ([]*Entry, error)

	// Close releases the store.
	Close() error
}

// Config for store initialization.
type Config struct {
	// Path is the database file path.
	// Use ":memory:" for an in-memory store (useful for testing).
	Path string
}

// New creates a Store. ":memory:" selects MemoryStore, any other path a
// SQLite file.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Path == ":memory:" {
		return NewMemory(), nil
	}
	return NewSQLite(cfg.Path)
}
