package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/praetorian-inc/vectorscan-go/pkg/hs"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store.
// Use ":memory:" for an in-memory database (useful for testing).
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases from splitting per
	// connection and serializes writers.
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get retrieves the entry stored under key.
func (s *SQLiteStore) Get(key string) (*Entry, error) {
	row := s.db.QueryRow(`
		SELECT key, mode, engine_version, pattern_count, size, data, created_at
		FROM databases
		WHERE key = ?
	`, key)

	var e Entry
	var mode uint32
	var created int64
	err := row.Scan(&e.Key, &mode, &e.EngineVersion, &e.PatternCount, &e.Size, &e.Data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying database %s: %w", key, err)
	}
	e.Mode = hs.ScanMode(mode)
	e.CreatedAt = time.Unix(created, 0).UTC()
	return &e, nil
}

// Put stores e, replacing any entry with the same key.
func (s *SQLiteStore) Put(e *Entry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO databases (key, mode, engine_version, pattern_count, size, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.Key,
		uint32(e.Mode),
		e.EngineVersion,
		e.PatternCount,
		e.Size,
		e.Data,
		created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("inserting database: %w", err)
	}
	return nil
}

// Delete removes the entry stored under key.
func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM databases WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting database: %w", err)
	}
	return nil
}

// List returns entry metadata, oldest first.
func (s *SQLiteStore) List() ([]*Entry, error) {
	rows, err := s.db.Query(`
		SELECT key, mode, engine_version, pattern_count, size, created_at
		FROM databases
		ORDER BY created_at, key
	`)
	if err != nil {
		return nil, fmt.Errorf("querying databases: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var e Entry
		var mode uint32
		var created int64
		if err := rows.Scan(&e.Key, &mode, &e.EngineVersion, &e.PatternCount, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scanning database: %w", err)
		}
		e.Mode = hs.ScanMode(mode)
		e.CreatedAt = time.Unix(created, 0).UTC()
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating databases: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
