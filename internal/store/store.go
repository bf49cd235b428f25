// Package store implements the durable store adapter: an embedded,
// pure-Go sqlite database (modernc.org/sqlite) holding agents, sessions,
// session turns, attestations, escrow records, and sealed inputs.
// In-memory domain structs are always copies; the store owns the
// persisted rows.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a *sql.DB configured for the negotiation coordinator's
// workload: a single writer, WAL journaling, and foreign-key-free
// denormalized rows (cross-entity integrity is enforced in Go, not SQL).
type Store struct {
	db *sql.DB
}

// Open creates or attaches to the sqlite database at path (":memory:" is
// accepted for tests) and applies the schema and any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	// The pure-Go sqlite driver serializes writers internally; cap the
	// pool to one connection so busy-database errors never surface.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: apply %q: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
