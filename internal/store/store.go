package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory store that disappears on Close.
const MemoryPath = ":memory:"

// migration upgrades a store written by an older release. Migrations run
// in version order; user_version records the last one applied.
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{1, "statements by fingerprint", `
		CREATE INDEX IF NOT EXISTS idx_statements_fingerprint
		ON statements(fingerprint)`},
	{2, "statement history", `
		CREATE INDEX IF NOT EXISTS idx_statements_key
		ON statements(namespace, id)`},
}

var currentSchemaVersion = migrations[len(migrations)-1].version

// Store is a SQLite database of catalog snapshots.
//
// Snapshots are append-only: WriteSnapshot never touches an existing
// snapshot, and writing a catalog whose content is already stored returns
// the stored snapshot instead of a new one. A Store is safe for concurrent
// use; all statements run on one connection.
type Store struct {
	db *sql.DB
}

// Open opens the snapshot store at path, creating it if needed, and brings
// its schema up to date. Pass MemoryPath for a throwaway store.
//
// File stores use WAL journaling so inspect can read while compile
// writes; lock waits time out after 5 seconds.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store %s: %w", path, err)
	}

	// SQLite has a single writer, and an in-memory database lives exactly
	// as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open snapshot store %s: %w", path, err)
	}
	for _, p := range pragmas(path) {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure snapshot store: %q: %w", p, err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// pragmas returns the connection settings for a store at path. WAL does
// not apply to in-memory databases.
func pragmas(path string) []string {
	p := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if path != MemoryPath {
		p = append([]string{"PRAGMA journal_mode = WAL"}, p...)
	}
	return p
}

// migrate creates missing tables, then applies every migration newer than
// the store's user_version.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create snapshot schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}
	if version >= currentSchemaVersion {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// Close releases the database. Closing an in-memory store discards it.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the database for ad hoc queries in tests and tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}
