// Package store provides the data access layer: one SQLite database holding
// the jobs table (single source of truth for job state) and the config
// key/value table. The database is opened in WAL mode so that any number of
// worker processes can share it; the only cross-process coordination is the
// atomicity of the Claim statement in jobs.go.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/scarson/queuectl/migrations"
)

// busyTimeoutMS is how long a statement waits on a locked database before
// returning SQLITE_BUSY. Contention past this point surfaces as a transient
// error and is retried by the worker loop.
const busyTimeoutMS = 5000

// Store is the central data access object shared by the CLI, the HTTP
// surface, and the worker loop.
type Store struct {
	db *sql.DB
}

// Open creates the data directory if needed, opens (or creates) the SQLite
// database at path, and applies any pending embedded migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		path, busyTimeoutMS)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate applies pending embedded migrations. Safe to call from every
// process start; golang-migrate no-ops when the schema is current.
func (s *Store) migrate() error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying *sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }
