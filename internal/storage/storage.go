// Package storage wraps the embedded SQLite database cadenced reads and
// writes through: schema setup via internal/migrations, and typed
// accessors for the data model's tables. database/sql already serializes
// access safely, so one *DB is shared across every RPC handler and
// background job without additional locking.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cadence/internal/migrations"
)

// DB wraps a *sql.DB opened against a single SQLite file.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// brings every scope's schema to its latest version.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	sqlDB.SetMaxOpenConns(1) // SQLite serializes writers regardless; avoid pool contention surprises.

	db := &DB{DB: sqlDB}
	if err := db.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if err := db.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	m := migrations.New(db.DB)
	return m.Latest(ctx, ScopeLibrary, LibraryMigrations)
}

// WithTransaction runs fn inside a transaction, rolling back on error or
// panic and committing otherwise.
func (db *DB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Health runs a trivial round-trip query to confirm the database is
// reachable and responsive.
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("storage: health check: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("storage: unexpected health check result %d", result)
	}
	return nil
}
