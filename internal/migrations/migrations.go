// Package migrations implements scope-versioned, checksummed, transactional
// schema migrations. Unlike a single-direction file-per-version migrator,
// each step here carries both an up and an optional down statement so a
// scope's version can move in either direction inside one transaction.
package migrations

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Migration is one versioned step within a scope. DownSQL is optional;
// attempting to migrate downward through a step that has none fails with
// DownNotDefinedError.
type Migration struct {
	UpSQL   string
	DownSQL string
	Comment string
}

// Checksum is a deterministic hash over UpSQL and DownSQL, used by
// external tooling to detect drift between the defined migration and what
// was actually installed. The runtime never re-verifies it on startup.
func (m Migration) Checksum() string {
	sum := blake2b.Sum256([]byte(m.UpSQL + ":" + m.DownSQL))
	return hex.EncodeToString(sum[:])
}

// NoMigrationsDefinedError is returned when ToVersion is called against a
// scope with an empty migration set.
type NoMigrationsDefinedError struct{ Scope string }

func (e *NoMigrationsDefinedError) Error() string {
	return fmt.Sprintf("migrations: no migrations defined for scope %q", e.Scope)
}

// DatabaseTooFarAheadError is returned when the installed version for a
// scope exceeds the number of migrations defined for it.
type DatabaseTooFarAheadError struct {
	Scope          string
	CurrentVersion int
	DefinedCount   int
}

func (e *DatabaseTooFarAheadError) Error() string {
	return fmt.Sprintf("migrations: scope %q is at version %d but only %d migrations are defined",
		e.Scope, e.CurrentVersion, e.DefinedCount)
}

// TargetVersionOutOfRangeError is returned when the requested target lies
// outside [0, len(migrations)].
type TargetVersionOutOfRangeError struct {
	Scope        string
	Target       int
	DefinedCount int
}

func (e *TargetVersionOutOfRangeError) Error() string {
	return fmt.Sprintf("migrations: target version %d out of range [0,%d] for scope %q",
		e.Target, e.DefinedCount, e.Scope)
}

// DownNotDefinedError is returned when a downward migration traverses a
// step with no DownSQL.
type DownNotDefinedError struct {
	Scope string
	Index int
}

func (e *DownNotDefinedError) Error() string {
	return fmt.Sprintf("migrations: scope %q step %d has no down migration defined", e.Scope, e.Index)
}

// ExecError reports a failed statement within a migration batch, along
// with enough context to locate it.
type ExecError struct {
	Scope             string
	StatementIndex    int
	StatementsInBatch int
	CurrentVersion    int
	TargetVersion     int
	Err               error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("migrations: scope %q failed at statement %d/%d (version %d -> %d): %v",
		e.Scope, e.StatementIndex, e.StatementsInBatch, e.CurrentVersion, e.TargetVersion, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Migrator applies versioned migration sets against db, tracking installed
// versions in a lazily-created _migrations table.
type Migrator struct {
	db *sql.DB
}

// New returns a Migrator bound to db.
func New(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			scope        TEXT NOT NULL,
			version      INTEGER NOT NULL,
			comment      TEXT NOT NULL DEFAULT '',
			checksum     TEXT NOT NULL,
			installed_on TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (scope, version)
		)`)
	if err != nil {
		return fmt.Errorf("migrations: ensure table: %w", err)
	}
	return nil
}

// CurrentVersion reports the highest installed version for scope,
// defaulting to 0 if none are installed.
func (m *Migrator) CurrentVersion(ctx context.Context, scope string) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	var version sql.NullInt64
	err := m.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM _migrations WHERE scope = ?`, scope).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("migrations: current version: %w", err)
	}
	return int(version.Int64), nil
}

// ToVersion migrates scope from its current installed version to target,
// running the defined set in order. target is 1-indexed against set:
// target N means migrations[0..N) have been applied.
func (m *Migrator) ToVersion(ctx context.Context, scope string, set []Migration, target int) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	if len(set) == 0 {
		return &NoMigrationsDefinedError{Scope: scope}
	}
	if target < 0 || target > len(set) {
		return &TargetVersionOutOfRangeError{Scope: scope, Target: target, DefinedCount: len(set)}
	}

	current, err := m.CurrentVersion(ctx, scope)
	if err != nil {
		return err
	}
	if current > len(set) {
		return &DatabaseTooFarAheadError{Scope: scope, CurrentVersion: current, DefinedCount: len(set)}
	}
	if current == target {
		return nil
	}
	if current < target {
		return m.migrateUp(ctx, scope, set, current, target)
	}
	return m.migrateDown(ctx, scope, set, current, target)
}

func (m *Migrator) migrateUp(ctx context.Context, scope string, set []Migration, current, target int) error {
	steps := target - current
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrations: begin: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < steps; i++ {
		version := current + i + 1
		mig := set[version-1]
		if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
			return &ExecError{
				Scope: scope, StatementIndex: i, StatementsInBatch: steps,
				CurrentVersion: current, TargetVersion: target, Err: err,
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO _migrations (scope, version, comment, checksum) VALUES (?, ?, ?, ?)`,
			scope, version, mig.Comment, mig.Checksum())
		if err != nil {
			return &ExecError{
				Scope: scope, StatementIndex: i, StatementsInBatch: steps,
				CurrentVersion: current, TargetVersion: target, Err: err,
			}
		}
	}
	return tx.Commit()
}

func (m *Migrator) migrateDown(ctx context.Context, scope string, set []Migration, current, target int) error {
	steps := current - target
	for i := 0; i < steps; i++ {
		version := current - i
		if set[version-1].DownSQL == "" {
			return &DownNotDefinedError{Scope: scope, Index: version}
		}
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrations: begin: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < steps; i++ {
		version := current - i
		mig := set[version-1]
		if _, err := tx.ExecContext(ctx, mig.DownSQL); err != nil {
			return &ExecError{
				Scope: scope, StatementIndex: i, StatementsInBatch: steps,
				CurrentVersion: current, TargetVersion: target, Err: err,
			}
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM _migrations WHERE scope = ? AND version = ?`, scope, version)
		if err != nil {
			return &ExecError{
				Scope: scope, StatementIndex: i, StatementsInBatch: steps,
				CurrentVersion: current, TargetVersion: target, Err: err,
			}
		}
	}
	return tx.Commit()
}

// Latest migrates scope to the highest version defined in set.
func (m *Migrator) Latest(ctx context.Context, scope string, set []Migration) error {
	return m.ToVersion(ctx, scope, set, len(set))
}
