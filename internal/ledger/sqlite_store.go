package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// SQLiteStore keeps the ledger in a SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string

	// recovered holds the ErrRead reported by the first Load after an
	// unreadable database was set aside.
	recovered error
}

// OpenSQLite opens or creates the ledger database at path. A database that
// cannot be opened is moved to "<path>.corrupt-<timestamp>" and replaced by
// an empty one; the first Load then reports ErrRead.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	store, err := openSQLite(ctx, path)
	if err == nil {
		return store, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	moved, moveErr := setAside(path, time.Now())
	if moveErr != nil {
		return nil, fmt.Errorf("%w (set aside failed: %w)", err, moveErr)
	}
	if moved == "" {
		return nil, err
	}
	store, reopenErr := openSQLite(ctx, path)
	if reopenErr != nil {
		return nil, reopenErr
	}
	store.recovered = fmt.Errorf("%w: %s was unreadable and moved to %s: %w", ErrRead, path, moved, err)
	return store, nil
}

func openSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// setAside renames the database and its WAL files. It returns the new path
// of the database, or "" when there was no file to move.
func setAside(path string, now time.Time) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	target := path + ".corrupt-" + now.UTC().Format("20060102T150405")
	if err := os.Rename(path, target); err != nil {
		return "", err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Rename(path+suffix, target+suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return target, err
		}
	}
	return target, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Load returns every recorded filename.
func (s *SQLiteStore) Load(ctx context.Context) (Set, error) {
	if err := s.recovered; err != nil {
		s.recovered = nil
		return NewSet(), err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sent_files")
	if err != nil {
		return NewSet(), fmt.Errorf("%w: query sent_files: %w", ErrRead, err)
	}
	defer rows.Close()

	set := NewSet()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return NewSet(), fmt.Errorf("%w: scan sent_files: %w", ErrRead, err)
		}
		set.Add(name)
	}
	if err := rows.Err(); err != nil {
		return NewSet(), fmt.Errorf("%w: iterate sent_files: %w", ErrRead, err)
	}
	return set, nil
}

// Save inserts names not yet recorded. Existing rows are left untouched.
func (s *SQLiteStore) Save(ctx context.Context, set Set) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO sent_files (name, recorded_at) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %w", ErrWrite, err)
	}
	defer stmt.Close()

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for _, name := range set.Sorted() {
		if _, err := stmt.ExecContext(ctx, name, timestamp); err != nil {
			return fmt.Errorf("%w: insert %q: %w", ErrWrite, name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrWrite, err)
	}
	return nil
}

// Forget deletes names.
func (s *SQLiteStore) Forget(ctx context.Context, names ...string) (int, error) {
	removed := 0
	for _, name := range names {
		res, err := s.db.ExecContext(ctx, "DELETE FROM sent_files WHERE name = ?", name)
		if err != nil {
			return removed, fmt.Errorf("%w: delete %q: %w", ErrWrite, name, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return removed, fmt.Errorf("%w: rows affected: %w", ErrWrite, err)
		}
		removed += int(affected)
	}
	return removed, nil
}

// Entries lists recorded filenames with their recording time, oldest first.
func (s *SQLiteStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, recorded_at FROM sent_files ORDER BY recorded_at, name")
	if err != nil {
		return nil, fmt.Errorf("%w: query sent_files: %w", ErrRead, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry    Entry
			recorded string
		)
		if err := rows.Scan(&entry.Name, &recorded); err != nil {
			return nil, fmt.Errorf("%w: scan sent_files: %w", ErrRead, err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, recorded); err == nil {
			entry.RecordedAt = parsed
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Location returns the database path.
func (s *SQLiteStore) Location() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
