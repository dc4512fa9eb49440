// SPDX-License-Identifier: MIT

// Package catalog maintains an on-disk index of finalized recording
// sessions. The index lives next to the archives in a single SQLite
// database so that command line tools can list and inspect recordings
// without scanning the directory.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// ErrLocked is returned by Open when another process already holds the
// writer lock for the catalog directory.
var ErrLocked = errors.New("catalog: locked by another process")

const dbFileName = "sessions.db"
const lockFileName = "sessions.lock"

// Entry describes one finalized recording session.
type Entry struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Path      string    `json:"path"`
	StartTime time.Time `json:"start_time"`
	Duration  float64   `json:"duration_s"` // s
	Frames    int       `json:"frames"`
	CreatedAt time.Time `json:"created_at"`
}

// Catalog is a handle on the session index. A read-write catalog holds
// an exclusive file lock for its lifetime so that only one producer
// writes at a time; read-only handles take no lock.
type Catalog struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open opens the catalog in dir for reading and writing, creating the
// directory and database as needed. It acquires the writer lock and
// returns ErrLocked when another process holds it.
func Open(dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire catalog lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	c, err := open(dir)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	c.lock = lock
	return c, nil
}

// OpenReadOnly opens the catalog in dir without taking the writer lock.
// Listing tools use this so they never block a running producer.
func OpenReadOnly(dir string) (*Catalog, error) {
	return open(dir)
}

func open(dir string) (*Catalog, error) {
	dbPath := filepath.Join(dir, dbFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	c := &Catalog{db: db, path: dbPath}
	if err := c.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    label      TEXT NOT NULL,
    path       TEXT NOT NULL,
    start_time TEXT NOT NULL,
    duration_s REAL NOT NULL,
    frames     INTEGER NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init catalog schema: %w", err)
	}
	return nil
}

// Path returns the location of the database file.
func (c *Catalog) Path() string {
	return c.path
}

// Close closes the database and releases the writer lock if held.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	err := c.db.Close()
	if c.lock != nil {
		if unlockErr := c.lock.Unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}

// Add records a finalized session.
func (c *Catalog) Add(ctx context.Context, e Entry) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO sessions (id, label, path, start_time, duration_s, frames, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Label,
		e.Path,
		e.StartTime.UTC().Format(time.RFC3339Nano),
		e.Duration,
		e.Frames,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get fetches a session by identifier. A unique identifier prefix is
// accepted. It returns nil when no session matches and an error when
// the prefix is ambiguous.
func (c *Catalog) Get(ctx context.Context, id string) (*Entry, error) {
	rows, err := c.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM sessions WHERE id = ? OR id LIKE ? LIMIT 2`,
		id,
		id+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(entries) {
	case 0:
		return nil, nil
	case 1:
		return entries[0], nil
	default:
		return nil, fmt.Errorf("session id %q is ambiguous", id)
	}
}

// List returns all sessions, newest first.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Remove deletes a session entry by exact identifier. It reports
// whether an entry was removed. The archive file itself is untouched.
func (c *Catalog) Remove(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const entryColumns = "id, label, path, start_time, duration_s, frames, created_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		e          Entry
		startRaw   string
		createdRaw string
	)
	if err := scanner.Scan(&e.ID, &e.Label, &e.Path, &startRaw, &e.Duration, &e.Frames, &createdRaw); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, startRaw); err == nil {
		e.StartTime = t
	}
	if t, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		e.CreatedAt = t
	}
	return &e, nil
}
