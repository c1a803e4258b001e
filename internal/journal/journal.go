// Package journal keeps a local audit trail of administrative and update
// events in a sqlite database next to the configuration.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const dbFile = "journal.db"

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry kinds.
const (
	KindPinSet      = "admin.pin_set"
	KindPinRejected = "admin.pin_rejected"
	KindConfigReset = "config.reset"
	KindLogin       = "station.login"
	KindUpdate      = "update.status"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id TEXT PRIMARY KEY,
	at TEXT NOT NULL,
	kind TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_entries_at ON entries(at);
`

// Entry is one journal record. Details never contain PINs or passwords.
type Entry struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// Journal is an append-only event log.
type Journal struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens or creates the journal in dir.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	conn, err := sql.Open("sqlite", filepath.Join(dir, dbFile))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One writer; serializing on a single connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Journal{conn: conn, now: time.Now}, nil
}

// Close closes the database. A nil Journal is a no-op.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.conn.Close()
}

// Record appends an entry. A nil Journal records nothing.
func (j *Journal) Record(ctx context.Context, kind, detail string) error {
	if j == nil {
		return nil
	}
	_, err := j.conn.ExecContext(ctx,
		`INSERT INTO entries (id, at, kind, detail) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), j.now().UTC().Format(timeLayout), kind, detail)
	if err != nil {
		return fmt.Errorf("record %s: %w", kind, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.conn.QueryContext(ctx,
		`SELECT id, at, kind, detail FROM entries ORDER BY at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	return scanEntries(rows)
}

// Since returns up to limit entries recorded at or after t, newest first.
func (j *Journal) Since(ctx context.Context, t time.Time, limit int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.conn.QueryContext(ctx,
		`SELECT id, at, kind, detail FROM entries WHERE at >= ? ORDER BY at DESC, rowid DESC LIMIT ?`,
		t.UTC().Format(timeLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.ID, &at, &e.Kind, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.Time, _ = time.Parse(timeLayout, at)
		out = append(out, e)
	}
	return out, rows.Err()
}
