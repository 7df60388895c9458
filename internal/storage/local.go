package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// LocalStore is the single-file SQLite backend used when no hosted
// database is configured.
type LocalStore struct {
	db *sql.DB
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const localSchema = `
CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	email       TEXT NOT NULL,
	age         TEXT NOT NULL DEFAULT '30',
	weight      TEXT NOT NULL DEFAULT '70',
	height      TEXT NOT NULL DEFAULT '175',
	is_premium  INTEGER NOT NULL DEFAULT 0,
	active_plan TEXT,
	progress    TEXT,
	version     INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	CHECK ((active_plan IS NULL) = (progress IS NULL))
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (email COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS plan_history (
	user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	seq            INTEGER NOT NULL,
	plan_title     TEXT NOT NULL,
	duration_weeks INTEGER NOT NULL,
	completed_date TEXT NOT NULL,
	status         TEXT NOT NULL CHECK (status IN ('Completed', 'Replaced')),
	PRIMARY KEY (user_id, seq)
);

CREATE TABLE IF NOT EXISTS admin_messages (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	text       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	read       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS announcements (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS journals (
	id        TEXT PRIMARY KEY,
	title     TEXT NOT NULL,
	publisher TEXT NOT NULL,
	year      INTEGER NOT NULL,
	link      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS import_logs (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at             TEXT NOT NULL,
	source                 TEXT NOT NULL,
	status                 TEXT NOT NULL,
	users_received         INTEGER NOT NULL DEFAULT 0,
	users_inserted         INTEGER NOT NULL DEFAULT 0,
	announcements_inserted INTEGER NOT NULL DEFAULT 0,
	journals_inserted      INTEGER NOT NULL DEFAULT 0,
	duration_ms            INTEGER,
	error_message          TEXT
);
`

// OpenLocal opens (or creates) the SQLite database at path.
func OpenLocal(path string) (*LocalStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
		}
	}

	// Write transactions start with BEGIN IMMEDIATE so a read-modify-write
	// cycle holds the write lock from its first read.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening local db: %w", err)
	}

	if _, err := db.Exec(localSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating local schema: %w", err)
	}

	return &LocalStore{db: db}, nil
}

// Close closes the database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// localTimeLayout is fixed width so stored timestamps sort as text.
const localTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(localTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}
