package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/glabrego/mug-cli/internal/mug"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS monitored_urls (
  id INTEGER PRIMARY KEY,
  url TEXT NOT NULL,
  reference TEXT NOT NULL DEFAULT '',
  current TEXT NOT NULL DEFAULT '',
  results TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT '',
  position INTEGER NOT NULL,
  fetched_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitored_urls_position ON monitored_urls(position);
CREATE TABLE IF NOT EXISTS preferences (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// CheckWritable fails when the database file cannot be written, so the
// problem shows up at startup instead of on the first snapshot.
func (r *Repository) CheckWritable(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO preferences (key, value, updated_at) VALUES ('__write_check', '1', ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
`, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write probe: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE key = '__write_check'`); err != nil {
		return fmt.Errorf("delete probe: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ReplaceURLs stores urls as the full cached listing, in order.
func (r *Repository) ReplaceURLs(ctx context.Context, urls []mug.MonitoredURL) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM monitored_urls`); err != nil {
		return fmt.Errorf("clear monitored urls: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO monitored_urls (id, url, reference, current, results, status, position, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("prepare save statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, u := range urls {
		_, err := stmt.ExecContext(
			ctx,
			u.ID,
			u.URL,
			u.Reference,
			u.Current,
			u.DiffOutput,
			string(u.Status),
			i,
			now,
		)
		if err != nil {
			return fmt.Errorf("save monitored url %d: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) ListURLs(ctx context.Context) ([]mug.MonitoredURL, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, url, reference, current, results, status
FROM monitored_urls
ORDER BY position ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query monitored urls: %w", err)
	}
	defer rows.Close()

	var urls []mug.MonitoredURL
	for rows.Next() {
		var u mug.MonitoredURL
		var status string
		if err := rows.Scan(&u.ID, &u.URL, &u.Reference, &u.Current, &u.DiffOutput, &status); err != nil {
			return nil, fmt.Errorf("scan monitored url: %w", err)
		}
		u.Status = mug.Status(status)
		urls = append(urls, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return urls, nil
}

// LastSnapshotAt returns when the cached listing was written, or the zero
// time when the cache is empty.
func (r *Repository) LastSnapshotAt(ctx context.Context) (time.Time, error) {
	var raw sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(fetched_at) FROM monitored_urls`).Scan(&raw); err != nil {
		return time.Time{}, fmt.Errorf("query snapshot time: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse snapshot time %q: %w", raw.String, err)
	}
	return at, nil
}

func (r *Repository) LoadPreferences(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return prefs, nil
}

func (r *Repository) SavePreferences(ctx context.Context, prefs map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  value=excluded.value,
  updated_at=excluded.updated_at
`)
	if err != nil {
		return fmt.Errorf("prepare preference statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for key, value := range prefs {
		if _, err := stmt.ExecContext(ctx, key, value, now); err != nil {
			return fmt.Errorf("save preference %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
