package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a Ledger stored in a single-table SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens a ledger database with WAL mode enabled, creating the
// file and schema if needed.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; stages update the ledger from several goroutines.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing ledger schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS ledger (
	path TEXT PRIMARY KEY,
	last_read TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	completed_at TEXT,
	stages TEXT NOT NULL DEFAULT '[]'
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, path string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT path, last_read, completed, completed_at, stages FROM ledger WHERE path = ?`, path)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("ledger get %s: %w", path, err)
	}
	return e, true, nil
}

func (s *SQLite) MarkRead(ctx context.Context, path string, at time.Time) error {
	const stmt = `
INSERT INTO ledger (path, last_read, completed, completed_at, stages)
VALUES (?, ?, 0, NULL, '["read"]')
ON CONFLICT(path) DO UPDATE SET
	last_read=excluded.last_read,
	completed=0,
	completed_at=NULL,
	stages=excluded.stages
`
	if _, err := s.db.ExecContext(ctx, stmt, path, formatTime(at)); err != nil {
		return fmt.Errorf("ledger mark read %s: %w", path, err)
	}
	return nil
}

func (s *SQLite) AddStage(ctx context.Context, path, stage string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT stages FROM ledger WHERE path = ?`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("ledger add stage %s: %w", path, err)
	}
	var stages []string
	if err := json.Unmarshal([]byte(raw), &stages); err != nil {
		return fmt.Errorf("ledger stages for %s: %w", path, err)
	}
	if slices.Contains(stages, stage) {
		return nil
	}
	stages = append(stages, stage)
	enc, err := json.Marshal(stages)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE ledger SET stages = ? WHERE path = ?`, string(enc), path); err != nil {
		return fmt.Errorf("ledger add stage %s: %w", path, err)
	}
	return tx.Commit()
}

func (s *SQLite) Complete(ctx context.Context, path string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ledger SET completed = 1, completed_at = ? WHERE path = ?`, formatTime(at), path)
	if err != nil {
		return fmt.Errorf("ledger complete %s: %w", path, err)
	}
	return requireRow(res, path)
}

func (s *SQLite) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, last_read, completed, completed_at, stages FROM ledger ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("ledger list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger list: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Reset(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ledger WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("ledger reset %s: %w", path, err)
	}
	return requireRow(res, path)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e           Entry
		lastRead    string
		completed   int
		completedAt sql.NullString
		stages      string
	)
	if err := sc.Scan(&e.Path, &lastRead, &completed, &completedAt, &stages); err != nil {
		return Entry{}, err
	}
	e.LastRead, _ = time.Parse(time.RFC3339Nano, lastRead)
	e.Completed = completed != 0
	if completedAt.Valid {
		e.CompletedAt, _ = time.Parse(time.RFC3339Nano, completedAt.String)
	}
	if err := json.Unmarshal([]byte(stages), &e.Stages); err != nil {
		return Entry{}, fmt.Errorf("decoding stages: %w", err)
	}
	return e, nil
}

func requireRow(res sql.Result, path string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
