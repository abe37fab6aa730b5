package diag

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one stored diagnostic line.
type Entry struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// SQLiteSink stores diagnostic lines in a SQLite database so they survive restarts.
type SQLiteSink struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteSink opens (or creates) the SQLite database at dbPath and runs migrations.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite has a single writer; one connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteSink{db: db, now: time.Now}
	if err = s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS diagnostics (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			message    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_diagnostics_created_at ON diagnostics(created_at);
	`)
	return err
}

// Record stores msg. Failures are logged and dropped.
func (s *SQLiteSink) Record(msg string) {
	if err := s.Append(context.Background(), msg); err != nil {
		slog.Error("diag: sqlite record", "error", err)
	}
}

// Append stores msg with the current time.
func (s *SQLiteSink) Append(ctx context.Context, msg string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO diagnostics (message, created_at) VALUES (?, ?)`,
		msg, s.now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert diagnostic: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message, created_at
		FROM diagnostics
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return entries, nil
}

// DeleteBefore removes entries recorded before the given time and returns how many were removed.
func (s *SQLiteSink) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM diagnostics WHERE created_at < ?`, before.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete diagnostics: %w", err)
	}
	return res.RowsAffected()
}

// StartRetention deletes entries older than ttl every interval until ctx is done.
func (s *SQLiteSink) StartRetention(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.DeleteBefore(ctx, s.now().Add(-ttl))
				if err != nil {
					slog.Error("diag: retention", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("diag: retention removed entries", "count", n)
				}
			}
		}
	}()
}

// Close closes the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
