package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore appends verification transitions to a SQLite table. It is a
// write-mostly log; nothing in it is loaded back into live state.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed audit log
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verification_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			user_id TEXT NOT NULL,
			group_id TEXT NOT NULL,
			at DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create verification_events table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record appends an event
func (s *SQLiteStore) Record(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_events (id, kind, user_id, group_id, at)
		VALUES (?, ?, ?, ?, ?)
	`, ev.ID, string(ev.Kind), ev.UserID, ev.GroupID, ev.At)

	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, user_id, group_id, at
		FROM verification_events
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var kind string
		if err := rows.Scan(&ev.ID, &kind, &ev.UserID, &ev.GroupID, &ev.At); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Kind = Kind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// Close releases database resources
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
