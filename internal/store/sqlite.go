package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS workflow_states (
			user_id INTEGER PRIMARY KEY,
			flow_kind TEXT NOT NULL,
			step TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			updated_at_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS devices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			brand_model TEXT NOT NULL,
			os TEXT NOT NULL,
			os_version TEXT NOT NULL,
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_devices_user ON devices(user_id);`,
		`CREATE TABLE IF NOT EXISTS boards (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			project_key TEXT,
			position INTEGER NOT NULL,
			refreshed_at_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS epics (
			epic_key TEXT NOT NULL,
			board_id INTEGER NOT NULL,
			epic_id INTEGER,
			name TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY(board_id, epic_key),
			FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS contributors (
			account_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			refreshed_at_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT NOT NULL,
			label TEXT NOT NULL,
			url TEXT NOT NULL,
			position INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS app_versions (
			version TEXT PRIMARY KEY,
			revision INTEGER NOT NULL UNIQUE,
			created_at_unix INTEGER NOT NULL
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullIfZeroInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
