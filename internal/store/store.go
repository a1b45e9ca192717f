// Package store persists users, refresh tokens, and projects in SQLite,
// following the open-migrate-wrap idiom of apps/ReleaseParty/backend's store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			email_fold TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens(user_id);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			container_handle TEXT NOT NULL DEFAULT '',
			container_name TEXT NOT NULL DEFAULT '',
			volume_name TEXT NOT NULL DEFAULT '',
			network_name TEXT NOT NULL DEFAULT '',
			ssh_host_port INTEGER NOT NULL DEFAULT 0,
			ssh_public_key TEXT NOT NULL DEFAULT '',
			ssh_private_key TEXT NOT NULL DEFAULT '',
			cloud_sa_email TEXT NOT NULL DEFAULT '',
			cloud_sa_key_json TEXT NOT NULL DEFAULT '',
			object_store_prefix TEXT NOT NULL UNIQUE,
			snapshot_image_ref TEXT NOT NULL DEFAULT '',
			last_snapshot_at TEXT,
			last_backup_at TEXT,
			last_connection_at TEXT,
			created_at TEXT NOT NULL,
			last_active_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_status_conn ON projects(status, last_connection_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
