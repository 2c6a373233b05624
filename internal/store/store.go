package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides SQLite-backed persistence for runs, tasks, resources,
// step logs, reminder jobs, step results and triggers.
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			email TEXT,
			name TEXT NOT NULL DEFAULT '',
			telegram_chat_id INTEGER,
			created_at TIMESTAMP NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email) WHERE email IS NOT NULL;

		CREATE TABLE IF NOT EXISTS agent_runs (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			topic TEXT NOT NULL,
			goal TEXT NOT NULL,
			time_available INTEGER,
			status TEXT NOT NULL DEFAULT 'RUNNING',
			iteration INTEGER NOT NULL DEFAULT 0,
			remind_after_minutes INTEGER NOT NULL DEFAULT 45,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS study_tasks (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES agent_runs(id),
			title TEXT NOT NULL,
			done INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_study_tasks_run_title ON study_tasks(run_id, title);

		CREATE TABLE IF NOT EXISTS resources (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES agent_runs(id),
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_resources_run_url ON resources(run_id, url);

		CREATE TABLE IF NOT EXISTS agent_step_logs (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES agent_runs(id),
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_step_logs_run ON agent_step_logs(run_id, created_at);

		CREATE TABLE IF NOT EXISTS reminder_jobs (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES agent_runs(id),
			minutes INTEGER NOT NULL,
			sent INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS step_results (
			invocation_id TEXT NOT NULL,
			step_name TEXT NOT NULL,
			run_id TEXT NOT NULL,
			result TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (invocation_id, step_name)
		);

		CREATE TABLE IF NOT EXISTS triggers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			payload TEXT NOT NULL,
			deliver_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_triggers_pending ON triggers(status, deliver_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
