package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
func NewDB(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection serializes merges.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DB{db}, nil
}

func runMigrations(db *sql.DB) error {
	// Each table is a document collection: scalar columns for lookups,
	// nested values as JSON text.
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chatbots (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			domain TEXT,
			config TEXT NOT NULL,
			training TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			session_id TEXT PRIMARY KEY,
			bot_id TEXT NOT NULL,
			customer_name TEXT,
			customer_phone TEXT,
			gate_state TEXT NOT NULL,
			messages TEXT NOT NULL,
			started_at DATETIME,
			last_active DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS chat_history (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			bot_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			customer_name TEXT,
			customer_phone TEXT,
			messages TEXT NOT NULL,
			last_message TEXT,
			created_at DATETIME,
			last_active DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			session_id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			bot_id TEXT NOT NULL,
			customer_name TEXT,
			customer_phone TEXT,
			service TEXT,
			requested_date DATETIME,
			status TEXT NOT NULL,
			notes TEXT,
			last_message TEXT,
			analysis TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chatbots_owner ON chatbots(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_owner ON chat_history(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_owner ON reservations(owner_id)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return nil
}

// ownerFilter returns a WHERE clause restricting rows to ownerID, or no
// restriction when ownerID is empty.
func ownerFilter(ownerID string) (string, []any) {
	if ownerID == "" {
		return "", nil
	}
	return " WHERE owner_id = ?", []any{ownerID}
}
