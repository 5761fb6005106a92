package tracking

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	_ "modernc.org/sqlite" // SQLite driver
)

// NewDatabase creates a new SQLite database with the specified path and applies the schema
func NewDatabase(dbPath string) (*sql.DB, error) {
	return NewDatabaseWithFilesystem(afero.NewOsFs(), dbPath)
}

// NewDatabaseWithFilesystem creates the database directory through fs before
// opening the database. SQLite itself always opens dbPath on the OS.
func NewDatabaseWithFilesystem(fs afero.Fs, dbPath string) (*sql.DB, error) {
	// Ensure directory exists if not in-memory
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA user_version = 1",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

// ensureSchema creates the database schema if it doesn't exist
func ensureSchema(db *sql.DB) error {
	schema := `
-- One row per decode session
CREATE TABLE IF NOT EXISTS decode_sessions (
    id             INTEGER PRIMARY KEY,
    session_id     TEXT    NOT NULL UNIQUE,
    started_at     INTEGER NOT NULL,
    ended_at       INTEGER,
    source         TEXT    NOT NULL DEFAULT '',
    engine         TEXT    NOT NULL,
    variant        TEXT    NOT NULL DEFAULT '',
    sample_rate    INTEGER NOT NULL DEFAULT 0,
    channels       INTEGER NOT NULL DEFAULT 0,
    negotiations   INTEGER NOT NULL DEFAULT 0,
    announcements  INTEGER NOT NULL DEFAULT 0,
    frames_in      INTEGER NOT NULL DEFAULT 0,
    frames_decoded INTEGER NOT NULL DEFAULT 0,
    frames_dropped INTEGER NOT NULL DEFAULT 0,
    bytes_out      INTEGER NOT NULL DEFAULT 0
);

-- Superframes the engine could not decode
CREATE TABLE IF NOT EXISTS frame_errors (
    id          INTEGER PRIMARY KEY,
    session_ref INTEGER NOT NULL REFERENCES decode_sessions(id) ON DELETE CASCADE,
    frame_index INTEGER NOT NULL CHECK (frame_index >= 0),
    status      INTEGER NOT NULL,
    message     TEXT    NOT NULL,
    UNIQUE(session_ref, frame_index)
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON decode_sessions(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_engine ON decode_sessions(engine);
CREATE INDEX IF NOT EXISTS idx_errors_session ON frame_errors(session_ref);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
