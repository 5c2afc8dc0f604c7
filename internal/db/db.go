package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/chemfetch/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the database file created inside the base directory.
const FileName = "chemfetch.db"

// Init initializes the SQLite database at baseDir/chemfetch.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.chemfetch.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Best-effort, may not work on all platforms
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: runs and their per-identifier checkpoints
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS runs (
		  id                  TEXT PRIMARY KEY,
		  input_path          TEXT NOT NULL,
		  output_path         TEXT NOT NULL,
		  kind                TEXT NOT NULL,
		  total               INTEGER NOT NULL,
		  idx                 INTEGER NOT NULL DEFAULT 0,
		  successful_requests INTEGER NOT NULL DEFAULT 0,
		  current_step        TEXT NOT NULL,
		  status              TEXT NOT NULL,
		  error               TEXT,
		  created_at          INTEGER NOT NULL,
		  updated_at          INTEGER NOT NULL,
		  finished_at         INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created
		ON runs(created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_runs_status
		ON runs(status, created_at DESC);

		CREATE TABLE IF NOT EXISTS run_items (
		  run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		  identifier TEXT NOT NULL,
		  position   INTEGER NOT NULL,
		  status     TEXT NOT NULL,
		  name       TEXT,
		  cid        INTEGER,
		  line       TEXT,
		  error      TEXT,
		  updated_at INTEGER NOT NULL,
		  PRIMARY KEY (run_id, identifier)
		);

		CREATE INDEX IF NOT EXISTS idx_run_items_position
		ON run_items(run_id, position);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
