package store

import (
	"database/sql"
	"fmt"
)

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, CurrentSchemaVersion)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS matches (
		  id           TEXT PRIMARY KEY,
		  source       TEXT NOT NULL,
		  player1      TEXT NOT NULL,
		  player2      TEXT NOT NULL,
		  match_length INTEGER NOT NULL,
		  games        INTEGER NOT NULL,
		  mat_text     TEXT NOT NULL,
		  created_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_matches_created
		ON matches(created_at DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// 1 -> 2: archive hash for lookups by content.
	if version < 2 {
		schema := `
		ALTER TABLE matches ADD COLUMN archive_sha TEXT;

		CREATE INDEX IF NOT EXISTS idx_matches_archive_sha
		ON matches(archive_sha)
		WHERE archive_sha IS NOT NULL;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := setUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

func verifyWALMode(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", mode)
	}
	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
