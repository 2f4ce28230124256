// Package store keeps converted matches in a local SQLite library.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dmmcquay/gammon-mcp/internal/retry"
)

// FileName is the database file created inside the store directory.
const FileName = "gammon.db"

// CurrentSchemaVersion is the latest user_version. Bump it with each
// migration.
const CurrentSchemaVersion = 2

var (
	ErrNotFound  = errors.New("match not found")
	ErrInvalidID = errors.New("invalid match id")
)

// Record is one converted archive.
type Record struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	ArchiveSHA  string    `json:"archiveSha,omitempty"`
	Player1     string    `json:"player1"`
	Player2     string    `json:"player2"`
	MatchLength int       `json:"matchLength"`
	Games       int       `json:"games"`
	Mat         string    `json:"mat,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Store struct {
	db    *sql.DB
	path  string
	retry *retry.Manager

	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// Open creates dir if needed and opens or migrates <dir>/gammon.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
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
	_ = os.Chmod(path, 0600)

	cfg := retry.DefaultConfig()
	cfg.Retryable = isBusy

	return &Store{
		db:      db,
		path:    path,
		retry:   retry.NewManager(cfg),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping store: %w", err)
	}
	return nil
}

// newID is guarded because monotonic entropy is not safe for concurrent use.
func (s *Store) newID(t time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), s.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Save assigns ID and CreatedAt and inserts rec. Busy database errors are
// retried with backoff.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	now := s.now().UTC()
	id, err := s.newID(now)
	if err != nil {
		return fmt.Errorf("failed to generate id: %w", err)
	}

	err = s.retry.Run(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO matches (
				id, source, archive_sha, player1, player2,
				match_length, games, mat_text, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, rec.Source, toNullString(rec.ArchiveSHA), rec.Player1, rec.Player2,
			rec.MatchLength, rec.Games, rec.Mat, now.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save match: %w", err)
	}

	rec.ID = id
	rec.CreatedAt = time.Unix(now.Unix(), 0).UTC()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	parsed, err := ulid.ParseStrict(strings.ToUpper(strings.TrimSpace(id)))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, archive_sha, player1, player2,
			match_length, games, mat_text, created_at
		FROM matches WHERE id = ?`, parsed.String())
	return scanRecord(row, true)
}

// FindBySHA returns the most recent record for an archive hash.
func (s *Store) FindBySHA(ctx context.Context, sha string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, archive_sha, player1, player2,
			match_length, games, mat_text, created_at
		FROM matches WHERE archive_sha = ?
		ORDER BY id DESC LIMIT 1`, sha)
	return scanRecord(row, true)
}

// List returns up to limit records, newest first, without the .mat text.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, archive_sha, player1, player2,
			match_length, games, '', created_at
		FROM matches
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, false)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, single bool) (*Record, error) {
	var (
		rec       Record
		sha       sql.NullString
		createdAt int64
	)
	err := row.Scan(&rec.ID, &rec.Source, &sha, &rec.Player1, &rec.Player2,
		&rec.MatchLength, &rec.Games, &rec.Mat, &createdAt)
	if err != nil {
		if single && errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read match: %w", err)
	}
	rec.ArchiveSHA = sha.String
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &rec, nil
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isBusy reports SQLITE_BUSY and SQLITE_LOCKED, including extended codes.
func isBusy(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
