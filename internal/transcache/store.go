// Package transcache persists transcription results in SQLite so repeated
// runs over the same media skip the expensive whisper calls. Windowed
// re-verification clips hit the cache too, which makes realignment and
// hallucination revalidation cheap to re-run while tuning.
package transcache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"jimaku/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale caches are safe to delete.
const schemaVersion = 1

// ErrSchemaMismatch indicates the cache database was written by a different
// schema version.
var ErrSchemaMismatch = errors.New("transcache: schema version mismatch")

// ErrLocked indicates another process holds the cache lock.
var ErrLocked = errors.New("transcache: cache is locked by another process")

// Store manages transcript persistence backed by SQLite. The store holds an
// exclusive file lock for its lifetime so concurrent processes never share a
// writable cache.
type Store struct {
	db     *sql.DB
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// Open initializes or connects to the cache database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("transcache: database path required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("transcache: ensure cache dir: %w", err)
	}

	lock := flock.New(dbPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("transcache: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("transcache: open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("transcache: apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:     db,
		path:   dbPath,
		lock:   lock,
		logger: logging.NewComponentLogger(logger, "transcache"),
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection and releases the cache lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	return err
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("transcache: check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("transcache: read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transcache: begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("transcache: create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("transcache: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transcache: commit schema: %w", err)
	}
	return nil
}

// Get returns the cached transcript JSON for key, or ok=false on a miss.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json FROM transcripts WHERE key = ?`, key,
	).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("transcache: get transcript: %w", err)
	}
	return resultJSON, true, nil
}

// Put stores a transcript under key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key, mediaPath string, start, duration float64, strict, wordTimestamps bool, resultJSON string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (
            key, media_path, clip_start, clip_duration, strict,
            word_timestamps, result_json, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            result_json = excluded.result_json,
            created_at = excluded.created_at`,
		key,
		mediaPath,
		start,
		duration,
		boolToInt(strict),
		boolToInt(wordTimestamps),
		resultJSON,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("transcache: put transcript: %w", err)
	}
	return nil
}

// Count returns the number of cached transcripts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcripts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("transcache: count transcripts: %w", err)
	}
	return count, nil
}

// Clear removes all cached transcripts and reports how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts`)
	if err != nil {
		return 0, fmt.Errorf("transcache: clear cache: %w", err)
	}
	return res.RowsAffected()
}

// ClearMedia removes cached transcripts for a single media file.
func (s *Store) ClearMedia(ctx context.Context, mediaPath string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE media_path = ?`, mediaPath)
	if err != nil {
		return 0, fmt.Errorf("transcache: clear media transcripts: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
