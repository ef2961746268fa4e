// Package history keeps a most-recently-used log of cast files, backed by
// sqlite. It is not session-state persistence: a process restart always
// starts at StateIdle, this package only remembers what to offer back to the
// user for quick re-casting.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MaxEntries bounds the recent-casts log. Recording a 21st distinct path
// evicts the least-recently-used one.
const MaxEntries = 20

// RecentCast is one entry in the MRU log.
type RecentCast struct {
	ID         string
	FilePath   string
	FileName   string
	DeviceName string
	CastAt     time.Time
}

// Store is a sqlite-backed recent-casts log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS recent_casts (
		id TEXT PRIMARY KEY,
		file_path TEXT UNIQUE NOT NULL,
		file_name TEXT NOT NULL,
		device_name TEXT NOT NULL,
		cast_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_recent_casts_cast_at ON recent_casts(cast_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record upserts a cast of filePath to deviceName, stamped at castAt, then
// evicts the oldest entries beyond MaxEntries. filePath is the dedup key: a
// repeat cast of the same file updates its timestamp and device name in
// place.
func (s *Store) Record(ctx context.Context, filePath, fileName, deviceName string, castAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recent_casts (id, file_path, file_name, device_name, cast_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			device_name = excluded.device_name,
			cast_at = excluded.cast_at
	`, uuid.New().String(), filePath, fileName, deviceName, castAt)
	if err != nil {
		return fmt.Errorf("record recent cast: %w", err)
	}
	return s.evictOverflow(ctx)
}

func (s *Store) evictOverflow(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM recent_casts
		WHERE id NOT IN (
			SELECT id FROM recent_casts ORDER BY cast_at DESC LIMIT ?
		)
	`, MaxEntries)
	if err != nil {
		return fmt.Errorf("evict recent casts: %w", err)
	}
	return nil
}

// List returns recent casts, most recent first.
func (s *Store) List(ctx context.Context) ([]RecentCast, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_path, file_name, device_name, cast_at
		FROM recent_casts
		ORDER BY cast_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list recent casts: %w", err)
	}
	defer rows.Close()

	var out []RecentCast
	for rows.Next() {
		var rc RecentCast
		if err := rows.Scan(&rc.ID, &rc.FilePath, &rc.FileName, &rc.DeviceName, &rc.CastAt); err != nil {
			return nil, fmt.Errorf("scan recent cast: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
