// Package store persists the per-location refresh state in SQLite so a
// restart within the refresh interval does not hit the upstream site again.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tartampluch/go-uster-waste/internal/config"
	"github.com/tartampluch/go-uster-waste/internal/engine"
	_ "modernc.org/sqlite" // SQLite driver
)

// Record is the persisted cache state of one location.
type Record struct {
	Summary     *engine.Summary
	LastAttempt time.Time
	LastUpdated time.Time
	LastError   string
}

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS location_state (
	location_id  TEXT PRIMARY KEY,
	summary      TEXT,
	last_attempt INTEGER NOT NULL DEFAULT 0,
	last_updated INTEGER NOT NULL DEFAULT 0,
	last_error   TEXT NOT NULL DEFAULT ''
)`

const upsertRecord = `
INSERT INTO location_state (location_id, summary, last_attempt, last_updated, last_error)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(location_id) DO UPDATE SET
	summary      = excluded.summary,
	last_attempt = excluded.last_attempt,
	last_updated = excluded.last_updated,
	last_error   = excluded.last_error`

const selectRecord = `
SELECT summary, last_attempt, last_updated, last_error
FROM location_state WHERE location_id = ?`

// Open opens (creating if needed) the database at path and applies the schema.
// path may be config.SQLiteMemoryDSN for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != config.SQLiteMemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), config.DirPermUserRWX); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrCreateDir, err)
		}
	}

	db, err := sql.Open(config.SQLiteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}

	// One connection, so a ":memory:" database is seen by every query.
	db.SetMaxOpenConns(1)

	pragma := fmt.Sprintf("PRAGMA busy_timeout = %d", config.SQLiteBusyTimeout.Milliseconds())
	if _, err := db.ExecContext(ctx, pragma); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Debug(config.MsgStoreReady,
		config.LogKeyComponent, config.CompStore,
		config.LogKeyFile, path)
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreMigrate, err)
	}
	return nil
}

// Load returns the record for locationID. ok is false when nothing was saved yet.
func (s *Store) Load(ctx context.Context, locationID string) (rec Record, ok bool, err error) {
	var (
		summary                  sql.NullString
		lastAttempt, lastUpdated int64
	)

	err = s.db.QueryRowContext(ctx, selectRecord, locationID).
		Scan(&summary, &lastAttempt, &lastUpdated, &rec.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("%s: %w", config.ErrStoreLoad, err)
	}

	if summary.Valid && summary.String != "" {
		var sum engine.Summary
		if err := json.Unmarshal([]byte(summary.String), &sum); err != nil {
			return Record{}, false, fmt.Errorf("%s: %w", config.ErrStoreLoad, err)
		}
		rec.Summary = &sum
	}
	rec.LastAttempt = fromUnixMilli(lastAttempt)
	rec.LastUpdated = fromUnixMilli(lastUpdated)
	return rec, true, nil
}

// Save replaces the record for locationID.
func (s *Store) Save(ctx context.Context, locationID string, rec Record) error {
	var summary sql.NullString
	if rec.Summary != nil {
		data, err := json.Marshal(rec.Summary)
		if err != nil {
			return fmt.Errorf("%s: %w", config.ErrStoreSave, err)
		}
		summary = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, upsertRecord,
		locationID, summary, toUnixMilli(rec.LastAttempt), toUnixMilli(rec.LastUpdated), rec.LastError)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreSave, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toUnixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
