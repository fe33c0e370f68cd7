// Package sqlstore persists readings in a single local SQLite file,
// keyed for uniqueness on the source entry id.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amu255/nightscout-cgm-skill/cgm/defs"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id TEXT PRIMARY KEY,
	sgv INTEGER NOT NULL,
	date_ms INTEGER NOT NULL,
	date_string TEXT NOT NULL,
	trend INTEGER,
	direction TEXT,
	device TEXT
);

CREATE INDEX IF NOT EXISTS idx_readings_date ON readings(date_ms);
`

// ReadingStore is the persistence surface the engine depends on.
type ReadingStore interface {
	InsertBatch(ctx context.Context, readings []defs.Reading) (int, error)
	Readings(ctx context.Context, q Query) ([]defs.Reading, error)
	RowCount(ctx context.Context) (int, error)
}

// Query selects readings with date_ms in [StartMs, EndMs), optionally
// narrowed to one weekday and/or an inclusive local hour range. Weekday
// and hour are judged in the store's location, not UTC.
type Query struct {
	StartMs    int64
	EndMs      int64
	Weekday    *time.Weekday
	HourStart  *int
	HourEnd    *int
	Descending bool
}

type Store struct {
	db       *sql.DB
	location *time.Location
	logger   *zap.Logger
}

// Open opens or creates the database file and applies the schema.
// Safe to call against an existing database.
func Open(path string, loc *time.Location, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("unable to create data directory: %w", err)
		}
	}
	return open(path, loc, logger)
}

// OpenMemory opens a throwaway in-memory store.
func OpenMemory(loc *time.Location, logger *zap.Logger) (*Store, error) {
	return open(":memory:", loc, logger)
}

func open(dsn string, loc *time.Location, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("unable to execute %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to apply schema: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}

	return &Store{db: db, location: loc, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InsertBatch writes the readings in one transaction, skipping any whose
// id is already stored. Returns the number of rows actually written.
func (s *Store) InsertBatch(ctx context.Context, readings []defs.Reading) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("unable to begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO readings (id, sgv, date_ms, date_string, trend, direction, device)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("unable to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range readings {
		res, err := stmt.ExecContext(ctx,
			r.ID, r.SGV, r.DateMs, r.DateString, r.Trend, r.Direction, r.Device)
		if err != nil {
			return 0, fmt.Errorf("unable to insert reading %s: %w", r.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("unable to commit insert: %w", err)
	}

	s.logger.Debug("inserted readings",
		zap.Int("batch", len(readings)),
		zap.Int("new", inserted),
	)
	return inserted, nil
}

// Readings returns matching rows ordered by date_ms.
func (s *Store) Readings(ctx context.Context, q Query) ([]defs.Reading, error) {
	order := "ASC"
	if q.Descending {
		order = "DESC"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sgv, date_ms, date_string, trend, direction, device
		FROM readings
		WHERE date_ms >= ? AND date_ms < ?
		ORDER BY date_ms `+order,
		q.StartMs, q.EndMs)
	if err != nil {
		return nil, fmt.Errorf("unable to query readings: %w", err)
	}
	defer rows.Close()

	var out []defs.Reading
	for rows.Next() {
		var r defs.Reading
		if err := rows.Scan(&r.ID, &r.SGV, &r.DateMs, &r.DateString, &r.Trend, &r.Direction, &r.Device); err != nil {
			return nil, fmt.Errorf("unable to scan reading: %w", err)
		}
		if s.matches(r, q) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

// matches applies the wall-clock filters, which depend on the injected
// location and so stay out of the SQL.
func (s *Store) matches(r defs.Reading, q Query) bool {
	local := r.Time().In(s.location)
	if q.Weekday != nil && local.Weekday() != *q.Weekday {
		return false
	}
	if q.HourStart != nil && local.Hour() < *q.HourStart {
		return false
	}
	if q.HourEnd != nil && local.Hour() > *q.HourEnd {
		return false
	}
	return true
}

func (s *Store) RowCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM readings").Scan(&count); err != nil {
		return 0, fmt.Errorf("unable to count readings: %w", err)
	}
	return count, nil
}

// Location is the wall-clock context the store filters by.
func (s *Store) Location() *time.Location {
	return s.location
}
