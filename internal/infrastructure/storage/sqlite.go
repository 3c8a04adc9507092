package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/live_price_chart/internal/domain"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db      *sql.DB
	timeNow func() time.Time // For testing
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// The poll loop and HTTP handlers write from different goroutines.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, timeNow: time.Now}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS range_preferences (
			series TEXT PRIMARY KEY,
			range_key TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS status_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			series TEXT NOT NULL,
			kind TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_status_events_created_at ON status_events(created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

// PreferenceRepository Implementation

func (s *SQLiteStore) SaveRange(ctx context.Context, series string, key domain.RangeKey) error {
	query := `INSERT INTO range_preferences (series, range_key, updated_at)
			  VALUES (?, ?, ?)
			  ON CONFLICT(series) DO UPDATE SET
			  range_key=excluded.range_key,
			  updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, series, string(key), s.timeNow().UTC())
	return err
}

func (s *SQLiteStore) GetRange(ctx context.Context, series string) (domain.RangeKey, error) {
	row := s.db.QueryRowContext(ctx, `SELECT range_key FROM range_preferences WHERE series = ?`, series)

	var key string
	if err := row.Scan(&key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("range for %q: %w", series, ErrNotFound)
		}
		return "", err
	}
	return domain.RangeKey(key), nil
}

// StatusRepository Implementation

func (s *SQLiteStore) SaveStatus(ctx context.Context, evt domain.StatusEvent) error {
	at := evt.At
	if at.IsZero() {
		at = s.timeNow()
	}
	query := `INSERT INTO status_events (series, kind, severity, message, created_at)
			  VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		evt.Series, string(evt.Kind), string(evt.Severity), evt.Message, at.UnixMilli())
	return err
}

// ListStatus returns the newest events first.
func (s *SQLiteStore) ListStatus(ctx context.Context, limit int) ([]domain.StatusEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, series, kind, severity, message, created_at FROM status_events ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.StatusEvent{}
	for rows.Next() {
		var (
			e             domain.StatusEvent
			kind, sev     string
			createdMillis int64
		)
		if err := rows.Scan(&e.ID, &e.Series, &kind, &sev, &e.Message, &createdMillis); err != nil {
			return nil, err
		}
		e.Kind = domain.StatusKind(kind)
		e.Severity = domain.Severity(sev)
		e.At = time.UnixMilli(createdMillis).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) PruneStatus(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM status_events WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
