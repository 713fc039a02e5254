// Package sqlite provides a SQLite-backed EventStore. Events are stored as
// JSON documents keyed by UID, with the columns needed for window queries
// and the sequence compare-and-swap kept relational.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pverga/libitip/calendar"
	"github.com/pverga/libitip/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	uid        TEXT PRIMARY KEY,
	sequence   INTEGER NOT NULL,
	changed_ms INTEGER NOT NULL,
	start_ms   INTEGER NOT NULL,
	end_ms     INTEGER NOT NULL,
	recurring  INTEGER NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT '',
	payload    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS events_window ON events (start_ms, end_ms);
`

// Store persists events in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite event store and creates the schema when missing.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Get(ctx context.Context, uid string) (*calendar.Event, error) {
	var payload []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload FROM events WHERE uid = ?`, uid).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, calendar.NewError(calendar.KindNotFound, "event %s not found", uid)
	}
	if err != nil {
		return nil, fmt.Errorf("query event %s: %w", uid, err)
	}
	return decodeEvent(payload)
}

func (s *Store) PutIfSequence(ctx context.Context, ev *calendar.Event, expectedSequence int) error {
	if ev == nil || ev.UID == "" {
		return calendar.NewError(calendar.KindValidation, "cannot store event without UID")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.UID, err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT sequence FROM events WHERE uid = ?`, ev.UID).Scan(&stored)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read sequence for %s: %w", ev.UID, err)
	}

	switch {
	case !exists && expectedSequence != 0:
		return calendar.NewError(calendar.KindStaleWrite,
			"event %s expected at sequence %d but is absent", ev.UID, expectedSequence)
	case exists && expectedSequence == 0:
		return calendar.NewError(calendar.KindStaleWrite,
			"event %s already exists at sequence %d", ev.UID, stored.Int64)
	case exists && stored.Int64 != int64(expectedSequence):
		return calendar.NewError(calendar.KindStaleWrite,
			"event %s is at sequence %d, expected %d", ev.UID, stored.Int64, expectedSequence)
	}

	recurring := 0
	if ev.IsRecurring() {
		recurring = 1
	}
	if exists {
		_, err = tx.ExecContext(ctx, `
			UPDATE events
			SET sequence = ?, changed_ms = ?, start_ms = ?, end_ms = ?,
			    recurring = ?, status = ?, payload = ?
			WHERE uid = ? AND sequence = ?`,
			ev.Sequence, toMillis(ev.Changed), toMillis(ev.Start), toMillis(ev.End),
			recurring, string(ev.Status), payload, ev.UID, expectedSequence)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (uid, sequence, changed_ms, start_ms, end_ms, recurring, status, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.UID, ev.Sequence, toMillis(ev.Changed), toMillis(ev.Start), toMillis(ev.End),
			recurring, string(ev.Status), payload)
	}
	if err != nil {
		return fmt.Errorf("write event %s: %w", ev.UID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event %s: %w", ev.UID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, uid string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM events WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", uid, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event %s: %w", uid, err)
	}
	if affected == 0 {
		return calendar.NewError(calendar.KindNotFound, "event %s not found", uid)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q storage.Query) ([]*calendar.Event, error) {
	where := []string{"1=1"}
	var args []any
	if !q.End.IsZero() {
		where = append(where, "start_ms < ?")
		args = append(args, toMillis(q.End))
	}
	if !q.Start.IsZero() {
		where = append(where, "(end_ms > ? OR recurring = 1)")
		args = append(args, toMillis(q.Start))
	}
	if !q.IncludeCancelled {
		where = append(where, "status != ?")
		args = append(args, string(calendar.StatusCancelled))
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT payload FROM events WHERE `+strings.Join(where, " AND ")+` ORDER BY start_ms`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*calendar.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := decodeEvent(payload)
		if err != nil {
			return nil, err
		}
		if q.Matches(ev) {
			out = append(out, ev)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func decodeEvent(payload []byte) (*calendar.Event, error) {
	var ev calendar.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	return &ev, nil
}
