package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/okian/mimic/internal/domain/model"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

// SQLiteStore is an append-only event log. Each Append inserts the batch in
// one transaction, so the cost of a flush does not grow with the log and a
// crash mid-batch rolls back to the previous commit.
type SQLiteStore struct {
	db   *sql.DB
	path string

	// mu guards count, the number of stored events. It is read from the
	// table once at open and kept current by Reset and Append.
	mu    sync.Mutex
	count int
}

// OpenSQLiteStore opens or creates the log at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// One writer; readers serialize through the persister anyway.
	db.SetMaxOpenConns(1)

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("count stored events: %w", err)
	}
	return &SQLiteStore{db: db, path: path, count: count}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS events(
	  seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	  session    TEXT    NOT NULL,
	  event_id   INTEGER NOT NULL,
	  kind       INTEGER NOT NULL,
	  side       INTEGER NOT NULL,
	  x          INTEGER NOT NULL,
	  y          INTEGER NOT NULL,
	  elapsed_ms INTEGER NOT NULL CHECK (elapsed_ms >= 0)
	);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session);
	`)
	if err != nil {
		return fmt.Errorf("create event tables: %w", err)
	}
	return nil
}

// Reset implements Store.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("%w: reset: %w", ErrWrite, err)
	}
	s.count = 0
	return nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, batch model.Batch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", ErrWrite, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events(session, event_id, kind, side, x, y, elapsed_ms) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("%w: prepare: %w", ErrWrite, err)
	}
	defer stmt.Close()

	for _, e := range batch.Events {
		if _, err := stmt.ExecContext(ctx, batch.Session, e.ID, int(e.Kind), int(e.Side), e.X, e.Y, e.ElapsedMS); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("%w: insert event %d: %w", ErrWrite, e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", ErrWrite, err)
	}
	s.count += batch.Len()
	return s.count, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, kind, side, x, y, elapsed_ms FROM events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrCorrupt, err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var (
			e          model.Event
			kind, side int
		)
		if err := rows.Scan(&e.ID, &kind, &side, &e.X, &e.Y, &e.ElapsedMS); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrCorrupt, err)
		}
		if kind < 0 || kind > 255 || side < 0 || side > 255 {
			return nil, fmt.Errorf("%w: row %d out of range", ErrCorrupt, e.ID)
		}
		e.Kind, e.Side = model.Kind(kind), model.Side(side)
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrCorrupt, e.ID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return events, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
