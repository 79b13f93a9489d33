// Package sqlite keeps answers whose remote write failed in a local database
// file, so they survive a restart until the replayer delivers them.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"quizcat-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_answers (
    id        TEXT PRIMARY KEY,
    payload   TEXT NOT NULL,
    stored    INTEGER NOT NULL DEFAULT 0,
    attempts  INTEGER NOT NULL DEFAULT 0,
    queued_at INTEGER NOT NULL
);
`

// FallbackStore implements app.FallbackStore on SQLite.
type FallbackStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewFallbackStore(dbPath string) (*FallbackStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one writer keeps SQLite from returning SQLITE_BUSY under concurrent submits
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create fallback schema: %w", err)
	}
	return &FallbackStore{db: db, now: time.Now}, nil
}

func (s *FallbackStore) Close() error {
	return s.db.Close()
}

// Save parks p. Saving the same answer again bumps its attempt counter instead of duplicating it.
func (s *FallbackStore) Save(ctx context.Context, p domain.PendingAnswer) error {
	payload, err := json.Marshal(p.Record)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	stored := 0
	if p.Stored {
		stored = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_answers (id, payload, stored, queued_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, stored = excluded.stored, attempts = attempts + 1`,
		p.Record.ID, string(payload), stored, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("park answer: %w", err)
	}
	return nil
}

// Pending returns up to limit parked answers, oldest first.
func (s *FallbackStore) Pending(ctx context.Context, limit int) ([]domain.PendingAnswer, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT payload, stored FROM pending_answers ORDER BY queued_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending answers: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingAnswer
	for rows.Next() {
		var (
			payload string
			p       domain.PendingAnswer
		)
		if err := rows.Scan(&payload, &p.Stored); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &p.Record); err != nil {
			return nil, fmt.Errorf("decode pending answer: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *FallbackStore) Remove(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_answers WHERE id = ?`, id)
	return err
}

// Len reports how many answers are parked.
func (s *FallbackStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_answers`).Scan(&n)
	return n, err
}
