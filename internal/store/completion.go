// Package store persists per-subtask completion flags locally so completed
// steps render as completed across process restarts, independent of backend
// reachability.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// CompletionStore is the local completion cache. Flags are written after a
// completion is accepted and cleared only explicitly.
type CompletionStore struct {
	db *sql.DB
}

// OpenCompletionStore opens (and creates if needed) the store at dbPath.
func OpenCompletionStore(dbPath string) (*CompletionStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &CompletionStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *CompletionStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS completions (
  subtask_id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  completed_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create completions table: %w", err)
	}
	return nil
}

// MarkCompleted records a completion. Re-marking an already completed
// subtask keeps the original timestamp.
func (s *CompletionStore) MarkCompleted(ctx context.Context, subtaskID, sessionID string) error {
	const stmt = `
INSERT INTO completions (subtask_id, session_id, completed_at)
VALUES (?, ?, ?)
ON CONFLICT(subtask_id) DO NOTHING;
`
	_, err := s.db.ExecContext(ctx, stmt,
		subtaskID,
		sessionID,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// IsCompleted reports whether the subtask has a completion flag.
func (s *CompletionStore) IsCompleted(ctx context.Context, subtaskID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM completions WHERE subtask_id = ?`, subtaskID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query completion: %w", err)
	}
	return true, nil
}

// CompletedIDs returns all flagged subtask ids.
func (s *CompletionStore) CompletedIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subtask_id FROM completions ORDER BY completed_at`)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return ids, nil
}

// Clear removes all completion flags.
func (s *CompletionStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM completions`); err != nil {
		return fmt.Errorf("clear completions: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *CompletionStore) Close() error {
	return s.db.Close()
}
