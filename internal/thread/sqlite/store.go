package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/threadline/internal/thread"
)

// Create persists a new thread together with any seed turns.
func (s *Store) Create(ctx context.Context, t *thread.Thread) error {
	if t == nil || t.ID == "" || t.CreatedAt.IsZero() {
		return thread.ErrInvalidThread
	}

	initialJSON, err := json.Marshal(t.InitialContext)
	if err != nil {
		return fmt.Errorf("sqlite: marshal initial_context: %w", err)
	}
	if t.InitialContext == nil {
		initialJSON = []byte("{}")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin create tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Expired rows may still be on disk until the sweeper runs; a reused
	// id is only a conflict while the old thread is reachable.
	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM threads WHERE id = ? AND created_at > ?", t.ID, s.expiryCutoff(),
	).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", thread.ErrThreadExists, t.ID)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("sqlite: check thread exists: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM turns WHERE thread_id = ?", t.ID); err != nil {
		return fmt.Errorf("sqlite: clear stale turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO threads (id, tool_name, created_at, initial_context)
		VALUES (?, ?, ?, ?)`,
		t.ID, t.ToolName, t.CreatedAt.UnixMilli(), string(initialJSON),
	); err != nil {
		return fmt.Errorf("sqlite: insert thread: %w", err)
	}

	for i, turn := range t.Turns {
		if err := insertTurn(ctx, tx, t.ID, i+1, turn); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit create: %w", err)
	}
	return nil
}

// Get returns a snapshot of the thread, or found=false when the id is
// unknown or the thread has expired.
func (s *Store) Get(ctx context.Context, id string) (*thread.Thread, bool, error) {
	var (
		t           thread.Thread
		createdAt   int64
		initialJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tool_name, created_at, initial_context
		FROM threads
		WHERE id = ? AND created_at > ?`,
		id, s.expiryCutoff(),
	).Scan(&t.ID, &t.ToolName, &createdAt, &initialJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sqlite: get thread: %w", err)
	}

	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	if initialJSON != "" && initialJSON != "{}" {
		if err := json.Unmarshal([]byte(initialJSON), &t.InitialContext); err != nil {
			return nil, false, fmt.Errorf("sqlite: unmarshal initial_context: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, files, created_at
		FROM turns
		WHERE thread_id = ?
		ORDER BY seq ASC`,
		id,
	)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: get turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			turn      thread.Turn
			role      string
			filesJSON string
			ts        int64
		)
		if err := rows.Scan(&role, &turn.Content, &filesJSON, &ts); err != nil {
			return nil, false, fmt.Errorf("sqlite: scan turn: %w", err)
		}
		turn.Role = thread.Role(role)
		turn.Timestamp = time.UnixMilli(ts).UTC()
		if filesJSON != "" && filesJSON != "[]" {
			if err := json.Unmarshal([]byte(filesJSON), &turn.Files); err != nil {
				return nil, false, fmt.Errorf("sqlite: unmarshal files: %w", err)
			}
		}
		t.Turns = append(t.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("sqlite: turn rows: %w", err)
	}

	return &t, true, nil
}

// AppendTurn appends via a single guarded INSERT: the existence, expiry,
// and turn-cap checks are part of the statement itself, so a racing
// append cannot observe a stale count. Zero rows affected means the
// guard failed — not-found, expired, or at the cap.
func (s *Store) AppendTurn(ctx context.Context, id string, turn thread.Turn) (bool, error) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now().UTC()
	}
	filesJSON, err := json.Marshal(turn.Files)
	if err != nil {
		return false, fmt.Errorf("sqlite: marshal files: %w", err)
	}
	if turn.Files == nil {
		filesJSON = []byte("[]")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (thread_id, seq, role, content, files, created_at)
		SELECT ?, COALESCE((SELECT MAX(seq) FROM turns WHERE thread_id = ?), 0) + 1, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM threads WHERE id = ? AND created_at > ?)
		  AND (SELECT COUNT(*) FROM turns WHERE thread_id = ?) < ?`,
		id, id,
		string(turn.Role), turn.Content, string(filesJSON), turn.Timestamp.UnixMilli(),
		id, s.expiryCutoff(),
		id, s.limits.MaxTurns,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: append turn: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: append turn rows affected: %w", err)
	}
	return n == 1, nil
}

// Sweep physically deletes expired threads and their turns, returning
// the number of threads removed. Expiry is already enforced on reads;
// sweeping keeps the database bounded on disk.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	cutoff := s.expiryCutoff()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin sweep tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM turns WHERE thread_id IN
			(SELECT id FROM threads WHERE created_at <= ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("sqlite: sweep turns: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM threads WHERE created_at <= ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: sweep threads: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: sweep rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit sweep: %w", err)
	}
	return int(n), nil
}

func insertTurn(ctx context.Context, tx *sql.Tx, threadID string, seq int, turn thread.Turn) error {
	filesJSON, err := json.Marshal(turn.Files)
	if err != nil {
		return fmt.Errorf("sqlite: marshal files: %w", err)
	}
	if turn.Files == nil {
		filesJSON = []byte("[]")
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (thread_id, seq, role, content, files, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		threadID, seq, string(turn.Role), turn.Content, string(filesJSON), turn.Timestamp.UnixMilli(),
	); err != nil {
		return fmt.Errorf("sqlite: insert turn: %w", err)
	}
	return nil
}
