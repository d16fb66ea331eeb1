// Package sqlite implements a durable thread.Store backed by SQLite via
// modernc.org/sqlite (pure Go, no CGO). The backend enforces the TTL on
// the read path — expired threads are filtered out of every query — and
// relies on SQLite's serialized writes for the atomic check-and-append.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/threadline/internal/thread"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const busyTimeoutMillis = 5000

// Store is a SQLite-backed thread.Store.
type Store struct {
	db     *sql.DB
	limits thread.Limits
	logger *slog.Logger

	// now is the clock; overridable in tests to exercise expiry.
	now func() time.Time
}

// Compile-time interface check.
var _ thread.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and returns a
// Store bound to it. The database uses WAL mode, a 5 s busy timeout, and
// a single connection: SQLite serialises writes, and one connection keeps
// the guarded append statement atomic with respect to concurrent callers.
func Open(path string, limits thread.Limits, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		limits: limits.WithDefaults(),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Limits returns the bounds the store enforces.
func (s *Store) Limits() thread.Limits {
	return s.limits
}

// expiryCutoff returns the unix-millisecond creation time at or below
// which a thread counts as expired.
func (s *Store) expiryCutoff() int64 {
	return s.now().Add(-s.limits.TTL).UnixMilli()
}
