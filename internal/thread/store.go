package thread

import (
	"context"
	"errors"
	"time"
)

// Default bounds for thread storage. Both are configuration points; the
// TTL is fixed from creation (non-sliding) and the turn cap is enforced
// atomically on append.
const (
	DefaultTTL      = time.Hour
	DefaultMaxTurns = 20
)

// Sentinel errors for store operations. Note that an unknown or expired
// id on Get/AppendTurn is NOT an error — absence is a normal outcome
// reported through the boolean return.
var (
	// ErrThreadExists indicates Create was called with an id already in use.
	ErrThreadExists = errors.New("thread already exists")

	// ErrInvalidThread indicates Create was called with a thread missing
	// required fields (empty id or zero creation time).
	ErrInvalidThread = errors.New("invalid thread")
)

// Limits bounds thread storage.
type Limits struct {
	// TTL is the expiry window measured from thread creation.
	TTL time.Duration

	// MaxTurns caps the number of turns per thread. Appends that would
	// exceed it are rejected, never truncated.
	MaxTurns int
}

// WithDefaults returns a copy with zero fields replaced by defaults.
func (l Limits) WithDefaults() Limits {
	if l.TTL <= 0 {
		l.TTL = DefaultTTL
	}
	if l.MaxTurns <= 0 {
		l.MaxTurns = DefaultMaxTurns
	}
	return l
}

// Store persists conversation threads. Implementations must be safe for
// concurrent use and must serialize appends per thread id so the turn
// order is well-defined and the turn cap is enforced exactly.
//
// Expired threads behave identically to unknown ids on every operation.
type Store interface {
	// Create persists a new thread. Threads are originated by the tool
	// layer before a continuation ever references them; the continuation
	// coordinator itself never creates threads.
	Create(ctx context.Context, t *Thread) error

	// Get returns a snapshot of the thread, or found=false if the id is
	// unknown or the thread has expired. The error return is reserved for
	// backend I/O failures.
	Get(ctx context.Context, id string) (t *Thread, found bool, err error)

	// AppendTurn atomically appends a turn if and only if the thread
	// exists, is unexpired, and holds fewer than MaxTurns turns. It
	// returns ok=false — not an error — when any of those conditions
	// fails, leaving the persisted state untouched.
	AppendTurn(ctx context.Context, id string, turn Turn) (ok bool, err error)

	// Limits returns the bounds the store enforces.
	Limits() Limits
}
