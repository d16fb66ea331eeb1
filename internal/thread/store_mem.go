package thread

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryStore is a thread-safe, in-memory Store. It is the default
// backend for single-process deployments and the reference implementation
// for the store contract; the SQLite backend provides durability.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*Thread
	limits  Limits

	// now is the clock; overridable in tests to exercise expiry.
	now func() time.Time
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store with the given limits.
func NewInMemoryStore(limits Limits) *InMemoryStore {
	return &InMemoryStore{
		threads: make(map[string]*Thread),
		limits:  limits.WithDefaults(),
		now:     time.Now,
	}
}

// Create persists a new thread.
func (s *InMemoryStore) Create(_ context.Context, t *Thread) error {
	if t == nil || t.ID == "" || t.CreatedAt.IsZero() {
		return ErrInvalidThread
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.threads[t.ID]; ok && !existing.Expired(s.now(), s.limits.TTL) {
		return fmt.Errorf("%w: %s", ErrThreadExists, t.ID)
	}
	s.threads[t.ID] = t.Clone()
	return nil
}

// Get returns a snapshot of the thread, or found=false when the id is
// unknown or expired.
func (s *InMemoryStore) Get(_ context.Context, id string) (*Thread, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[id]
	if !ok || t.Expired(s.now(), s.limits.TTL) {
		return nil, false, nil
	}
	return t.Clone(), true, nil
}

// AppendTurn appends under the store lock, which serializes concurrent
// appends for the same id: the count check and the append are a single
// critical section, so no two racing appends can both pass the cap.
func (s *InMemoryStore) AppendTurn(_ context.Context, id string, turn Turn) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok || t.Expired(s.now(), s.limits.TTL) {
		return false, nil
	}
	if len(t.Turns) >= s.limits.MaxTurns {
		return false, nil
	}

	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now().UTC()
	}
	if len(turn.Files) > 0 {
		turn.Files = append([]string(nil), turn.Files...)
	}
	t.Turns = append(t.Turns, turn)
	return true, nil
}

// Limits returns the bounds the store enforces.
func (s *InMemoryStore) Limits() Limits {
	return s.limits
}

// Sweep removes expired threads and returns how many were dropped.
// Expiry is already enforced on the read path; sweeping just reclaims
// memory for threads nobody will ever see again.
func (s *InMemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, t := range s.threads {
		if t.Expired(now, s.limits.TTL) {
			delete(s.threads, id)
			removed++
		}
	}
	return removed, nil
}
