// Package thread defines the conversation thread data model and the
// bounded, expiring store contract that persists it. A thread is a
// short-lived conversation session identified by an opaque id; it holds
// the immutable context captured when the conversation began plus an
// ordered, size-capped sequence of turns.
package thread

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of the conversation produced a turn.
type Role string

// Role values for conversation turns.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one role-tagged message within a thread.
type Turn struct {
	Role      Role
	Content   string
	Files     []string
	Timestamp time.Time
}

// Thread is a persisted conversation session. InitialContext is captured
// once at creation and never mutated afterwards; Turns are appended in
// chronological order through the store only.
type Thread struct {
	ID             string
	ToolName       string
	CreatedAt      time.Time
	InitialContext map[string]any
	Turns          []Turn
}

// New creates a thread with a freshly generated opaque id. The initial
// context map is copied so later mutation by the caller cannot leak in.
func New(toolName string, initialContext map[string]any) *Thread {
	var ctx map[string]any
	if len(initialContext) > 0 {
		ctx = make(map[string]any, len(initialContext))
		for k, v := range initialContext {
			ctx[k] = v
		}
	}
	return &Thread{
		ID:             uuid.NewString(),
		ToolName:       toolName,
		CreatedAt:      time.Now().UTC(),
		InitialContext: ctx,
	}
}

// ExpiresAt returns the instant at which the thread becomes unreachable.
// The window is measured from creation; reads and appends do not slide it.
func (t *Thread) ExpiresAt(ttl time.Duration) time.Time {
	return t.CreatedAt.Add(ttl)
}

// Expired reports whether the thread's TTL has elapsed at the given instant.
func (t *Thread) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(t.ExpiresAt(ttl))
}

// Clone returns a deep copy. Stores hand out clones so callers hold
// request-scoped snapshots and can never mutate persisted state in place.
func (t *Thread) Clone() *Thread {
	c := &Thread{
		ID:        t.ID,
		ToolName:  t.ToolName,
		CreatedAt: t.CreatedAt,
	}
	if t.InitialContext != nil {
		c.InitialContext = make(map[string]any, len(t.InitialContext))
		for k, v := range t.InitialContext {
			c.InitialContext[k] = v
		}
	}
	if len(t.Turns) > 0 {
		c.Turns = make([]Turn, len(t.Turns))
		copy(c.Turns, t.Turns)
		for i := range c.Turns {
			if len(t.Turns[i].Files) > 0 {
				c.Turns[i].Files = append([]string(nil), t.Turns[i].Files...)
			}
		}
	}
	return c
}
