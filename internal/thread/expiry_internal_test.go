package thread

import (
	"context"
	"testing"
	"time"
)

// Expiry tests run inside the package so the clock can be replaced.

func TestInMemoryStore_ExpiredThreadBehavesLikeUnknown(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store := NewInMemoryStore(Limits{TTL: time.Hour})
	store.now = func() time.Time { return clock }

	th := &Thread{ID: "exp", ToolName: "chat", CreatedAt: base}
	if err := store.Create(context.Background(), th); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// One second before expiry: still reachable.
	clock = base.Add(time.Hour - time.Second)
	if _, found, _ := store.Get(context.Background(), "exp"); !found {
		t.Fatal("Get() before expiry found = false, want true")
	}

	// At the expiry boundary the thread is gone; the window is fixed from
	// creation, so the earlier read must not have slid it.
	clock = base.Add(time.Hour)
	if _, found, _ := store.Get(context.Background(), "exp"); found {
		t.Error("Get() at expiry found = true, want false")
	}

	ok, err := store.AppendTurn(context.Background(), "exp", Turn{Role: RoleUser, Content: "late"})
	if err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if ok {
		t.Error("AppendTurn() on expired thread = true, want false")
	}
}

func TestInMemoryStore_SweepRemovesOnlyExpired(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store := NewInMemoryStore(Limits{TTL: time.Hour})
	store.now = func() time.Time { return clock }

	old := &Thread{ID: "old", ToolName: "chat", CreatedAt: base}
	fresh := &Thread{ID: "fresh", ToolName: "chat", CreatedAt: base.Add(30 * time.Minute)}
	for _, th := range []*Thread{old, fresh} {
		if err := store.Create(context.Background(), th); err != nil {
			t.Fatalf("Create(%s) error = %v", th.ID, err)
		}
	}

	clock = base.Add(61 * time.Minute)
	removed, err := store.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep() removed = %d, want 1", removed)
	}
	if _, found, _ := store.Get(context.Background(), "fresh"); !found {
		t.Error("Sweep() removed an unexpired thread")
	}
}

func TestThread_ExpiryWindowIsFixedFromCreation(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	th := &Thread{ID: "x", CreatedAt: created}

	if th.Expired(created.Add(59*time.Minute), time.Hour) {
		t.Error("Expired() before the window elapsed = true")
	}
	if !th.Expired(created.Add(time.Hour), time.Hour) {
		t.Error("Expired() at the window boundary = false")
	}
}
