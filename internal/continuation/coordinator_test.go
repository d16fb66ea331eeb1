package continuation_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/flemzord/threadline/internal/continuation"
	"github.com/flemzord/threadline/internal/history"
	"github.com/flemzord/threadline/internal/model"
	"github.com/flemzord/threadline/internal/observability"
	"github.com/flemzord/threadline/internal/thread"
)

func newCoordinator(t *testing.T, store thread.Store) *continuation.Coordinator {
	t.Helper()

	catalog, err := model.NewCatalog("o3", map[string]int{"tiny": 64})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	return continuation.New(continuation.Config{
		Store:        store,
		Models:       catalog,
		Assembler:    history.NewAssembler(model.NewCharEstimator(4)),
		DefaultModel: "o3",
	})
}

func seedThread(t *testing.T, store thread.Store, toolName string, initial map[string]any, turns ...thread.Turn) *thread.Thread {
	t.Helper()

	th := thread.New(toolName, initial)
	if err := store.Create(context.Background(), th); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, turn := range turns {
		ok, err := store.AppendTurn(context.Background(), th.ID, turn)
		if err != nil || !ok {
			t.Fatalf("AppendTurn: ok=%v err=%v", ok, err)
		}
	}
	return th
}

func TestReconstructUnknownThread(t *testing.T) {
	t.Parallel()

	store := thread.NewInMemoryStore(thread.Limits{})
	coord := newCoordinator(t, store)

	_, err := coord.Reconstruct(context.Background(), continuation.Request{
		ContinuationID: "no-such-thread",
		Prompt:         "hello again",
		ReservedTokens: model.DefaultReservation,
	})

	var notFound *continuation.ThreadNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want ThreadNotFoundError", err)
	}
	if notFound.ID != "no-such-thread" {
		t.Errorf("notFound.ID = %q", notFound.ID)
	}
	if !strings.Contains(err.Error(), "without the continuation_id") {
		t.Errorf("error message lacks recovery guidance: %q", err.Error())
	}

	// A failed lookup must not create the thread as a side effect.
	if _, found, _ := store.Get(context.Background(), "no-such-thread"); found {
		t.Error("lookup miss created a thread")
	}
}

func TestReconstructEnlargesPrompt(t *testing.T) {
	t.Parallel()

	store := thread.NewInMemoryStore(thread.Limits{MaxTurns: 8})
	coord := newCoordinator(t, store)
	th := seedThread(t, store, "chat", nil,
		thread.Turn{Role: thread.RoleUser, Content: "what is a goroutine?"},
		thread.Turn{Role: thread.RoleAssistant, Content: "a lightweight thread managed by the runtime"},
	)

	res, err := coord.Reconstruct(context.Background(), continuation.Request{
		ContinuationID: th.ID,
		Prompt:         "how do they differ from OS threads?",
		ReservedTokens: model.DefaultReservation,
	})
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}

	if res.TurnCount != 3 {
		t.Errorf("TurnCount = %d, want 3", res.TurnCount)
	}
	for _, want := range []string{
		"=== CONVERSATION HISTORY (CONTINUATION) ===",
		"what is a goroutine?",
		"=== NEW USER INPUT ===",
		"how do they differ from OS threads?",
		"continuation_id",
	} {
		if !strings.Contains(res.Prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
	if idx := strings.Index(res.Prompt, "=== NEW USER INPUT ==="); idx < strings.Index(res.Prompt, "=== END HISTORY ===") {
		t.Error("new input separator appears before history footer")
	}

	if got := res.Args[continuation.KeyPrompt]; got != res.Prompt {
		t.Error("args prompt was not replaced with the enlarged prompt")
	}
	if got, ok := res.Args[continuation.KeyRemainingTokens].(int); !ok || got != res.RemainingTokens {
		t.Errorf("args %s = %v, want %d", continuation.KeyRemainingTokens, res.Args[continuation.KeyRemainingTokens], res.RemainingTokens)
	}
	if _, ok := res.Args[continuation.KeyModelContext].(*model.ModelContext); !ok {
		t.Errorf("args %s = %T, want *model.ModelContext", continuation.KeyModelContext, res.Args[continuation.KeyModelContext])
	}

	// The new user turn must be persisted, not just reflected locally.
	stored, found, err := store.Get(context.Background(), th.ID)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if len(stored.Turns) != 3 || stored.Turns[2].Content != "how do they differ from OS threads?" {
		t.Errorf("stored turns = %d, last = %+v", len(stored.Turns), stored.Turns[len(stored.Turns)-1])
	}
}

func TestReconstructInheritsInitialContext(t *testing.T) {
	t.Parallel()

	store := thread.NewInMemoryStore(thread.Limits{})
	coord := newCoordinator(t, store)
	th := seedThread(t, store, "chat", map[string]any{
		"model":         "gemini-2.5-pro",
		"temperature":   0.2,
		"thinking_mode": "high",
		"focus":         "security",
		"style":         "concise",
	}, thread.Turn{Role: thread.RoleUser, Content: "review this"})

	req, err := continuation.ParseRequest(map[string]any{
		"continuation_id": th.ID,
		"prompt":          "and the error paths?",
		"focus":           "error handling",
	})
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}

	res, err := coord.Reconstruct(context.Background(), req)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}

	// Absent, unprotected parameters are inherited.
	if got := res.Args["style"]; got != "concise" {
		t.Errorf("style = %v, want inherited %q", got, "concise")
	}
	// Explicit request values win over the initial context.
	if got := res.Args["focus"]; got != "error handling" {
		t.Errorf("focus = %v, want request value", got)
	}
	// Protected keys never flow from the initial context.
	for _, key := range []string{"model", "temperature", "thinking_mode"} {
		if _, present := res.Args[key]; present {
			t.Errorf("protected key %q inherited from initial context", key)
		}
	}
	// Inheritance must not default the model: the catalog default applies.
	if res.ModelContext.Name != "o3" {
		t.Errorf("model = %q, want default o3", res.ModelContext.Name)
	}
}

func TestReconstructAppendRejectionNonFatal(t *testing.T) {
	t.Parallel()

	store := thread.NewInMemoryStore(thread.Limits{MaxTurns: 2})
	coord := newCoordinator(t, store)
	th := seedThread(t, store, "chat", nil,
		thread.Turn{Role: thread.RoleUser, Content: "first"},
		thread.Turn{Role: thread.RoleAssistant, Content: "second"},
	)

	res, err := coord.Reconstruct(context.Background(), continuation.Request{
		ContinuationID: th.ID,
		Prompt:         "third, over the cap",
		ReservedTokens: model.DefaultReservation,
	})
	if err != nil {
		t.Fatalf("Reconstruct after rejected append: %v", err)
	}

	// The rejected turn is absent from both the count and the store.
	if res.TurnCount != 2 {
		t.Errorf("TurnCount = %d, want 2", res.TurnCount)
	}
	stored, _, _ := store.Get(context.Background(), th.ID)
	if len(stored.Turns) != 2 {
		t.Errorf("stored turns = %d, want 2", len(stored.Turns))
	}
	// At the cap the notice is terminal.
	if !strings.Contains(res.Prompt, "final exchange") {
		t.Error("prompt lacks the terminal notice at the turn cap")
	}
}

func TestReconstructFollowUpNotices(t *testing.T) {
	t.Parallel()

	mk := func(n int) []thread.Turn {
		turns := make([]thread.Turn, n)
		for i := range turns {
			role := thread.RoleUser
			if i%2 == 1 {
				role = thread.RoleAssistant
			}
			turns[i] = thread.Turn{Role: role, Content: "exchange"}
		}
		return turns
	}

	tests := []struct {
		name     string
		preTurns int
		want     string
	}{
		{"mid conversation", 2, "(4 exchanges remaining)"},
		{"penultimate turn", 6, "final exchange"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := thread.NewInMemoryStore(thread.Limits{MaxTurns: 8})
			coord := newCoordinator(t, store)
			th := seedThread(t, store, "chat", nil, mk(tt.preTurns)...)

			res, err := coord.Reconstruct(context.Background(), continuation.Request{
				ContinuationID: th.ID,
				Prompt:         "next",
				ReservedTokens: model.DefaultReservation,
			})
			if err != nil {
				t.Fatalf("Reconstruct: %v", err)
			}
			if !strings.Contains(res.Prompt, tt.want) {
				t.Errorf("prompt lacks %q with %d prior turns", tt.want, tt.preTurns)
			}
		})
	}
}

func TestReconstructUnknownModel(t *testing.T) {
	t.Parallel()

	store := thread.NewInMemoryStore(thread.Limits{})
	coord := newCoordinator(t, store)
	th := seedThread(t, store, "chat", nil, thread.Turn{Role: thread.RoleUser, Content: "hi"})

	_, err := coord.Reconstruct(context.Background(), continuation.Request{
		ContinuationID: th.ID,
		Prompt:         "continue",
		Model:          "nonexistent-model",
		ReservedTokens: model.DefaultReservation,
	})
	if !errors.Is(err, model.ErrModelNotFound) {
		t.Fatalf("err = %v, want ErrModelNotFound", err)
	}
}

func TestReconstructRemainingTokensClamped(t *testing.T) {
	t.Parallel()

	store := thread.NewInMemoryStore(thread.Limits{})
	coord := newCoordinator(t, store)
	// One turn far larger than tiny's 64-token window: the newest turn is
	// always included, so history alone exceeds the content budget.
	th := seedThread(t, store, "chat", nil,
		thread.Turn{Role: thread.RoleUser, Content: strings.Repeat("x", 2048)},
	)

	res, err := coord.Reconstruct(context.Background(), continuation.Request{
		ContinuationID: th.ID,
		Prompt:         "continue",
		Model:          "tiny",
		ReservedTokens: 0,
	})
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if res.RemainingTokens != 0 {
		t.Errorf("RemainingTokens = %d, want clamp to 0", res.RemainingTokens)
	}
	if got := res.Args[continuation.KeyRemainingTokens]; got != 0 {
		t.Errorf("args %s = %v, want 0", continuation.KeyRemainingTokens, got)
	}
}

func TestReconstructEmptyPromptSkipsAppend(t *testing.T) {
	t.Parallel()

	store := thread.NewInMemoryStore(thread.Limits{})
	coord := newCoordinator(t, store)
	th := seedThread(t, store, "chat", nil,
		thread.Turn{Role: thread.RoleUser, Content: "hi"},
		thread.Turn{Role: thread.RoleAssistant, Content: "hello", Timestamp: time.Now()},
	)

	res, err := coord.Reconstruct(context.Background(), continuation.Request{
		ContinuationID: th.ID,
		ReservedTokens: model.DefaultReservation,
	})
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if res.TurnCount != 2 {
		t.Errorf("TurnCount = %d, want 2 (no turn appended)", res.TurnCount)
	}
}

func TestReconstructRecordsMetrics(t *testing.T) {
	t.Parallel()

	store := thread.NewInMemoryStore(thread.Limits{})
	metrics := observability.NewMetrics()
	catalog, err := model.NewCatalog("o3", nil)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	coord := continuation.New(continuation.Config{
		Store:        store,
		Models:       catalog,
		Assembler:    history.NewAssembler(model.NewCharEstimator(4)),
		DefaultModel: "o3",
		Metrics:      metrics,
	})
	th := seedThread(t, store, "chat", nil, thread.Turn{Role: thread.RoleUser, Content: "hi"})

	if _, err := coord.Reconstruct(context.Background(), continuation.Request{
		ContinuationID: th.ID,
		Prompt:         "continue",
		ReservedTokens: model.DefaultReservation,
	}); err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if _, err := coord.Reconstruct(context.Background(), continuation.Request{
		ContinuationID: "missing",
		Prompt:         "continue",
		ReservedTokens: model.DefaultReservation,
	}); err == nil {
		t.Fatal("expected lookup failure")
	}

	if got := testutil.ToFloat64(metrics.ReconstructionsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("reconstructions ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ReconstructionsTotal.WithLabelValues("thread_not_found")); got != 1 {
		t.Errorf("reconstructions thread_not_found = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ThreadLookupsTotal.WithLabelValues("hit")); got != 1 {
		t.Errorf("lookups hit = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.TurnAppendsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("appends ok = %v, want 1", got)
	}
}
