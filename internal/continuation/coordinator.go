// Package continuation reconstructs conversation context for follow-up
// tool calls. The coordinator is the sole entry point for turning a
// continuation_id-bearing request into a self-contained, history-enriched
// request ready for dispatch.
package continuation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flemzord/threadline/internal/history"
	"github.com/flemzord/threadline/internal/model"
	"github.com/flemzord/threadline/internal/observability"
	"github.com/flemzord/threadline/internal/thread"
)

// newInputSeparator marks where history ends and the current turn's
// input begins inside the enlarged prompt.
const newInputSeparator = "=== NEW USER INPUT ==="

// Config wires a Coordinator.
type Config struct {
	Store        thread.Store
	Models       model.Resolver
	Assembler    *history.Assembler
	DefaultModel string
	Logger       *slog.Logger
	Metrics      *observability.Metrics
	Tracer       trace.Tracer
}

// Result is the enlarged argument set a reconstructed request yields.
type Result struct {
	// Prompt is the history-prefixed replacement for the caller's prompt.
	Prompt string

	// RemainingTokens is the non-negative content budget left for files
	// and additional input after history consumed its share.
	RemainingTokens int

	// ModelContext is the resolved budget handle for downstream reuse.
	ModelContext *model.ModelContext

	// Args is the full enlarged argument map: original arguments,
	// inherited initial-context fields, the replaced prompt, and the
	// engine-provided keys.
	Args map[string]any

	// TurnCount is the thread's turn count after this request's append.
	TurnCount int
}

// Coordinator composes the thread store, budget calculator, and history
// assembler into the continuation-reconstruction protocol. It holds no
// state of its own between requests.
type Coordinator struct {
	store        thread.Store
	models       model.Resolver
	assembler    *history.Assembler
	defaultModel string
	logger       *slog.Logger
	metrics      *observability.Metrics
	tracer       trace.Tracer
}

// New creates a Coordinator. Logger, Metrics, and Tracer are optional;
// correctness never depends on any of them.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Coordinator{
		store:        cfg.Store,
		models:       cfg.Models,
		assembler:    cfg.Assembler,
		defaultModel: cfg.DefaultModel,
		logger:       logger,
		metrics:      cfg.Metrics,
		tracer:       tracer,
	}
}

// Reconstruct runs the single-pass continuation protocol:
//
//  1. look the thread up — a miss is the only thread-related fatal outcome
//  2. append the new user turn, tolerating rejection
//  3. resolve the model and its token allocation
//  4. assemble bounded history under the content budget
//  5. derive follow-up instructions from the turn count
//  6. compose the enlarged prompt
//  7. inherit unprotected initial-context parameters
//  8. clamp the remaining content budget
//
// Every failure is returned as a structured error; nothing panics across
// this boundary.
func (c *Coordinator) Reconstruct(ctx context.Context, req Request) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "continuation.reconstruct",
		trace.WithAttributes(attribute.String("thread.id", req.ContinuationID)))
	defer span.End()

	// Step 1: lookup. Unknown and expired ids are indistinguishable by
	// design; both tell the caller to restart without the id.
	t, found, err := c.store.Get(ctx, req.ContinuationID)
	if err != nil {
		c.metrics.ObserveReconstruction("error", 0, 0)
		return nil, fmt.Errorf("continuation: thread lookup: %w", err)
	}
	c.metrics.ObserveLookup(found)
	if !found {
		c.logger.Warn("continuation thread not found", "thread", req.ContinuationID)
		c.metrics.ObserveReconstruction("thread_not_found", 0, 0)
		return nil, &ThreadNotFoundError{ID: req.ContinuationID}
	}

	// Step 2: append the user's new input. Rejection (turn cap reached,
	// or a lost race) is logged and counted but never fatal — history is
	// rebuilt from whatever is persisted.
	if req.Prompt != "" {
		turn := thread.Turn{Role: thread.RoleUser, Content: req.Prompt, Files: req.Files}
		ok, err := c.store.AppendTurn(ctx, req.ContinuationID, turn)
		if err != nil {
			c.metrics.ObserveReconstruction("error", 0, 0)
			return nil, fmt.Errorf("continuation: append turn: %w", err)
		}
		c.metrics.ObserveAppend(ok)
		if ok {
			// Extend the request-scoped snapshot to match what the
			// store just committed.
			t.Turns = append(t.Turns, turn)
		} else {
			c.logger.Warn("user turn rejected, continuing without it",
				"thread", t.ID,
				"turns", len(t.Turns),
			)
		}
	}

	// Step 3: resolve the model and split its capacity.
	name := req.Model
	if name == "" {
		name = c.defaultModel
	}
	mc, err := model.NewContext(c.models, name, req.ReservedTokens)
	if err != nil {
		status := "error"
		if errors.Is(err, model.ErrModelNotFound) {
			status = "model_not_found"
		}
		c.metrics.ObserveReconstruction(status, 0, 0)
		return nil, fmt.Errorf("continuation: %w", err)
	}
	span.SetAttributes(
		attribute.String("model.name", mc.Name),
		attribute.Int("model.content_tokens", mc.Allocation.Content),
	)

	// Step 4: bounded history.
	historyText, historyTokens := c.assembler.Build(t, mc.Allocation.Content)

	// Step 5: follow-up instructions from the post-append turn count.
	followUp := FollowUp(len(t.Turns), c.store.Limits().MaxTurns)

	// Step 6: enlarged prompt.
	var b strings.Builder
	if historyText != "" {
		b.WriteString(historyText)
		b.WriteString("\n\n")
		b.WriteString(newInputSeparator)
		b.WriteString("\n")
	}
	b.WriteString(req.Prompt)
	b.WriteString("\n\n")
	b.WriteString(followUp)
	prompt := b.String()

	// Steps 7-8: inherit initial context, clamp the leftover budget.
	args := req.args()
	inherited := mergeInitialContext(args, t.InitialContext)

	remaining := mc.Allocation.Content - historyTokens
	if remaining < 0 {
		remaining = 0
	}

	args[KeyPrompt] = prompt
	args[KeyRemainingTokens] = remaining
	args[KeyModelContext] = mc
	args[KeyTurnCount] = len(t.Turns)

	c.metrics.ObserveReconstruction("ok", historyTokens, remaining)
	c.logger.Info("conversation context reconstructed",
		"thread", t.ID,
		"turns", len(t.Turns),
		"model", mc.Name,
		"history_tokens", historyTokens,
		"remaining_tokens", remaining,
		"inherited", len(inherited),
	)

	return &Result{
		Prompt:          prompt,
		RemainingTokens: remaining,
		ModelContext:    mc,
		Args:            args,
		TurnCount:       len(t.Turns),
	}, nil
}
