package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/flemzord/threadline/internal/continuation"
	"github.com/flemzord/threadline/internal/model"
	"github.com/flemzord/threadline/internal/thread"
)

// Responder produces the assistant's reply for a chat exchange. The
// engine treats providers as pluggable: the chat tool handles thread
// lifecycle and budgets, the responder handles generation.
type Responder interface {
	Respond(ctx context.Context, prompt string, mc *model.ModelContext) (string, error)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, prompt string, mc *model.ModelContext) (string, error)

// Respond implements Responder.
func (f ResponderFunc) Respond(ctx context.Context, prompt string, mc *model.ModelContext) (string, error) {
	return f(ctx, prompt, mc)
}

const chatSchema = `{
  "type": "object",
  "properties": {
    "prompt": {
      "type": "string",
      "description": "The message to send. On follow-up calls this is the new input only; prior history is reconstructed server-side."
    },
    "files": {
      "type": "array",
      "items": {"type": "string"},
      "description": "File paths referenced by this message."
    },
    "model": {
      "type": "string",
      "description": "Model to use for this exchange. Defaults to the configured model."
    },
    "temperature": {
      "type": "number",
      "description": "Sampling temperature override."
    },
    "thinking_mode": {
      "type": "string",
      "description": "Reasoning depth override."
    },
    "continuation_id": {
      "type": "string",
      "description": "Thread id from a previous response. Supply it to continue that conversation."
    }
  },
  "required": ["prompt"]
}`

// ChatTool is the conversational entry point. A call without a
// continuation_id originates a new thread; a call with one arrives here
// after reconstruction with an enlarged prompt. With a responder wired
// the tool records the assistant's reply; without one it relays the
// reconstructed prompt to the caller for completion and records nothing
// the engine never observed. Either way the thread id is offered back.
type ChatTool struct {
	store     thread.Store
	models    model.Resolver
	defModel  string
	responder Responder
	logger    *slog.Logger
}

// Compile-time interface check.
var _ Tool = (*ChatTool)(nil)

// NewChatTool creates the chat tool. responder may be nil, which
// selects relay mode: the caller owns the model and the engine only
// owns the conversation state.
func NewChatTool(store thread.Store, models model.Resolver, defaultModel string, responder Responder, logger *slog.Logger) *ChatTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatTool{
		store:     store,
		models:    models,
		defModel:  defaultModel,
		responder: responder,
		logger:    logger,
	}
}

// Name implements Tool.
func (c *ChatTool) Name() string { return "chat" }

// Description implements Tool.
func (c *ChatTool) Description() string {
	return "General conversation and collaborative thinking. Supports multi-turn threads via continuation_id."
}

// Schema implements Tool.
func (c *ChatTool) Schema() json.RawMessage { return json.RawMessage(chatSchema) }

// Execute implements Tool.
func (c *ChatTool) Execute(ctx context.Context, args map[string]any) (Output, error) {
	req, err := continuation.ParseRequest(args)
	if err != nil {
		return Output{}, err
	}
	if req.Prompt == "" {
		return Output{}, fmt.Errorf("chat: prompt is required")
	}

	// Resolve the model before touching the store so an unknown model
	// cannot leave an orphan thread behind.
	mc, err := c.modelContext(args, req)
	if err != nil {
		return Output{}, fmt.Errorf("chat: %w", err)
	}

	threadID := req.ContinuationID
	turnCount := 0

	if threadID == "" {
		// New conversation: capture the request parameters as the
		// thread's initial context, then record the opening turn.
		th := thread.New(c.Name(), initialContext(req))
		if err := c.store.Create(ctx, th); err != nil {
			return Output{}, fmt.Errorf("chat: create thread: %w", err)
		}
		threadID = th.ID

		ok, err := c.store.AppendTurn(ctx, threadID, thread.Turn{
			Role:    thread.RoleUser,
			Content: req.Prompt,
			Files:   req.Files,
		})
		if err != nil {
			return Output{}, fmt.Errorf("chat: record user turn: %w", err)
		}
		if ok {
			turnCount++
		}
		c.logger.Info("conversation thread created", "thread", threadID)
	} else if count, ok := args[continuation.KeyTurnCount].(int); ok {
		turnCount = count
	}

	// Relay mode: no responder means the caller completes the prompt.
	// Nothing is persisted — the engine never observed a reply, and the
	// reconstructed prompt must not masquerade as one.
	if c.responder == nil {
		return Output{
			Content:        req.Prompt,
			ContinuationID: threadID,
			RemainingTurns: c.remainingTurns(turnCount),
		}, nil
	}

	answer, err := c.responder.Respond(ctx, req.Prompt, mc)
	if err != nil {
		return Output{}, fmt.Errorf("chat: generate response: %w", err)
	}

	// Record the assistant's reply. Rejection means the thread filled up
	// or expired mid-flight; the reply is still returned.
	ok, err := c.store.AppendTurn(ctx, threadID, thread.Turn{
		Role:    thread.RoleAssistant,
		Content: answer,
	})
	if err != nil {
		return Output{}, fmt.Errorf("chat: record assistant turn: %w", err)
	}
	if ok {
		turnCount++
	} else {
		c.logger.Warn("assistant turn rejected", "thread", threadID, "turns", turnCount)
	}

	return Output{
		Content:        answer,
		ContinuationID: threadID,
		RemainingTurns: c.remainingTurns(turnCount),
	}, nil
}

// remainingTurns reports how many further exchanges the thread accepts.
func (c *ChatTool) remainingTurns(turnCount int) int {
	remaining := c.store.Limits().MaxTurns - turnCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// modelContext returns the budget handle for this exchange, reusing the
// one reconstruction computed when present.
func (c *ChatTool) modelContext(args map[string]any, req continuation.Request) (*model.ModelContext, error) {
	if mc, ok := args[continuation.KeyModelContext].(*model.ModelContext); ok && mc != nil {
		return mc, nil
	}

	name := req.Model
	if name == "" {
		name = c.defModel
	}
	return model.NewContext(c.models, name, req.ReservedTokens)
}

// initialContext captures the originating request's parameters so later
// turns can inherit them. The prompt and files belong to the turn, not
// the thread.
func initialContext(req continuation.Request) map[string]any {
	ctx := make(map[string]any, len(req.Extra)+3)
	for k, v := range req.Extra {
		ctx[k] = v
	}
	if req.Model != "" {
		ctx[continuation.KeyModel] = req.Model
	}
	if req.Temperature != nil {
		ctx[continuation.KeyTemperature] = *req.Temperature
	}
	if req.ThinkingMode != "" {
		ctx[continuation.KeyThinkingMode] = req.ThinkingMode
	}
	return ctx
}
