package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/threadline/internal/continuation"
	"github.com/flemzord/threadline/internal/model"
	"github.com/flemzord/threadline/internal/tool"
)

// Dispatcher routes a tool call through reconstruction when it carries a
// continuation_id, then executes the tool with the (possibly enlarged)
// arguments. It is transport-agnostic so the routing logic is testable
// without an MCP session.
type Dispatcher struct {
	registry    *tool.Registry
	coordinator *continuation.Coordinator
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(registry *tool.Registry, coordinator *continuation.Coordinator, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:    registry,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Dispatch executes the named tool. Requests with a continuation_id are
// reconstructed first; the tool then receives the enlarged argument set
// and never knows the conversation was stateless.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (tool.Output, error) {
	req, err := continuation.ParseRequest(args)
	if err != nil {
		return tool.Output{}, err
	}

	if req.ContinuationID != "" {
		res, err := d.coordinator.Reconstruct(ctx, req)
		if err != nil {
			return tool.Output{}, err
		}
		args = res.Args
		d.logger.Debug("request reconstructed",
			"tool", name,
			"thread", req.ContinuationID,
			"turns", res.TurnCount,
		)
	}

	return d.registry.Execute(ctx, name, args)
}

// IsRequestError reports whether err is the caller's fault rather than
// an infrastructure failure. Request errors carry recovery guidance and
// are delivered as tool results instead of protocol errors.
func IsRequestError(err error) bool {
	var notFound *continuation.ThreadNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	if errors.Is(err, model.ErrModelNotFound) {
		return true
	}
	return errors.Is(err, continuation.ErrInvalidArgument)
}

// continuationOffer is the machine-readable trailer appended to outputs
// that can be continued.
type continuationOffer struct {
	ContinuationID string `json:"continuation_id"`
	RemainingTurns int    `json:"remaining_turns"`
	Note           string `json:"note"`
}

// RenderOutput serializes a tool output for the MCP text result. When
// the tool offers a continuation, a JSON trailer tells the caller how to
// pick the conversation back up.
func RenderOutput(out tool.Output) string {
	if out.ContinuationID == "" {
		return out.Content
	}

	offer := continuationOffer{
		ContinuationID: out.ContinuationID,
		RemainingTurns: out.RemainingTurns,
		Note:           "Pass continuation_id in a follow-up call to continue this conversation.",
	}
	trailer, err := json.Marshal(offer)
	if err != nil {
		return out.Content
	}
	return fmt.Sprintf("%s\n\n--- continuation offer ---\n%s", out.Content, trailer)
}
