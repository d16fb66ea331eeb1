// Package tool defines the tool interface and registry for the
// continuity engine. Tools are stateless request handlers; conversation
// state lives in the thread store and is threaded through arguments.
package tool

import (
	"context"
	"encoding/json"
)

// Tool is the interface every registered tool implements.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Schema returns a JSON Schema describing the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with the given arguments. For continuation
	// requests the arguments arrive already enlarged: the prompt carries
	// reconstructed history and the engine-provided keys are present.
	Execute(ctx context.Context, args map[string]any) (Output, error)
}

// Output is the result of a tool execution.
type Output struct {
	// Content is the output text from the tool.
	Content string

	// ContinuationID, when non-empty, offers the caller a handle to
	// continue this conversation in a follow-up call.
	ContinuationID string

	// RemainingTurns is how many further exchanges the thread accepts.
	// Meaningful only when ContinuationID is set.
	RemainingTurns int

	// IsError indicates whether the output represents an error condition.
	IsError bool
}
