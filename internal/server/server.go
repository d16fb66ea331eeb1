// Package server exposes the registered tools over the Model Context
// Protocol. It is the composition boundary between the transport and the
// continuity engine: requests carrying a continuation_id pass through
// reconstruction before the tool runs.
package server

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/threadline/internal/continuation"
	"github.com/flemzord/threadline/internal/tool"
)

// Config wires a Server.
type Config struct {
	Name        string
	Version     string
	Registry    *tool.Registry
	Coordinator *continuation.Coordinator
	Logger      *slog.Logger
}

// Server is the MCP-facing surface of the engine.
type Server struct {
	mcp        *server.MCPServer
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// New creates the MCP server and registers every tool from the registry.
// WithRecovery converts handler panics into protocol errors so a single
// bad request cannot take the transport down.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp: server.NewMCPServer(
			cfg.Name,
			cfg.Version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
		dispatcher: NewDispatcher(cfg.Registry, cfg.Coordinator, logger),
		logger:     logger,
	}

	for _, schema := range cfg.Registry.Schemas() {
		name := schema.Name
		s.mcp.AddTool(
			mcp.NewToolWithRawSchema(name, schema.Description, schema.Schema),
			s.handle(name),
		)
	}
	return s
}

// handle adapts the dispatcher to an MCP tool handler. Request-level
// failures (bad arguments, unknown thread, unknown model) become tool
// error results so the caller sees the recovery guidance; only
// infrastructure failures surface as protocol errors.
func (s *Server) handle(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := s.dispatcher.Dispatch(ctx, name, req.GetArguments())
		if err != nil {
			if IsRequestError(err) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			s.logger.Error("tool dispatch failed", "tool", name, "error", err)
			return nil, err
		}
		if out.IsError {
			return mcp.NewToolResultError(out.Content), nil
		}
		return mcp.NewToolResultText(RenderOutput(out)), nil
	}
}

// ServeStdio runs the server over stdin/stdout until the client
// disconnects or the context is canceled.
func (s *Server) ServeStdio(ctx context.Context) error {
	return server.ServeStdio(s.mcp, server.WithStdioContextFunc(
		func(context.Context) context.Context { return ctx },
	))
}
