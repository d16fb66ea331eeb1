package tool

import "errors"

// Sentinel errors for registry operations.
var (
	ErrEmptyToolName = errors.New("tool name must not be empty")
	ErrDuplicateTool = errors.New("tool already registered")
	ErrToolNotFound  = errors.New("tool not found")
)
