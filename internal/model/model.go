// Package model resolves model identifiers to capability data and splits
// a model's context window into response and content token allocations.
package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrModelNotFound indicates an unresolvable model identifier. It is
// fatal for the request that carried it: budgets cannot be computed
// without capability data, and a silent default would misbudget.
var ErrModelNotFound = errors.New("model not found")

// Capability describes what a model can hold. Resolved once per request
// and read-only afterwards.
type Capability struct {
	// Name is the canonical model identifier.
	Name string

	// ContextWindow is the maximum total token capacity.
	ContextWindow int
}

// Resolver resolves a model identifier to its capability data.
type Resolver interface {
	Resolve(name string) (Capability, error)
}

// builtinWindows lists context windows for models known out of the box.
// Deployments extend or override the table through configuration.
var builtinWindows = map[string]int{
	"gemini-2.5-pro":   1_048_576,
	"gemini-2.5-flash": 1_048_576,
	"o3":               200_000,
	"o3-mini":          200_000,
	"o4-mini":          200_000,
	"gpt-4.1":          1_047_576,
}

// Catalog is a Resolver backed by a static capability table. Lookups are
// read-only and safe for concurrent use.
type Catalog struct {
	mu           sync.RWMutex
	windows      map[string]int
	defaultModel string
}

// Compile-time interface check.
var _ Resolver = (*Catalog)(nil)

// NewCatalog creates a catalog seeded with the built-in table, merged
// with per-deployment overrides (which win on conflict). defaultModel is
// used when a request names no model; it must resolve.
func NewCatalog(defaultModel string, overrides map[string]int) (*Catalog, error) {
	windows := make(map[string]int, len(builtinWindows)+len(overrides))
	for name, w := range builtinWindows {
		windows[name] = w
	}
	for name, w := range overrides {
		if w <= 0 {
			return nil, fmt.Errorf("model: invalid context window %d for %q", w, name)
		}
		windows[strings.ToLower(name)] = w
	}

	c := &Catalog{windows: windows, defaultModel: strings.ToLower(defaultModel)}
	if c.defaultModel != "" {
		if _, err := c.Resolve(c.defaultModel); err != nil {
			return nil, fmt.Errorf("model: default model: %w", err)
		}
	}
	return c, nil
}

// Resolve returns the capability for the given identifier, or
// ErrModelNotFound if it is unknown. Matching is case-insensitive.
func (c *Catalog) Resolve(name string) (Capability, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Capability{}, fmt.Errorf("%w: empty identifier", ErrModelNotFound)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	w, ok := c.windows[key]
	if !ok {
		return Capability{}, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return Capability{Name: key, ContextWindow: w}, nil
}

// Default returns the configured default model identifier.
func (c *Catalog) Default() string {
	return c.defaultModel
}
