package model_test

import (
	"errors"
	"testing"

	"github.com/flemzord/threadline/internal/model"
)

// Compile-time interface guard.
var _ model.TokenEstimator = (*model.CharEstimator)(nil)

func TestCatalog_Resolve(t *testing.T) {
	t.Parallel()

	catalog, err := model.NewCatalog("gemini-2.5-pro", map[string]int{"in-house-7b": 32_768})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	tests := []struct {
		name       string
		identifier string
		wantWindow int
		wantErr    bool
	}{
		{name: "builtin", identifier: "gemini-2.5-pro", wantWindow: 1_048_576},
		{name: "case_insensitive", identifier: "O3", wantWindow: 200_000},
		{name: "override", identifier: "in-house-7b", wantWindow: 32_768},
		{name: "unknown", identifier: "gpt-9", wantErr: true},
		{name: "empty", identifier: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			capability, err := catalog.Resolve(tt.identifier)
			if tt.wantErr {
				if !errors.Is(err, model.ErrModelNotFound) {
					t.Fatalf("Resolve(%q) error = %v, want ErrModelNotFound", tt.identifier, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.identifier, err)
			}
			if capability.ContextWindow != tt.wantWindow {
				t.Errorf("ContextWindow = %d, want %d", capability.ContextWindow, tt.wantWindow)
			}
		})
	}
}

func TestNewCatalog_UnresolvableDefaultModel(t *testing.T) {
	t.Parallel()

	if _, err := model.NewCatalog("no-such-model", nil); err == nil {
		t.Error("NewCatalog() with unknown default error = nil, want error")
	}
}

func TestNewCatalog_InvalidOverride(t *testing.T) {
	t.Parallel()

	if _, err := model.NewCatalog("", map[string]int{"bad": 0}); err == nil {
		t.Error("NewCatalog() with zero window error = nil, want error")
	}
}

func TestNewContext(t *testing.T) {
	t.Parallel()

	catalog, err := model.NewCatalog("o3", nil)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	// Default reservation applies the configured fraction.
	mc, err := model.NewContext(catalog, "o3", model.DefaultReservation)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	if mc.Allocation.Response != 50_000 || mc.Allocation.Content != 150_000 {
		t.Errorf("default allocation = %+v, want {200000 50000 150000}", mc.Allocation)
	}

	// Explicit zero reservation is honored exactly.
	mc, err = model.NewContext(catalog, "o3", 0)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	if mc.Allocation.Response != 0 || mc.Allocation.Content != 200_000 {
		t.Errorf("zero-reservation allocation = %+v, want {200000 0 200000}", mc.Allocation)
	}

	// Unknown model surfaces ErrModelNotFound, never a silent default.
	if _, err := model.NewContext(catalog, "mystery", model.DefaultReservation); !errors.Is(err, model.ErrModelNotFound) {
		t.Errorf("NewContext(mystery) error = %v, want ErrModelNotFound", err)
	}
}

func TestCharEstimator_Estimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		ratio float64
		input string
		want  int
	}{
		{name: "empty", ratio: 0, input: "", want: 0},
		{name: "default_ratio", ratio: 0, input: "hello", want: 2},
		{name: "rounds_up", ratio: 0, input: "abcd", want: 2},
		{name: "custom_ratio", ratio: 3.0, input: "hello world", want: 4},
		{name: "negative_ratio_defaults", ratio: -1, input: "hello", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := model.NewCharEstimator(tt.ratio).Estimate(tt.input)
			if got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
