package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/threadline/internal/observability"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	g := New(Config{}, "test", nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	g.handleHealth().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	g := New(Config{}, "1.2.3", []string{"chat"}, nil, nil)
	g.startedAt = time.Now().Add(-3 * time.Second)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	g.handleStatus().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("version = %q", resp.Version)
	}
	if len(resp.Tools) != 1 || resp.Tools[0] != "chat" {
		t.Errorf("tools = %v", resp.Tools)
	}
	if resp.Uptime == "" {
		t.Error("uptime missing")
	}
}

func TestRouterServesMetrics(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics()
	metrics.ObserveLookup(true)

	g := New(Config{}, "test", nil, metrics, nil)
	mux := g.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if body := rr.Body.String(); !strings.Contains(body, "threadline_thread_lookups_total") {
		t.Errorf("metrics body lacks lookup counter:\n%s", body)
	}
}

func TestRouterOmitsMetricsWithoutRegistry(t *testing.T) {
	t.Parallel()

	g := New(Config{}, "test", nil, nil, nil)
	mux := g.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
