package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
	}
}
