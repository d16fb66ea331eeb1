package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatusResponse is the GET /status payload.
type StatusResponse struct {
	Version string   `json:"version"`
	Uptime  string   `json:"uptime"`
	Tools   []string `json:"tools"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		tools := g.tools
		if tools == nil {
			tools = []string{}
		}
		resp := StatusResponse{
			Version: g.version,
			Uptime:  time.Since(g.startedAt).Truncate(time.Second).String(),
			Tools:   tools,
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
