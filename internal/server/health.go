package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON body of the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	Chunks    int    `json:"chunks"`
	Timestamp string `json:"timestamp"`
}

// IndexProber reports the index backend state. Both index backends
// implement it through their Size method.
type IndexProber interface {
	Size(ctx context.Context) (int, error)
}

// NewHealthHandler creates the /health handler. It probes the index
// backend and reports how many chunks are queryable; an empty index is
// still healthy, it only means background indexing has not produced
// content yet.
func NewHealthHandler(prober IndexProber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		size, err := prober.Size(ctx)

		response := HealthResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")

		if err != nil {
			response.Status = "unhealthy"
			response.Index = "unreachable"
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(response)
			return
		}

		response.Status = "healthy"
		response.Index = "connected"
		response.Chunks = size
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}
