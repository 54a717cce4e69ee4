// Package server exposes the question endpoint and a health probe over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// AnswerService is the orchestrator seam. It always yields answer text,
// mapping internal failures to fallback strings itself.
type AnswerService interface {
	Answer(ctx context.Context, question string) string
}

// askRequest is the inbound question payload.
type askRequest struct {
	Question string `json:"question"`
}

// askResponse is the answer payload. Internal failures arrive here as
// fallback text with status 200, never as an error status.
type askResponse struct {
	Answer string `json:"answer"`
}

// NewMux builds the HTTP routes: POST /ask and GET /health.
func NewMux(svc AnswerService, prober IndexProber, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ask", newAskHandler(svc, logger))
	mux.HandleFunc("/health", NewHealthHandler(prober))
	return mux
}

// newAskHandler decodes the question, runs the orchestrator with the
// request context and writes the answer.
func newAskHandler(svc AnswerService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		req.Question = strings.TrimSpace(req.Question)
		if req.Question == "" {
			http.Error(w, "question must not be empty", http.StatusBadRequest)
			return
		}

		answer := svc.Answer(r.Context(), req.Question)
		logger.Info("question answered", "question", req.Question, "answer_len", len(answer))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(askResponse{Answer: answer})
	}
}
