package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// maxRequestBody bounds the /generate request size.
const maxRequestBody = 64 << 10 // 64 KiB

// generateRequest is the /generate request payload.
type generateRequest struct {
	Text string `json:"text"`
}

// generateResponse is the /generate success payload.
type generateResponse struct {
	Completion string `json:"completion"`
}

// errorResponse is the payload for all error statuses.
type errorResponse struct {
	Error string `json:"error"`
}

// server holds the HTTP surface over a generator.
type server struct {
	gen    generator
	health *healthHandler
	log    zerolog.Logger
}

func newServer(gen generator, health *healthHandler, log zerolog.Logger) *server {
	return &server{gen: gen, health: health, log: log}
}

// routes builds the router: synchronous generation, streaming over
// WebSocket, health, and metrics.
func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/generate", s.handleGenerate)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.health.ServeHTTP)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}

// handleGenerate serves one blocking text generation.
func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		generateRequests.WithLabelValues(outcomeBadRequest).Inc()
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		generateRequests.WithLabelValues(outcomeBadRequest).Inc()
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "'text' field required"})
		return
	}

	completion, err := s.gen.Generate(r.Context(), text)
	if err != nil {
		generateRequests.WithLabelValues(outcomeModelError).Inc()
		s.log.Error().Err(err).Msg("generation failed")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	generateRequests.WithLabelValues(outcomeOK).Inc()
	generateDuration.Observe(time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, generateResponse{Completion: completion})
}

func (s *server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("write response")
	}
}
