package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/perfwatch/analyzer/pkg/engine"
)

// Server is the optional read-only HTTP surface over the engine's query
// API. It never mutates engine state; hosts that want control stay with
// the library surface.
type Server struct {
	engine *engine.Engine
	http   *http.Server
}

// NewServer builds the server on the given listen address.
func NewServer(e *engine.Engine, address string) *Server {
	s := &Server{engine: e}

	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/analysis", s.handleAnalysis).Methods(http.MethodGet)
	v1.HandleFunc("/recommendations", s.handleRecommendations).Methods(http.MethodGet)
	v1.HandleFunc("/bottlenecks", s.handleBottlenecks).Methods(http.MethodGet)
	v1.HandleFunc("/optimizations", s.handleOptimizations).Methods(http.MethodGet)
	v1.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         address,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("address", s.http.Addr).Msg("HTTP API listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for embedding hosts and tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis := s.engine.CurrentAnalysis()
	if analysis == nil {
		writeError(w, http.StatusNotFound, "no analysis completed yet")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Recommendations())
}

func (s *Server) handleBottlenecks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Bottlenecks())
}

func (s *Server) handleOptimizations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.OptimizationHistory())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Report())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Health())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}
