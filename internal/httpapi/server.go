// Package httpapi exposes the live snapshot and Prometheus metrics over
// HTTP as a small read-only server.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/sentinel/internal/engine"
)

// snapshotProvider is the narrow engine dependency this package needs:
// something that can hand back the current publish document.
type snapshotProvider interface {
	Snapshot() engine.Snapshot
}

// Server is the read-only HTTP surface: the current snapshot and
// Prometheus metrics, nothing else.
type Server struct {
	router  *mux.Router
	server  *http.Server
	metrics *Metrics
	engine  snapshotProvider
}

// NewServer wires routes and middleware. addr is host:port to listen on.
func NewServer(addr string, engine snapshotProvider, metrics *Metrics) *Server {
	router := mux.NewRouter()
	s := &Server{router: router, metrics: metrics, engine: engine}

	router.Use(loggingMiddleware)

	router.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.engine.Snapshot()); err != nil {
		log.Error().Err(err).Msg("encode snapshot response")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// ListenAndServe starts the server; it blocks until the server stops.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.server.Addr).Msg("snapshot http server starting")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
