// Package management serves the HTTP surface of the harvester service:
// health, harvested schemas, and metrics.
package management

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/usestring/schema-harvester/internal/registry"
)

// Server is the management HTTP server.
type Server struct {
	store   registry.Store
	metrics http.Handler
	logger  *slog.Logger
	handler http.Handler
}

// New builds the router. metrics may be nil, in which case /metrics is 404.
func New(store registry.Store, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{store: store, metrics: metrics, logger: logger}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth()).Methods(http.MethodGet)
	router.HandleFunc("/schemas", s.handleListSchemas()).Methods(http.MethodGet)
	router.HandleFunc("/schemas/{stream}", s.handleGetSchema()).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(notFound)

	n := negroni.New(negroni.NewRecovery())
	n.Use(negroni.HandlerFunc(s.logRequest))
	n.UseHandler(router)
	s.handler = n
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on port until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("management server listening", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("management server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("management server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) logRequest(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)
	res := w.(negroni.ResponseWriter)
	s.logger.Debug("management request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", res.Status(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func (s *Server) handleListSchemas() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streams, err := s.store.List(r.Context())
		if err != nil {
			s.logger.Error("listing schemas", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing schemas failed"})
			return
		}
		if streams == nil {
			streams = []string{}
		}
		writeJSON(w, http.StatusOK, streams)
	}
}

func (s *Server) handleGetSchema() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream := mux.Vars(r)["stream"]
		entry, found, err := s.store.Get(r.Context(), stream)
		if err != nil {
			s.logger.Error("loading schema", "stream", stream, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "loading schema failed"})
			return
		}
		if !found {
			notFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		w.Header().Set("ETag", strconv.Quote(strconv.Itoa(entry.Revision)))
		if !entry.UpdatedAt.IsZero() {
			w.Header().Set("Last-Modified", entry.UpdatedAt.UTC().Format(http.TimeFormat))
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(entry.Schema)
	}
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
