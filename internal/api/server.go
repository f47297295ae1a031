// Package api serves the simulation operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nvandessel/alliance/internal/logging"
	"github.com/nvandessel/alliance/internal/ratelimit"
	"github.com/nvandessel/alliance/internal/session"
	"github.com/nvandessel/alliance/internal/store"
)

// ServiceName is reported by the health endpoints.
const ServiceName = "Autonomous Vehicles Alliance Game API"

// ArchiveReader serves archived simulations.
type ArchiveReader interface {
	GetExport(ctx context.Context, id string) (session.Export, error)
	ListExports(ctx context.Context, limit int) ([]store.Entry, error)
}

// Server handles HTTP requests.
type Server struct {
	svc     *session.Service
	archive ArchiveReader
	limits  ratelimit.Limits
	logger  *slog.Logger
	timeout time.Duration
	version string
	started time.Time

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
}

// Option configures a Server.
type Option func(*Server)

// WithLimits enables rate limiting. Nil disables it.
func WithLimits(ls ratelimit.Limits) Option {
	return func(s *Server) { s.limits = ls }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRequestTimeout bounds each request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithVersion sets the version reported by the health endpoints.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithArchive exposes archived simulations under /api/archive.
func WithArchive(a ArchiveReader) Option {
	return func(s *Server) { s.archive = a }
}

// NewServer creates a server over svc.
func NewServer(svc *session.Service, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		logger:  logging.Discard(),
		timeout: 3 * time.Minute,
		version: "dev",
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes sets up the HTTP routes with middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}
	r.Use(corsMiddleware)

	r.Get("/", s.handleHealth)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/simulation/start", s.handleStart)
		r.Post("/simulation/round", s.handleRound)
		r.Get("/simulation/{id}/status", s.handleStatus)
		r.Get("/simulation/{id}/export", s.handleExport)
		r.Delete("/simulation/{id}", s.handleDelete)
		r.Get("/simulations", s.handleList)
		r.Post("/chat", s.handleChat)

		if s.archive != nil {
			r.Get("/archive", s.handleArchiveList)
			r.Get("/archive/{id}", s.handleArchiveGet)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, errTypeNotFound, "no such route", map[string]any{"path": r.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, errTypeValidation, "method not allowed",
			map[string]any{"path": r.URL.Path, "method": r.Method})
	})

	return r
}

// Addr returns the address the server is listening on.
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ListenAndServe listens on addr and blocks until ctx is cancelled, then
// shuts down gracefully. Returns nil on clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("http server listening", "addr", ln.Addr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", "error", err)
		}
	}()

	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}

// writeJSON writes a JSON response with proper headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encoding response", "error", err)
	}
}
