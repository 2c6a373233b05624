// Package server is the HTTP ingress: it creates study sessions, re-wakes
// stalled runs, and toggles task completion. Read models beyond that are
// out of scope; the store is the source of truth.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Tarun553/study-coach/internal/store"
	"github.com/Tarun553/study-coach/pkg/trigger"
)

// Server owns the HTTP listener and routes.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates the HTTP server with all routes mounted.
func New(host string, port int, st *store.Store, pub trigger.Publisher, defaultRemindMinutes int, logger zerolog.Logger) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if pub == nil {
		return nil, fmt.Errorf("trigger publisher is required")
	}

	h := &handler{
		store:                st,
		pub:                  pub,
		defaultRemindMinutes: defaultRemindMinutes,
		logger:               logger.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", h.createSession)
		r.Post("/runs/{runID}/start", h.startRun)
		r.Post("/tasks/{taskID}/toggle", h.toggleTask)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "server").Logger(),
	}, nil
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
