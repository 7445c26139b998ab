// Package api serves the synced snapshot over HTTP: sheet and row lookups,
// full-text search, specials, relationship discovery, sync control, and a
// sync event stream.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/ianyh/castle/internal/engine"
	"github.com/ianyh/castle/internal/notifier"
	"github.com/ianyh/castle/pkg/core"
)

// Config holds API server configuration.
type Config struct {
	// Store answers read queries. Required.
	Store core.Store
	// Engine runs syncs triggered over the API. Required.
	Engine *engine.Engine
	// Notifier feeds the event stream. Required.
	Notifier *notifier.Notifier
	// Specials is the curated specials catalogue.
	Specials []core.Special
	// Port to listen on.
	Port int
	// Logger is optional.
	Logger *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	store    core.Store
	engine   *engine.Engine
	notifier *notifier.Notifier
	specials []core.Special
	port     int
	logger   *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		store:    cfg.Store,
		engine:   cfg.Engine,
		notifier: cfg.Notifier,
		specials: cfg.Specials,
		port:     cfg.Port,
		logger:   logger,
	}, nil
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sheets", s.handleListSheets)
		r.Get("/sheets/{title}", s.handleGetSheet)
		r.Get("/rows/{id}", s.handleGetRow)
		r.Get("/rows/{id}/relationships", s.handleRelationships)
		r.Get("/search", s.handleSearch)
		r.Get("/specials", s.handleListSpecials)
		r.Get("/specials/{name}", s.handleSearchSpecial)
		r.Get("/status", s.handleStatus)
		r.Post("/sync", s.handleSync)
		r.Get("/events", s.handleEvents)
	})

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
