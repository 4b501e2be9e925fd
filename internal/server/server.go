// Package server provides the HTTP API for capcluster.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/capcluster/internal/config"
	"github.com/hyperjump/capcluster/internal/session"
	"github.com/hyperjump/capcluster/pkg/utils"
)

// InboxService lists the directories watched for batch files.
type InboxService interface {
	Directories() []string
}

// Server is the HTTP server for the capcluster API.
type Server struct {
	manager *session.Manager
	config  *config.Config
	logger  *zap.Logger
	inbox   InboxService
	metrics http.Handler
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithInbox exposes the watched inbox directories on /status.
func WithInbox(inbox InboxService) Option {
	return func(s *Server) { s.inbox = inbox }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates a server over manager. cfg supplies the listen address and the
// storage paths reported by /status.
func NewServer(manager *session.Manager, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		manager: manager,
		config:  cfg,
		logger:  utils.OrNop(logger),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sessions", s.handleListSessions)
		r.Route("/sessions/{family}", func(r chi.Router) {
			r.Post("/initialize", s.handleInitialize)
			r.Post("/items", s.handleAddItems)
			r.Put("/capacities", s.handleUpdateCapacities)
			r.Get("/status", s.handleSessionStatus)
			r.Delete("/", s.handleReset)
		})
	})
	r.Get("/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
