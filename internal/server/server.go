// Package server exposes the pipeline control surface and results over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/transmatch/internal/config"
	"github.com/hyperjump/transmatch/internal/keyword"
	"github.com/hyperjump/transmatch/internal/logstream"
	"github.com/hyperjump/transmatch/internal/oracle"
	"github.com/hyperjump/transmatch/internal/pipeline"
	"github.com/hyperjump/transmatch/internal/storage"
)

// Pipeline is the control surface of the orchestrator.
type Pipeline interface {
	Start(cfg *config.Config) (string, error)
	Stop() bool
	Status() pipeline.Status
}

// Server is the HTTP server for the transmatch API.
type Server struct {
	pipeline  Pipeline
	storage   storage.Store
	index     keyword.Index
	broker    *logstream.Broker
	newOracle func(config.AIConfig) (oracle.Oracle, error)
	heartbeat time.Duration
	logger    *zap.Logger

	cfgMu  sync.RWMutex
	config *config.Config

	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithKeywordIndex enables /api/v1/documents/search.
func WithKeywordIndex(idx keyword.Index) Option {
	return func(s *Server) { s.index = idx }
}

// WithLogStream enables /api/v1/stream.
func WithLogStream(b *logstream.Broker) Option {
	return func(s *Server) { s.broker = b }
}

// WithOracleFactory overrides how /api/v1/ai/test builds the oracle.
func WithOracleFactory(f func(config.AIConfig) (oracle.Oracle, error)) Option {
	return func(s *Server) { s.newOracle = f }
}

// WithHeartbeat sets the interval of keep-alive comments on the event stream.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// NewServer creates a server. cfg is the base run configuration; a start request body
// is applied on top of a copy of it.
func NewServer(p Pipeline, store storage.Store, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		pipeline:  p,
		storage:   store,
		config:    cfg,
		logger:    logger,
		heartbeat: 15 * time.Second,
		newOracle: func(ai config.AIConfig) (oracle.Oracle, error) {
			return oracle.New(ai)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// The event stream stays open indefinitely and must not be buffered.
	r.Get("/api/v1/stream", s.handleStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(middleware.Compress(5))

		r.Get("/health", s.handleHealth)
		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/pipeline/start", s.handleStart)
			r.Post("/pipeline/stop", s.handleStop)
			r.Get("/pipeline/status", s.handleStatus)
			r.Get("/results", s.handleResults)
			r.Get("/candidates", s.handleCandidates)
			r.Get("/export", s.handleExport)
			r.Get("/manifest/sheets", s.handleSheets)
			r.Post("/manifest/sheets", s.handleSheetsUpload)
			r.Get("/documents/search", s.handleSearch)
			r.Post("/ai/test", s.handleAITest)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.cfgMu.RLock()
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.cfgMu.RUnlock()
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

func (s *Server) baseConfig() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.config.Clone()
}
