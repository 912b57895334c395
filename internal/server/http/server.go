// Package http serves the prediction API over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/ekisa-team/predictd/internal/metrics"
	"github.com/ekisa-team/predictd/internal/service"
)

const apiVersion = "1.0.0"

// Options configures the HTTP server.
type Options struct {
	Addr            string
	PredictPaths    []string
	AllowedOrigins  []string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
	CORSEnabled     bool
}

// Server is the HTTP front of the prediction service.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(opts Options, svc *service.Predict, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	cfg := huma.DefaultConfig("predictd", apiVersion)
	cfg.Info.Description = "Serves predictions from a model artifact loaded at startup."
	// Responses keep the plain {"predictions": ...} shape without $schema links.
	cfg.CreateHooks = nil
	api := humago.New(mux, cfg)

	NewPredictHandler(api, svc, opts.PredictPaths, opts.MaxBodyBytes)

	routes := append([]string{"/health"}, opts.PredictPaths...)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
		routes = append(routes, "/metrics")
	}

	middlewares := []Middleware{
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger, m, routes),
	}
	if opts.CORSEnabled {
		middlewares = append(middlewares, CORSMiddleware(opts.AllowedOrigins))
	}

	return Chain(mux, middlewares...)
}

// NewServer creates the HTTP server.
func NewServer(opts Options, svc *service.Predict, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewHandler(opts, svc, m, logger),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger:          logger,
		shutdownTimeout: opts.ShutdownTimeout,
	}
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("http: failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	return s.Serve(l)
}

// Serve serves on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("HTTP server started", "addr", l.Addr().String())

	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}

	s.logger.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http: server forced to shutdown: %w", err)
	}

	return nil
}
