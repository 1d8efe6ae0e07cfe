// Package api exposes the engine over HTTP.
//
// The routing layer posts delivery notifications to /incoming and /outgoing;
// the provider calls /webhook once during subscription setup.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fizzycl/partsflow/internal/models"
)

// Default timeouts for the HTTP server.
const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// FlowEngine handles delivery notifications.
type FlowEngine interface {
	Incoming(ctx context.Context, log models.MessageLog) (models.StandardResponse, error)
	Outgoing(ctx context.Context, log models.MessageLog) (models.StandardResponse, error)
}

// Opts holds server configuration.
type Opts struct {
	Addr        string
	VerifyToken string
}

// Option configures a Server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the token expected on webhook verification requests.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// Server serves the engine's HTTP endpoints.
type Server struct {
	engine      FlowEngine
	addr        string
	verifyToken string
	httpServer  *http.Server
}

// NewServer creates a server around an engine.
func NewServer(engine FlowEngine, opts ...Option) *Server {
	cfg := Opts{Addr: ":8080"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		engine:      engine,
		addr:        cfg.Addr,
		verifyToken: cfg.VerifyToken,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/incoming", s.incomingHandler)
	mux.HandleFunc("/outgoing", s.outgoingHandler)
	mux.HandleFunc("/webhook", s.webhookVerifyHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		slog.Info("Server.Run: shutting down")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
