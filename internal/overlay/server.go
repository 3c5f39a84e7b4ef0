package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/auricle-ai/auricle/internal/health"
)

// Server hosts the overlay WebSocket endpoint plus the operational HTTP
// surface: liveness, readiness, and Prometheus metrics.
type Server struct {
	hub    *Hub
	srv    *http.Server
	logger *slog.Logger
}

// ServerConfig configures the overlay HTTP server.
type ServerConfig struct {
	// ListenAddr is the host:port to bind.
	ListenAddr string

	// Metrics exposes /metrics when true.
	Metrics bool

	// Checkers are evaluated by the /readyz endpoint.
	Checkers []health.Checker
}

// NewServer builds the HTTP server around an existing hub.
func NewServer(cfg ServerConfig, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	hh := health.New(cfg.Checkers...)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", hh.Healthz)
	mux.HandleFunc("/readyz", hh.Readyz)
	if cfg.Metrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return &Server{
		hub: hub,
		srv: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("overlay server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("overlay: shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("overlay: serve: %w", err)
		}
		return nil
	}
}
