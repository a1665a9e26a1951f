// Package api exposes the shop assistant over HTTP.
//
// Routes:
//
//	POST /api/v1/chat          one dialogue turn, JSON in/out
//	GET  /ws/chat/{session_id} persistent bidirectional chat
//	GET  /health               liveness probe
//
// Middleware order, outermost first: recovery → logging → rate limit.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/threadcart/threadcart/internal/session"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to keep slow clients from
	// pinning connections.
	ReadHeaderTimeout = 10 * time.Second

	// IdleTimeout is the keep-alive limit. There is deliberately no
	// ReadTimeout/WriteTimeout: websocket connections are long-lived.
	IdleTimeout = 120 * time.Second
)

// Server routes chat traffic to the session registry.
type Server struct {
	mux      *http.ServeMux
	sessions *session.Registry
	limiter  *rateLimiter
	logger   *slog.Logger
}

// NewServer creates a server with all routes registered. requestsPerSecond
// and burst configure the per-IP rate limit.
func NewServer(sessions *session.Registry, requestsPerSecond float64, burst int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mux:      http.NewServeMux(),
		sessions: sessions,
		limiter:  newRateLimiter(requestsPerSecond, burst, logger),
		logger:   logger,
	}

	s.mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	s.mux.HandleFunc("GET /ws/chat/{session_id}", s.handleWS)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		s.recoveryMiddleware,
		s.loggingMiddleware,
		s.limiter.middleware,
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		s.limiter.Close()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		s.limiter.Close()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
