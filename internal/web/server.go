// Package web exposes the rephrase service over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/jstello/OneInc/internal/config"
	"github.com/jstello/OneInc/internal/metrics"
	"github.com/jstello/OneInc/internal/ratelimit"
	"github.com/jstello/OneInc/internal/relay"
)

// maxRequestBody caps POST bodies well above the 1000-character text limit.
const maxRequestBody = 64 * 1024

// Server serves the health, metrics, and rephrase endpoints.
type Server struct {
	cfg          config.Server
	orchestrator *relay.Orchestrator
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	http         *http.Server
}

// NewServer wires the router. The rate limiter guards only the rephrase
// endpoint; health and metrics stay reachable for probes.
func NewServer(cfg config.Server, orchestrator *relay.Orchestrator, limiter *ratelimit.Limiter, m *metrics.Metrics, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		metrics:      m,
		logger:       logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(cfg.AllowedOrigin))
	r.Use(s.countRequests)

	r.Get("/", s.handleHealth("AI Writing Assistant API is running"))
	r.Get("/health", s.handleHealth("Healthy"))
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.With(ratelimit.Middleware(limiter)).Post("/api/rephrase", s.handleRephrase)

	s.http = &http.Server{
		Addr:        cfg.Addr,
		Handler:     r,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
		// No WriteTimeout: event streams stay open as long as the per-style
		// timeouts allow.
	}
	return s
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

// countRequests records one sample per request with the matched route and
// final status code.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.Requests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
	})
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Message: message})
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError mirrors the {"detail": ...} error shape the frontend expects.
func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
