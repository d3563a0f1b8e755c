// Package api - Thin HTTP layer over the resolution engine
// The API is ONLY responsible for decoding, engine calls and encoding.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"medicare-refprice/internal/metrics"
)

// Server is the API server
type Server struct {
	handler *Handler
	mux     *http.ServeMux
	metrics *metrics.Metrics
	logger  *zap.Logger
	srv     *http.Server
}

// NewServer creates a server over engine. A nil m disables /metrics.
func NewServer(engine Resolver, m *metrics.Metrics, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		handler: NewHandler(engine, version, logger),
		mux:     http.NewServeMux(),
		metrics: m,
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /v1/resolve", s.handler.HandleResolve)
	s.mux.HandleFunc("GET /v1/geo", s.handler.HandleGeo)

	s.mux.HandleFunc("GET /health", s.handler.HandleHealth)
	s.mux.HandleFunc("GET /version", s.handler.HandleVersion)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
		return
	}
	s.logger.Info("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("duration", time.Since(start)),
	)
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return s.srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
