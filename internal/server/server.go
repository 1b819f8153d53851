// Package server is the companion web service: it exposes the experiment
// catalog over HTTP and colorgram lookups over a websocket, in front of
// the same document and object stores the batch pipeline writes to.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"colorsweep/internal/domain"
	logpkg "colorsweep/internal/logger"
	"colorsweep/internal/metrics"
	"colorsweep/internal/trial"
)

// Config carries the server's settings.
type Config struct {
	Addr string
	// Users holds basic-auth credentials; empty disables auth.
	Users map[string]string
	// TermsDir holds one {experiment}.csv terms file per experiment.
	TermsDir string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server routes catalog and data requests.
type Server struct {
	cfg         Config
	experiments ExperimentSource
	health      HealthChecker
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

func New(cfg Config, experiments ExperimentSource, health HealthChecker, log *zap.Logger) *Server {
	return &Server{
		cfg:         cfg,
		experiments: experiments,
		health:      health,
		upgrader:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		log:         log,
	}
}

// Handler builds the routed handler with the middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(BasicAuthMiddleware(s.cfg.Users))
	r.Use(s.requestLogger)
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/experiments", s.handleListExperiments)
	r.Get("/experiments/{name}", s.handleGetExperiment)
	r.Get("/data", s.handleData)
	return r
}

// ListenAndServe runs the server until the context is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownTimeout := s.cfg.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger emits one wide event per request and stores a
// request-scoped logger in the context for downstream handlers.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
		}
		reqLog := s.log.With(zap.String("request_id", requestID))
		ctx := logpkg.ContextWithLogger(r.Context(), reqLog)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		reqLog.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health.CheckCluster(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy", "error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	names, err := s.experiments.List(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiments": names})
}

// handleGetExperiment serves the terms file of one experiment, parsed.
func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path := trial.TermsPath(s.cfg.TermsDir, name)
	terms, err := trial.LoadTerms(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"status": http.StatusNotFound, "message": "no terms file for " + name,
			})
			return
		}
		if errors.Is(err, domain.ErrNoQueries) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"status":  http.StatusUnprocessableEntity,
				"message": name + " terms file is missing a required column or has no rows",
			})
			return
		}
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "terms": terms})
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.log.Error("internal error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"status": http.StatusInternalServerError, "message": "internal error",
	})
}
