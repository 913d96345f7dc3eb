// Package service exposes the browsing agent over HTTP: asynchronous and
// synchronous browse endpoints, task tracking, a Redis result cache and
// Prometheus metrics. Handlers depend on the Runner and TaskStore interfaces
// so the transport layer can be tested without a browser or a model.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

// Server is the HTTP service. Construct with New, then Start.
type Server struct {
	cfg     *config.Config
	runner  Runner
	store   schemas.TaskStore
	cache   *Cache
	metrics *Metrics
	limiter *rateLimiter
	log     *zap.Logger

	version     string
	startedAt   time.Time
	activeTasks atomic.Int64
	background  sync.WaitGroup
}

// New wires the service together. cache may be nil (caching disabled).
func New(cfg *config.Config, runner Runner, store schemas.TaskStore, cache *Cache, version string, logger *zap.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		runner:    runner,
		store:     store,
		cache:     cache,
		metrics:   NewMetrics(),
		log:       logger.Named("service"),
		version:   version,
		startedAt: time.Now(),
	}
	if cfg.Server.RateLimit.Enabled {
		s.limiter = newRateLimiter(cfg.Server.RateLimit)
	}
	return s
}

// Router assembles the chi router with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.recoverMiddleware)
	r.Use(s.rateLimitMiddleware)
	r.Use(s.observeMiddleware)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Post("/browse", s.handleBrowse)
	r.Post("/browse/sync", s.handleBrowseSync)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.handleListTasks)
		r.Get("/{id}", s.handleGetTask)
		r.Delete("/{id}", s.handleDeleteTask)
	})

	r.Delete("/cache", s.handleFlushCache)

	return r
}

// Start serves until ctx is canceled, then drains in-flight requests and
// background tasks within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Addr, err)
	}
	if s.cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.Server.MaxConns)
	}

	srv := &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP service listening.", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP service.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.log.Warn("Shutdown timeout reached with background tasks still running.")
	}
	return <-errCh
}

// -- Middleware --

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("Panic while serving request.",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"))
				s.errorJSON(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.allow(clientIP(r)) {
			s.errorJSON(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observeMiddleware records the request metrics, emits the access log line
// and stamps X-Process-Time. The endpoint label uses chi's route pattern so
// task IDs do not explode the cardinality.
func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(&processTimeWriter{ResponseWriter: w, start: start}, r.ProtoMajor)

		defer func() {
			elapsed := time.Since(start)
			endpoint := chi.RouteContext(r.Context()).RoutePattern()
			if endpoint == "" {
				endpoint = r.URL.Path
			}
			s.metrics.requestsTotal.WithLabelValues(r.Method, endpoint, fmt.Sprintf("%d", ww.Status())).Inc()
			s.metrics.requestDuration.WithLabelValues(r.Method, endpoint).Observe(elapsed.Seconds())
			s.log.Debug("Request served.",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", elapsed))
		}()

		next.ServeHTTP(ww, r)
	})
}

// processTimeWriter stamps X-Process-Time (seconds) when the status line is
// written, the last moment headers can still change.
type processTimeWriter struct {
	http.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *processTimeWriter) WriteHeader(code int) {
	if !w.stamped {
		w.Header().Set("X-Process-Time", fmt.Sprintf("%.6f", time.Since(w.start).Seconds()))
		w.stamped = true
	}
	w.ResponseWriter.WriteHeader(code)
}
