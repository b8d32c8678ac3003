package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

// RouterConfig tunes the middleware stack.
type RouterConfig struct {
	RateLimitPerSecond int
	RateLimitBurst     int
	AllowedOrigins     []string
}

// NewRouter wires the ingestion API routes and middleware.
func NewRouter(h *IngestHandler, logger *slog.Logger, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	if cfg.RateLimitPerSecond > 0 {
		r.Use(rateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst))
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}).Handler)

	r.Get("/healthz", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", h.Upload)
		r.Get("/runs/{id}", h.GetRun)
		r.Get("/transactions", h.ListTransactions)
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds())
		})
	}
}

func rateLimiter(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
