package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookcatalogue/internal/book"
	"bookcatalogue/internal/config"
	"bookcatalogue/internal/httpx"
	"bookcatalogue/internal/platform/engines"
	"bookcatalogue/internal/platform/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Init(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	engine, closer, err := engines.Open(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	service := book.NewService(engine, cfg.IndexName)

	if cfg.BootstrapIndex {
		bootstrapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := service.CreateIndex(bootstrapCtx); err != nil {
			slog.Warn("index bootstrap failed", "index", cfg.IndexName, "error", err)
		} else {
			slog.Info("index created", "index", cfg.IndexName)
		}
		cancel()
	}

	rateLimiter := httpx.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst).TrustProxies(cfg.TrustedProxies)
	go rateLimiter.Run(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newHandler(cfg, newRouter(service), rateLimiter),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Addr, "engine", cfg.Engine, "index", cfg.IndexName)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// readinessChecker is satisfied by *book.Service.
type readinessChecker interface {
	Ping(ctx context.Context) error
}

func newRouter(service *book.Service) *http.ServeMux {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", readyHandler(service))
	router.Handle("GET /metrics", promhttp.Handler())

	book.NewHTTPHandler(service).Register(router)
	return router
}

func readyHandler(checker readinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := checker.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "readiness check failed", "error", err)
			http.Error(w, "search engine not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}

// newHandler wraps the router in the middleware stack. Metrics runs last so
// it sees the route pattern the router sets on the request.
func newHandler(cfg config.Config, router http.Handler, rateLimiter *httpx.RateLimitMiddleware) http.Handler {
	return httpx.Chain(router,
		httpx.RecoveryMiddleware,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware,
		httpx.SecurityHeadersMiddleware,
		httpx.CORSMiddleware(cfg.AllowedOrigins),
		rateLimiter.Middleware,
		httpx.RequestSizeLimitMiddleware(cfg.MaxBodyBytes),
		httpx.TimeoutMiddleware(cfg.RequestTimeout),
		httpx.MetricsMiddleware,
	)
}
