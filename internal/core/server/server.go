package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/digipin/internal/core/config"
	"github.com/mohammed-shakir/digipin/internal/core/health"
	middleware "github.com/mohammed-shakir/digipin/internal/core/middleware"
	"github.com/mohammed-shakir/digipin/internal/core/router"
)

// NewHandler builds the HTTP surface: probes, metrics and codec routes.
func NewHandler(logger *slog.Logger, svc *router.Service, checks map[string]health.Checker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(2*time.Second, checks))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	svc.Routes(r)
	return r
}

// sets up http and starts serving until ctx is done
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, h http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
