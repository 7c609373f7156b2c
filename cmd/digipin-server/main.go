package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/digipin/internal/cache/cellcache"
	"github.com/mohammed-shakir/digipin/internal/cache/redisstore"
	"github.com/mohammed-shakir/digipin/internal/core/config"
	"github.com/mohammed-shakir/digipin/internal/core/health"
	"github.com/mohammed-shakir/digipin/internal/core/observability"
	"github.com/mohammed-shakir/digipin/internal/core/router"
	"github.com/mohammed-shakir/digipin/internal/core/server"
	"github.com/mohammed-shakir/digipin/internal/logger"
	"github.com/mohammed-shakir/digipin/internal/lookupevents"
	h3mapper "github.com/mohammed-shakir/digipin/internal/mapper/h3"
	"github.com/mohammed-shakir/digipin/pkg/digipin"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	modeFlag := flag.String("mode", "", "serving mode: direct or cached")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("load env file", "file", *envFile, "err", err)
		return 1
	}
	cfg := config.FromEnv()
	if m := strings.ToLower(strings.TrimSpace(*modeFlag)); m != "" {
		if m != config.ModeDirect && m != config.ModeCached {
			slog.Error("unknown mode", "mode", m)
			return 1
		}
		cfg.Mode = m
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Mode:      cfg.Mode,
		Component: "digipin-server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.SetMode(cfg.Mode)
	observability.ExposeBuildInfo(Version)
	appLog.Info("starting digipin server",
		"addr", cfg.Addr,
		"version", Version,
		"mode", cfg.Mode,
		"region", digipin.RegionBounds)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mapper, err := h3mapper.New(cfg.H3Res)
	if err != nil {
		appLog.Error("h3 mapper setup failed", "err", err)
		return 1
	}

	svc := &router.Service{
		Codec:  digipin.New(),
		H3:     mapper,
		Events: lookupevents.Nop{},
		Log:    appLog,
	}
	checks := map[string]health.Checker{}

	if cfg.Mode == config.ModeCached {
		var remote cellcache.Remote
		if cfg.Cache.RedisOn {
			dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			rc, err := redisstore.New(dialCtx, cfg.Cache.RedisAddr,
				redisstore.WithReadTimeout(cfg.Cache.OpTimeout),
				redisstore.WithWriteTimeout(cfg.Cache.OpTimeout),
			)
			cancel()
			if err != nil {
				appLog.Error("redis setup failed", "addr", cfg.Cache.RedisAddr, "err", err)
				return 1
			}
			defer func() { _ = rc.Close() }()
			remote = rc
			checks["redis"] = rc
		}
		cache, err := cellcache.New(cellcache.Config{
			Size:      cfg.Cache.LRUSize,
			TTL:       cfg.Cache.TTL,
			OpTimeout: cfg.Cache.OpTimeout,
			Version:   cfg.Cache.PayloadVers,
		}, remote, appLog)
		if err != nil {
			appLog.Error("cache setup failed", "err", err)
			return 1
		}
		svc.Cache = cache
	}

	if cfg.Events.Enabled {
		pub, err := lookupevents.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic, cfg.Events.Queue, appLog)
		if err != nil {
			appLog.Error("event publisher setup failed", "brokers", cfg.Events.Brokers, "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("event publisher close", "err", err)
			}
		}()
		svc.Events = pub
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg, appLog, server.NewHandler(appLog, svc, checks))
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics, appLog)
		})
	}

	if err := g.Wait(); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// serveMetrics exposes the dedicated registry (runtime collectors included)
// on its own listener so it can stay off the public port.
func serveMetrics(ctx context.Context, mc config.MetricsCfg, log *slog.Logger) error {
	p := observability.NewProvider(observability.BuildInfo{
		Version:   Version,
		Revision:  os.Getenv("BUILD_REVISION"),
		Branch:    os.Getenv("BUILD_BRANCH"),
		BuildDate: os.Getenv("BUILD_DATE"),
	})

	mux := http.NewServeMux()
	mux.Handle(mc.Path, p.Handler())
	srv := &http.Server{
		Addr:              mc.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listen", "addr", mc.Addr, "path", mc.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
