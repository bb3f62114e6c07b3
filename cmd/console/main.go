package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jaqcquesndav/Wanzo-admin/internal/apiclient"
	"github.com/jaqcquesndav/Wanzo-admin/internal/config"
	"github.com/jaqcquesndav/Wanzo-admin/internal/console"
	"github.com/jaqcquesndav/Wanzo-admin/internal/health"
	"github.com/jaqcquesndav/Wanzo-admin/internal/policy"
	"github.com/jaqcquesndav/Wanzo-admin/internal/ratelimit"
	"github.com/jaqcquesndav/Wanzo-admin/internal/session"
	"github.com/jaqcquesndav/Wanzo-admin/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Load configuration
	loader := config.NewLoader(*configDir, bootstrap)
	if err := loader.Load(); err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()

	logger := newLogger(cfg.Telemetry)
	slog.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}
	defer loader.Close()

	// Session storage: PostgreSQL with a Redis cache, or in process when no
	// database is configured.
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (session cache and rate limiting disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	var store session.Store
	if cfg.Database.Host != "" {
		dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(context.Background()); err != nil {
			logger.Warn("database not reachable (console will start but sign-in will fail)", "error", err)
		} else {
			logger.Info("database connected")
		}
		store = session.NewCachedStore(dbPool, rdb)
	} else {
		logger.Warn("no database configured, sessions are kept in memory")
		store = session.NewMemoryStore()
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	backendHealth := health.NewMonitor(cfg.Backend.FailureThreshold, cfg.Backend.ProbeInterval)

	client := apiclient.New(apiclient.Options{
		BaseURL:     cfg.Backend.BaseURL,
		Timeout:     cfg.Backend.Timeout,
		DemoMode:    cfg.Auth.DemoMode,
		DemoMatcher: session.NewPatternMatcher(cfg.Auth.DemoPatterns),
		Navigator:   console.LoginNavigator,
		Metrics:     metrics,
		Health:      backendHealth,
	})

	evaluator := policy.NewEvaluator(func() config.PolicyConfig { return loader.Config().Policy })
	if err := evaluator.Load(); err != nil {
		logger.Error("failed to load policies", "error", err)
		os.Exit(1)
	}
	loader.OnReload(func() {
		if err := evaluator.Load(); err != nil {
			logger.Error("policy reload failed, keeping previous policies", "error", err)
			return
		}
		logger.Info("policies reloaded")
	})

	server := console.New(console.Options{
		Config:    loader.Config,
		Client:    client,
		Store:     store,
		Refresher: session.NewHTTPRefresher(cfg.Backend.BaseURL, cfg.Auth.RefreshPath, nil),
		Policy:    evaluator,
		Limiter:   ratelimit.NewLimiter(rdb),
		Metrics:   metrics,
		Health:    backendHealth,
		Version:   version,
	})

	if cfg.Telemetry.MetricsPort > 0 {
		go serveMetrics(logger, cfg.Telemetry.MetricsPort)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("console starting",
			"addr", addr,
			"version", version,
			"backend", cfg.Backend.BaseURL,
			"demo_mode", cfg.Auth.DemoMode,
		)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("console stopped")
}

func newLogger(cfg config.TelemetryConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func serveMetrics(logger *slog.Logger, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", "error", err)
	}
}
