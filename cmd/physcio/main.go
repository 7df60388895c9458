package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/claude/physcio/internal/ai"
	"github.com/claude/physcio/internal/config"
	"github.com/claude/physcio/internal/content"
	"github.com/claude/physcio/internal/metrics"
	"github.com/claude/physcio/internal/server"
	"github.com/claude/physcio/internal/storage"
	"github.com/claude/physcio/internal/tracker"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	bootLog := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log, logCloser, err := cfg.Logging.NewLogger(os.Stdout)
	if err != nil {
		bootLog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	log.Info("Physcio starting", "version", Version, "storage", cfg.Storage.Backend)

	if err := run(cfg, *migrateOnly, log); err != nil {
		log.Error("physcio failed", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg *config.Config, migrateOnly bool, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run migrations
	dsn := ""
	if cfg.Storage.Backend == storage.BackendHosted {
		dsn = cfg.Database.DSN()
		if err := storage.RunMigrations(dsn); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info("migrations applied")
	}
	if migrateOnly {
		log.Info("migrate-only: exiting")
		return nil
	}

	// Open storage
	store, err := storage.Open(ctx, cfg.Storage.Backend, dsn, cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()
	log.Info("storage ready", "backend", cfg.Storage.Backend)

	// Metrics
	var collectors []prometheus.Collector
	if db, ok := store.(*storage.DB); ok {
		collectors = append(collectors, pgxpoolprometheus.NewCollector(
			db.Pool,
			map[string]string{"db_name": cfg.Database.Name},
		))
	}
	promRegistry := metrics.SetupPrometheus(collectors...)
	metricsManager := metrics.NewManager("physcio", "server", promRegistry)

	// Services
	trackerSvc := tracker.New(store, cfg.Program.SessionsPerWeek, metricsManager, log)
	if _, err := trackerSvc.EnsureGuest(ctx); err != nil {
		return fmt.Errorf("creating guest account: %w", err)
	}
	contentSvc := content.New(store, cfg.Content.CacheSeconds, metricsManager, log)

	provider, err := ai.New(ctx, ai.Config{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
		Model:    cfg.AI.Model,
		Timeout:  time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	}, log)
	if err != nil {
		return fmt.Errorf("creating ai provider: %w", err)
	}

	// Rate limiting (optional)
	var limiter server.RequestRateLimiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0, // use default DB
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis ping failed, ai rate limits fail open", "addr", cfg.Redis.Addr, "error", err)
		} else {
			log.Info("redis connected", "addr", cfg.Redis.Addr)
		}
		limiter = redis_rate.NewLimiter(rdb)
	}

	deps := server.Deps{
		Tracker:             trackerSvc,
		Content:             contentSvc,
		AI:                  ai.Instrument(provider, metricsManager),
		Store:               store,
		Limiter:             limiter,
		AIRequestsPerMinute: cfg.Redis.AIRequestsPerMinute,
		Metrics:             metricsManager,
		AdminAPIKey:         cfg.Auth.AdminAPIKey,
	}
	if cfg.Metrics.Enabled {
		deps.Registry = promRegistry
		deps.MetricsPath = cfg.Metrics.Path
	}
	srv := server.New(deps, log)

	// Start server: tsnet or plain HTTP
	listener, closeListener, err := listen(cfg, log)
	if err != nil {
		return err
	}
	defer closeListener()

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func listen(cfg *config.Config, log *slog.Logger) (net.Listener, func(), error) {
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			return nil, nil, fmt.Errorf("tsnet start failed: %w", err)
		}

		listener, err := tsServer.Listen("tcp", ":80")
		if err != nil {
			tsServer.Close()
			return nil, nil, fmt.Errorf("tsnet listen failed: %w", err)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
		return listener, func() { _ = tsServer.Close() }, nil
	}

	addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	return listener, func() {}, nil
}
