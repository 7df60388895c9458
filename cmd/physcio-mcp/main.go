package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/claude/physcio/internal/config"
	"github.com/claude/physcio/internal/content"
	physciomcp "github.com/claude/physcio/internal/mcp"
	"github.com/claude/physcio/internal/metrics"
	"github.com/claude/physcio/internal/storage"
	"github.com/claude/physcio/internal/tracker"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// userHeader selects the user for streamable HTTP sessions.
const userHeader = "X-Physcio-User"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	remote := flag.String("remote", "", "base URL of a Physcio server; serves data over its REST API instead of opening storage")
	userID := flag.String("user", tracker.GuestID, "user the tools act on")
	listen := flag.String("listen", "", "serve streamable HTTP on this address instead of stdio")
	flag.Parse()

	// stdout carries the stdio protocol
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ds, closeDS, err := dataSource(*configPath, *remote, log)
	if err != nil {
		log.Error("failed to set up data source", "error", err)
		os.Exit(1)
	}
	defer closeDS()

	s := physciomcp.New(ds, Version, log)

	if *listen != "" {
		httpSrv := server.NewStreamableHTTPServer(s,
			server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
				if id := r.Header.Get(userHeader); id != "" {
					return physciomcp.WithUserID(ctx, id)
				}
				return physciomcp.WithUserID(ctx, *userID)
			}),
		)
		log.Info("mcp streamable http starting", "addr", *listen)
		if err := httpSrv.Start(*listen); err != nil {
			log.Error("mcp server error", "error", err)
			closeDS()
			os.Exit(1)
		}
		return
	}

	err = server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return physciomcp.WithUserID(ctx, *userID)
	}))
	if err != nil {
		log.Error("mcp stdio error", "error", err)
		closeDS()
		os.Exit(1)
	}
}

func dataSource(configPath, remote string, log *slog.Logger) (physciomcp.DataSource, func(), error) {
	if remote != "" {
		log.Info("mcp remote mode", "url", remote)
		return physciomcp.NewHTTPClient(remote), func() {}, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	ctx := context.Background()
	dsn := ""
	if cfg.Storage.Backend == storage.BackendHosted {
		dsn = cfg.Database.DSN()
	}
	store, err := storage.Open(ctx, cfg.Storage.Backend, dsn, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	m := metrics.NewManager("physcio", "mcp", metrics.SetupPrometheus())
	tr := tracker.New(store, cfg.Program.SessionsPerWeek, m, log)
	if _, err := tr.EnsureGuest(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("creating guest account: %w", err)
	}

	local := &physciomcp.Local{
		Tracker: tr,
		Content: content.New(store, cfg.Content.CacheSeconds, m, log),
	}
	return local, func() { _ = store.Close() }, nil
}
